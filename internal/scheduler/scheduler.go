// Package scheduler corre los trabajos periódicos del servicio.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StockSweeper revisa el stock de todos los lotes activos
type StockSweeper interface {
	RevisarStockLotes(ctx context.Context) (int, error)
}

// Scheduler administra los trabajos programados
type Scheduler struct {
	cron    *cron.Cron
	sweeper StockSweeper
	spec    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler crea el scheduler; spec es una expresión cron de 5 campos
func NewScheduler(spec string, sweeper StockSweeper, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		spec:    spec,
		timeout: 2 * time.Minute,
		logger:  logger,
	}
}

// Start registra los trabajos y arranca el cron
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.revisarStock); err != nil {
		return fmt.Errorf("failed to schedule stock sweep %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler iniciado", zap.String("stock_sweep", s.spec))
	return nil
}

// Stop detiene el cron y espera el trabajo en curso hasta que ctx venza
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Deteniendo scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler detenido con trabajo en curso")
	}
}

func (s *Scheduler) revisarStock() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	creadas, err := s.sweeper.RevisarStockLotes(ctx)
	if err != nil {
		s.logger.Error("Error en revisión programada de stock", zap.Error(err))
		return
	}
	s.logger.Info("Revisión programada de stock completada",
		zap.Int("alertas_creadas", creadas),
		zap.Duration("duration", time.Since(start)))
}
