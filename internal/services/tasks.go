package services

import (
	"context"
	"fmt"

	"avicola-service/internal/cache"
	"avicola-service/internal/models"
	"avicola-service/internal/worker"

	"go.uber.org/zap"
)

// TaskQueue recibe trabajo que corre después de responder al cliente
type TaskQueue interface {
	Submit(name string, fn worker.TaskFunc) bool
}

// StockChecker evalúa el stock restante de un lote
type StockChecker interface {
	DetectarStockBajo(ctx context.Context, loteID int) (*models.Alerta, error)
}

// postCommit agrupa lo que se hace tras confirmar una transacción de inventario
type postCommit struct {
	cache  *cache.LoteCache
	tasks  TaskQueue
	stock  StockChecker
	logger *zap.Logger
}

// invalidarLote saca el lote del caché; un fallo solo se registra
func (p *postCommit) invalidarLote(ctx context.Context, loteID int) {
	if p.cache == nil {
		return
	}
	if err := p.cache.InvalidateLote(ctx, loteID); err != nil {
		p.logger.Warn("Error invalidando caché de lote", zap.Int("lote_id", loteID), zap.Error(err))
	}
}

// revisarStock encola la detección de stock bajo para el lote
func (p *postCommit) revisarStock(loteID int) {
	if p.tasks == nil || p.stock == nil {
		return
	}
	p.tasks.Submit(fmt.Sprintf("stock_bajo:lote:%d", loteID), func(ctx context.Context) error {
		_, err := p.stock.DetectarStockBajo(ctx, loteID)
		return err
	})
}
