// Package worker ejecuta tareas en segundo plano sobre una cola acotada.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"avicola-service/internal/models"

	"go.uber.org/zap"
)

// TaskFunc es el trabajo a ejecutar; recibe un contexto con timeout propio
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	fn   TaskFunc
}

// Pool consume la cola con un número fijo de workers
type Pool struct {
	queue   chan task
	workers int
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	started sync.Once

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewPool crea el pool sin arrancarlo
func NewPool(workers, queueSize int, timeout time.Duration, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pool{
		queue:   make(chan task, queueSize),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Start lanza los workers; llamadas repetidas no hacen nada
func (p *Pool) Start() {
	p.started.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
		p.logger.Info("Worker pool iniciado",
			zap.Int("workers", p.workers),
			zap.Int("queue_size", cap(p.queue)))
	})
}

// Submit encola la tarea sin bloquear. Devuelve false si la cola está llena
// o el pool ya fue detenido; en ese caso la tarea se descarta.
func (p *Pool) Submit(name string, fn TaskFunc) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("Tarea descartada, pool detenido", zap.String("task", name))
		return false
	}

	select {
	case p.queue <- task{name: name, fn: fn}:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Tarea descartada, cola llena", zap.String("task", name))
		return false
	}
}

// Stop cierra la cola, deja terminar lo encolado y espera a los workers
// hasta que ctx venza.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	// Si nunca arrancó, drenar igual
	p.Start()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool detenido")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool stop: %w", ctx.Err())
	}
}

// Stats devuelve los contadores para monitoreo
func (p *Pool) Stats() models.WorkerMetrics {
	return models.WorkerMetrics{
		Workers:   p.workers,
		QueueSize: cap(p.queue),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		p.execute(id, t)
	}
}

func (p *Pool) execute(id int, t task) {
	logger := p.logger.With(zap.Int("worker", id), zap.String("task", t.name))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.fn(ctx)
	}()

	if err != nil {
		p.failed.Add(1)
		logger.Error("Tarea fallida", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	p.completed.Add(1)
	logger.Debug("Tarea completada", zap.Duration("duration", time.Since(start)))
}
