package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"avicola-service/internal/cache"
	"avicola-service/internal/config"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"
	"avicola-service/internal/worker"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// syncQueue ejecuta cada tarea en el acto
type syncQueue struct {
	mu    sync.Mutex
	names []string
}

func (q *syncQueue) Submit(name string, fn worker.TaskFunc) bool {
	q.mu.Lock()
	q.names = append(q.names, name)
	q.mu.Unlock()
	_ = fn(context.Background())
	return true
}

func (q *syncQueue) submitted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.names...)
}

// recordingNotifier guarda las alertas notificadas
type recordingNotifier struct {
	mu      sync.Mutex
	alertas []*models.Alerta
}

func (n *recordingNotifier) NotificarAlerta(ctx context.Context, alerta *models.Alerta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alertas = append(n.alertas, alerta)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alertas)
}

var errInyectado = errors.New("fallo inyectado")

// faultyStore hace fallar la n-ésima UpdateStockCantidad de cada transacción
type faultyStore struct {
	*repository.MemoryStore
	failOn int
}

func (s *faultyStore) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.MemoryStore.RunInTx(ctx, func(q repository.Queries) error {
		return fn(&faultyQueries{Queries: q, failOn: s.failOn})
	})
}

type faultyQueries struct {
	repository.Queries
	failOn int
	calls  int
}

func (q *faultyQueries) UpdateStockCantidad(ctx context.Context, id int, cantidad float64) error {
	q.calls++
	if q.calls == q.failOn {
		return errInyectado
	}
	return q.Queries.UpdateStockCantidad(ctx, id, cantidad)
}

type fixture struct {
	store      *repository.MemoryStore
	queue      *syncQueue
	notifier   *recordingNotifier
	loteCache  *cache.LoteCache
	inventario InventarioService
	alertas    AlertaService
	registros  RegistroService
	granja     GranjaService
	numero     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, repository.NewMemoryStore(), nil)
}

// newFixtureWithStore arma los servicios sobre mem; si store no es nil los
// servicios de escritura lo usan en lugar de mem.
func newFixtureWithStore(t *testing.T, mem *repository.MemoryStore, store repository.Store) *fixture {
	t.Helper()
	if store == nil {
		store = mem
	}

	logger := zap.NewNop()
	loteCache := cache.NewLoteCache(nil, 100, time.Minute, logger)
	t.Cleanup(loteCache.Close)

	f := &fixture{
		store:     mem,
		queue:     &syncQueue{},
		notifier:  &recordingNotifier{},
		loteCache: loteCache,
	}
	f.alertas = NewAlertaService(store, config.DefaultThresholds(), f.notifier, f.queue, logger)
	f.inventario = NewInventarioService(store, loteCache, f.queue, f.alertas, logger)
	f.registros = NewRegistroService(store, loteCache, f.queue, f.alertas, logger)
	f.granja = NewGranjaService(store, logger)
	return f
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func (f *fixture) bodega(t *testing.T, nombre string) *models.Bodega {
	t.Helper()
	bodega, err := f.granja.CrearBodega(context.Background(), &models.CrearBodegaRequest{GranjaID: 1, Nombre: nombre})
	require.NoError(t, err)
	return bodega
}

func (f *fixture) galpon(t *testing.T, aves int, bodegaID *int) *models.Galpon {
	t.Helper()
	f.numero++
	galpon, err := f.granja.CrearGalpon(context.Background(), &models.CrearGalponRequest{
		GranjaID: 1, Numero: f.numero, AvesIniciales: aves, Capacidad: aves, BodegaID: bodegaID,
	})
	require.NoError(t, err)
	return galpon
}

func (f *fixture) lote(t *testing.T, codigo string, cantidad float64, bodegaID int) *models.LoteWithStock {
	t.Helper()
	lote, err := f.inventario.CrearLote(context.Background(), &models.CrearLoteRequest{
		Tipo: "inicio", CodigoLote: codigo, CantidadInicial: cantidad, BodegaID: intPtr(bodegaID),
	})
	require.NoError(t, err)
	return lote
}

func (f *fixture) stock(t *testing.T, loteID, bodegaID int) float64 {
	t.Helper()
	entry, err := f.store.GetStockForUpdate(context.Background(), loteID, bodegaID)
	require.NoError(t, err)
	if entry == nil {
		return 0
	}
	return entry.CantidadActual
}

// requireLedgerConsistent comprueba que el total del lote es la suma de sus filas
func (f *fixture) requireLedgerConsistent(t *testing.T, loteID int) float64 {
	t.Helper()
	ctx := context.Background()
	lote, err := f.store.GetLote(ctx, loteID)
	require.NoError(t, err)
	suma, err := f.store.SumStockByLote(ctx, loteID)
	require.NoError(t, err)
	require.InDelta(t, suma, lote.CantidadActual, 0.001)
	return lote.CantidadActual
}

// registro crea un registro diario directo en el store, sin detecciones
func (f *fixture) registro(t *testing.T, reg *models.RegistroDiario) *models.RegistroDiario {
	t.Helper()
	require.NoError(t, f.store.CreateRegistro(context.Background(), reg))
	return reg
}

func dia(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}
