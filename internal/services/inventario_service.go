package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/cache"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Movimientos incluidos en el detalle de un lote
const movimientosRecientesLote = 20

// InventarioService define las operaciones de lotes, stock y movimientos
type InventarioService interface {
	// Movimientos
	AplicarMovimiento(ctx context.Context, req *models.MovimientoRequest) (*models.MovimientoResponse, error)
	ListMovimientos(ctx context.Context, filter *models.MovimientoFilter) (*models.MovimientosResponse, error)

	// Lotes
	CrearLote(ctx context.Context, req *models.CrearLoteRequest) (*models.LoteWithStock, error)
	GetLote(ctx context.Context, id int) (*models.LoteWithStock, error)
	ListLotes(ctx context.Context, filter *models.LoteFilter) ([]*models.Lote, error)
	ResumenInventario(ctx context.Context, tipo *string) ([]*models.InventarioTipo, error)

	// Consultas de stock
	GetStockLote(ctx context.Context, loteID int) (*models.StockLoteResponse, error)
	GetStockBodega(ctx context.Context, bodegaID int) (*models.StockBodegaResponse, error)
}

// inventarioService implementa InventarioService
type inventarioService struct {
	store  repository.Store
	cache  *cache.LoteCache
	after  *postCommit
	logger *zap.Logger
}

// NewInventarioService crea una nueva instancia del servicio.
// loteCache, tasks y stock pueden ser nil.
func NewInventarioService(store repository.Store, loteCache *cache.LoteCache, tasks TaskQueue, stock StockChecker, logger *zap.Logger) InventarioService {
	return &inventarioService{
		store: store,
		cache: loteCache,
		after: &postCommit{
			cache:  loteCache,
			tasks:  tasks,
			stock:  stock,
			logger: logger,
		},
		logger: logger,
	}
}

// AplicarMovimiento aplica un movimiento en una transacción y, tras el commit,
// invalida el caché del lote y encola la revisión de stock.
func (s *inventarioService) AplicarMovimiento(ctx context.Context, req *models.MovimientoRequest) (*models.MovimientoResponse, error) {
	logger := s.logger.With(
		zap.String("operation", "aplicar_movimiento"),
		zap.String("tipo_movimiento", string(req.TipoMovimiento)),
		zap.Int("lote_id", req.LoteID),
		zap.Float64("cantidad", req.Cantidad),
	)

	var (
		mov   *models.Movimiento
		total float64
	)
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		var err error
		mov, total, err = aplicarMovimiento(ctx, q, req)
		return err
	})
	if err != nil {
		logger.Warn("Movimiento rechazado", zap.String("code", apperror.Code(err)), zap.Error(err))
		return nil, err
	}

	s.after.invalidarLote(ctx, req.LoteID)
	s.after.revisarStock(req.LoteID)

	logger.Info("Movimiento aplicado",
		zap.Int("movimiento_id", mov.ID),
		zap.Float64("cantidad_actual_lote", total))

	return &models.MovimientoResponse{
		Movimiento:         mov,
		CantidadActualLote: total,
		Timestamp:          time.Now().Format(time.RFC3339),
	}, nil
}

// ListMovimientos consulta movimientos con filtros
func (s *inventarioService) ListMovimientos(ctx context.Context, filter *models.MovimientoFilter) (*models.MovimientosResponse, error) {
	movimientos, err := s.store.ListMovimientos(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo movimientos: %w", err)
	}
	return &models.MovimientosResponse{
		TotalMovimientos: len(movimientos),
		Movimientos:      movimientos,
		Timestamp:        time.Now().Format(time.RFC3339),
	}, nil
}

// distribucionesLote valida destino y suma; devuelve una distribución por bodega
func distribucionesLote(req *models.CrearLoteRequest) ([]models.DistribucionLote, error) {
	if req.CantidadInicial < 0 {
		return nil, apperror.NewValidation("la cantidad inicial no puede ser negativa")
	}
	if req.CantidadInicial == 0 && len(req.Distribuciones) > 0 {
		return nil, apperror.NewValidation("un lote con cantidad inicial 0 no admite distribuciones")
	}

	switch {
	case req.BodegaID != nil && len(req.Distribuciones) > 0:
		return nil, apperror.NewValidation("indique bodega_id o distribuciones, no ambos")
	case req.BodegaID != nil:
		return []models.DistribucionLote{{BodegaID: *req.BodegaID, Cantidad: req.CantidadInicial}}, nil
	case len(req.Distribuciones) == 0:
		return nil, apperror.NewValidation("se requiere bodega_id o distribuciones")
	}

	vistas := make(map[int]bool, len(req.Distribuciones))
	total := decimal.Zero
	for _, d := range req.Distribuciones {
		if d.Cantidad <= 0 {
			return nil, apperror.NewValidation("cada distribución debe tener cantidad mayor a 0").
				WithDetail("bodega_id", d.BodegaID)
		}
		if vistas[d.BodegaID] {
			return nil, apperror.NewValidation("bodega repetida en distribuciones").
				WithDetail("bodega_id", d.BodegaID)
		}
		vistas[d.BodegaID] = true
		total = total.Add(decimal.NewFromFloat(d.Cantidad))
	}

	esperado := decimal.NewFromFloat(req.CantidadInicial)
	if total.Sub(esperado).Abs().GreaterThan(toleranciaDistribucion) {
		return nil, apperror.NewDistributionMismatch(total.InexactFloat64(), esperado.InexactFloat64())
	}
	return req.Distribuciones, nil
}

// CrearLote registra el lote, su stock inicial por bodega y un movimiento
// de entrada por bodega, todo en una transacción.
func (s *inventarioService) CrearLote(ctx context.Context, req *models.CrearLoteRequest) (*models.LoteWithStock, error) {
	logger := s.logger.With(
		zap.String("operation", "crear_lote"),
		zap.String("codigo_lote", req.CodigoLote),
		zap.Float64("cantidad_inicial", req.CantidadInicial),
	)

	distribuciones, err := distribucionesLote(req)
	if err != nil {
		return nil, err
	}

	fechaIngreso := time.Now()
	if req.FechaIngreso != nil {
		fechaIngreso = *req.FechaIngreso
	}

	lote := &models.Lote{
		Tipo:            req.Tipo,
		CodigoLote:      req.CodigoLote,
		CantidadInicial: kg(req.CantidadInicial).InexactFloat64(),
		FechaIngreso:    fechaIngreso,
		Proveedor:       req.Proveedor,
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		existente, err := q.GetLoteByCodigo(ctx, req.CodigoLote)
		if err != nil {
			return err
		}
		if existente != nil {
			return apperror.NewDuplicateLotCode(req.CodigoLote)
		}

		for _, d := range distribuciones {
			bodega, err := q.GetBodega(ctx, d.BodegaID)
			if err != nil {
				return err
			}
			if bodega == nil {
				return apperror.NewNotFound("bodega", d.BodegaID)
			}
		}

		if err := q.CreateLote(ctx, lote); err != nil {
			return err
		}

		for _, d := range distribuciones {
			entry, err := ObtenerOCrear(ctx, q, lote.ID, d.BodegaID)
			if err != nil {
				return err
			}
			// lote registrado vacío: la fila queda en 0 y no hay movimiento
			if d.Cantidad == 0 {
				continue
			}
			if err := Acreditar(ctx, q, entry, d.Cantidad); err != nil {
				return err
			}

			bodegaID := d.BodegaID
			if err := q.CreateMovimiento(ctx, &models.Movimiento{
				LoteID:         lote.ID,
				TipoMovimiento: models.MovimientoEntrada,
				Cantidad:       kg(d.Cantidad).InexactFloat64(),
				BodegaID:       &bodegaID,
				Fecha:          fechaIngreso,
				Observaciones:  "Ingreso inicial del lote " + lote.CodigoLote,
			}); err != nil {
				return err
			}
		}

		total, err := recalcularLote(ctx, q, lote.ID)
		if err != nil {
			return err
		}
		lote.CantidadActual = total
		return nil
	})
	if err != nil {
		logger.Warn("Lote rechazado", zap.String("code", apperror.Code(err)), zap.Error(err))
		return nil, err
	}

	logger.Info("Lote creado",
		zap.Int("lote_id", lote.ID),
		zap.Int("bodegas", len(distribuciones)))

	return s.cargarLote(ctx, lote.ID)
}

// GetLote devuelve el lote con su stock por bodega y sus últimos movimientos
func (s *inventarioService) GetLote(ctx context.Context, id int) (*models.LoteWithStock, error) {
	if s.cache != nil {
		lote, err := s.cache.GetLote(ctx, id)
		if err == nil {
			return lote, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Error leyendo caché de lote", zap.Int("lote_id", id), zap.Error(err))
		}
	}

	var gen uint64
	if s.cache != nil {
		gen = s.cache.Generation(id)
	}

	lote, err := s.cargarLote(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		// un movimiento confirmado durante la lectura invalida el llenado
		stored, err := s.cache.SetLoteIfCurrent(ctx, lote, gen)
		if err != nil {
			s.logger.Warn("Error guardando lote en caché", zap.Int("lote_id", id), zap.Error(err))
		} else if !stored {
			s.logger.Debug("Lectura de lote desactualizada, no se guarda en caché", zap.Int("lote_id", id))
		}
	}
	return lote, nil
}

func (s *inventarioService) cargarLote(ctx context.Context, id int) (*models.LoteWithStock, error) {
	lote, err := s.store.GetLote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo lote: %w", err)
	}
	if lote == nil {
		return nil, apperror.NewNotFound("lote", id)
	}

	stocks, err := s.store.GetStockByLote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo stock del lote: %w", err)
	}

	loteID := id
	movimientos, err := s.store.ListMovimientos(ctx, &models.MovimientoFilter{
		LoteID: &loteID,
		Limit:  movimientosRecientesLote,
	})
	if err != nil {
		return nil, fmt.Errorf("error obteniendo movimientos del lote: %w", err)
	}

	return &models.LoteWithStock{Lote: *lote, Stocks: stocks, Movimientos: movimientos}, nil
}

// ListLotes lista lotes con filtros
func (s *inventarioService) ListLotes(ctx context.Context, filter *models.LoteFilter) ([]*models.Lote, error) {
	lotes, err := s.store.ListLotes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo lotes: %w", err)
	}
	return lotes, nil
}

// ResumenInventario agrupa los lotes con stock por tipo de alimento
func (s *inventarioService) ResumenInventario(ctx context.Context, tipo *string) ([]*models.InventarioTipo, error) {
	lotes, err := s.store.ListLotes(ctx, &models.LoteFilter{Tipo: tipo, SoloActivos: true, Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("error obteniendo inventario: %w", err)
	}

	grupos := make(map[string]*models.InventarioTipo)
	totales := make(map[string]decimal.Decimal)
	for _, lote := range lotes {
		grupo, ok := grupos[lote.Tipo]
		if !ok {
			grupo = &models.InventarioTipo{Tipo: lote.Tipo, Lotes: []models.InventarioLoteItem{}}
			grupos[lote.Tipo] = grupo
		}
		totales[lote.Tipo] = totales[lote.Tipo].Add(kg(lote.CantidadActual))
		grupo.Lotes = append(grupo.Lotes, models.InventarioLoteItem{
			ID:                   lote.ID,
			CodigoLote:           lote.CodigoLote,
			CantidadInicial:      lote.CantidadInicial,
			CantidadActual:       lote.CantidadActual,
			PorcentajeDisponible: decimal.NewFromFloat(lote.PorcentajeDisponible()).Round(1).InexactFloat64(),
			FechaIngreso:         lote.FechaIngreso,
			Proveedor:            lote.Proveedor,
		})
	}

	resumen := make([]*models.InventarioTipo, 0, len(grupos))
	for tipoAlimento, grupo := range grupos {
		grupo.CantidadTotal = totales[tipoAlimento].InexactFloat64()
		resumen = append(resumen, grupo)
	}
	sort.Slice(resumen, func(i, j int) bool { return resumen[i].Tipo < resumen[j].Tipo })
	return resumen, nil
}

// GetStockLote devuelve las filas del lote por bodega
func (s *inventarioService) GetStockLote(ctx context.Context, loteID int) (*models.StockLoteResponse, error) {
	lote, err := s.store.GetLote(ctx, loteID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo lote: %w", err)
	}
	if lote == nil {
		return nil, apperror.NewNotFound("lote", loteID)
	}

	stocks, err := s.store.GetStockByLote(ctx, loteID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo stock del lote: %w", err)
	}

	total := decimal.Zero
	for _, stock := range stocks {
		total = total.Add(kg(stock.CantidadActual))
	}

	return &models.StockLoteResponse{
		LoteID:     lote.ID,
		CodigoLote: lote.CodigoLote,
		Total:      total.InexactFloat64(),
		Stocks:     stocks,
		Timestamp:  time.Now().Format(time.RFC3339),
	}, nil
}

// GetStockBodega devuelve el stock de cada lote en la bodega
func (s *inventarioService) GetStockBodega(ctx context.Context, bodegaID int) (*models.StockBodegaResponse, error) {
	bodega, err := s.store.GetBodega(ctx, bodegaID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo bodega: %w", err)
	}
	if bodega == nil {
		return nil, apperror.NewNotFound("bodega", bodegaID)
	}

	stocks, err := s.store.GetStockByBodega(ctx, bodegaID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo stock de la bodega: %w", err)
	}

	total := decimal.Zero
	lotes := 0
	for _, stock := range stocks {
		if stock.CantidadActual > 0 {
			lotes++
		}
		total = total.Add(kg(stock.CantidadActual))
	}

	return &models.StockBodegaResponse{
		BodegaID:   bodega.ID,
		TotalLotes: lotes,
		TotalKg:    total.InexactFloat64(),
		Stocks:     stocks,
		Timestamp:  time.Now().Format(time.RFC3339),
	}, nil
}
