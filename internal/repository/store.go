package repository

import (
	"context"
	"time"

	"avicola-service/internal/models"
)

// Queries define todas las lecturas y escrituras del núcleo de inventario.
// Los Get* devuelven (nil, nil) cuando la fila no existe.
type Queries interface {
	// Lotes
	GetLote(ctx context.Context, id int) (*models.Lote, error)
	GetLoteByCodigo(ctx context.Context, codigo string) (*models.Lote, error)
	CreateLote(ctx context.Context, lote *models.Lote) error
	UpdateLoteCantidad(ctx context.Context, id int, cantidad float64) error
	ListLotes(ctx context.Context, filter *models.LoteFilter) ([]*models.Lote, error)

	// Bodegas
	GetBodega(ctx context.Context, id int) (*models.Bodega, error)
	CreateBodega(ctx context.Context, bodega *models.Bodega) error
	UpdateBodega(ctx context.Context, bodega *models.Bodega) error
	ListBodegas(ctx context.Context, filter *models.BodegaFilter) ([]*models.Bodega, error)

	// Stock por lote y bodega
	EnsureStock(ctx context.Context, loteID, bodegaID int) error
	GetStockForUpdate(ctx context.Context, loteID, bodegaID int) (*models.StockLoteBodega, error)
	UpdateStockCantidad(ctx context.Context, id int, cantidad float64) error
	SumStockByLote(ctx context.Context, loteID int) (float64, error)
	GetStockByLote(ctx context.Context, loteID int) ([]*models.StockWithDetails, error)
	GetStockByBodega(ctx context.Context, bodegaID int) ([]*models.StockWithDetails, error)

	// Movimientos
	CreateMovimiento(ctx context.Context, movimiento *models.Movimiento) error
	ListMovimientos(ctx context.Context, filter *models.MovimientoFilter) ([]*models.Movimiento, error)

	// Galpones
	GetGalpon(ctx context.Context, id int) (*models.Galpon, error)
	CreateGalpon(ctx context.Context, galpon *models.Galpon) error
	UpdateGalponBodega(ctx context.Context, id int, bodegaID *int) error
	ListGalpones(ctx context.Context, filter *models.GalponFilter) ([]*models.Galpon, error)
	CountDivisiones(ctx context.Context, galponPadreID int) (int, error)

	// Registros diarios
	GetRegistro(ctx context.Context, id int) (*models.RegistroDiario, error)
	GetRegistroByFecha(ctx context.Context, galponID int, fecha time.Time) (*models.RegistroDiario, error)
	GetUltimoRegistro(ctx context.Context, galponID int) (*models.RegistroDiario, error)
	ListRegistrosAnteriores(ctx context.Context, galponID int, antesDe time.Time, limit int) ([]*models.RegistroDiario, error)
	CreateRegistro(ctx context.Context, registro *models.RegistroDiario) error
	UpdateRegistro(ctx context.Context, registro *models.RegistroDiario) error
	DeleteRegistro(ctx context.Context, id int) (bool, error)
	ListRegistros(ctx context.Context, filter *models.RegistroFilter) ([]*models.RegistroDiario, error)

	// Desacose
	CreateDesacose(ctx context.Context, desacose *models.Desacose) error
	GetDesacose(ctx context.Context, id int) (*models.Desacose, error)
	ListDesacoses(ctx context.Context, filter *models.DesacoseFilter) ([]*models.Desacose, error)

	// Alertas
	CreateAlertaSiNoExiste(ctx context.Context, alerta *models.Alerta) (bool, error)
	GetAlerta(ctx context.Context, id int) (*models.Alerta, error)
	ResolverAlerta(ctx context.Context, id, usuarioID int, fecha time.Time) (bool, error)
	DeleteAlerta(ctx context.Context, id int) (bool, error)
	ListAlertas(ctx context.Context, filter *models.AlertaFilter) ([]*models.Alerta, error)
	CountAlertasPendientes(ctx context.Context) (map[models.Severidad]int, error)
}

// Store agrega el manejo de transacciones.
// Todo lo que fn haga con q se revierte si fn devuelve error.
// Dentro de fn solo se debe usar q, nunca el Store.
type Store interface {
	Queries
	RunInTx(ctx context.Context, fn func(q Queries) error) error
}

// Nombres de constraints usados para traducir violaciones de unicidad
const (
	constraintLoteCodigo    = "lotes_alimento_codigo_lote_key"
	constraintRegistroFecha = "registros_diarios_galpon_fecha_key"
	constraintBodegaNombre  = "bodegas_granja_nombre_key"
	constraintGalponNumero  = "galpones_granja_numero_sufijo_key"
	constraintStockCantidad = "stock_lote_bodega_cantidad_check"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// DateOnly normaliza una fecha al día en UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
