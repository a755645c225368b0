package models

import (
	"time"
)

// TipoMovimiento tipos de movimiento de inventario
type TipoMovimiento string

const (
	MovimientoEntrada  TipoMovimiento = "entrada"
	MovimientoConsumo  TipoMovimiento = "consumo"
	MovimientoTraslado TipoMovimiento = "traslado"
	MovimientoAjuste   TipoMovimiento = "ajuste"
)

// Valido indica si el tipo es uno de los soportados
func (t TipoMovimiento) Valido() bool {
	switch t {
	case MovimientoEntrada, MovimientoConsumo, MovimientoTraslado, MovimientoAjuste:
		return true
	}
	return false
}

// Movimiento representa la tabla inventario_alimento. Es un registro de
// auditoría: se crea una vez y no se modifica.
type Movimiento struct {
	ID              int            `json:"id" db:"id"`
	LoteID          int            `json:"lote_id" db:"lote_id"`
	TipoMovimiento  TipoMovimiento `json:"tipo_movimiento" db:"tipo_movimiento"`
	Cantidad        float64        `json:"cantidad" db:"cantidad"`
	GalponID        *int           `json:"galpon_id,omitempty" db:"galpon_id"`
	BodegaID        *int           `json:"bodega_id,omitempty" db:"bodega_id"`
	BodegaOrigenID  *int           `json:"bodega_origen_id,omitempty" db:"bodega_origen_id"`
	BodegaDestinoID *int           `json:"bodega_destino_id,omitempty" db:"bodega_destino_id"`
	Fecha           time.Time      `json:"fecha" db:"fecha"`
	Observaciones   string         `json:"observaciones,omitempty" db:"observaciones"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// MovimientoFilter filtros para consultas de movimientos
type MovimientoFilter struct {
	LoteID         *int            `json:"lote_id,omitempty"`
	GalponID       *int            `json:"galpon_id,omitempty"`
	BodegaID       *int            `json:"bodega_id,omitempty"`
	TipoMovimiento *TipoMovimiento `json:"tipo_movimiento,omitempty"`
	FechaDesde     *time.Time      `json:"fecha_desde,omitempty"`
	FechaHasta     *time.Time      `json:"fecha_hasta,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Offset         int             `json:"offset,omitempty"`
}
