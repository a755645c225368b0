package models

import (
	"time"
)

// Lote representa la tabla lotes_alimento
type Lote struct {
	ID              int       `json:"id" db:"id"`
	Tipo            string    `json:"tipo" db:"tipo"`
	CodigoLote      string    `json:"codigo_lote" db:"codigo_lote"`
	CantidadInicial float64   `json:"cantidad_inicial" db:"cantidad_inicial"`
	CantidadActual  float64   `json:"cantidad_actual" db:"cantidad_actual"`
	FechaIngreso    time.Time `json:"fecha_ingreso" db:"fecha_ingreso"`
	Proveedor       string    `json:"proveedor,omitempty" db:"proveedor"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PorcentajeDisponible devuelve el stock restante como porcentaje de la cantidad inicial
func (l *Lote) PorcentajeDisponible() float64 {
	if l.CantidadInicial <= 0 {
		return 0
	}
	return l.CantidadActual / l.CantidadInicial * 100
}

// LoteWithStock incluye el detalle por bodega y los últimos movimientos
type LoteWithStock struct {
	Lote
	Stocks      []*StockWithDetails `json:"stocks"`
	Movimientos []*Movimiento       `json:"movimientos,omitempty"`
}

// LoteFilter filtros para listar lotes
type LoteFilter struct {
	Tipo        *string `json:"tipo,omitempty"`
	SoloActivos bool    `json:"solo_activos,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// InventarioTipo agrupa los lotes de un mismo tipo de alimento
type InventarioTipo struct {
	Tipo          string               `json:"tipo"`
	CantidadTotal float64              `json:"cantidad_total"`
	Lotes         []InventarioLoteItem `json:"lotes"`
}

// InventarioLoteItem resumen de un lote dentro del inventario
type InventarioLoteItem struct {
	ID                   int       `json:"id"`
	CodigoLote           string    `json:"codigo_lote"`
	CantidadInicial      float64   `json:"cantidad_inicial"`
	CantidadActual       float64   `json:"cantidad_actual"`
	PorcentajeDisponible float64   `json:"porcentaje_disponible"`
	FechaIngreso         time.Time `json:"fecha_ingreso"`
	Proveedor            string    `json:"proveedor,omitempty"`
}
