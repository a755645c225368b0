package models

import (
	"time"
)

// StockLoteBodega representa la tabla stock_lote_bodega.
// Hay una fila por par (lote, bodega); nunca se borra, puede quedar en 0.
type StockLoteBodega struct {
	ID             int       `json:"id" db:"id"`
	LoteID         int       `json:"lote_id" db:"lote_id"`
	BodegaID       int       `json:"bodega_id" db:"bodega_id"`
	CantidadActual float64   `json:"cantidad_actual" db:"cantidad_actual"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// StockWithDetails incluye información del lote y la bodega
type StockWithDetails struct {
	StockLoteBodega
	CodigoLote   string `json:"codigo_lote,omitempty"`
	TipoAlimento string `json:"tipo_alimento,omitempty"`
	NombreBodega string `json:"nombre_bodega,omitempty"`
}
