package models

import (
	"time"
)

// Desacose representa la tabla desacose: aves movidas de un galpón a otro.
// Cada movimiento deja un registro de saldo en ambos galpones para esa fecha.
type Desacose struct {
	ID              int       `json:"id" db:"id"`
	GalponOrigenID  int       `json:"galpon_origen_id" db:"galpon_origen_id"`
	GalponDestinoID int       `json:"galpon_destino_id" db:"galpon_destino_id"`
	Fecha           time.Time `json:"fecha" db:"fecha"`
	CantidadAves    int       `json:"cantidad_aves" db:"cantidad_aves"`
	Motivo          string    `json:"motivo,omitempty" db:"motivo"`
	Observaciones   string    `json:"observaciones,omitempty" db:"observaciones"`
	RealizadoPor    *int      `json:"realizado_por,omitempty" db:"realizado_por"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// DesacoseFilter filtros para listar desacoses; GalponID matchea origen o destino
type DesacoseFilter struct {
	GalponID   *int       `json:"galpon_id,omitempty"`
	FechaDesde *time.Time `json:"fecha_desde,omitempty"`
	FechaHasta *time.Time `json:"fecha_hasta,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// DesacoseResult el movimiento con los registros de saldo que generó
type DesacoseResult struct {
	Desacose        *Desacose       `json:"desacose"`
	RegistroOrigen  *RegistroDiario `json:"registro_origen"`
	RegistroDestino *RegistroDiario `json:"registro_destino"`
}
