package models

import (
	"time"
)

// Edades con foto obligatoria (factura de gas el día 1, medidor el día 22)
const (
	EdadFotoFactura = 1
	EdadFotoMedidor = 22
)

// RegistroDiario representa la tabla registros_diarios. Uno por (galpón, fecha).
type RegistroDiario struct {
	ID                int       `json:"id" db:"id"`
	GalponID          int       `json:"galpon_id" db:"galpon_id"`
	Fecha             time.Time `json:"fecha" db:"fecha"`
	EdadDias          int       `json:"edad_dias" db:"edad_dias"`
	ConsumoKg         float64   `json:"consumo_kg" db:"consumo_kg"`
	LoteID            *int      `json:"lote_id,omitempty" db:"lote_id"`
	Mortalidad        int       `json:"mortalidad" db:"mortalidad"`
	Seleccion         int       `json:"seleccion" db:"seleccion"`
	SaldoAves         int       `json:"saldo_aves" db:"saldo_aves"`
	PesoPromedio      *float64  `json:"peso_promedio,omitempty" db:"peso_promedio"`
	AcumuladoAlimento float64   `json:"acumulado_alimento" db:"acumulado_alimento"`
	Temperatura       *float64  `json:"temperatura,omitempty" db:"temperatura"`
	Humedad           *float64  `json:"humedad,omitempty" db:"humedad"`
	Observaciones     string    `json:"observaciones,omitempty" db:"observaciones"`
	FotoFactura       string    `json:"foto_factura,omitempty" db:"foto_factura"`
	FotoMedidor       string    `json:"foto_medidor,omitempty" db:"foto_medidor"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// RegistroFilter filtros para listar registros
type RegistroFilter struct {
	GalponID   *int       `json:"galpon_id,omitempty"`
	FechaDesde *time.Time `json:"fecha_desde,omitempty"`
	FechaHasta *time.Time `json:"fecha_hasta,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
