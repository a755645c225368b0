package models

import (
	"fmt"
	"time"
)

// TipoAlerta tipos de alerta
type TipoAlerta string

const (
	AlertaMortalidadAlta TipoAlerta = "mortalidad_alta"
	AlertaStockBajo      TipoAlerta = "stock_bajo"
	AlertaPesoAnormal    TipoAlerta = "peso_anormal"
	AlertaConsumoAnormal TipoAlerta = "consumo_anormal"
)

// Severidad de una alerta
type Severidad string

const (
	SeveridadBaja  Severidad = "baja"
	SeveridadMedia Severidad = "media"
	SeveridadAlta  Severidad = "alta"
)

// Alerta representa la tabla alertas
type Alerta struct {
	ID            int        `json:"id" db:"id"`
	Tipo          TipoAlerta `json:"tipo" db:"tipo"`
	Severidad     Severidad  `json:"severidad" db:"severidad"`
	Mensaje       string     `json:"mensaje" db:"mensaje"`
	GalponID      *int       `json:"galpon_id,omitempty" db:"galpon_id"`
	LoteID        *int       `json:"lote_id,omitempty" db:"lote_id"`
	Fecha         time.Time  `json:"fecha" db:"fecha"`
	Atendida      bool       `json:"atendida" db:"atendida"`
	AtendidaPor   *int       `json:"atendida_por,omitempty" db:"atendida_por"`
	FechaAtencion *time.Time `json:"fecha_atencion,omitempty" db:"fecha_atencion"`
}

// Sujeto devuelve la clave de deduplicación: solo puede existir una alerta
// abierta por (tipo, sujeto). El galpón tiene prioridad sobre el lote.
func (a *Alerta) Sujeto() string {
	switch {
	case a.GalponID != nil:
		return fmt.Sprintf("galpon:%d", *a.GalponID)
	case a.LoteID != nil:
		return fmt.Sprintf("lote:%d", *a.LoteID)
	}
	return ""
}

// AlertaFilter filtros para listar alertas
type AlertaFilter struct {
	Atendida  *bool       `json:"atendida,omitempty"`
	Severidad *Severidad  `json:"severidad,omitempty"`
	Tipo      *TipoAlerta `json:"tipo,omitempty"`
	GalponID  *int        `json:"galpon_id,omitempty"`
	LoteID    *int        `json:"lote_id,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}
