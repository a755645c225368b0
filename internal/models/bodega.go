package models

import (
	"time"
)

// Bodega representa la tabla bodegas
type Bodega struct {
	ID        int       `json:"id" db:"id"`
	GranjaID  int       `json:"granja_id" db:"granja_id"`
	Nombre    string    `json:"nombre" db:"nombre"`
	Ubicacion string    `json:"ubicacion,omitempty" db:"ubicacion"`
	Activo    bool      `json:"activo" db:"activo"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BodegaFilter filtros para listar bodegas
type BodegaFilter struct {
	GranjaID *int  `json:"granja_id,omitempty"`
	Activo   *bool `json:"activo,omitempty"`
}
