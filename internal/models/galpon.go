package models

import (
	"time"
)

// Galpon representa la tabla galpones.
// Las divisiones A/B son galpones normales que apuntan a su padre; solo hay un nivel.
type Galpon struct {
	ID             int       `json:"id" db:"id"`
	GranjaID       int       `json:"granja_id" db:"granja_id"`
	Numero         int       `json:"numero" db:"numero"`
	Nombre         string    `json:"nombre,omitempty" db:"nombre"`
	AvesIniciales  int       `json:"aves_iniciales" db:"aves_iniciales"`
	Capacidad      int       `json:"capacidad" db:"capacidad"`
	FechaInicio    time.Time `json:"fecha_inicio" db:"fecha_inicio"`
	BodegaID       *int      `json:"bodega_id,omitempty" db:"bodega_id"`
	GalponPadreID  *int      `json:"galpon_padre_id,omitempty" db:"galpon_padre_id"`
	DivisionSufijo string    `json:"division_sufijo,omitempty" db:"division_sufijo"`
	Activo         bool      `json:"activo" db:"activo"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// EsDivision indica si el galpón es una división de otro
func (g *Galpon) EsDivision() bool {
	return g.GalponPadreID != nil
}

// GalponFilter filtros para listar galpones
type GalponFilter struct {
	GranjaID *int  `json:"granja_id,omitempty"`
	Activo   *bool `json:"activo,omitempty"`
}

// DivisionResult resultado de dividir un galpón
type DivisionResult struct {
	Original   *Galpon   `json:"galpon_original"`
	Divisiones []*Galpon `json:"divisiones"`
}
