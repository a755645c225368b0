package models

import "time"

// ===== REQUEST DTOs =====

// MovimientoRequest DTO para aplicar un movimiento de inventario.
// Cantidad es un delta salvo en ajuste, donde es el nuevo valor absoluto.
type MovimientoRequest struct {
	LoteID          int            `json:"lote_id" validate:"required,gt=0"`
	TipoMovimiento  TipoMovimiento `json:"tipo_movimiento" validate:"required,oneof=entrada consumo traslado ajuste"`
	Cantidad        float64        `json:"cantidad"`
	BodegaID        *int           `json:"bodega_id" validate:"omitempty,gt=0"`
	BodegaOrigenID  *int           `json:"bodega_origen_id" validate:"omitempty,gt=0"`
	BodegaDestinoID *int           `json:"bodega_destino_id" validate:"omitempty,gt=0"`
	GalponID        *int           `json:"galpon_id" validate:"omitempty,gt=0"`
	Fecha           *time.Time     `json:"fecha"`
	Observaciones   string         `json:"observaciones"`
}

// DistribucionLote cantidad inicial asignada a una bodega
type DistribucionLote struct {
	BodegaID int     `json:"bodega_id" validate:"required,gt=0"`
	Cantidad float64 `json:"cantidad" validate:"gt=0"`
}

// CrearLoteRequest DTO para registrar un lote de alimento.
// Se indica bodega_id o distribuciones, no ambos.
type CrearLoteRequest struct {
	Tipo            string             `json:"tipo" validate:"required,max=100"`
	CodigoLote      string             `json:"codigo_lote" validate:"required,max=100"`
	CantidadInicial float64            `json:"cantidad_inicial" validate:"gte=0"`
	FechaIngreso    *time.Time         `json:"fecha_ingreso"`
	Proveedor       string             `json:"proveedor" validate:"max=200"`
	BodegaID        *int               `json:"bodega_id" validate:"omitempty,gt=0"`
	Distribuciones  []DistribucionLote `json:"distribuciones" validate:"omitempty,min=1,dive"`
}

// CrearRegistroRequest DTO para el registro diario de un galpón.
// SaldoAves y AcumuladoAlimento se derivan si no vienen explícitos.
type CrearRegistroRequest struct {
	GalponID          int       `json:"galpon_id" validate:"required,gt=0"`
	Fecha             time.Time `json:"fecha" validate:"required"`
	EdadDias          int       `json:"edad_dias" validate:"gte=0"`
	ConsumoKg         float64   `json:"consumo_kg" validate:"gte=0"`
	LoteID            *int      `json:"lote_id" validate:"omitempty,gt=0"`
	Mortalidad        int       `json:"mortalidad" validate:"gte=0"`
	Seleccion         int       `json:"seleccion" validate:"gte=0"`
	SaldoAves         *int      `json:"saldo_aves"`
	PesoPromedio      *float64  `json:"peso_promedio" validate:"omitempty,gte=0"`
	AcumuladoAlimento *float64  `json:"acumulado_alimento" validate:"omitempty,gte=0"`
	Temperatura       *float64  `json:"temperatura"`
	Humedad           *float64  `json:"humedad" validate:"omitempty,gte=0,lte=100"`
	Observaciones     string    `json:"observaciones"`
	FotoFactura       string    `json:"foto_factura"`
	FotoMedidor       string    `json:"foto_medidor"`
}

// ActualizarRegistroRequest edición explícita de un registro; solo se tocan los campos enviados
type ActualizarRegistroRequest struct {
	EdadDias          *int     `json:"edad_dias" validate:"omitempty,gte=0"`
	ConsumoKg         *float64 `json:"consumo_kg" validate:"omitempty,gte=0"`
	Mortalidad        *int     `json:"mortalidad" validate:"omitempty,gte=0"`
	Seleccion         *int     `json:"seleccion" validate:"omitempty,gte=0"`
	SaldoAves         *int     `json:"saldo_aves"`
	PesoPromedio      *float64 `json:"peso_promedio" validate:"omitempty,gte=0"`
	AcumuladoAlimento *float64 `json:"acumulado_alimento" validate:"omitempty,gte=0"`
	Temperatura       *float64 `json:"temperatura"`
	Humedad           *float64 `json:"humedad" validate:"omitempty,gte=0,lte=100"`
	Observaciones     *string  `json:"observaciones"`
	FotoFactura       *string  `json:"foto_factura"`
	FotoMedidor       *string  `json:"foto_medidor"`
}

// SincronizarRegistrosRequest lote de registros capturados sin conexión
type SincronizarRegistrosRequest struct {
	Registros []CrearRegistroRequest `json:"registros" validate:"required,min=1,max=500,dive"`
}

// CrearDesacoseRequest DTO para mover aves entre galpones. Sin fecha se usa la de hoy.
type CrearDesacoseRequest struct {
	GalponOrigenID  int        `json:"galpon_origen_id" validate:"required,gt=0"`
	GalponDestinoID int        `json:"galpon_destino_id" validate:"required,gt=0,nefield=GalponOrigenID"`
	CantidadAves    int        `json:"cantidad_aves" validate:"required,gt=0"`
	Fecha           *time.Time `json:"fecha"`
	Motivo          string     `json:"motivo" validate:"max=100"`
	Observaciones   string     `json:"observaciones"`
	RealizadoPor    *int       `json:"realizado_por" validate:"omitempty,gt=0"`
}

// CrearAlertaRequest DTO para una alerta manual; requiere galpón o lote
type CrearAlertaRequest struct {
	Tipo      TipoAlerta `json:"tipo" validate:"required,oneof=mortalidad_alta stock_bajo peso_anormal consumo_anormal"`
	Severidad Severidad  `json:"severidad" validate:"required,oneof=baja media alta"`
	Mensaje   string     `json:"mensaje" validate:"required"`
	GalponID  *int       `json:"galpon_id" validate:"omitempty,gt=0"`
	LoteID    *int       `json:"lote_id" validate:"omitempty,gt=0"`
}

// ResolverAlertaRequest DTO para marcar una alerta como atendida
type ResolverAlertaRequest struct {
	UsuarioID int `json:"usuario_id" validate:"required,gt=0"`
}

// CrearBodegaRequest DTO para crear una bodega
type CrearBodegaRequest struct {
	GranjaID  int    `json:"granja_id" validate:"required,gt=0"`
	Nombre    string `json:"nombre" validate:"required,max=100"`
	Ubicacion string `json:"ubicacion" validate:"max=200"`
}

// ActualizarBodegaRequest DTO para editar una bodega
type ActualizarBodegaRequest struct {
	Nombre    *string `json:"nombre" validate:"omitempty,min=1,max=100"`
	Ubicacion *string `json:"ubicacion" validate:"omitempty,max=200"`
	Activo    *bool   `json:"activo"`
}

// CrearGalponRequest DTO para crear un galpón
type CrearGalponRequest struct {
	GranjaID      int        `json:"granja_id" validate:"required,gt=0"`
	Numero        int        `json:"numero" validate:"required,gt=0"`
	Nombre        string     `json:"nombre" validate:"max=100"`
	AvesIniciales int        `json:"aves_iniciales" validate:"gte=0"`
	Capacidad     int        `json:"capacidad" validate:"gte=0"`
	FechaInicio   *time.Time `json:"fecha_inicio"`
	BodegaID      *int       `json:"bodega_id" validate:"omitempty,gt=0"`
}

// AsignarBodegaRequest DTO para asignar (o quitar con null) la bodega de un galpón
type AsignarBodegaRequest struct {
	BodegaID *int `json:"bodega_id" validate:"omitempty,gt=0"`
}

// DividirGalponRequest DTO para dividir un galpón en A/B.
// Sin AvesA se reparte mitad y mitad.
type DividirGalponRequest struct {
	AvesA *int `json:"aves_a" validate:"omitempty,gt=0"`
}

// ===== RESPONSE DTOs =====

// APIResponse envelope estándar de las respuestas
type APIResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    interface{}    `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// MovimientoResponse resultado de aplicar un movimiento
type MovimientoResponse struct {
	Movimiento         *Movimiento `json:"movimiento"`
	CantidadActualLote float64     `json:"cantidad_actual_lote"`
	Timestamp          string      `json:"timestamp"`
}

// Acciones de una sincronización
const (
	SincronizacionCreado      = "creado"
	SincronizacionActualizado = "actualizado"
)

// ItemSincronizacion resultado de un registro sincronizado
type ItemSincronizacion struct {
	Indice     int    `json:"indice"`
	GalponID   int    `json:"galpon_id"`
	Fecha      string `json:"fecha"`
	Accion     string `json:"accion,omitempty"`
	RegistroID int    `json:"registro_id,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// SincronizacionResponse resumen de una sincronización; cada registro se procesa por separado
type SincronizacionResponse struct {
	Total     int                   `json:"total"`
	Exitosos  int                   `json:"exitosos"`
	Fallidos  int                   `json:"fallidos"`
	Detalles  []*ItemSincronizacion `json:"detalles"`
	Timestamp string                `json:"timestamp"`
}

// StockLoteResponse stock de un lote por bodega
type StockLoteResponse struct {
	LoteID     int                 `json:"lote_id"`
	CodigoLote string              `json:"codigo_lote"`
	Total      float64             `json:"total"`
	Stocks     []*StockWithDetails `json:"stocks"`
	Timestamp  string              `json:"timestamp"`
}

// StockBodegaResponse stock de una bodega por lote
type StockBodegaResponse struct {
	BodegaID   int                 `json:"bodega_id"`
	TotalLotes int                 `json:"total_lotes"`
	TotalKg    float64             `json:"total_kg"`
	Stocks     []*StockWithDetails `json:"stocks"`
	Timestamp  string              `json:"timestamp"`
}

// MovimientosResponse respuesta para consultas de movimientos
type MovimientosResponse struct {
	TotalMovimientos int           `json:"total_movimientos"`
	Movimientos      []*Movimiento `json:"movimientos"`
	Timestamp        string        `json:"timestamp"`
}
