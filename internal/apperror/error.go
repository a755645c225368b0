// Package apperror define los errores de negocio del servicio.
// Cada tipo de error tiene un código estable y un status HTTP sugerido;
// los handlers solo traducen, nunca deciden el status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Códigos de error
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"

	// Unicidad (409)
	CodeDuplicateLotCode = "DUPLICATE_LOT_CODE"
	CodeDuplicateRecord  = "DUPLICATE_RECORD"

	// Invariantes de stock y aves (422)
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeNegativeStock     = "NEGATIVE_STOCK"
	CodeNegativeBalance   = "NEGATIVE_BALANCE"

	// Precondiciones (422)
	CodeNoWarehouseAssigned  = "NO_WAREHOUSE_ASSIGNED"
	CodeWarehouseMismatch    = "WAREHOUSE_MISMATCH"
	CodeSameWarehouse        = "SAME_WAREHOUSE"
	CodeDistributionMismatch = "DISTRIBUTION_MISMATCH"
	CodeAlreadyResolved      = "ALREADY_RESOLVED"
	CodeInvalidDivision      = "INVALID_DIVISION"

	// Validación de fotos obligatorias (400)
	CodeMissingRequiredPhoto = "MISSING_REQUIRED_PHOTO"
)

// AppError es el error estándar del servicio.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (causa: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap expone el error subyacente
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compara por código, así errors.Is(err, ErrInsufficientStock) funciona
// con cualquier instancia que lleve el mismo código.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail agrega un dato de contexto
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause asigna el error subyacente
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// Sentinelas para errors.Is
var (
	ErrNotFound             = &AppError{Code: CodeNotFound, HTTPStatus: http.StatusNotFound}
	ErrValidation           = &AppError{Code: CodeValidation, HTTPStatus: http.StatusBadRequest}
	ErrConflict             = &AppError{Code: CodeConflict, HTTPStatus: http.StatusConflict}
	ErrDuplicateLotCode     = &AppError{Code: CodeDuplicateLotCode, HTTPStatus: http.StatusConflict}
	ErrDuplicateRecord      = &AppError{Code: CodeDuplicateRecord, HTTPStatus: http.StatusConflict}
	ErrInsufficientStock    = &AppError{Code: CodeInsufficientStock, HTTPStatus: http.StatusUnprocessableEntity}
	ErrNegativeStock        = &AppError{Code: CodeNegativeStock, HTTPStatus: http.StatusUnprocessableEntity}
	ErrNegativeBalance      = &AppError{Code: CodeNegativeBalance, HTTPStatus: http.StatusUnprocessableEntity}
	ErrNoWarehouseAssigned  = &AppError{Code: CodeNoWarehouseAssigned, HTTPStatus: http.StatusUnprocessableEntity}
	ErrWarehouseMismatch    = &AppError{Code: CodeWarehouseMismatch, HTTPStatus: http.StatusUnprocessableEntity}
	ErrSameWarehouse        = &AppError{Code: CodeSameWarehouse, HTTPStatus: http.StatusUnprocessableEntity}
	ErrDistributionMismatch = &AppError{Code: CodeDistributionMismatch, HTTPStatus: http.StatusUnprocessableEntity}
	ErrAlreadyResolved      = &AppError{Code: CodeAlreadyResolved, HTTPStatus: http.StatusUnprocessableEntity}
	ErrInvalidDivision      = &AppError{Code: CodeInvalidDivision, HTTPStatus: http.StatusUnprocessableEntity}
	ErrMissingRequiredPhoto = &AppError{Code: CodeMissingRequiredPhoto, HTTPStatus: http.StatusBadRequest}
)

func newError(base *AppError, message string) *AppError {
	return &AppError{Code: base.Code, Message: message, HTTPStatus: base.HTTPStatus}
}

// NewValidation crea un error de validación de entrada
func NewValidation(message string) *AppError {
	return newError(ErrValidation, message)
}

// NewNotFound crea un error de entidad inexistente
func NewNotFound(entity string, id any) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s no encontrado", entity)).
		WithDetail("entidad", entity).
		WithDetail("id", id)
}

// NewConflict crea un error de unicidad genérico
func NewConflict(message string) *AppError {
	return newError(ErrConflict, message)
}

// NewDuplicateLotCode se produce cuando el código de lote ya existe
func NewDuplicateLotCode(codigo string) *AppError {
	return newError(ErrDuplicateLotCode, fmt.Sprintf("ya existe un lote con el código %s", codigo)).
		WithDetail("codigo_lote", codigo)
}

// NewDuplicateRecord se produce cuando ya hay un registro para el galpón y la fecha
func NewDuplicateRecord(galponID int, fecha string) *AppError {
	return newError(ErrDuplicateRecord, fmt.Sprintf("ya existe un registro para la fecha %s en este galpón", fecha)).
		WithDetail("galpon_id", galponID).
		WithDetail("fecha", fecha)
}

// NewInsufficientStock se produce cuando un débito supera la cantidad disponible
func NewInsufficientStock(loteID, bodegaID int, solicitado, disponible float64) *AppError {
	return newError(ErrInsufficientStock,
		fmt.Sprintf("stock insuficiente: disponible %.2f kg, solicitado %.2f kg", disponible, solicitado)).
		WithDetail("lote_id", loteID).
		WithDetail("bodega_id", bodegaID).
		WithDetail("solicitado", solicitado).
		WithDetail("disponible", disponible)
}

// NewNegativeStock se produce cuando un ajuste intenta fijar stock negativo
func NewNegativeStock(valor float64) *AppError {
	return newError(ErrNegativeStock, fmt.Sprintf("el stock no puede ser negativo (%.2f)", valor)).
		WithDetail("valor", valor)
}

// NewNegativeBalance se produce cuando el saldo de aves quedaría bajo cero
func NewNegativeBalance(saldo int) *AppError {
	return newError(ErrNegativeBalance, fmt.Sprintf("el saldo de aves no puede ser negativo (%d)", saldo)).
		WithDetail("saldo_aves", saldo)
}

// NewNoWarehouseAssigned se produce cuando el galpón no tiene bodega para consumo
func NewNoWarehouseAssigned(galponID int) *AppError {
	return newError(ErrNoWarehouseAssigned, "el galpón no tiene una bodega asignada").
		WithDetail("galpon_id", galponID)
}

// NewWarehouseMismatch se produce cuando la bodega indicada no es la del galpón
func NewWarehouseMismatch(galponID, asignada, indicada int) *AppError {
	return newError(ErrWarehouseMismatch, "la bodega indicada no coincide con la bodega asignada al galpón").
		WithDetail("galpon_id", galponID).
		WithDetail("bodega_asignada", asignada).
		WithDetail("bodega_indicada", indicada)
}

// NewSameWarehouse se produce en traslados con origen igual a destino
func NewSameWarehouse(bodegaID int) *AppError {
	return newError(ErrSameWarehouse, "la bodega de origen y destino deben ser distintas").
		WithDetail("bodega_id", bodegaID)
}

// NewDistributionMismatch se produce cuando la distribución no suma la cantidad inicial
func NewDistributionMismatch(total, esperado float64) *AppError {
	return newError(ErrDistributionMismatch,
		fmt.Sprintf("la distribución suma %.3f kg y la cantidad inicial es %.3f kg", total, esperado)).
		WithDetail("total_distribuido", total).
		WithDetail("cantidad_inicial", esperado)
}

// NewAlreadyResolved se produce al resolver dos veces la misma alerta
func NewAlreadyResolved(alertaID int) *AppError {
	return newError(ErrAlreadyResolved, "la alerta ya ha sido resuelta").
		WithDetail("alerta_id", alertaID)
}

// NewInvalidDivision se produce cuando un galpón no se puede dividir
func NewInvalidDivision(message string) *AppError {
	return newError(ErrInvalidDivision, message)
}

// NewMissingRequiredPhoto se produce cuando falta la foto exigida para la edad
func NewMissingRequiredPhoto(foto string, edadDias int) *AppError {
	return newError(ErrMissingRequiredPhoto,
		fmt.Sprintf("para el día %d (edad) es obligatoria la foto %s", edadDias, foto)).
		WithDetail("foto", foto).
		WithDetail("edad_dias", edadDias)
}

// HTTPStatus devuelve el status sugerido para cualquier error
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Code devuelve el código del error, o INTERNAL_ERROR si no es un AppError
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
