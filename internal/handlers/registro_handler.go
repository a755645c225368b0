package handlers

import (
	"net/http"

	"avicola-service/internal/models"
	"avicola-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RegistroHandler maneja los registros diarios de galpón
type RegistroHandler struct {
	service   services.RegistroService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegistroHandler crea una nueva instancia del handler
func NewRegistroHandler(service services.RegistroService, logger *zap.Logger) *RegistroHandler {
	return &RegistroHandler{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// CrearRegistro POST /registros
func (h *RegistroHandler) CrearRegistro(c *gin.Context) {
	var req models.CrearRegistroRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de registro inválidos", err)
		return
	}

	reg, err := h.service.CrearRegistro(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo guardar el registro", err)
		return
	}
	respondOK(c, http.StatusCreated, "Registro diario guardado", reg)
}

// ListRegistros GET /registros?galpon_id=&fecha_desde=&fecha_hasta=
func (h *RegistroHandler) ListRegistros(c *gin.Context) {
	filter := &models.RegistroFilter{}
	var err error
	if filter.GalponID, err = queryInt(c, "galpon_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.FechaDesde, err = queryFecha(c, "fecha_desde"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.FechaHasta, err = queryFecha(c, "fecha_hasta"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.Limit, filter.Offset, err = pagination(c); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	registros, err := h.service.ListRegistros(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo registros", err)
		return
	}
	respondOK(c, http.StatusOK, "Registros obtenidos", registros)
}

func (h *RegistroHandler) GetRegistro(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de registro inválido", err)
		return
	}

	reg, err := h.service.GetRegistro(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo registro", err)
		return
	}
	respondOK(c, http.StatusOK, "Registro obtenido", reg)
}

func (h *RegistroHandler) ActualizarRegistro(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de registro inválido", err)
		return
	}

	var req models.ActualizarRegistroRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de registro inválidos", err)
		return
	}

	reg, err := h.service.ActualizarRegistro(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo actualizar el registro", err)
		return
	}
	respondOK(c, http.StatusOK, "Registro actualizado", reg)
}

func (h *RegistroHandler) EliminarRegistro(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de registro inválido", err)
		return
	}

	if err := h.service.EliminarRegistro(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "No se pudo eliminar el registro", err)
		return
	}
	respondOK(c, http.StatusOK, "Registro eliminado", nil)
}

// SincronizarRegistros POST /registros/sincronizar
// Responde 200 aunque haya fallos parciales; el detalle indica cada resultado.
func (h *RegistroHandler) SincronizarRegistros(c *gin.Context) {
	var req models.SincronizarRegistrosRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de sincronización inválidos", err)
		return
	}

	resp, err := h.service.SincronizarRegistros(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo sincronizar", err)
		return
	}
	respondOK(c, http.StatusOK, "Sincronización completada", resp)
}

// RegistrarDesacose POST /desacose
func (h *RegistroHandler) RegistrarDesacose(c *gin.Context) {
	var req models.CrearDesacoseRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de desacose inválidos", err)
		return
	}

	result, err := h.service.RegistrarDesacose(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo registrar el desacose", err)
		return
	}
	respondOK(c, http.StatusCreated, "Desacose registrado", result)
}

// ListDesacoses GET /desacose?galpon_id=&fecha_desde=&fecha_hasta=
func (h *RegistroHandler) ListDesacoses(c *gin.Context) {
	filter := &models.DesacoseFilter{}
	var err error
	if filter.GalponID, err = queryInt(c, "galpon_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.FechaDesde, err = queryFecha(c, "fecha_desde"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.FechaHasta, err = queryFecha(c, "fecha_hasta"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.Limit, filter.Offset, err = pagination(c); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	desacoses, err := h.service.ListDesacoses(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo desacoses", err)
		return
	}
	respondOK(c, http.StatusOK, "Desacoses obtenidos", desacoses)
}

func (h *RegistroHandler) GetDesacose(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de desacose inválido", err)
		return
	}

	d, err := h.service.GetDesacose(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo desacose", err)
		return
	}
	respondOK(c, http.StatusOK, "Desacose obtenido", d)
}
