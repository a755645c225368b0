package handlers

import (
	"net/http"

	"avicola-service/internal/models"
	"avicola-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// GranjaHandler maneja bodegas y galpones
type GranjaHandler struct {
	granja     services.GranjaService
	inventario services.InventarioService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGranjaHandler crea una nueva instancia del handler
func NewGranjaHandler(granja services.GranjaService, inventario services.InventarioService, logger *zap.Logger) *GranjaHandler {
	return &GranjaHandler{
		granja:     granja,
		inventario: inventario,
		validator:  validator.New(),
		logger:     logger,
	}
}

// ===== Bodegas =====

func (h *GranjaHandler) CrearBodega(c *gin.Context) {
	var req models.CrearBodegaRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de bodega inválidos", err)
		return
	}

	bodega, err := h.granja.CrearBodega(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo crear la bodega", err)
		return
	}
	respondOK(c, http.StatusCreated, "Bodega creada", bodega)
}

func (h *GranjaHandler) ListBodegas(c *gin.Context) {
	filter := &models.BodegaFilter{}
	var err error
	if filter.GranjaID, err = queryInt(c, "granja_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.Activo, err = queryBool(c, "activo"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	bodegas, err := h.granja.ListBodegas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo bodegas", err)
		return
	}
	respondOK(c, http.StatusOK, "Bodegas obtenidas", bodegas)
}

func (h *GranjaHandler) GetBodega(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de bodega inválido", err)
		return
	}

	bodega, err := h.granja.GetBodega(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo bodega", err)
		return
	}
	respondOK(c, http.StatusOK, "Bodega obtenida", bodega)
}

func (h *GranjaHandler) ActualizarBodega(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de bodega inválido", err)
		return
	}

	var req models.ActualizarBodegaRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de bodega inválidos", err)
		return
	}

	bodega, err := h.granja.ActualizarBodega(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo actualizar la bodega", err)
		return
	}
	respondOK(c, http.StatusOK, "Bodega actualizada", bodega)
}

// GetStockBodega GET /bodegas/:id/stock
func (h *GranjaHandler) GetStockBodega(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de bodega inválido", err)
		return
	}

	stock, err := h.inventario.GetStockBodega(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo stock de la bodega", err)
		return
	}
	respondOK(c, http.StatusOK, "Stock de la bodega obtenido", stock)
}

// ===== Galpones =====

func (h *GranjaHandler) CrearGalpon(c *gin.Context) {
	var req models.CrearGalponRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de galpón inválidos", err)
		return
	}

	galpon, err := h.granja.CrearGalpon(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo crear el galpón", err)
		return
	}
	respondOK(c, http.StatusCreated, "Galpón creado", galpon)
}

func (h *GranjaHandler) ListGalpones(c *gin.Context) {
	filter := &models.GalponFilter{}
	var err error
	if filter.GranjaID, err = queryInt(c, "granja_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.Activo, err = queryBool(c, "activo"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	galpones, err := h.granja.ListGalpones(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo galpones", err)
		return
	}
	respondOK(c, http.StatusOK, "Galpones obtenidos", galpones)
}

func (h *GranjaHandler) GetGalpon(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de galpón inválido", err)
		return
	}

	galpon, err := h.granja.GetGalpon(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo galpón", err)
		return
	}
	respondOK(c, http.StatusOK, "Galpón obtenido", galpon)
}

// AsignarBodega PUT /galpones/:id/bodega; bodega_id null quita la asignación
func (h *GranjaHandler) AsignarBodega(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de galpón inválido", err)
		return
	}

	var req models.AsignarBodegaRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos inválidos", err)
		return
	}

	galpon, err := h.granja.AsignarBodega(c.Request.Context(), id, req.BodegaID)
	if err != nil {
		respondError(c, h.logger, "No se pudo asignar la bodega", err)
		return
	}
	respondOK(c, http.StatusOK, "Bodega asignada", galpon)
}

// DividirGalpon POST /galpones/:id/dividir; el body es opcional
func (h *GranjaHandler) DividirGalpon(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de galpón inválido", err)
		return
	}

	var req models.DividirGalponRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, h.validator, &req); err != nil {
			respondError(c, h.logger, "Datos de división inválidos", err)
			return
		}
	}

	result, err := h.granja.DividirGalpon(c.Request.Context(), id, req.AvesA)
	if err != nil {
		respondError(c, h.logger, "No se pudo dividir el galpón", err)
		return
	}
	respondOK(c, http.StatusCreated, "Galpón dividido", result)
}
