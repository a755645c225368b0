package handlers

import (
	"net/http"

	"avicola-service/internal/models"
	"avicola-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AlertaHandler maneja la gestión de alertas
type AlertaHandler struct {
	service   services.AlertaService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAlertaHandler crea una nueva instancia del handler
func NewAlertaHandler(service services.AlertaService, logger *zap.Logger) *AlertaHandler {
	return &AlertaHandler{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// CrearAlerta POST /alertas
func (h *AlertaHandler) CrearAlerta(c *gin.Context) {
	var req models.CrearAlertaRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de alerta inválidos", err)
		return
	}

	alerta, err := h.service.CrearAlerta(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo crear la alerta", err)
		return
	}
	respondOK(c, http.StatusCreated, "Alerta creada", alerta)
}

// ListAlertas GET /alertas?atendida=&severidad=&tipo=&galpon_id=&lote_id=
func (h *AlertaHandler) ListAlertas(c *gin.Context) {
	filter := &models.AlertaFilter{}
	var err error

	if filter.Atendida, err = queryBool(c, "atendida"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if severidad := queryString(c, "severidad"); severidad != nil {
		s := models.Severidad(*severidad)
		filter.Severidad = &s
	}
	if tipo := queryString(c, "tipo"); tipo != nil {
		t := models.TipoAlerta(*tipo)
		filter.Tipo = &t
	}
	if filter.GalponID, err = queryInt(c, "galpon_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.LoteID, err = queryInt(c, "lote_id"); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if filter.Limit, filter.Offset, err = pagination(c); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	alertas, err := h.service.ListAlertas(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo alertas", err)
		return
	}
	respondOK(c, http.StatusOK, "Alertas obtenidas", alertas)
}

func (h *AlertaHandler) GetAlerta(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de alerta inválido", err)
		return
	}

	alerta, err := h.service.GetAlerta(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo alerta", err)
		return
	}
	respondOK(c, http.StatusOK, "Alerta obtenida", alerta)
}

// ResolverAlerta PUT /alertas/:id/resolver
func (h *AlertaHandler) ResolverAlerta(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de alerta inválido", err)
		return
	}

	var req models.ResolverAlertaRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos inválidos", err)
		return
	}

	alerta, err := h.service.ResolverAlerta(c.Request.Context(), id, req.UsuarioID)
	if err != nil {
		respondError(c, h.logger, "No se pudo resolver la alerta", err)
		return
	}
	respondOK(c, http.StatusOK, "Alerta resuelta", alerta)
}

func (h *AlertaHandler) EliminarAlerta(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de alerta inválido", err)
		return
	}

	if err := h.service.EliminarAlerta(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "No se pudo eliminar la alerta", err)
		return
	}
	respondOK(c, http.StatusOK, "Alerta eliminada", nil)
}

// RevisarStockLote POST /alertas/stock/:lote_id/revisar
func (h *AlertaHandler) RevisarStockLote(c *gin.Context) {
	loteID, err := paramID(c, "lote_id")
	if err != nil {
		respondError(c, h.logger, "ID de lote inválido", err)
		return
	}

	alerta, err := h.service.DetectarStockBajo(c.Request.Context(), loteID)
	if err != nil {
		respondError(c, h.logger, "Error revisando stock del lote", err)
		return
	}
	if alerta == nil {
		respondOK(c, http.StatusOK, "Sin alerta nueva para el lote", nil)
		return
	}
	respondOK(c, http.StatusCreated, "Alerta de stock creada", alerta)
}
