package handlers

import (
	"net/http"

	"avicola-service/internal/models"
	"avicola-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// InventarioHandler maneja lotes, movimientos y consultas de stock
type InventarioHandler struct {
	service   services.InventarioService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInventarioHandler crea una nueva instancia del handler
func NewInventarioHandler(service services.InventarioService, logger *zap.Logger) *InventarioHandler {
	return &InventarioHandler{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// CrearLote POST /lotes
func (h *InventarioHandler) CrearLote(c *gin.Context) {
	var req models.CrearLoteRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de lote inválidos", err)
		return
	}

	lote, err := h.service.CrearLote(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo registrar el lote", err)
		return
	}
	respondOK(c, http.StatusCreated, "Lote registrado", lote)
}

// ListLotes GET /lotes?tipo=&solo_activos=&limit=&offset=
func (h *InventarioHandler) ListLotes(c *gin.Context) {
	filter := &models.LoteFilter{Tipo: queryString(c, "tipo")}

	soloActivos, err := queryBool(c, "solo_activos")
	if err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}
	if soloActivos != nil {
		filter.SoloActivos = *soloActivos
	}
	if filter.Limit, filter.Offset, err = pagination(c); err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	lotes, err := h.service.ListLotes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo lotes", err)
		return
	}
	respondOK(c, http.StatusOK, "Lotes obtenidos", lotes)
}

// GetLote GET /lotes/:id
func (h *InventarioHandler) GetLote(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de lote inválido", err)
		return
	}

	lote, err := h.service.GetLote(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo lote", err)
		return
	}
	respondOK(c, http.StatusOK, "Lote obtenido", lote)
}

// GetStockLote GET /lotes/:id/stock
func (h *InventarioHandler) GetStockLote(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, "ID de lote inválido", err)
		return
	}

	stock, err := h.service.GetStockLote(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo stock del lote", err)
		return
	}
	respondOK(c, http.StatusOK, "Stock del lote obtenido", stock)
}

// ResumenInventario GET /inventario?tipo=
func (h *InventarioHandler) ResumenInventario(c *gin.Context) {
	resumen, err := h.service.ResumenInventario(c.Request.Context(), queryString(c, "tipo"))
	if err != nil {
		respondError(c, h.logger, "Error obteniendo inventario", err)
		return
	}
	respondOK(c, http.StatusOK, "Inventario obtenido", resumen)
}

// AplicarMovimiento POST /inventario/movimiento
func (h *InventarioHandler) AplicarMovimiento(c *gin.Context) {
	var req models.MovimientoRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		respondError(c, h.logger, "Datos de movimiento inválidos", err)
		return
	}

	resp, err := h.service.AplicarMovimiento(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "No se pudo aplicar el movimiento", err)
		return
	}
	respondOK(c, http.StatusCreated, "Movimiento aplicado", resp)
}

// ListMovimientos GET /inventario/movimientos
func (h *InventarioHandler) ListMovimientos(c *gin.Context) {
	filter, err := movimientoFilter(c)
	if err != nil {
		respondError(c, h.logger, "Parámetros inválidos", err)
		return
	}

	resp, err := h.service.ListMovimientos(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "Error obteniendo movimientos", err)
		return
	}
	respondOK(c, http.StatusOK, "Movimientos obtenidos", resp)
}

func movimientoFilter(c *gin.Context) (*models.MovimientoFilter, error) {
	filter := &models.MovimientoFilter{}
	var err error

	if filter.LoteID, err = queryInt(c, "lote_id"); err != nil {
		return nil, err
	}
	if filter.GalponID, err = queryInt(c, "galpon_id"); err != nil {
		return nil, err
	}
	if filter.BodegaID, err = queryInt(c, "bodega_id"); err != nil {
		return nil, err
	}
	if tipo := queryString(c, "tipo"); tipo != nil {
		t := models.TipoMovimiento(*tipo)
		filter.TipoMovimiento = &t
	}
	if filter.FechaDesde, err = queryFecha(c, "fecha_desde"); err != nil {
		return nil, err
	}
	if filter.FechaHasta, err = queryFecha(c, "fecha_hasta"); err != nil {
		return nil, err
	}
	if filter.FechaHasta != nil {
		// incluye todo el día indicado
		fin := filter.FechaHasta.AddDate(0, 0, 1).Add(-1)
		filter.FechaHasta = &fin
	}
	if filter.Limit, filter.Offset, err = pagination(c); err != nil {
		return nil, err
	}
	return filter, nil
}
