package handlers

import (
	"context"
	"net/http"
	"time"

	"avicola-service/internal/middleware"
	"avicola-service/internal/models"
	"avicola-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsPushInterval = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 5 * time.Second
)

// rutas que no se cuentan en las métricas
var excludedPaths = map[string]struct{}{
	"/api/v1/monitoring/metrics":         {},
	"/api/v1/monitoring/metrics/summary": {},
	"/api/v1/monitoring/ws":              {},
	"/health":                            {},
	"/":                                  {},
}

type MonitoringHandler struct {
	monitoringService services.MonitoringService
	logger            *zap.Logger
	upgrader          websocket.Upgrader
}

func NewMonitoringHandler(monitoringService services.MonitoringService, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		logger:            logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// GetMetrics maneja la petición HTTP para obtener métricas
func (h *MonitoringHandler) GetMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_metrics"))

	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	logger.Debug("Métricas obtenidas",
		zap.Int("total_requests", metrics.Requests.TotalRequests),
		zap.Int("endpoints", metrics.Requests.Endpoints),
		zap.String("avg_response_time", metrics.Performance.AvgResponseTimeMs))

	respondOK(c, http.StatusOK, "Métricas obtenidas", metrics)
}

// GetMetricsSummary endpoint para métricas resumidas
func (h *MonitoringHandler) GetMetricsSummary(c *gin.Context) {
	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	summary := gin.H{
		"requests": gin.H{
			"total":         metrics.Requests.TotalRequests,
			"endpoints":     metrics.Requests.Endpoints,
			"errors":        metrics.Requests.ErrorsCount,
			"slow_requests": metrics.Requests.SlowRequestsCount,
		},
		"performance": gin.H{
			"avg_response_time": metrics.Performance.AvgResponseTimeMs,
			"max_response_time": metrics.Performance.MaxResponseTimeMs,
		},
		"cache": gin.H{
			"hit_rate":      metrics.Cache.HitRatePercentage,
			"l1_keys":       metrics.Cache.L1Keys,
			"redis_enabled": metrics.Cache.RedisEnabled,
		},
		"database": gin.H{
			"driver": metrics.Database.Driver,
			"in_use": metrics.Database.InUse,
			"status": metrics.Database.Status,
		},
		"workers": gin.H{
			"queued":  metrics.Workers.Queued,
			"failed":  metrics.Workers.Failed,
			"dropped": metrics.Workers.Dropped,
		},
		"alertas": gin.H{
			"pendientes":    metrics.Alertas.Pendientes,
			"por_severidad": metrics.Alertas.PorSeveridad,
		},
		"system": gin.H{
			"heap_used":  metrics.System.HeapUsed,
			"uptime":     metrics.System.UptimeHours,
			"goroutines": metrics.System.Goroutines,
		},
		"redis": gin.H{
			"connected": metrics.Redis.Connected,
			"keys":      metrics.Redis.Keys,
			"status":    metrics.Redis.Status,
		},
		"timestamp": metrics.Timestamp,
	}

	respondOK(c, http.StatusOK, "Resumen de métricas", summary)
}

// WebSocketMetrics empuja métricas cada 10 segundos hasta que el cliente cierra
func (h *MonitoringHandler) WebSocketMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "websocket_metrics"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Error actualizando a WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	logger.Info("Conexión WebSocket establecida", zap.String("remote", c.ClientIP()))

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// el lector detecta el cierre del cliente
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	send := func() bool {
		metrics := h.monitoringService.GetMetrics(context.Background())
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(metrics); err != nil {
			logger.Debug("Error enviando métricas por WebSocket", zap.Error(err))
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-ticker.C:
			if !send() {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			logger.Info("Conexión WebSocket cerrada por el cliente")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// RecordRequestMiddleware registra duración, status y código de error de cada request
func (h *MonitoringHandler) RecordRequestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, skip := excludedPaths[path]; skip {
			return
		}

		h.monitoringService.RecordRequest(models.RequestData{
			Endpoint:   path,
			Method:     c.Request.Method,
			Duration:   time.Since(start),
			StatusCode: c.Writer.Status(),
			Code:       c.GetString(middleware.ErrorCodeKey),
			Timestamp:  time.Now(),
		})
	}
}
