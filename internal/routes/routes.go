package routes

import (
	"net/http"

	"avicola-service/internal/handlers"
	"avicola-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers agrupa los handlers que expone la API
type Handlers struct {
	Inventario *handlers.InventarioHandler
	Granja     *handlers.GranjaHandler
	Registro   *handlers.RegistroHandler
	Alerta     *handlers.AlertaHandler
	Monitoring *handlers.MonitoringHandler
	Health     *middleware.HealthChecker
}

// SetupRoutes configura todas las rutas de la aplicación
func SetupRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/api/v1")
	{
		lotes := v1.Group("/lotes")
		{
			lotes.POST("", h.Inventario.CrearLote)
			lotes.GET("", h.Inventario.ListLotes)
			lotes.GET("/:id", h.Inventario.GetLote)
			lotes.GET("/:id/stock", h.Inventario.GetStockLote)
		}

		inventario := v1.Group("/inventario")
		{
			inventario.GET("", h.Inventario.ResumenInventario)
			inventario.POST("/movimiento", h.Inventario.AplicarMovimiento)
			inventario.GET("/movimientos", h.Inventario.ListMovimientos)
		}

		bodegas := v1.Group("/bodegas")
		{
			bodegas.POST("", h.Granja.CrearBodega)
			bodegas.GET("", h.Granja.ListBodegas)
			bodegas.GET("/:id", h.Granja.GetBodega)
			bodegas.PUT("/:id", h.Granja.ActualizarBodega)
			bodegas.GET("/:id/stock", h.Granja.GetStockBodega)
		}

		galpones := v1.Group("/galpones")
		{
			galpones.POST("", h.Granja.CrearGalpon)
			galpones.GET("", h.Granja.ListGalpones)
			galpones.GET("/:id", h.Granja.GetGalpon)
			galpones.PUT("/:id/bodega", h.Granja.AsignarBodega)
			galpones.POST("/:id/dividir", h.Granja.DividirGalpon)
		}

		registros := v1.Group("/registros")
		{
			registros.POST("", h.Registro.CrearRegistro)
			registros.POST("/sincronizar", h.Registro.SincronizarRegistros)
			registros.GET("", h.Registro.ListRegistros)
			registros.GET("/:id", h.Registro.GetRegistro)
			registros.PUT("/:id", h.Registro.ActualizarRegistro)
			registros.DELETE("/:id", h.Registro.EliminarRegistro)
		}

		desacose := v1.Group("/desacose")
		{
			desacose.POST("", h.Registro.RegistrarDesacose)
			desacose.GET("", h.Registro.ListDesacoses)
			desacose.GET("/:id", h.Registro.GetDesacose)
		}

		alertas := v1.Group("/alertas")
		{
			alertas.POST("", h.Alerta.CrearAlerta)
			alertas.GET("", h.Alerta.ListAlertas)
			alertas.GET("/:id", h.Alerta.GetAlerta)
			alertas.PUT("/:id/resolver", h.Alerta.ResolverAlerta)
			alertas.DELETE("/:id", h.Alerta.EliminarAlerta)
			alertas.POST("/stock/:lote_id/revisar", h.Alerta.RevisarStockLote)
		}

		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", h.Monitoring.GetMetrics)
			monitoring.GET("/metrics/summary", h.Monitoring.GetMetricsSummary)
			monitoring.GET("/ws", h.Monitoring.WebSocketMetrics)
		}
	}

	router.GET("/health", h.Health.HealthCheck)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Avicola Service API",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": gin.H{
				"health": "/health",
				"api":    "/api/v1",
				"inventario": gin.H{
					"lotes":       "POST|GET /api/v1/lotes",
					"movimiento":  "POST /api/v1/inventario/movimiento",
					"movimientos": "GET /api/v1/inventario/movimientos",
					"resumen":     "GET /api/v1/inventario",
				},
				"granja": gin.H{
					"bodegas":  "/api/v1/bodegas",
					"galpones": "/api/v1/galpones",
				},
				"registros":   "/api/v1/registros",
				"sincronizar": "POST /api/v1/registros/sincronizar",
				"desacose":    "/api/v1/desacose",
				"alertas":     "/api/v1/alertas",
				"monitoring":  "/api/v1/monitoring/metrics",
			},
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Ruta no encontrada",
			"error":   c.Request.URL.Path,
			"code":    "NOT_FOUND",
		})
	})
}
