package middleware

import (
	"net/http"

	"avicola-service/internal/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorCodeKey clave donde los handlers dejan el código de error de la respuesta
const ErrorCodeKey = "error_code"

// RecoveryMiddleware convierte un panic en un 500 con el envelope estándar
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID, _ := c.Get(RequestIDKey)
		logger.Error("Panic en handler",
			zap.Any("panic", recovered),
			zap.Any("request_id", requestID),
			zap.String("path", c.Request.URL.Path))

		c.Set(ErrorCodeKey, apperror.CodeInternal)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error interno del servidor",
			"error":   "error inesperado procesando la solicitud",
			"code":    apperror.CodeInternal,
		})
	})
}
