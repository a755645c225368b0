package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/middleware"
	"avicola-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	fechaLayout = "2006-01-02"

	// texto que reciben los clientes ante un 5xx; el detalle queda en el log
	errorInterno = "error interno del servidor"
)

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondError traduce err al envelope de error; el status y el código salen del error
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status := apperror.HTTPStatus(err)
	code := apperror.Code(err)
	c.Set(middleware.ErrorCodeKey, code)

	body := models.APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}

	if status >= 500 {
		body.Error = errorInterno
		logger.Error(message, zap.String("path", c.Request.URL.Path), zap.String("code", code), zap.Error(err))
		c.JSON(status, body)
		return
	}

	body.Error = err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Details = appErr.Details
	}
	logger.Debug(message, zap.String("code", code), zap.Error(err))
	c.JSON(status, body)
}

// bindJSON decodifica el body y valida los tags validate del DTO
func bindJSON(c *gin.Context, v *validator.Validate, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.NewValidation("formato de datos inválido").WithCause(err)
	}
	if err := v.Struct(req); err != nil {
		return apperror.NewValidation(describeValidation(err)).WithCause(err)
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	campos := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		campos = append(campos, fe.Field()+" ("+fe.Tag()+")")
	}
	return "datos inválidos: " + strings.Join(campos, ", ")
}

func paramID(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, apperror.NewValidation(name + " debe ser un entero positivo").WithDetail(name, c.Param(name))
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (*int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.NewValidation(name + " debe ser un entero").WithDetail(name, raw)
	}
	return &v, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.NewValidation(name + " debe ser true o false").WithDetail(name, raw)
	}
	return &v, nil
}

func queryFecha(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := time.Parse(fechaLayout, raw)
	if err != nil {
		return nil, apperror.NewValidation(name + " debe tener formato YYYY-MM-DD").WithDetail(name, raw)
	}
	return &v, nil
}

func queryString(c *gin.Context, name string) *string {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil
	}
	return &raw
}

// pagination lee limit y offset; el repositorio normaliza el límite
func pagination(c *gin.Context) (limit, offset int, err error) {
	l, err := queryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	o, err := queryInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	if l != nil {
		limit = *l
	}
	if o != nil {
		if *o < 0 {
			return 0, 0, apperror.NewValidation("offset no puede ser negativo")
		}
		offset = *o
	}
	return limit, offset, nil
}
