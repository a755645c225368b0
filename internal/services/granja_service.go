package services

import (
	"context"
	"fmt"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"go.uber.org/zap"
)

// GranjaService define la gestión de bodegas y galpones
type GranjaService interface {
	// Bodegas
	CrearBodega(ctx context.Context, req *models.CrearBodegaRequest) (*models.Bodega, error)
	GetBodega(ctx context.Context, id int) (*models.Bodega, error)
	ActualizarBodega(ctx context.Context, id int, req *models.ActualizarBodegaRequest) (*models.Bodega, error)
	ListBodegas(ctx context.Context, filter *models.BodegaFilter) ([]*models.Bodega, error)

	// Galpones
	CrearGalpon(ctx context.Context, req *models.CrearGalponRequest) (*models.Galpon, error)
	GetGalpon(ctx context.Context, id int) (*models.Galpon, error)
	ListGalpones(ctx context.Context, filter *models.GalponFilter) ([]*models.Galpon, error)
	AsignarBodega(ctx context.Context, galponID int, bodegaID *int) (*models.Galpon, error)
	DividirGalpon(ctx context.Context, galponID int, avesA *int) (*models.DivisionResult, error)
}

// granjaService implementa GranjaService
type granjaService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewGranjaService crea una nueva instancia del servicio
func NewGranjaService(store repository.Store, logger *zap.Logger) GranjaService {
	return &granjaService{store: store, logger: logger}
}

// CrearBodega registra una bodega; el nombre es único por granja
func (s *granjaService) CrearBodega(ctx context.Context, req *models.CrearBodegaRequest) (*models.Bodega, error) {
	bodega := &models.Bodega{
		GranjaID:  req.GranjaID,
		Nombre:    req.Nombre,
		Ubicacion: req.Ubicacion,
		Activo:    true,
	}
	if err := s.store.CreateBodega(ctx, bodega); err != nil {
		return nil, err
	}
	s.logger.Info("Bodega creada", zap.Int("bodega_id", bodega.ID), zap.String("nombre", bodega.Nombre))
	return bodega, nil
}

// GetBodega obtiene una bodega por id
func (s *granjaService) GetBodega(ctx context.Context, id int) (*models.Bodega, error) {
	bodega, err := s.store.GetBodega(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo bodega: %w", err)
	}
	if bodega == nil {
		return nil, apperror.NewNotFound("bodega", id)
	}
	return bodega, nil
}

// ActualizarBodega edita nombre, ubicación o estado
func (s *granjaService) ActualizarBodega(ctx context.Context, id int, req *models.ActualizarBodegaRequest) (*models.Bodega, error) {
	bodega, err := s.GetBodega(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Nombre != nil {
		bodega.Nombre = *req.Nombre
	}
	if req.Ubicacion != nil {
		bodega.Ubicacion = *req.Ubicacion
	}
	if req.Activo != nil {
		bodega.Activo = *req.Activo
	}

	if err := s.store.UpdateBodega(ctx, bodega); err != nil {
		return nil, err
	}
	return bodega, nil
}

// ListBodegas lista bodegas con filtros
func (s *granjaService) ListBodegas(ctx context.Context, filter *models.BodegaFilter) ([]*models.Bodega, error) {
	bodegas, err := s.store.ListBodegas(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo bodegas: %w", err)
	}
	return bodegas, nil
}

func (s *granjaService) validarBodega(ctx context.Context, q repository.Queries, bodegaID *int) error {
	if bodegaID == nil {
		return nil
	}
	bodega, err := q.GetBodega(ctx, *bodegaID)
	if err != nil {
		return err
	}
	if bodega == nil {
		return apperror.NewNotFound("bodega", *bodegaID)
	}
	return nil
}

// CrearGalpon registra un galpón; la bodega, si se indica, debe existir
func (s *granjaService) CrearGalpon(ctx context.Context, req *models.CrearGalponRequest) (*models.Galpon, error) {
	if err := s.validarBodega(ctx, s.store, req.BodegaID); err != nil {
		return nil, err
	}

	fechaInicio := repository.DateOnly(time.Now())
	if req.FechaInicio != nil {
		fechaInicio = repository.DateOnly(*req.FechaInicio)
	}

	galpon := &models.Galpon{
		GranjaID:      req.GranjaID,
		Numero:        req.Numero,
		Nombre:        req.Nombre,
		AvesIniciales: req.AvesIniciales,
		Capacidad:     req.Capacidad,
		FechaInicio:   fechaInicio,
		BodegaID:      req.BodegaID,
		Activo:        true,
	}
	if err := s.store.CreateGalpon(ctx, galpon); err != nil {
		return nil, err
	}
	s.logger.Info("Galpón creado", zap.Int("galpon_id", galpon.ID), zap.Int("numero", galpon.Numero))
	return galpon, nil
}

// GetGalpon obtiene un galpón por id
func (s *granjaService) GetGalpon(ctx context.Context, id int) (*models.Galpon, error) {
	galpon, err := s.store.GetGalpon(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo galpón: %w", err)
	}
	if galpon == nil {
		return nil, apperror.NewNotFound("galpon", id)
	}
	return galpon, nil
}

// ListGalpones lista galpones con filtros
func (s *granjaService) ListGalpones(ctx context.Context, filter *models.GalponFilter) ([]*models.Galpon, error) {
	galpones, err := s.store.ListGalpones(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo galpones: %w", err)
	}
	return galpones, nil
}

// AsignarBodega fija (o quita con nil) la bodega de consumo del galpón
func (s *granjaService) AsignarBodega(ctx context.Context, galponID int, bodegaID *int) (*models.Galpon, error) {
	if _, err := s.GetGalpon(ctx, galponID); err != nil {
		return nil, err
	}
	if err := s.validarBodega(ctx, s.store, bodegaID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateGalponBodega(ctx, galponID, bodegaID); err != nil {
		return nil, err
	}

	s.logger.Info("Bodega asignada a galpón", zap.Int("galpon_id", galponID), zap.Any("bodega_id", bodegaID))
	return s.GetGalpon(ctx, galponID)
}

// DividirGalpon reparte las aves de un galpón en dos divisiones A y B.
// Solo hay un nivel: una división no se puede volver a dividir.
func (s *granjaService) DividirGalpon(ctx context.Context, galponID int, avesA *int) (*models.DivisionResult, error) {
	logger := s.logger.With(zap.String("operation", "dividir_galpon"), zap.Int("galpon_id", galponID))
	result := &models.DivisionResult{}

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		original, err := q.GetGalpon(ctx, galponID)
		if err != nil {
			return err
		}
		if original == nil {
			return apperror.NewNotFound("galpon", galponID)
		}
		if original.EsDivision() {
			return apperror.NewInvalidDivision("no se puede dividir un galpón que ya es una división")
		}

		divisiones, err := q.CountDivisiones(ctx, galponID)
		if err != nil {
			return err
		}
		if divisiones > 0 {
			return apperror.NewInvalidDivision("este galpón ya tiene divisiones")
		}

		ultimo, err := q.GetUltimoRegistro(ctx, galponID)
		if err != nil {
			return err
		}
		saldo := original.AvesIniciales
		if ultimo != nil {
			saldo = ultimo.SaldoAves
		}

		cantidadA := saldo / 2
		if avesA != nil {
			cantidadA = *avesA
		}
		cantidadB := saldo - cantidadA
		if cantidadA < 1 || cantidadB < 1 {
			return apperror.NewInvalidDivision("la cantidad de aves para cada división debe ser al menos 1").
				WithDetail("saldo_aves", saldo).
				WithDetail("aves_a", cantidadA)
		}

		hoy := repository.DateOnly(time.Now())
		partes := []struct {
			sufijo    string
			aves      int
			capacidad int
		}{
			{"A", cantidadA, original.Capacidad / 2},
			{"B", cantidadB, original.Capacidad - original.Capacidad/2},
		}

		for _, parte := range partes {
			padreID := original.ID
			division := &models.Galpon{
				GranjaID:       original.GranjaID,
				Numero:         original.Numero,
				AvesIniciales:  parte.aves,
				Capacidad:      parte.capacidad,
				FechaInicio:    original.FechaInicio,
				BodegaID:       original.BodegaID,
				GalponPadreID:  &padreID,
				DivisionSufijo: parte.sufijo,
				Activo:         true,
			}
			if original.Nombre != "" {
				division.Nombre = original.Nombre + " - " + parte.sufijo
			}
			if err := q.CreateGalpon(ctx, division); err != nil {
				return err
			}

			// Registro de apertura con el saldo asignado
			if ultimo != nil {
				if err := q.CreateRegistro(ctx, &models.RegistroDiario{
					GalponID:     division.ID,
					Fecha:        hoy,
					EdadDias:     ultimo.EdadDias,
					SaldoAves:    parte.aves,
					PesoPromedio: ultimo.PesoPromedio,
				}); err != nil {
					return err
				}
			}
			result.Divisiones = append(result.Divisiones, division)
		}

		result.Original = original
		return nil
	})
	if err != nil {
		logger.Warn("División rechazada", zap.String("code", apperror.Code(err)), zap.Error(err))
		return nil, err
	}

	logger.Info("Galpón dividido",
		zap.Int("aves_a", result.Divisiones[0].AvesIniciales),
		zap.Int("aves_b", result.Divisiones[1].AvesIniciales))
	return result, nil
}
