package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/cache"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"go.uber.org/zap"
)

// Detector corre las detecciones de un registro diario
type Detector interface {
	StockChecker
	EjecutarDetecciones(ctx context.Context, galponID int, registro *models.RegistroDiario) []*models.Alerta
}

// RegistroService define la ingesta y edición de registros diarios
type RegistroService interface {
	CrearRegistro(ctx context.Context, req *models.CrearRegistroRequest) (*models.RegistroDiario, error)
	GetRegistro(ctx context.Context, id int) (*models.RegistroDiario, error)
	ListRegistros(ctx context.Context, filter *models.RegistroFilter) ([]*models.RegistroDiario, error)
	ActualizarRegistro(ctx context.Context, id int, req *models.ActualizarRegistroRequest) (*models.RegistroDiario, error)
	EliminarRegistro(ctx context.Context, id int) error
	SincronizarRegistros(ctx context.Context, req *models.SincronizarRegistrosRequest) (*models.SincronizacionResponse, error)

	RegistrarDesacose(ctx context.Context, req *models.CrearDesacoseRequest) (*models.DesacoseResult, error)
	GetDesacose(ctx context.Context, id int) (*models.Desacose, error)
	ListDesacoses(ctx context.Context, filter *models.DesacoseFilter) ([]*models.Desacose, error)
}

const fechaLayout = "2006-01-02"

// registroService implementa RegistroService
type registroService struct {
	store    repository.Store
	detector Detector
	tasks    TaskQueue
	after    *postCommit
	logger   *zap.Logger
}

// NewRegistroService crea una nueva instancia del servicio
func NewRegistroService(store repository.Store, loteCache *cache.LoteCache, tasks TaskQueue, detector Detector, logger *zap.Logger) RegistroService {
	return &registroService{
		store:    store,
		detector: detector,
		tasks:    tasks,
		after: &postCommit{
			cache:  loteCache,
			tasks:  tasks,
			stock:  detector,
			logger: logger,
		},
		logger: logger,
	}
}

// validarFotos aplica la regla fija: el día 1 exige factura y el día 22 medidor
func validarFotos(edadDias int, fotoFactura, fotoMedidor string) error {
	switch {
	case edadDias == models.EdadFotoFactura && fotoFactura == "":
		return apperror.NewMissingRequiredPhoto("factura", edadDias)
	case edadDias == models.EdadFotoMedidor && fotoMedidor == "":
		return apperror.NewMissingRequiredPhoto("medidor", edadDias)
	}
	return nil
}

// CrearRegistro valida, deriva saldo y acumulado, y registra el consumo de
// alimento en la misma transacción. Las detecciones se encolan tras el commit.
func (s *registroService) CrearRegistro(ctx context.Context, req *models.CrearRegistroRequest) (*models.RegistroDiario, error) {
	fecha := repository.DateOnly(req.Fecha)
	logger := s.logger.With(
		zap.String("operation", "crear_registro"),
		zap.Int("galpon_id", req.GalponID),
		zap.String("fecha", fecha.Format(fechaLayout)),
	)

	if err := validarFotos(req.EdadDias, req.FotoFactura, req.FotoMedidor); err != nil {
		return nil, err
	}
	if req.Mortalidad < 0 || req.Seleccion < 0 || req.ConsumoKg < 0 {
		return nil, apperror.NewValidation("mortalidad, selección y consumo no pueden ser negativos")
	}

	reg := &models.RegistroDiario{
		GalponID:      req.GalponID,
		Fecha:         fecha,
		EdadDias:      req.EdadDias,
		ConsumoKg:     kg(req.ConsumoKg).InexactFloat64(),
		LoteID:        req.LoteID,
		Mortalidad:    req.Mortalidad,
		Seleccion:     req.Seleccion,
		PesoPromedio:  req.PesoPromedio,
		Temperatura:   req.Temperatura,
		Humedad:       req.Humedad,
		Observaciones: req.Observaciones,
		FotoFactura:   req.FotoFactura,
		FotoMedidor:   req.FotoMedidor,
	}
	consumeLote := req.LoteID != nil && req.ConsumoKg > 0

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		galpon, err := q.GetGalpon(ctx, req.GalponID)
		if err != nil {
			return err
		}
		if galpon == nil {
			return apperror.NewNotFound("galpon", req.GalponID)
		}

		existente, err := q.GetRegistroByFecha(ctx, galpon.ID, fecha)
		if err != nil {
			return err
		}
		if existente != nil {
			return apperror.NewDuplicateRecord(galpon.ID, fecha.Format(fechaLayout))
		}

		anteriores, err := q.ListRegistrosAnteriores(ctx, galpon.ID, fecha, 1)
		if err != nil {
			return err
		}
		var previo *models.RegistroDiario
		if len(anteriores) > 0 {
			previo = anteriores[0]
		}

		switch {
		case req.SaldoAves != nil:
			reg.SaldoAves = *req.SaldoAves
		case previo != nil:
			reg.SaldoAves = previo.SaldoAves - req.Mortalidad
		default:
			reg.SaldoAves = galpon.AvesIniciales - req.Mortalidad
		}
		if reg.SaldoAves < 0 {
			return apperror.NewNegativeBalance(reg.SaldoAves)
		}

		switch {
		case req.AcumuladoAlimento != nil:
			reg.AcumuladoAlimento = kg(*req.AcumuladoAlimento).InexactFloat64()
		case previo != nil:
			reg.AcumuladoAlimento = kg(previo.AcumuladoAlimento).Add(kg(req.ConsumoKg)).InexactFloat64()
		default:
			reg.AcumuladoAlimento = reg.ConsumoKg
		}

		if err := q.CreateRegistro(ctx, reg); err != nil {
			return err
		}

		if consumeLote {
			galponID := galpon.ID
			fechaMov := fecha
			_, _, err := aplicarMovimiento(ctx, q, &models.MovimientoRequest{
				LoteID:         *req.LoteID,
				TipoMovimiento: models.MovimientoConsumo,
				Cantidad:       req.ConsumoKg,
				GalponID:       &galponID,
				Fecha:          &fechaMov,
				Observaciones:  fmt.Sprintf("Consumo registro diario %s", fecha.Format(fechaLayout)),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("Registro rechazado", zap.String("code", apperror.Code(err)), zap.Error(err))
		return nil, err
	}

	logger.Info("Registro diario creado",
		zap.Int("registro_id", reg.ID),
		zap.Int("saldo_aves", reg.SaldoAves),
		zap.Bool("consumo_lote", consumeLote))

	if consumeLote {
		s.after.invalidarLote(ctx, *req.LoteID)
		s.after.revisarStock(*req.LoteID)
	}
	s.encolarDetecciones(reg)

	return reg, nil
}

// encolarDetecciones corre las detecciones del registro en segundo plano
func (s *registroService) encolarDetecciones(reg *models.RegistroDiario) {
	if s.tasks == nil || s.detector == nil {
		return
	}
	snapshot := *reg
	s.tasks.Submit(fmt.Sprintf("detecciones:galpon:%d", reg.GalponID), func(ctx context.Context) error {
		s.detector.EjecutarDetecciones(ctx, snapshot.GalponID, &snapshot)
		return nil
	})
}

// GetRegistro obtiene un registro por id
func (s *registroService) GetRegistro(ctx context.Context, id int) (*models.RegistroDiario, error) {
	reg, err := s.store.GetRegistro(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo registro: %w", err)
	}
	if reg == nil {
		return nil, apperror.NewNotFound("registro", id)
	}
	return reg, nil
}

// ListRegistros lista registros con filtros
func (s *registroService) ListRegistros(ctx context.Context, filter *models.RegistroFilter) ([]*models.RegistroDiario, error) {
	registros, err := s.store.ListRegistros(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo registros: %w", err)
	}
	return registros, nil
}

// ActualizarRegistro edita los campos medidos enviados. El saldo solo cambia
// si se envía explícito; el consumo ya descontado del lote no se reprocesa.
func (s *registroService) ActualizarRegistro(ctx context.Context, id int, req *models.ActualizarRegistroRequest) (*models.RegistroDiario, error) {
	var reg *models.RegistroDiario

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		var err error
		reg, err = q.GetRegistro(ctx, id)
		if err != nil {
			return err
		}
		if reg == nil {
			return apperror.NewNotFound("registro", id)
		}

		if req.EdadDias != nil {
			reg.EdadDias = *req.EdadDias
		}
		if req.ConsumoKg != nil {
			reg.ConsumoKg = kg(*req.ConsumoKg).InexactFloat64()
		}
		if req.Mortalidad != nil {
			reg.Mortalidad = *req.Mortalidad
		}
		if req.Seleccion != nil {
			reg.Seleccion = *req.Seleccion
		}
		if req.SaldoAves != nil {
			if *req.SaldoAves < 0 {
				return apperror.NewNegativeBalance(*req.SaldoAves)
			}
			reg.SaldoAves = *req.SaldoAves
		}
		if req.PesoPromedio != nil {
			reg.PesoPromedio = req.PesoPromedio
		}
		if req.AcumuladoAlimento != nil {
			reg.AcumuladoAlimento = kg(*req.AcumuladoAlimento).InexactFloat64()
		}
		if req.Temperatura != nil {
			reg.Temperatura = req.Temperatura
		}
		if req.Humedad != nil {
			reg.Humedad = req.Humedad
		}
		if req.Observaciones != nil {
			reg.Observaciones = *req.Observaciones
		}
		if req.FotoFactura != nil {
			reg.FotoFactura = *req.FotoFactura
		}
		if req.FotoMedidor != nil {
			reg.FotoMedidor = *req.FotoMedidor
		}

		if err := validarFotos(reg.EdadDias, reg.FotoFactura, reg.FotoMedidor); err != nil {
			return err
		}
		return q.UpdateRegistro(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Registro diario actualizado", zap.Int("registro_id", id))
	return reg, nil
}

// EliminarRegistro borra un registro (acción de administrador)
func (s *registroService) EliminarRegistro(ctx context.Context, id int) error {
	ok, err := s.store.DeleteRegistro(ctx, id)
	if err != nil {
		return fmt.Errorf("error eliminando registro: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("registro", id)
	}
	s.logger.Info("Registro diario eliminado", zap.Int("registro_id", id))
	return nil
}

// SincronizarRegistros aplica un lote de registros capturados sin conexión.
// Cada registro se crea o, si ya existe el del mismo día, se actualiza; los
// fallos quedan en el detalle y no frenan al resto.
func (s *registroService) SincronizarRegistros(ctx context.Context, req *models.SincronizarRegistrosRequest) (*models.SincronizacionResponse, error) {
	if len(req.Registros) == 0 {
		return nil, apperror.NewValidation("se requiere al menos un registro")
	}
	logger := s.logger.With(zap.String("operation", "sincronizar_registros"), zap.Int("total", len(req.Registros)))

	resp := &models.SincronizacionResponse{
		Total:    len(req.Registros),
		Detalles: make([]*models.ItemSincronizacion, 0, len(req.Registros)),
	}
	for i := range req.Registros {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := &req.Registros[i]
		detalle := &models.ItemSincronizacion{
			Indice:   i,
			GalponID: item.GalponID,
			Fecha:    repository.DateOnly(item.Fecha).Format(fechaLayout),
		}

		reg, accion, err := s.sincronizarRegistro(ctx, item)
		if err != nil {
			detalle.Code = apperror.Code(err)
			detalle.Error = mensajeSincronizacion(err)
			resp.Fallidos++
			logger.Warn("Registro no sincronizado",
				zap.Int("indice", i),
				zap.Int("galpon_id", item.GalponID),
				zap.String("code", detalle.Code),
				zap.Error(err))
		} else {
			detalle.Accion = accion
			detalle.RegistroID = reg.ID
			resp.Exitosos++
		}
		resp.Detalles = append(resp.Detalles, detalle)
	}

	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	logger.Info("Sincronización completada", zap.Int("exitosos", resp.Exitosos), zap.Int("fallidos", resp.Fallidos))
	return resp, nil
}

func (s *registroService) sincronizarRegistro(ctx context.Context, req *models.CrearRegistroRequest) (*models.RegistroDiario, string, error) {
	existente, err := s.store.GetRegistroByFecha(ctx, req.GalponID, req.Fecha)
	if err != nil {
		return nil, "", fmt.Errorf("error buscando registro del día: %w", err)
	}

	if existente == nil {
		reg, err := s.CrearRegistro(ctx, req)
		if !errors.Is(err, apperror.ErrDuplicateRecord) {
			return reg, models.SincronizacionCreado, err
		}
		// otro cliente lo creó entre la lectura y la escritura
		existente, err = s.store.GetRegistroByFecha(ctx, req.GalponID, req.Fecha)
		if err != nil {
			return nil, "", fmt.Errorf("error buscando registro del día: %w", err)
		}
		if existente == nil {
			return nil, "", apperror.NewDuplicateRecord(req.GalponID, repository.DateOnly(req.Fecha).Format(fechaLayout))
		}
	}

	reg, err := s.ActualizarRegistro(ctx, existente.ID, actualizacionDesde(req))
	return reg, models.SincronizacionActualizado, err
}

// actualizacionDesde arma la edición a partir de un registro completo.
// Fotos y observaciones vacías no pisan lo ya guardado.
func actualizacionDesde(req *models.CrearRegistroRequest) *models.ActualizarRegistroRequest {
	upd := &models.ActualizarRegistroRequest{
		EdadDias:          &req.EdadDias,
		ConsumoKg:         &req.ConsumoKg,
		Mortalidad:        &req.Mortalidad,
		Seleccion:         &req.Seleccion,
		SaldoAves:         req.SaldoAves,
		PesoPromedio:      req.PesoPromedio,
		AcumuladoAlimento: req.AcumuladoAlimento,
		Temperatura:       req.Temperatura,
		Humedad:           req.Humedad,
	}
	if req.Observaciones != "" {
		upd.Observaciones = &req.Observaciones
	}
	if req.FotoFactura != "" {
		upd.FotoFactura = &req.FotoFactura
	}
	if req.FotoMedidor != "" {
		upd.FotoMedidor = &req.FotoMedidor
	}
	return upd
}

// mensajeSincronizacion no expone errores internos en el detalle
func mensajeSincronizacion(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "error interno al sincronizar el registro"
}

// saldoGalpon es el saldo de aves de un galpón a una fecha
type saldoGalpon struct {
	galpon *models.Galpon
	fecha  time.Time
	delDia *models.RegistroDiario
	previo *models.RegistroDiario
	saldo  int
}

// cargarSaldo lee el saldo vigente del galpón. Un desacose no puede quedar
// antes del último registro porque rompería la cadena de saldos.
func cargarSaldo(ctx context.Context, q repository.Queries, galponID int, fecha time.Time) (*saldoGalpon, error) {
	galpon, err := q.GetGalpon(ctx, galponID)
	if err != nil {
		return nil, err
	}
	if galpon == nil {
		return nil, apperror.NewNotFound("galpon", galponID)
	}

	ultimo, err := q.GetUltimoRegistro(ctx, galponID)
	if err != nil {
		return nil, err
	}

	sg := &saldoGalpon{galpon: galpon, fecha: fecha, saldo: galpon.AvesIniciales}
	switch {
	case ultimo == nil:
	case ultimo.Fecha.After(fecha):
		return nil, apperror.NewConflict("el galpón tiene registros posteriores a la fecha del desacose").
			WithDetail("galpon_id", galponID).
			WithDetail("ultimo_registro", ultimo.Fecha.Format(fechaLayout))
	case ultimo.Fecha.Equal(fecha):
		sg.delDia = ultimo
		sg.saldo = ultimo.SaldoAves
	default:
		sg.previo = ultimo
		sg.saldo = ultimo.SaldoAves
	}
	return sg, nil
}

// aplicar deja el saldo movido en delta: edita el registro del día si existe
// o crea uno de saldo que arrastra edad, peso y acumulado del anterior.
func (sg *saldoGalpon) aplicar(ctx context.Context, q repository.Queries, delta int, nota string) (*models.RegistroDiario, error) {
	nuevo := sg.saldo + delta
	if nuevo < 0 {
		return nil, apperror.NewNegativeBalance(nuevo).
			WithDetail("galpon_id", sg.galpon.ID).
			WithDetail("disponible", sg.saldo).
			WithDetail("solicitado", -delta)
	}

	if sg.delDia != nil {
		reg := sg.delDia
		reg.SaldoAves = nuevo
		reg.Observaciones = strings.TrimSpace(reg.Observaciones + "\n" + nota)
		if err := q.UpdateRegistro(ctx, reg); err != nil {
			return nil, err
		}
		return reg, nil
	}

	reg := &models.RegistroDiario{
		GalponID:      sg.galpon.ID,
		Fecha:         sg.fecha,
		SaldoAves:     nuevo,
		Observaciones: nota,
	}
	if sg.previo != nil {
		reg.EdadDias = sg.previo.EdadDias
		reg.PesoPromedio = sg.previo.PesoPromedio
		reg.AcumuladoAlimento = sg.previo.AcumuladoAlimento
	}
	if err := q.CreateRegistro(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// RegistrarDesacose mueve aves de un galpón a otro en una sola transacción:
// valida el saldo del origen y deja el saldo nuevo de ambos en la fecha.
func (s *registroService) RegistrarDesacose(ctx context.Context, req *models.CrearDesacoseRequest) (*models.DesacoseResult, error) {
	if req.GalponOrigenID == req.GalponDestinoID {
		return nil, apperror.NewValidation("el galpón de origen y destino deben ser diferentes")
	}
	if req.CantidadAves <= 0 {
		return nil, apperror.NewValidation("la cantidad de aves debe ser mayor a 0")
	}

	fecha := repository.DateOnly(time.Now())
	if req.Fecha != nil {
		fecha = repository.DateOnly(*req.Fecha)
	}
	logger := s.logger.With(
		zap.String("operation", "registrar_desacose"),
		zap.Int("galpon_origen_id", req.GalponOrigenID),
		zap.Int("galpon_destino_id", req.GalponDestinoID),
		zap.Int("cantidad_aves", req.CantidadAves),
	)

	result := &models.DesacoseResult{}
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		origen, err := cargarSaldo(ctx, q, req.GalponOrigenID, fecha)
		if err != nil {
			return err
		}
		destino, err := cargarSaldo(ctx, q, req.GalponDestinoID, fecha)
		if err != nil {
			return err
		}

		result.RegistroOrigen, err = origen.aplicar(ctx, q, -req.CantidadAves,
			fmt.Sprintf("Desacose: %d aves movidas a galpón %d", req.CantidadAves, destino.galpon.Numero))
		if err != nil {
			return err
		}
		result.RegistroDestino, err = destino.aplicar(ctx, q, req.CantidadAves,
			fmt.Sprintf("Desacose: %d aves recibidas de galpón %d", req.CantidadAves, origen.galpon.Numero))
		if err != nil {
			return err
		}

		result.Desacose = &models.Desacose{
			GalponOrigenID:  req.GalponOrigenID,
			GalponDestinoID: req.GalponDestinoID,
			Fecha:           fecha,
			CantidadAves:    req.CantidadAves,
			Motivo:          req.Motivo,
			Observaciones:   req.Observaciones,
			RealizadoPor:    req.RealizadoPor,
		}
		return q.CreateDesacose(ctx, result.Desacose)
	})
	if err != nil {
		logger.Warn("Desacose rechazado", zap.String("code", apperror.Code(err)), zap.Error(err))
		return nil, err
	}

	logger.Info("Desacose registrado",
		zap.Int("desacose_id", result.Desacose.ID),
		zap.Int("saldo_origen", result.RegistroOrigen.SaldoAves),
		zap.Int("saldo_destino", result.RegistroDestino.SaldoAves))
	return result, nil
}

// GetDesacose obtiene un movimiento de aves por id
func (s *registroService) GetDesacose(ctx context.Context, id int) (*models.Desacose, error) {
	d, err := s.store.GetDesacose(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo desacose: %w", err)
	}
	if d == nil {
		return nil, apperror.NewNotFound("desacose", id)
	}
	return d, nil
}

func (s *registroService) ListDesacoses(ctx context.Context, filter *models.DesacoseFilter) ([]*models.Desacose, error) {
	desacoses, err := s.store.ListDesacoses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo desacoses: %w", err)
	}
	return desacoses, nil
}
