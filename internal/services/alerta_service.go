package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/config"
	"avicola-service/internal/models"
	"avicola-service/internal/notify"
	"avicola-service/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registros previos usados para el promedio de consumo
const (
	ventanaConsumo         = 5
	minimoRegistrosConsumo = 3
)

// AlertaService define la detección automática y la gestión de alertas
type AlertaService interface {
	// Detecciones
	DetectarMortalidadAlta(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error)
	DetectarStockBajo(ctx context.Context, loteID int) (*models.Alerta, error)
	DetectarPesoAnormal(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error)
	DetectarConsumoAnormal(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error)
	EjecutarDetecciones(ctx context.Context, galponID int, registro *models.RegistroDiario) []*models.Alerta
	RevisarStockLotes(ctx context.Context) (int, error)

	// Gestión
	CrearAlerta(ctx context.Context, req *models.CrearAlertaRequest) (*models.Alerta, error)
	GetAlerta(ctx context.Context, id int) (*models.Alerta, error)
	ListAlertas(ctx context.Context, filter *models.AlertaFilter) ([]*models.Alerta, error)
	ResolverAlerta(ctx context.Context, id, usuarioID int) (*models.Alerta, error)
	EliminarAlerta(ctx context.Context, id int) error
	ResumenPendientes(ctx context.Context) (*models.AlertasMetrics, error)
}

// alertaService implementa AlertaService
type alertaService struct {
	store      repository.Store
	thresholds config.ThresholdsConfig
	notifier   notify.Notifier
	tasks      TaskQueue
	logger     *zap.Logger
}

// NewAlertaService crea el servicio; notifier y tasks pueden ser nil
func NewAlertaService(store repository.Store, thresholds config.ThresholdsConfig, notifier notify.Notifier, tasks TaskQueue, logger *zap.Logger) AlertaService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &alertaService{
		store:      store,
		thresholds: thresholds,
		notifier:   notifier,
		tasks:      tasks,
		logger:     logger,
	}
}

// crear inserta la alerta salvo que haya una abierta del mismo tipo y sujeto.
// Devuelve nil si fue suprimida.
func (s *alertaService) crear(ctx context.Context, alerta *models.Alerta) (*models.Alerta, error) {
	if alerta.Fecha.IsZero() {
		alerta.Fecha = time.Now()
	}

	creada, err := s.store.CreateAlertaSiNoExiste(ctx, alerta)
	if err != nil {
		return nil, fmt.Errorf("error creando alerta: %w", err)
	}

	logger := s.logger.With(
		zap.String("tipo", string(alerta.Tipo)),
		zap.String("sujeto", alerta.Sujeto()),
	)
	if !creada {
		logger.Debug("Alerta suprimida, ya existe una abierta")
		return nil, nil
	}

	logger.Info("Alerta creada",
		zap.Int("alerta_id", alerta.ID),
		zap.String("severidad", string(alerta.Severidad)))

	if alerta.Severidad == models.SeveridadAlta {
		s.notificar(alerta)
	}
	return alerta, nil
}

// notificar envía la alerta al webhook fuera del camino de la petición
func (s *alertaService) notificar(alerta *models.Alerta) {
	enviar := func(ctx context.Context) error {
		return s.notifier.NotificarAlerta(ctx, alerta)
	}

	if s.tasks != nil {
		s.tasks.Submit(fmt.Sprintf("notificar:alerta:%d", alerta.ID), enviar)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := enviar(ctx); err != nil {
		s.logger.Warn("Error notificando alerta", zap.Int("alerta_id", alerta.ID), zap.Error(err))
	}
}

// DetectarMortalidadAlta evalúa la mortalidad del día contra las aves iniciales
// y, si no cruza umbral, la mortalidad consecutiva de los últimos días.
func (s *alertaService) DetectarMortalidadAlta(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error) {
	galpon, err := s.store.GetGalpon(ctx, galponID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo galpón: %w", err)
	}
	if galpon == nil {
		return nil, nil
	}

	porcentaje := 0.0
	if galpon.AvesIniciales > 0 {
		porcentaje = float64(registro.Mortalidad) / float64(galpon.AvesIniciales) * 100
	}

	nueva := func(severidad models.Severidad, mensaje string) *models.Alerta {
		return &models.Alerta{
			Tipo:      models.AlertaMortalidadAlta,
			Severidad: severidad,
			Mensaje:   mensaje,
			GalponID:  &galponID,
		}
	}

	switch {
	case porcentaje >= s.thresholds.MortalidadCritica:
		return s.crear(ctx, nueva(models.SeveridadAlta, fmt.Sprintf(
			"Mortalidad crítica detectada: %d aves (%.2f%%) en el día %d. Requiere atención inmediata.",
			registro.Mortalidad, porcentaje, registro.EdadDias)))
	case porcentaje >= s.thresholds.MortalidadAlta:
		return s.crear(ctx, nueva(models.SeveridadMedia, fmt.Sprintf(
			"Mortalidad elevada: %d aves (%.2f%%) en el día %d. Revisar condiciones del galpón.",
			registro.Mortalidad, porcentaje, registro.EdadDias)))
	}

	// Últimos N registros hasta la fecha del registro, inclusive
	dias := s.thresholds.DiasMortalidadConsecutiva
	recientes, err := s.store.ListRegistrosAnteriores(ctx, galponID, registro.Fecha.AddDate(0, 0, 1), dias)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo registros recientes: %w", err)
	}
	if len(recientes) < dias {
		return nil, nil
	}

	total := 0
	for _, r := range recientes {
		if r.Mortalidad <= 0 {
			return nil, nil
		}
		total += r.Mortalidad
	}

	return s.crear(ctx, nueva(models.SeveridadMedia, fmt.Sprintf(
		"Mortalidad consecutiva detectada: %d aves perdidas en los últimos %d días. Investigar causa.",
		total, dias)))
}

// DetectarStockBajo compara el stock real del lote (suma de bodegas) con su cantidad inicial
func (s *alertaService) DetectarStockBajo(ctx context.Context, loteID int) (*models.Alerta, error) {
	lote, err := s.store.GetLote(ctx, loteID)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo lote: %w", err)
	}
	if lote == nil {
		return nil, nil
	}

	total, err := s.store.SumStockByLote(ctx, loteID)
	if err != nil {
		return nil, fmt.Errorf("error sumando stock del lote: %w", err)
	}

	porcentaje := 0.0
	if lote.CantidadInicial > 0 {
		porcentaje = total / lote.CantidadInicial * 100
	}

	nueva := func(severidad models.Severidad, mensaje string) *models.Alerta {
		return &models.Alerta{
			Tipo:      models.AlertaStockBajo,
			Severidad: severidad,
			Mensaje:   mensaje,
			LoteID:    &loteID,
		}
	}

	switch {
	case porcentaje > 0 && porcentaje <= s.thresholds.StockCriticoPorcentaje:
		return s.crear(ctx, nueva(models.SeveridadAlta, fmt.Sprintf(
			"Stock crítico en lote %s (%s): %.2f kg restantes (%.1f%%). Ordenar reposición urgente.",
			lote.CodigoLote, lote.Tipo, total, porcentaje)))
	case porcentaje > s.thresholds.StockCriticoPorcentaje && porcentaje <= s.thresholds.StockBajoPorcentaje:
		return s.crear(ctx, nueva(models.SeveridadMedia, fmt.Sprintf(
			"Stock bajo en lote %s (%s): %.2f kg restantes (%.1f%%). Considerar reposición.",
			lote.CodigoLote, lote.Tipo, total, porcentaje)))
	case total <= 0:
		return s.crear(ctx, nueva(models.SeveridadAlta, fmt.Sprintf(
			"Lote agotado: %s (%s). Stock en 0 kg.", lote.CodigoLote, lote.Tipo)))
	}
	return nil, nil
}

// DetectarPesoAnormal compara el peso promedio con el del registro anterior
func (s *alertaService) DetectarPesoAnormal(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error) {
	if registro.PesoPromedio == nil || *registro.PesoPromedio == 0 {
		return nil, nil
	}

	anteriores, err := s.store.ListRegistrosAnteriores(ctx, galponID, registro.Fecha, 1)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo registro anterior: %w", err)
	}
	if len(anteriores) == 0 || anteriores[0].PesoPromedio == nil || *anteriores[0].PesoPromedio == 0 {
		return nil, nil
	}

	actual := *registro.PesoPromedio
	previo := *anteriores[0].PesoPromedio
	variacion := (actual - previo) / previo * 100

	nueva := func(severidad models.Severidad, mensaje string) *models.Alerta {
		return &models.Alerta{
			Tipo:      models.AlertaPesoAnormal,
			Severidad: severidad,
			Mensaje:   mensaje,
			GalponID:  &galponID,
		}
	}

	perdida := -s.thresholds.PesoPerdidaPorcentaje
	switch {
	case variacion < perdida:
		return s.crear(ctx, nueva(models.SeveridadAlta, fmt.Sprintf(
			"Pérdida de peso detectada: %.1f%% de reducción en día %d. Peso actual: %gg. Verificar alimentación y salud.",
			math.Abs(variacion), registro.EdadDias, actual)))
	case variacion < s.thresholds.PesoCrecimientoMinimo && registro.EdadDias > s.thresholds.PesoEdadMinimaDias:
		return s.crear(ctx, nueva(models.SeveridadMedia, fmt.Sprintf(
			"Crecimiento lento detectado: solo %.1f%% de ganancia en día %d. Peso: %gg. Revisar nutrición.",
			variacion, registro.EdadDias, actual)))
	}
	return nil, nil
}

// DetectarConsumoAnormal compara el consumo con el promedio de hasta 5 registros previos
func (s *alertaService) DetectarConsumoAnormal(ctx context.Context, galponID int, registro *models.RegistroDiario) (*models.Alerta, error) {
	if registro.ConsumoKg == 0 {
		return nil, nil
	}

	anteriores, err := s.store.ListRegistrosAnteriores(ctx, galponID, registro.Fecha, ventanaConsumo)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo registros anteriores: %w", err)
	}
	if len(anteriores) < minimoRegistrosConsumo {
		return nil, nil
	}

	suma := 0.0
	for _, r := range anteriores {
		suma += r.ConsumoKg
	}
	promedio := suma / float64(len(anteriores))
	if promedio == 0 {
		return nil, nil
	}
	variacion := (registro.ConsumoKg - promedio) / promedio * 100

	nueva := func(severidad models.Severidad, mensaje string) *models.Alerta {
		return &models.Alerta{
			Tipo:      models.AlertaConsumoAnormal,
			Severidad: severidad,
			Mensaje:   mensaje,
			GalponID:  &galponID,
		}
	}

	umbral := s.thresholds.ConsumoAnormalPorcentaje
	switch {
	case variacion < -umbral:
		return s.crear(ctx, nueva(models.SeveridadMedia, fmt.Sprintf(
			"Consumo de alimento muy bajo: %.2fkg (%.1f%% por debajo del promedio). Día %d. Verificar comederos y agua.",
			registro.ConsumoKg, math.Abs(variacion), registro.EdadDias)))
	case variacion > umbral:
		return s.crear(ctx, nueva(models.SeveridadBaja, fmt.Sprintf(
			"Consumo de alimento elevado: %.2fkg (%.1f%% por encima del promedio). Día %d. Verificar desperdicio.",
			registro.ConsumoKg, variacion, registro.EdadDias)))
	}
	return nil, nil
}

// EjecutarDetecciones corre las detecciones del galpón en paralelo.
// Nunca falla: el error de cada detección se registra y no afecta a las demás.
func (s *alertaService) EjecutarDetecciones(ctx context.Context, galponID int, registro *models.RegistroDiario) []*models.Alerta {
	logger := s.logger.With(
		zap.String("operation", "ejecutar_detecciones"),
		zap.Int("galpon_id", galponID),
		zap.Int("registro_id", registro.ID),
	)

	detecciones := []struct {
		nombre string
		fn     func(context.Context, int, *models.RegistroDiario) (*models.Alerta, error)
	}{
		{"mortalidad_alta", s.DetectarMortalidadAlta},
		{"peso_anormal", s.DetectarPesoAnormal},
		{"consumo_anormal", s.DetectarConsumoAnormal},
	}

	resultados := make([]*models.Alerta, len(detecciones))
	fallas := make([]error, len(detecciones))
	// sin WithContext: una detección fallida no cancela a las otras
	var g errgroup.Group
	for i, d := range detecciones {
		i, d := i, d
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: panic: %v", d.nombre, r)
				}
				if err != nil {
					fallas[i] = err
					logger.Error("Error en detección", zap.String("deteccion", d.nombre), zap.Error(err))
				}
			}()

			alerta, err := d.fn(ctx, galponID, registro)
			if err != nil {
				return fmt.Errorf("%s: %w", d.nombre, err)
			}
			resultados[i] = alerta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		joined := errors.Join(fallas...)
		logger.Warn("Detecciones incompletas",
			zap.Int("fallidas", contarFallas(fallas)),
			zap.Error(joined))
	}

	creadas := make([]*models.Alerta, 0, len(resultados))
	for _, alerta := range resultados {
		if alerta != nil {
			creadas = append(creadas, alerta)
		}
	}
	if len(creadas) > 0 {
		logger.Info("Detecciones completadas", zap.Int("alertas_creadas", len(creadas)))
	}
	return creadas
}

func contarFallas(fallas []error) int {
	n := 0
	for _, err := range fallas {
		if err != nil {
			n++
		}
	}
	return n
}

// RevisarStockLotes corre DetectarStockBajo sobre todos los lotes con stock.
// Devuelve cuántas alertas se crearon.
func (s *alertaService) RevisarStockLotes(ctx context.Context) (int, error) {
	const pagina = 500
	logger := s.logger.With(zap.String("operation", "revisar_stock_lotes"))

	creadas, revisados := 0, 0
	for offset := 0; ; offset += pagina {
		lotes, err := s.store.ListLotes(ctx, &models.LoteFilter{SoloActivos: true, Limit: pagina, Offset: offset})
		if err != nil {
			return creadas, fmt.Errorf("error listando lotes: %w", err)
		}

		for _, lote := range lotes {
			if err := ctx.Err(); err != nil {
				return creadas, err
			}
			alerta, err := s.DetectarStockBajo(ctx, lote.ID)
			if err != nil {
				logger.Error("Error revisando stock", zap.Int("lote_id", lote.ID), zap.Error(err))
				continue
			}
			if alerta != nil {
				creadas++
			}
		}
		revisados += len(lotes)

		if len(lotes) < pagina {
			break
		}
	}

	logger.Info("Revisión de stock completada",
		zap.Int("lotes_revisados", revisados),
		zap.Int("alertas_creadas", creadas))
	return creadas, nil
}

// CrearAlerta registra una alerta manual. Comparte la guardia de las automáticas:
// si ya hay una abierta del mismo tipo y sujeto devuelve CONFLICT.
func (s *alertaService) CrearAlerta(ctx context.Context, req *models.CrearAlertaRequest) (*models.Alerta, error) {
	if req.GalponID == nil && req.LoteID == nil {
		return nil, apperror.NewValidation("la alerta requiere galpon_id o lote_id")
	}

	if req.GalponID != nil {
		galpon, err := s.store.GetGalpon(ctx, *req.GalponID)
		if err != nil {
			return nil, fmt.Errorf("error obteniendo galpón: %w", err)
		}
		if galpon == nil {
			return nil, apperror.NewNotFound("galpon", *req.GalponID)
		}
	}
	if req.LoteID != nil {
		lote, err := s.store.GetLote(ctx, *req.LoteID)
		if err != nil {
			return nil, fmt.Errorf("error obteniendo lote: %w", err)
		}
		if lote == nil {
			return nil, apperror.NewNotFound("lote", *req.LoteID)
		}
	}

	alerta, err := s.crear(ctx, &models.Alerta{
		Tipo:      req.Tipo,
		Severidad: req.Severidad,
		Mensaje:   req.Mensaje,
		GalponID:  req.GalponID,
		LoteID:    req.LoteID,
	})
	if err != nil {
		return nil, err
	}
	if alerta == nil {
		return nil, apperror.NewConflict("ya existe una alerta abierta del mismo tipo para este sujeto")
	}
	return alerta, nil
}

// GetAlerta obtiene una alerta por id
func (s *alertaService) GetAlerta(ctx context.Context, id int) (*models.Alerta, error) {
	alerta, err := s.store.GetAlerta(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo alerta: %w", err)
	}
	if alerta == nil {
		return nil, apperror.NewNotFound("alerta", id)
	}
	return alerta, nil
}

// ListAlertas lista alertas: abiertas primero, luego por severidad y fecha
func (s *alertaService) ListAlertas(ctx context.Context, filter *models.AlertaFilter) ([]*models.Alerta, error) {
	alertas, err := s.store.ListAlertas(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo alertas: %w", err)
	}
	return alertas, nil
}

// ResolverAlerta marca la alerta como atendida; una segunda llamada falla con ALREADY_RESOLVED
func (s *alertaService) ResolverAlerta(ctx context.Context, id, usuarioID int) (*models.Alerta, error) {
	alerta, err := s.GetAlerta(ctx, id)
	if err != nil {
		return nil, err
	}
	if alerta.Atendida {
		return nil, apperror.NewAlreadyResolved(id)
	}

	ok, err := s.store.ResolverAlerta(ctx, id, usuarioID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("error resolviendo alerta: %w", err)
	}
	if !ok {
		return nil, apperror.NewAlreadyResolved(id)
	}

	s.logger.Info("Alerta resuelta", zap.Int("alerta_id", id), zap.Int("usuario_id", usuarioID))
	return s.GetAlerta(ctx, id)
}

// EliminarAlerta borra una alerta
func (s *alertaService) EliminarAlerta(ctx context.Context, id int) error {
	ok, err := s.store.DeleteAlerta(ctx, id)
	if err != nil {
		return fmt.Errorf("error eliminando alerta: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("alerta", id)
	}
	s.logger.Info("Alerta eliminada", zap.Int("alerta_id", id))
	return nil
}

// ResumenPendientes cuenta las alertas abiertas por severidad
func (s *alertaService) ResumenPendientes(ctx context.Context) (*models.AlertasMetrics, error) {
	counts, err := s.store.CountAlertasPendientes(ctx)
	if err != nil {
		return nil, fmt.Errorf("error contando alertas: %w", err)
	}

	resumen := &models.AlertasMetrics{PorSeveridad: make(map[string]int, len(counts))}
	for severidad, n := range counts {
		resumen.PorSeveridad[string(severidad)] = n
		resumen.Pendientes += n
	}
	return resumen, nil
}
