package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/config"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fijarStock deja la fila (lote, bodega) en valor sin pasar por los servicios
func (f *fixture) fijarStock(t *testing.T, loteID, bodegaID int, valor float64) {
	t.Helper()
	ctx := context.Background()
	err := f.store.RunInTx(ctx, func(q repository.Queries) error {
		entry, err := ObtenerOCrear(ctx, q, loteID, bodegaID)
		if err != nil {
			return err
		}
		if err := Fijar(ctx, q, entry, valor); err != nil {
			return err
		}
		_, err = recalcularLote(ctx, q, loteID)
		return err
	})
	require.NoError(t, err)
}

func TestDetectarStockBajo_Niveles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")

	tests := []struct {
		name      string
		restante  float64
		severidad models.Severidad
		mensaje   string
	}{
		{"sobre el umbral", 250, "", ""},
		{"en el umbral bajo", 200, models.SeveridadMedia, "Stock bajo"},
		{"bajo", 150, models.SeveridadMedia, "Stock bajo"},
		{"en el umbral critico", 100, models.SeveridadAlta, "Stock crítico"},
		{"critico", 50, models.SeveridadAlta, "Stock crítico"},
		{"agotado", 0, models.SeveridadAlta, "agotado"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lote := f.lote(t, fmt.Sprintf("L-%d", i), 1000, norte.ID)
			f.fijarStock(t, lote.ID, norte.ID, tt.restante)

			alerta, err := f.alertas.DetectarStockBajo(ctx, lote.ID)
			require.NoError(t, err)
			if tt.severidad == "" {
				assert.Nil(t, alerta)
				return
			}
			require.NotNil(t, alerta)
			assert.Equal(t, models.AlertaStockBajo, alerta.Tipo)
			assert.Equal(t, tt.severidad, alerta.Severidad)
			assert.Contains(t, alerta.Mensaje, tt.mensaje)
			assert.Equal(t, lote.ID, *alerta.LoteID)
		})
	}

	alerta, err := f.alertas.DetectarStockBajo(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, alerta)
}

func TestDetectarStockBajo_Idempotente(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")
	lote := f.lote(t, "L-1", 1000, norte.ID)
	f.fijarStock(t, lote.ID, norte.ID, 150)

	primera, err := f.alertas.DetectarStockBajo(ctx, lote.ID)
	require.NoError(t, err)
	require.NotNil(t, primera)

	segunda, err := f.alertas.DetectarStockBajo(ctx, lote.ID)
	require.NoError(t, err)
	assert.Nil(t, segunda)

	alertas, err := f.alertas.ListAlertas(ctx, &models.AlertaFilter{LoteID: intPtr(lote.ID)})
	require.NoError(t, err)
	assert.Len(t, alertas, 1)

	_, err = f.alertas.ResolverAlerta(ctx, primera.ID, 1)
	require.NoError(t, err)

	tercera, err := f.alertas.DetectarStockBajo(ctx, lote.ID)
	require.NoError(t, err)
	require.NotNil(t, tercera)
	assert.NotEqual(t, primera.ID, tercera.ID)
}

func TestDetectarMortalidadAlta_Umbrales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name       string
		mortalidad int
		severidad  models.Severidad
	}{
		{"normal", 49, ""},
		{"elevada", 50, models.SeveridadMedia},
		{"critica", 100, models.SeveridadAlta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			galpon := f.galpon(t, 1000, nil)
			reg := f.registro(t, &models.RegistroDiario{
				GalponID: galpon.ID, Fecha: dia(5), EdadDias: 5, Mortalidad: tt.mortalidad, SaldoAves: 1000 - tt.mortalidad,
			})

			alerta, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, reg)
			require.NoError(t, err)
			if tt.severidad == "" {
				assert.Nil(t, alerta)
				return
			}
			require.NotNil(t, alerta)
			assert.Equal(t, tt.severidad, alerta.Severidad)
			assert.Equal(t, galpon.ID, *alerta.GalponID)
		})
	}
}

func TestDetectarMortalidadAlta_SupresionHastaResolver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	r1 := f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(1), Mortalidad: 60, SaldoAves: 940})
	primera, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, r1)
	require.NoError(t, err)
	require.NotNil(t, primera)
	assert.Equal(t, models.SeveridadMedia, primera.Severidad)

	// otra severidad, misma clave: se suprime
	r2 := f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(2), Mortalidad: 120, SaldoAves: 820})
	suprimida, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, r2)
	require.NoError(t, err)
	assert.Nil(t, suprimida)

	_, err = f.alertas.ResolverAlerta(ctx, primera.ID, 3)
	require.NoError(t, err)

	nueva, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, r2)
	require.NoError(t, err)
	require.NotNil(t, nueva)
	assert.Equal(t, models.SeveridadAlta, nueva.Severidad)

	alertas, err := f.alertas.ListAlertas(ctx, &models.AlertaFilter{GalponID: intPtr(galpon.ID)})
	require.NoError(t, err)
	require.Len(t, alertas, 2)
	assert.False(t, alertas[0].Atendida)
	assert.True(t, alertas[1].Atendida)
}

func TestDetectarMortalidadAlta_Consecutiva(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("tres dias seguidos", func(t *testing.T) {
		galpon := f.galpon(t, 1000, nil)
		var ultimo *models.RegistroDiario
		for d := 1; d <= 3; d++ {
			ultimo = f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(d), Mortalidad: 2})
		}

		alerta, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, ultimo)
		require.NoError(t, err)
		require.NotNil(t, alerta)
		assert.Equal(t, models.SeveridadMedia, alerta.Severidad)
		assert.Contains(t, alerta.Mensaje, "6 aves")
	})

	t.Run("un dia sin bajas corta la racha", func(t *testing.T) {
		galpon := f.galpon(t, 1000, nil)
		f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(1), Mortalidad: 2})
		f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(2), Mortalidad: 0})
		ultimo := f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(3), Mortalidad: 2})

		alerta, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, ultimo)
		require.NoError(t, err)
		assert.Nil(t, alerta)
	})

	t.Run("menos registros que la ventana", func(t *testing.T) {
		galpon := f.galpon(t, 1000, nil)
		f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(1), Mortalidad: 2})
		ultimo := f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(2), Mortalidad: 2})

		alerta, err := f.alertas.DetectarMortalidadAlta(ctx, galpon.ID, ultimo)
		require.NoError(t, err)
		assert.Nil(t, alerta)
	})
}

func TestDetectarPesoAnormal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name      string
		previo    *float64
		actual    float64
		edad      int
		severidad models.Severidad
	}{
		{"perdida de peso", floatPtr(1000), 940, 10, models.SeveridadAlta},
		{"perdida dentro del margen", floatPtr(1000), 960, 3, ""},
		{"crecimiento lento", floatPtr(1000), 1010, 10, models.SeveridadMedia},
		{"crecimiento lento en pollitos", floatPtr(1000), 1010, 5, ""},
		{"crecimiento normal", floatPtr(1000), 1050, 10, ""},
		{"sin peso previo", nil, 500, 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			galpon := f.galpon(t, 1000, nil)
			f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(1), PesoPromedio: tt.previo})
			reg := f.registro(t, &models.RegistroDiario{
				GalponID: galpon.ID, Fecha: dia(2), EdadDias: tt.edad, PesoPromedio: floatPtr(tt.actual),
			})

			alerta, err := f.alertas.DetectarPesoAnormal(ctx, galpon.ID, reg)
			require.NoError(t, err)
			if tt.severidad == "" {
				assert.Nil(t, alerta)
				return
			}
			require.NotNil(t, alerta)
			assert.Equal(t, models.AlertaPesoAnormal, alerta.Tipo)
			assert.Equal(t, tt.severidad, alerta.Severidad)
		})
	}
}

func TestDetectarConsumoAnormal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name      string
		previos   int
		consumo   float64
		severidad models.Severidad
	}{
		{"consumo bajo", 5, 70, models.SeveridadMedia},
		{"consumo alto", 5, 130, models.SeveridadBaja},
		{"dentro del rango", 5, 110, ""},
		{"historial insuficiente", 2, 10, ""},
		{"minimo de historial", 3, 10, models.SeveridadMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			galpon := f.galpon(t, 1000, nil)
			for d := 1; d <= tt.previos; d++ {
				f.registro(t, &models.RegistroDiario{GalponID: galpon.ID, Fecha: dia(d), ConsumoKg: 100})
			}
			reg := f.registro(t, &models.RegistroDiario{
				GalponID: galpon.ID, Fecha: dia(tt.previos + 1), EdadDias: tt.previos + 1, ConsumoKg: tt.consumo,
			})

			alerta, err := f.alertas.DetectarConsumoAnormal(ctx, galpon.ID, reg)
			require.NoError(t, err)
			if tt.severidad == "" {
				assert.Nil(t, alerta)
				return
			}
			require.NotNil(t, alerta)
			assert.Equal(t, models.AlertaConsumoAnormal, alerta.Tipo)
			assert.Equal(t, tt.severidad, alerta.Severidad)
		})
	}
}

// historialRoto falla al leer registros anteriores
type historialRoto struct {
	*repository.MemoryStore
}

func (historialRoto) ListRegistrosAnteriores(context.Context, int, time.Time, int) ([]*models.RegistroDiario, error) {
	return nil, errors.New("historial no disponible")
}

func TestEjecutarDetecciones_ErroresNoAbortan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)
	reg := f.registro(t, &models.RegistroDiario{
		GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 150, ConsumoKg: 40, PesoPromedio: floatPtr(80),
	})

	alertas := NewAlertaService(historialRoto{f.store}, config.DefaultThresholds(), f.notifier, f.queue, zap.NewNop())
	creadas := alertas.EjecutarDetecciones(ctx, galpon.ID, reg)
	require.Len(t, creadas, 1)
	assert.Equal(t, models.AlertaMortalidadAlta, creadas[0].Tipo)
	assert.Equal(t, models.SeveridadAlta, creadas[0].Severidad)

	// las de severidad alta se notifican
	assert.Contains(t, f.queue.submitted(), fmt.Sprintf("notificar:alerta:%d", creadas[0].ID))
	assert.Equal(t, 1, f.notifier.count())
}

// galponInestable entra en pánico al leer el galpón
type galponInestable struct {
	*repository.MemoryStore
}

func (galponInestable) GetGalpon(context.Context, int) (*models.Galpon, error) {
	panic("lectura de galpón corrupta")
}

func TestEjecutarDetecciones_ReportaFallas(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		store    func(*repository.MemoryStore) repository.Store
		fallidas int64
		tipos    []models.TipoAlerta
		mensaje  string
	}{
		{
			name:     "historial caído",
			store:    func(m *repository.MemoryStore) repository.Store { return historialRoto{m} },
			fallidas: 2,
			tipos:    []models.TipoAlerta{models.AlertaMortalidadAlta},
			mensaje:  "historial no disponible",
		},
		{
			name:     "pánico en una detección",
			store:    func(m *repository.MemoryStore) repository.Store { return galponInestable{m} },
			fallidas: 1,
			mensaje:  "mortalidad_alta: panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			galpon := f.galpon(t, 1000, nil)
			reg := f.registro(t, &models.RegistroDiario{
				GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 150, ConsumoKg: 40, PesoPromedio: floatPtr(80),
			})

			core, logs := observer.New(zap.DebugLevel)
			alertas := NewAlertaService(tt.store(f.store), config.DefaultThresholds(), nil, nil, zap.New(core))

			creadas := alertas.EjecutarDetecciones(ctx, galpon.ID, reg)
			tipos := make([]models.TipoAlerta, 0, len(creadas))
			for _, a := range creadas {
				tipos = append(tipos, a.Tipo)
			}
			assert.ElementsMatch(t, tt.tipos, tipos)

			resumen := logs.FilterMessage("Detecciones incompletas").All()
			require.Len(t, resumen, 1)
			assert.Equal(t, tt.fallidas, resumen[0].ContextMap()["fallidas"])
			assert.Contains(t, resumen[0].ContextMap()["error"], tt.mensaje)
			assert.Equal(t, int(tt.fallidas), logs.FilterMessage("Error en detección").Len())
		})
	}
}

func TestRevisarStockLotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")

	for i, restante := range []float64{150, 50, 900} {
		lote := f.lote(t, fmt.Sprintf("L-%d", i), 1000, norte.ID)
		f.fijarStock(t, lote.ID, norte.ID, restante)
	}

	creadas, err := f.alertas.RevisarStockLotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, creadas)

	// una segunda pasada no duplica
	creadas, err = f.alertas.RevisarStockLotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, creadas)
}

func TestAlertasManuales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	_, err := f.alertas.CrearAlerta(ctx, &models.CrearAlertaRequest{
		Tipo: models.AlertaPesoAnormal, Severidad: models.SeveridadBaja, Mensaje: "revisar",
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.alertas.CrearAlerta(ctx, &models.CrearAlertaRequest{
		Tipo: models.AlertaPesoAnormal, Severidad: models.SeveridadBaja, Mensaje: "revisar", GalponID: intPtr(999),
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	req := &models.CrearAlertaRequest{
		Tipo: models.AlertaPesoAnormal, Severidad: models.SeveridadBaja, Mensaje: "Aves desparejas", GalponID: intPtr(galpon.ID),
	}
	alerta, err := f.alertas.CrearAlerta(ctx, req)
	require.NoError(t, err)
	assert.False(t, alerta.Atendida)

	_, err = f.alertas.CrearAlerta(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	resumen, err := f.alertas.ResumenPendientes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.Pendientes)
	assert.Equal(t, 1, resumen.PorSeveridad["baja"])

	resuelta, err := f.alertas.ResolverAlerta(ctx, alerta.ID, 42)
	require.NoError(t, err)
	assert.True(t, resuelta.Atendida)
	assert.Equal(t, 42, *resuelta.AtendidaPor)
	assert.NotNil(t, resuelta.FechaAtencion)

	_, err = f.alertas.ResolverAlerta(ctx, alerta.ID, 42)
	assert.ErrorIs(t, err, apperror.ErrAlreadyResolved)

	_, err = f.alertas.ResolverAlerta(ctx, 999, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.alertas.EliminarAlerta(ctx, alerta.ID))
	assert.ErrorIs(t, f.alertas.EliminarAlerta(ctx, alerta.ID), apperror.ErrNotFound)
	_, err = f.alertas.GetAlerta(ctx, alerta.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// las manuales de severidad baja no se notifican
	assert.Equal(t, 0, f.notifier.count())
}
