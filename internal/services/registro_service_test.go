package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"
	"avicola-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCrearRegistro_SaldoDeAves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	r1, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 980, r1.SaldoAves)

	_, err = f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 981,
	})
	require.ErrorIs(t, err, apperror.ErrNegativeBalance)

	existente, err := f.store.GetRegistroByFecha(ctx, galpon.ID, dia(3))
	require.NoError(t, err)
	assert.Nil(t, existente)

	r2, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 980,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, r2.SaldoAves)
}

func TestCrearRegistro_SaldoUsaElRegistroAnteriorPorFecha(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(5), EdadDias: 5, Mortalidad: 10,
	})
	require.NoError(t, err)

	// carga retroactiva: no hay registro con fecha anterior
	atrasado, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(4), EdadDias: 4, Mortalidad: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 997, atrasado.SaldoAves)

	explicito, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(6), EdadDias: 6, Mortalidad: 1, SaldoAves: intPtr(900),
	})
	require.NoError(t, err)
	assert.Equal(t, 900, explicito.SaldoAves)

	_, err = f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(7), EdadDias: 7, SaldoAves: intPtr(-1),
	})
	assert.ErrorIs(t, err, apperror.ErrNegativeBalance)
}

func TestCrearRegistro_AcumuladoDeAlimento(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	r1, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, ConsumoKg: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, r1.AcumuladoAlimento)

	r2, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, ConsumoKg: 60.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 110.5, r2.AcumuladoAlimento)
}

func TestCrearRegistro_Rechazos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *models.CrearRegistroRequest
		want error
	}{
		{"fecha repetida", &models.CrearRegistroRequest{GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2}, apperror.ErrDuplicateRecord},
		{"dia 1 sin factura", &models.CrearRegistroRequest{GalponID: galpon.ID, Fecha: dia(1), EdadDias: 1}, apperror.ErrMissingRequiredPhoto},
		{"dia 22 sin medidor", &models.CrearRegistroRequest{GalponID: galpon.ID, Fecha: dia(22), EdadDias: 22}, apperror.ErrMissingRequiredPhoto},
		{"galpon inexistente", &models.CrearRegistroRequest{GalponID: 999, Fecha: dia(3), EdadDias: 3}, apperror.ErrNotFound},
		{"consumo negativo", &models.CrearRegistroRequest{GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, ConsumoKg: -1}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registros.CrearRegistro(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	conFoto, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(1), EdadDias: 1, FotoFactura: "https://fotos.example/factura.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, conFoto.SaldoAves)
}

func TestCrearRegistro_DescuentaConsumoDelLote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")
	galpon := f.galpon(t, 1000, intPtr(norte.ID))
	lote := f.lote(t, "L-1", 500, norte.ID)

	// calentar el caché para comprobar la invalidación
	_, err := f.inventario.GetLote(ctx, lote.ID)
	require.NoError(t, err)

	reg, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, ConsumoKg: 100, LoteID: intPtr(lote.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, lote.ID, *reg.LoteID)

	assert.Equal(t, 400.0, f.stock(t, lote.ID, norte.ID))
	assert.Equal(t, 400.0, f.requireLedgerConsistent(t, lote.ID))

	detalle, err := f.inventario.GetLote(ctx, lote.ID)
	require.NoError(t, err)
	assert.Equal(t, 400.0, detalle.CantidadActual)

	movs, err := f.inventario.ListMovimientos(ctx, &models.MovimientoFilter{GalponID: intPtr(galpon.ID)})
	require.NoError(t, err)
	require.Equal(t, 1, movs.TotalMovimientos)
	assert.Equal(t, models.MovimientoConsumo, movs.Movimientos[0].TipoMovimiento)
	assert.Equal(t, 100.0, movs.Movimientos[0].Cantidad)

	tareas := f.queue.submitted()
	assert.Contains(t, tareas, fmt.Sprintf("stock_bajo:lote:%d", lote.ID))
	assert.Contains(t, tareas, fmt.Sprintf("detecciones:galpon:%d", galpon.ID))
}

func TestCrearRegistro_ConsumoFallidoDeshaceElRegistro(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")
	conBodega := f.galpon(t, 1000, intPtr(norte.ID))
	sinBodega := f.galpon(t, 1000, nil)
	lote := f.lote(t, "L-1", 500, norte.ID)

	_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: conBodega.ID, Fecha: dia(2), EdadDias: 2, ConsumoKg: 501, LoteID: intPtr(lote.ID),
	})
	require.ErrorIs(t, err, apperror.ErrInsufficientStock)

	_, err = f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: sinBodega.ID, Fecha: dia(2), EdadDias: 2, ConsumoKg: 10, LoteID: intPtr(lote.ID),
	})
	require.ErrorIs(t, err, apperror.ErrNoWarehouseAssigned)

	for _, galponID := range []int{conBodega.ID, sinBodega.ID} {
		reg, err := f.store.GetRegistroByFecha(ctx, galponID, dia(2))
		require.NoError(t, err)
		assert.Nil(t, reg)
	}
	assert.Equal(t, 500.0, f.stock(t, lote.ID, norte.ID))

	// sin lote el consumo solo se anota
	reg, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: sinBodega.ID, Fecha: dia(2), EdadDias: 2, ConsumoKg: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, reg.ConsumoKg)
	assert.Equal(t, 500.0, f.stock(t, lote.ID, norte.ID))
}

func TestCrearRegistro_DisparaDetecciones(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 60,
	})
	require.NoError(t, err)

	alertas, err := f.alertas.ListAlertas(ctx, &models.AlertaFilter{GalponID: intPtr(galpon.ID)})
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, models.AlertaMortalidadAlta, alertas[0].Tipo)
	assert.Equal(t, models.SeveridadMedia, alertas[0].Severidad)
}

func TestActualizarRegistro(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	norte := f.bodega(t, "Norte")
	galpon := f.galpon(t, 1000, intPtr(norte.ID))
	lote := f.lote(t, "L-1", 500, norte.ID)

	reg, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 5, ConsumoKg: 100, LoteID: intPtr(lote.ID),
	})
	require.NoError(t, err)

	obs := "corrección de planilla"
	actualizado, err := f.registros.ActualizarRegistro(ctx, reg.ID, &models.ActualizarRegistroRequest{
		Mortalidad: intPtr(7), ConsumoKg: floatPtr(120), Observaciones: &obs,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, actualizado.Mortalidad)
	assert.Equal(t, 995, actualizado.SaldoAves)
	assert.Equal(t, obs, actualizado.Observaciones)

	// el consumo ya descontado no se vuelve a aplicar
	assert.Equal(t, 400.0, f.stock(t, lote.ID, norte.ID))

	_, err = f.registros.ActualizarRegistro(ctx, reg.ID, &models.ActualizarRegistroRequest{SaldoAves: intPtr(-3)})
	assert.ErrorIs(t, err, apperror.ErrNegativeBalance)

	_, err = f.registros.ActualizarRegistro(ctx, reg.ID, &models.ActualizarRegistroRequest{EdadDias: intPtr(22)})
	assert.ErrorIs(t, err, apperror.ErrMissingRequiredPhoto)

	_, err = f.registros.ActualizarRegistro(ctx, 999, &models.ActualizarRegistroRequest{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	guardado, err := f.registros.GetRegistro(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, guardado.EdadDias)
	assert.Equal(t, 995, guardado.SaldoAves)
}

func TestListarYEliminarRegistros(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g1 := f.galpon(t, 1000, nil)
	g2 := f.galpon(t, 500, nil)

	for d := 2; d <= 4; d++ {
		_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{GalponID: g1.ID, Fecha: dia(d), EdadDias: d})
		require.NoError(t, err)
	}
	otro, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{GalponID: g2.ID, Fecha: dia(2), EdadDias: 2})
	require.NoError(t, err)

	registros, err := f.registros.ListRegistros(ctx, &models.RegistroFilter{GalponID: intPtr(g1.ID)})
	require.NoError(t, err)
	require.Len(t, registros, 3)
	assert.Equal(t, 4, registros[0].EdadDias)

	require.NoError(t, f.registros.EliminarRegistro(ctx, otro.ID))
	assert.ErrorIs(t, f.registros.EliminarRegistro(ctx, otro.ID), apperror.ErrNotFound)
	_, err = f.registros.GetRegistro(ctx, otro.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSincronizarRegistros(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	galpon := f.galpon(t, 1000, nil)

	previo, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 5,
	})
	require.NoError(t, err)

	resp, err := f.registros.SincronizarRegistros(ctx, &models.SincronizarRegistrosRequest{
		Registros: []models.CrearRegistroRequest{
			{GalponID: galpon.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 7, PesoPromedio: floatPtr(50)},
			{GalponID: galpon.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 3},
			{GalponID: galpon.ID, Fecha: dia(1), EdadDias: 1},
			{GalponID: 9999, Fecha: dia(3), EdadDias: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.Exitosos)
	assert.Equal(t, 2, resp.Fallidos)
	require.Len(t, resp.Detalles, 4)

	assert.Equal(t, models.SincronizacionActualizado, resp.Detalles[0].Accion)
	assert.Equal(t, previo.ID, resp.Detalles[0].RegistroID)
	assert.Equal(t, models.SincronizacionCreado, resp.Detalles[1].Accion)
	assert.Equal(t, apperror.CodeMissingRequiredPhoto, resp.Detalles[2].Code)
	assert.NotEmpty(t, resp.Detalles[2].Error)
	assert.Equal(t, apperror.CodeNotFound, resp.Detalles[3].Code)
	assert.Equal(t, "2024-03-03", resp.Detalles[3].Fecha)

	// la edición conserva el saldo ya calculado
	actualizado, err := f.store.GetRegistro(ctx, previo.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, actualizado.Mortalidad)
	assert.Equal(t, 995, actualizado.SaldoAves)
	require.NotNil(t, actualizado.PesoPromedio)
	assert.Equal(t, 50.0, *actualizado.PesoPromedio)

	creado, err := f.store.GetRegistroByFecha(ctx, galpon.ID, dia(3))
	require.NoError(t, err)
	require.NotNil(t, creado)
	assert.Equal(t, 992, creado.SaldoAves)

	_, err = f.registros.SincronizarRegistros(ctx, &models.SincronizarRegistrosRequest{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestRegistrarDesacose_MueveAves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	origen := f.galpon(t, 1000, nil)
	destino := f.galpon(t, 500, nil)

	_, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: origen.ID, Fecha: dia(2), EdadDias: 2, Mortalidad: 20, ConsumoKg: 40, PesoPromedio: floatPtr(45),
	})
	require.NoError(t, err)

	fecha := dia(3)
	result, err := f.registros.RegistrarDesacose(ctx, &models.CrearDesacoseRequest{
		GalponOrigenID: origen.ID, GalponDestinoID: destino.ID, CantidadAves: 300, Fecha: &fecha, Motivo: "densidad",
	})
	require.NoError(t, err)

	require.NotZero(t, result.Desacose.ID)
	assert.Equal(t, 680, result.RegistroOrigen.SaldoAves)
	assert.Equal(t, 2, result.RegistroOrigen.EdadDias)
	assert.Equal(t, 40.0, result.RegistroOrigen.AcumuladoAlimento)
	assert.Zero(t, result.RegistroOrigen.ConsumoKg)
	require.NotNil(t, result.RegistroOrigen.PesoPromedio)
	assert.Equal(t, 45.0, *result.RegistroOrigen.PesoPromedio)
	assert.Contains(t, result.RegistroOrigen.Observaciones, "300 aves movidas")

	// destino sin registros previos parte de sus aves iniciales
	assert.Equal(t, 800, result.RegistroDestino.SaldoAves)
	assert.Contains(t, result.RegistroDestino.Observaciones, "300 aves recibidas")

	// el saldo del día siguiente sigue la cadena
	siguiente, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: origen.ID, Fecha: dia(4), EdadDias: 4, Mortalidad: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 670, siguiente.SaldoAves)

	listados, err := f.registros.ListDesacoses(ctx, &models.DesacoseFilter{GalponID: intPtr(destino.ID)})
	require.NoError(t, err)
	require.Len(t, listados, 1)
	assert.Equal(t, "densidad", listados[0].Motivo)

	got, err := f.registros.GetDesacose(ctx, result.Desacose.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, got.CantidadAves)

	_, err = f.registros.GetDesacose(ctx, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRegistrarDesacose_EditaRegistroDelDia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	origen := f.galpon(t, 1000, nil)
	destino := f.galpon(t, 500, nil)

	delDia, err := f.registros.CrearRegistro(ctx, &models.CrearRegistroRequest{
		GalponID: origen.ID, Fecha: dia(3), EdadDias: 3, Mortalidad: 10, Observaciones: "normal",
	})
	require.NoError(t, err)

	fecha := dia(3)
	for i := 0; i < 2; i++ {
		_, err = f.registros.RegistrarDesacose(ctx, &models.CrearDesacoseRequest{
			GalponOrigenID: origen.ID, GalponDestinoID: destino.ID, CantidadAves: 100, Fecha: &fecha,
		})
		require.NoError(t, err)
	}

	reg, err := f.store.GetRegistro(ctx, delDia.ID)
	require.NoError(t, err)
	assert.Equal(t, 790, reg.SaldoAves)
	assert.Equal(t, 10, reg.Mortalidad)
	assert.True(t, strings.HasPrefix(reg.Observaciones, "normal\n"))

	registros, err := f.store.ListRegistros(ctx, &models.RegistroFilter{GalponID: intPtr(destino.ID)})
	require.NoError(t, err)
	require.Len(t, registros, 1)
	assert.Equal(t, 700, registros[0].SaldoAves)
}

// desacoseRoto falla al guardar el desacose, después de escribir los saldos
type desacoseRoto struct {
	*repository.MemoryStore
}

func (s desacoseRoto) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.MemoryStore.RunInTx(ctx, func(q repository.Queries) error {
		return fn(desacoseRotoQueries{q})
	})
}

type desacoseRotoQueries struct {
	repository.Queries
}

func (desacoseRotoQueries) CreateDesacose(context.Context, *models.Desacose) error {
	return errors.New("disco lleno")
}

func TestRegistrarDesacose_Rechazos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	origen := f.galpon(t, 100, nil)
	destino := f.galpon(t, 100, nil)
	conPosterior := f.galpon(t, 100, nil)
	f.registro(t, &models.RegistroDiario{GalponID: conPosterior.ID, Fecha: dia(10), SaldoAves: 100})

	fecha := dia(5)
	tests := []struct {
		name    string
		service RegistroService
		req     models.CrearDesacoseRequest
		want    error
	}{
		{
			name: "mismo galpón",
			req:  models.CrearDesacoseRequest{GalponOrigenID: origen.ID, GalponDestinoID: origen.ID, CantidadAves: 1},
			want: apperror.ErrValidation,
		},
		{
			name: "más aves que el saldo",
			req:  models.CrearDesacoseRequest{GalponOrigenID: origen.ID, GalponDestinoID: destino.ID, CantidadAves: 101},
			want: apperror.ErrNegativeBalance,
		},
		{
			name: "destino inexistente",
			req:  models.CrearDesacoseRequest{GalponOrigenID: origen.ID, GalponDestinoID: 9999, CantidadAves: 10},
			want: apperror.ErrNotFound,
		},
		{
			name: "registros posteriores a la fecha",
			req:  models.CrearDesacoseRequest{GalponOrigenID: conPosterior.ID, GalponDestinoID: destino.ID, CantidadAves: 10},
			want: apperror.ErrConflict,
		},
		{
			name:    "falla al guardar el movimiento",
			service: NewRegistroService(desacoseRoto{f.store}, nil, nil, nil, zap.NewNop()),
			req:     models.CrearDesacoseRequest{GalponOrigenID: origen.ID, GalponDestinoID: destino.ID, CantidadAves: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tt.service
			if svc == nil {
				svc = f.registros
			}
			req := tt.req
			req.Fecha = &fecha

			_, err := svc.RegistrarDesacose(ctx, &req)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			// nada quedó escrito en ningún galpón
			for _, id := range []int{origen.ID, destino.ID} {
				regs, err := f.store.ListRegistros(ctx, &models.RegistroFilter{GalponID: intPtr(id)})
				require.NoError(t, err)
				assert.Empty(t, regs)
			}
			desacoses, err := f.store.ListDesacoses(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, desacoses)
		})
	}
}
