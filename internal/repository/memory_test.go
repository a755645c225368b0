package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLoteBodega(t *testing.T, store *MemoryStore) (*models.Lote, *models.Bodega) {
	t.Helper()
	ctx := context.Background()

	bodega := &models.Bodega{GranjaID: 1, Nombre: "Bodega Norte", Activo: true}
	require.NoError(t, store.CreateBodega(ctx, bodega))

	lote := &models.Lote{Tipo: "inicio", CodigoLote: "L-001", CantidadInicial: 1000, FechaIngreso: time.Now()}
	require.NoError(t, store.CreateLote(ctx, lote))
	return lote, bodega
}

func TestMemoryStore_RunInTxRollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lote, bodega := seedLoteBodega(t, store)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(q Queries) error {
		require.NoError(t, q.EnsureStock(ctx, lote.ID, bodega.ID))
		stock, err := q.GetStockForUpdate(ctx, lote.ID, bodega.ID)
		require.NoError(t, err)
		require.NoError(t, q.UpdateStockCantidad(ctx, stock.ID, 500))
		require.NoError(t, q.UpdateLoteCantidad(ctx, lote.ID, 500))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stock, err := store.GetStockForUpdate(ctx, lote.ID, bodega.ID)
	require.NoError(t, err)
	assert.Nil(t, stock)

	reloaded, err := store.GetLote(ctx, lote.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reloaded.CantidadActual)
}

func TestMemoryStore_RunInTxCommitPublishesChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lote, bodega := seedLoteBodega(t, store)

	err := store.RunInTx(ctx, func(q Queries) error {
		if err := q.EnsureStock(ctx, lote.ID, bodega.ID); err != nil {
			return err
		}
		stock, err := q.GetStockForUpdate(ctx, lote.ID, bodega.ID)
		if err != nil {
			return err
		}
		return q.UpdateStockCantidad(ctx, stock.ID, 250.5)
	})
	require.NoError(t, err)

	total, err := store.SumStockByLote(ctx, lote.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.5, total)

	stocks, err := store.GetStockByLote(ctx, lote.ID)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "Bodega Norte", stocks[0].NombreBodega)
	assert.Equal(t, "L-001", stocks[0].CodigoLote)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lote, _ := seedLoteBodega(t, store)

	got, err := store.GetLote(ctx, lote.ID)
	require.NoError(t, err)
	got.CantidadActual = 999

	again, err := store.GetLote(ctx, lote.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.CantidadActual)
}

func TestMemoryStore_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedLoteBodega(t, store)

	err := store.CreateLote(ctx, &models.Lote{Tipo: "engorde", CodigoLote: "L-001", CantidadInicial: 10})
	assert.ErrorIs(t, err, apperror.ErrDuplicateLotCode)

	err = store.CreateBodega(ctx, &models.Bodega{GranjaID: 1, Nombre: "Bodega Norte"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// mismo nombre en otra granja es válido
	require.NoError(t, store.CreateBodega(ctx, &models.Bodega{GranjaID: 2, Nombre: "Bodega Norte"}))

	galpon := &models.Galpon{GranjaID: 1, Numero: 1, AvesIniciales: 1000}
	require.NoError(t, store.CreateGalpon(ctx, galpon))

	fecha := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	require.NoError(t, store.CreateRegistro(ctx, &models.RegistroDiario{GalponID: galpon.ID, Fecha: fecha}))
	err = store.CreateRegistro(ctx, &models.RegistroDiario{GalponID: galpon.ID, Fecha: fecha.Add(2 * time.Hour)})
	assert.ErrorIs(t, err, apperror.ErrDuplicateRecord)
}

func TestMemoryStore_AlertaGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lote, _ := seedLoteBodega(t, store)

	nueva := func() *models.Alerta {
		return &models.Alerta{
			Tipo: models.AlertaStockBajo, Severidad: models.SeveridadMedia,
			Mensaje: "Stock bajo", LoteID: &lote.ID, Fecha: time.Now(),
		}
	}

	first := nueva()
	created, err := store.CreateAlertaSiNoExiste(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateAlertaSiNoExiste(ctx, nueva())
	require.NoError(t, err)
	assert.False(t, created)

	// otro tipo para el mismo lote no se suprime
	otra := nueva()
	otra.Tipo = models.AlertaConsumoAnormal
	created, err = store.CreateAlertaSiNoExiste(ctx, otra)
	require.NoError(t, err)
	assert.True(t, created)

	ok, err := store.ResolverAlerta(ctx, first.ID, 7, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ResolverAlerta(ctx, first.ID, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	created, err = store.CreateAlertaSiNoExiste(ctx, nueva())
	require.NoError(t, err)
	assert.True(t, created)

	_, err = store.CreateAlertaSiNoExiste(ctx, &models.Alerta{Tipo: models.AlertaStockBajo})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestMemoryStore_ListAlertasOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	galpon := &models.Galpon{GranjaID: 1, Numero: 1}
	require.NoError(t, store.CreateGalpon(ctx, galpon))

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tipos := []models.TipoAlerta{
		models.AlertaMortalidadAlta, models.AlertaPesoAnormal, models.AlertaConsumoAnormal, models.AlertaStockBajo,
	}
	severidades := []models.Severidad{
		models.SeveridadBaja, models.SeveridadAlta, models.SeveridadMedia, models.SeveridadAlta,
	}
	ids := make([]int, len(tipos))
	for i := range tipos {
		alerta := &models.Alerta{
			Tipo: tipos[i], Severidad: severidades[i], Mensaje: "x",
			GalponID: &galpon.ID, Fecha: base.Add(time.Duration(i) * time.Hour),
		}
		_, err := store.CreateAlertaSiNoExiste(ctx, alerta)
		require.NoError(t, err)
		ids[i] = alerta.ID
	}
	_, err := store.ResolverAlerta(ctx, ids[3], 1, time.Now())
	require.NoError(t, err)

	alertas, err := store.ListAlertas(ctx, nil)
	require.NoError(t, err)
	require.Len(t, alertas, 4)
	assert.Equal(t, []int{ids[1], ids[2], ids[0], ids[3]},
		[]int{alertas[0].ID, alertas[1].ID, alertas[2].ID, alertas[3].ID})

	counts, err := store.CountAlertasPendientes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Severidad]int{
		models.SeveridadAlta: 1, models.SeveridadMedia: 1, models.SeveridadBaja: 1,
	}, counts)
}

func TestMemoryStore_ListRegistrosAnteriores(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	galpon := &models.Galpon{GranjaID: 1, Numero: 3}
	require.NoError(t, store.CreateGalpon(ctx, galpon))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.CreateRegistro(ctx, &models.RegistroDiario{
			GalponID: galpon.ID, Fecha: start.AddDate(0, 0, i), EdadDias: i + 1,
		}))
	}

	anteriores, err := store.ListRegistrosAnteriores(ctx, galpon.ID, start.AddDate(0, 0, 4), 3)
	require.NoError(t, err)
	require.Len(t, anteriores, 3)
	assert.Equal(t, 4, anteriores[0].EdadDias)
	assert.Equal(t, 2, anteriores[2].EdadDias)

	ultimo, err := store.GetUltimoRegistro(ctx, galpon.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, ultimo.EdadDias)
}
