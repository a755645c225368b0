package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockStore arma un PostgresStore sobre sqlmock con solo las sentencias indicadas
func newMockStore(t *testing.T, names ...string) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := make(map[string]*sql.Stmt, len(names))
	for _, name := range names {
		query, ok := statements[name]
		require.True(t, ok, name)
		mock.ExpectPrepare(query)
		stmt, err := db.Prepare(query)
		require.NoError(t, err)
		stmts[name] = stmt
	}
	return &PostgresStore{pgQueries: &pgQueries{db: db, stmts: stmts}, db: db}, mock
}

func pqError(code pq.ErrorCode, constraint string) *pq.Error {
	return &pq.Error{Code: code, Constraint: constraint}
}

func TestNewPostgresStore_PreparaTodasLasSentencias(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// el mapa no tiene orden
	mock.MatchExpectationsInOrder(false)
	names := make([]string, 0, len(statements))
	for name := range statements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mock.ExpectPrepare(statements[name]).WillBeClosed()
	}

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	assert.Len(t, store.stmts, len(statements))

	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStore_FallaAlPreparar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(".*").WillReturnError(errors.New("syntax error"))

	_, err = NewPostgresStore(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare")
}

func TestPgQueries_StmtDesconocidaEntraEnPanico(t *testing.T) {
	store, _ := newMockStore(t)
	assert.Panics(t, func() {
		store.stmt(context.Background(), "no_existe")
	})
}

func TestPostgresStore_CreateAlertaSiNoExiste(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t, "create_alerta_si_no_existe")
	query := statements["create_alerta_si_no_existe"]

	// la guardia vive en el índice parcial de alertas abiertas
	assert.Contains(t, query, "ON CONFLICT (tipo, sujeto) WHERE atendida = FALSE DO NOTHING")

	galponID := 3
	fecha := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	nueva := func() *models.Alerta {
		return &models.Alerta{
			Tipo: models.AlertaMortalidadAlta, Severidad: models.SeveridadAlta,
			Mensaje: "mortalidad", GalponID: &galponID, Fecha: fecha,
		}
	}

	mock.ExpectQuery(query).
		WithArgs("mortalidad_alta", "alta", "mortalidad", int64(galponID), nil, "galpon:3", fecha).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	mock.ExpectQuery(query).
		WithArgs("mortalidad_alta", "alta", "mortalidad", int64(galponID), nil, "galpon:3", fecha).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	primera := nueva()
	creada, err := store.CreateAlertaSiNoExiste(ctx, primera)
	require.NoError(t, err)
	assert.True(t, creada)
	assert.Equal(t, 41, primera.ID)

	// DO NOTHING no devuelve filas: la alerta queda suprimida
	segunda := nueva()
	creada, err = store.CreateAlertaSiNoExiste(ctx, segunda)
	require.NoError(t, err)
	assert.False(t, creada)
	assert.Zero(t, segunda.ID)

	// sin sujeto no llega a la base
	_, err = store.CreateAlertaSiNoExiste(ctx, &models.Alerta{Tipo: models.AlertaStockBajo})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunInTxBloqueaLaFila(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t, "ensure_stock", "get_stock_for_update", "update_stock_cantidad")

	assert.True(t, strings.HasSuffix(strings.TrimSpace(statements["get_stock_for_update"]), "FOR UPDATE"))
	assert.Contains(t, statements["ensure_stock"], "ON CONFLICT (lote_id, bodega_id) DO NOTHING")

	now := time.Now()
	stockRows := func(cantidad float64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "lote_id", "bodega_id", "cantidad_actual", "created_at", "updated_at"}).
			AddRow(9, 1, 2, cantidad, now, now)
	}

	// las sentencias preparadas corren dentro de la transacción
	mock.ExpectBegin()
	mock.ExpectExec(statements["ensure_stock"]).WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(statements["get_stock_for_update"]).WithArgs(1, 2).WillReturnRows(stockRows(100))
	mock.ExpectExec(statements["update_stock_cantidad"]).WithArgs(40.0, 9).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// y siguen disponibles fuera de ella después del commit
	mock.ExpectQuery(statements["get_stock_for_update"]).WithArgs(1, 2).WillReturnRows(stockRows(40))

	err := store.RunInTx(ctx, func(q Queries) error {
		if err := q.EnsureStock(ctx, 1, 2); err != nil {
			return err
		}
		stock, err := q.GetStockForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		return q.UpdateStockCantidad(ctx, stock.ID, stock.CantidadActual-60)
	})
	require.NoError(t, err)

	stock, err := store.GetStockForUpdate(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 40.0, stock.CantidadActual)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunInTxRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("check de stock negativo", func(t *testing.T) {
		store, mock := newMockStore(t, "update_stock_cantidad")
		mock.ExpectBegin()
		mock.ExpectExec(statements["update_stock_cantidad"]).
			WithArgs(-5.0, 9).
			WillReturnError(pqError("23514", constraintStockCantidad))
		mock.ExpectRollback()

		err := store.RunInTx(ctx, func(q Queries) error {
			return q.UpdateStockCantidad(ctx, 9, -5)
		})
		assert.ErrorIs(t, err, apperror.ErrNegativeStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("panic", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = store.RunInTx(ctx, func(q Queries) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit fallido", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		err := store.RunInTx(ctx, func(q Queries) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_TraduceViolacionesDeUnicidad(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t, "create_lote", "create_registro", "create_bodega")

	mock.ExpectQuery(statements["create_lote"]).
		WillReturnError(pqError("23505", constraintLoteCodigo))
	mock.ExpectQuery(statements["create_registro"]).
		WillReturnError(pqError("23505", constraintRegistroFecha))
	mock.ExpectQuery(statements["create_bodega"]).
		WillReturnError(pqError("23505", constraintBodegaNombre))
	mock.ExpectQuery(statements["create_lote"]).
		WillReturnError(pqError("23505", "otro_constraint"))
	mock.ExpectQuery(statements["create_registro"]).
		WillReturnError(pqError("23503", "registros_diarios_galpon_id_fkey"))

	err := store.CreateLote(ctx, &models.Lote{Tipo: "inicio", CodigoLote: "L-1", FechaIngreso: time.Now()})
	assert.ErrorIs(t, err, apperror.ErrDuplicateLotCode)
	assert.Equal(t, apperror.CodeDuplicateLotCode, apperror.Code(err))

	err = store.CreateRegistro(ctx, &models.RegistroDiario{GalponID: 1, Fecha: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, apperror.ErrDuplicateRecord)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "2024-03-02", appErr.Details["fecha"])

	err = store.CreateBodega(ctx, &models.Bodega{GranjaID: 1, Nombre: "Norte"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// otra unicidad cae en el CONFLICT genérico
	err = store.CreateLote(ctx, &models.Lote{Tipo: "inicio", CodigoLote: "L-2", FechaIngreso: time.Now()})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.NotErrorIs(t, err, apperror.ErrDuplicateLotCode)

	err = store.CreateRegistro(ctx, &models.RegistroDiario{GalponID: 99, Fecha: time.Now()})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDevuelveNilSinFilas(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t, "get_lote", "get_desacose")

	mock.ExpectQuery(statements["get_lote"]).WithArgs(7).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(statements["get_desacose"]).WithArgs(8).WillReturnRows(sqlmock.NewRows(nil))

	lote, err := store.GetLote(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, lote)

	d, err := store.GetDesacose(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, d)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDesacosesFiltraPorGalpon(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	fecha := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT " + desacoseColumns + " FROM desacose WHERE (galpon_origen_id = $1 OR galpon_destino_id = $2) ORDER BY fecha DESC, id DESC LIMIT 100 OFFSET 0").
		WithArgs(4, 4).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "galpon_origen_id", "galpon_destino_id", "fecha", "cantidad_aves",
			"motivo", "observaciones", "realizado_por", "created_at",
		}).AddRow(1, 4, 5, fecha, 120, "densidad", "", nil, fecha))

	desacoses, err := store.ListDesacoses(ctx, &models.DesacoseFilter{GalponID: intRef(4)})
	require.NoError(t, err)
	require.Len(t, desacoses, 1)
	assert.Equal(t, 120, desacoses[0].CantidadAves)
	assert.Nil(t, desacoses[0].RealizadoPor)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func intRef(v int) *int { return &v }
