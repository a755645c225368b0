package repository

import (
	"context"
	"database/sql"
	"fmt"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const loteColumns = `id, tipo, codigo_lote, cantidad_inicial, cantidad_actual, fecha_ingreso,
	COALESCE(proveedor, ''), created_at, updated_at`

const stockColumns = `id, lote_id, bodega_id, cantidad_actual, created_at, updated_at`

const movimientoColumns = `id, lote_id, tipo_movimiento, cantidad, galpon_id, bodega_id,
	bodega_origen_id, bodega_destino_id, fecha, COALESCE(observaciones, ''), created_at`

var stockStatements = map[string]string{
	"get_lote": `
		SELECT ` + loteColumns + `
		FROM lotes_alimento
		WHERE id = $1
	`,
	"get_lote_by_codigo": `
		SELECT ` + loteColumns + `
		FROM lotes_alimento
		WHERE codigo_lote = $1
	`,
	"create_lote": `
		INSERT INTO lotes_alimento
		(tipo, codigo_lote, cantidad_inicial, cantidad_actual, fecha_ingreso, proveedor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`,
	"update_lote_cantidad": `
		UPDATE lotes_alimento
		SET cantidad_actual = $1, updated_at = NOW()
		WHERE id = $2
	`,
	"ensure_stock": `
		INSERT INTO stock_lote_bodega (lote_id, bodega_id, cantidad_actual)
		VALUES ($1, $2, 0)
		ON CONFLICT (lote_id, bodega_id) DO NOTHING
	`,
	"get_stock_for_update": `
		SELECT ` + stockColumns + `
		FROM stock_lote_bodega
		WHERE lote_id = $1 AND bodega_id = $2
		FOR UPDATE
	`,
	"update_stock_cantidad": `
		UPDATE stock_lote_bodega
		SET cantidad_actual = $1, updated_at = NOW()
		WHERE id = $2
	`,
	"sum_stock_by_lote": `
		SELECT COALESCE(SUM(cantidad_actual), 0)
		FROM stock_lote_bodega
		WHERE lote_id = $1
	`,
	"get_stock_by_lote": `
		SELECT s.id, s.lote_id, s.bodega_id, s.cantidad_actual, s.created_at, s.updated_at,
			   l.codigo_lote, l.tipo, b.nombre
		FROM stock_lote_bodega s
		JOIN lotes_alimento l ON l.id = s.lote_id
		JOIN bodegas b ON b.id = s.bodega_id
		WHERE s.lote_id = $1
		ORDER BY b.nombre
	`,
	"get_stock_by_bodega": `
		SELECT s.id, s.lote_id, s.bodega_id, s.cantidad_actual, s.created_at, s.updated_at,
			   l.codigo_lote, l.tipo, b.nombre
		FROM stock_lote_bodega s
		JOIN lotes_alimento l ON l.id = s.lote_id
		JOIN bodegas b ON b.id = s.bodega_id
		WHERE s.bodega_id = $1 AND s.cantidad_actual > 0
		ORDER BY l.fecha_ingreso, l.codigo_lote
	`,
	"create_movimiento": `
		INSERT INTO inventario_alimento
		(lote_id, tipo_movimiento, cantidad, galpon_id, bodega_id, bodega_origen_id,
		 bodega_destino_id, fecha, observaciones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`,
}

func scanLote(row scanner) (*models.Lote, error) {
	var lote models.Lote
	err := row.Scan(
		&lote.ID, &lote.Tipo, &lote.CodigoLote, &lote.CantidadInicial, &lote.CantidadActual,
		&lote.FechaIngreso, &lote.Proveedor, &lote.CreatedAt, &lote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lote, nil
}

func scanStockWithDetails(row scanner) (*models.StockWithDetails, error) {
	var stock models.StockWithDetails
	err := row.Scan(
		&stock.ID, &stock.LoteID, &stock.BodegaID, &stock.CantidadActual, &stock.CreatedAt,
		&stock.UpdatedAt, &stock.CodigoLote, &stock.TipoAlimento, &stock.NombreBodega,
	)
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

func scanMovimiento(row scanner) (*models.Movimiento, error) {
	var (
		mov                              models.Movimiento
		galponID, bodegaID, origen, dest sql.NullInt64
	)
	err := row.Scan(
		&mov.ID, &mov.LoteID, &mov.TipoMovimiento, &mov.Cantidad, &galponID, &bodegaID,
		&origen, &dest, &mov.Fecha, &mov.Observaciones, &mov.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	mov.GalponID = intPtr(galponID)
	mov.BodegaID = intPtr(bodegaID)
	mov.BodegaOrigenID = intPtr(origen)
	mov.BodegaDestinoID = intPtr(dest)
	return &mov, nil
}

// GetLote obtiene un lote por id
func (q *pgQueries) GetLote(ctx context.Context, id int) (*models.Lote, error) {
	lote, err := scanLote(q.stmt(ctx, "get_lote").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lote: %w", err)
	}
	return lote, nil
}

// GetLoteByCodigo obtiene un lote por su código
func (q *pgQueries) GetLoteByCodigo(ctx context.Context, codigo string) (*models.Lote, error) {
	lote, err := scanLote(q.stmt(ctx, "get_lote_by_codigo").QueryRowContext(ctx, codigo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lote by codigo: %w", err)
	}
	return lote, nil
}

// CreateLote inserta el lote; un código repetido devuelve DUPLICATE_LOT_CODE
func (q *pgQueries) CreateLote(ctx context.Context, lote *models.Lote) error {
	err := q.stmt(ctx, "create_lote").QueryRowContext(ctx,
		lote.Tipo, lote.CodigoLote, lote.CantidadInicial, lote.CantidadActual,
		lote.FechaIngreso, nullString(lote.Proveedor),
	).Scan(&lote.ID, &lote.CreatedAt, &lote.UpdatedAt)

	if isUniqueViolation(err, constraintLoteCodigo) {
		return apperror.NewDuplicateLotCode(lote.CodigoLote).WithCause(err)
	}
	if err != nil {
		return translateError(err, "create lote")
	}
	return nil
}

// UpdateLoteCantidad persiste el total agregado del lote
func (q *pgQueries) UpdateLoteCantidad(ctx context.Context, id int, cantidad float64) error {
	result, err := q.stmt(ctx, "update_lote_cantidad").ExecContext(ctx, cantidad, id)
	if err != nil {
		return fmt.Errorf("failed to update lote cantidad: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NewNotFound("lote", id)
	}
	return nil
}

// ListLotes lista lotes con filtros opcionales
func (q *pgQueries) ListLotes(ctx context.Context, filter *models.LoteFilter) ([]*models.Lote, error) {
	if filter == nil {
		filter = &models.LoteFilter{}
	}

	builder := psql.Select(loteColumns).
		From("lotes_alimento").
		OrderBy("tipo", "fecha_ingreso DESC", "id DESC").
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(filter.Offset))

	if filter.Tipo != nil {
		builder = builder.Where(sq.Eq{"tipo": *filter.Tipo})
	}
	if filter.SoloActivos {
		builder = builder.Where(sq.Gt{"cantidad_actual": 0})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lotes query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lotes: %w", err)
	}
	defer rows.Close()

	lotes := make([]*models.Lote, 0)
	for rows.Next() {
		lote, err := scanLote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lote: %w", err)
		}
		lotes = append(lotes, lote)
	}
	return lotes, rows.Err()
}

// EnsureStock crea la fila (lote, bodega) en 0 si no existe
func (q *pgQueries) EnsureStock(ctx context.Context, loteID, bodegaID int) error {
	if _, err := q.stmt(ctx, "ensure_stock").ExecContext(ctx, loteID, bodegaID); err != nil {
		return translateError(err, "ensure stock")
	}
	return nil
}

// GetStockForUpdate lee la fila con bloqueo hasta el fin de la transacción
func (q *pgQueries) GetStockForUpdate(ctx context.Context, loteID, bodegaID int) (*models.StockLoteBodega, error) {
	var stock models.StockLoteBodega
	err := q.stmt(ctx, "get_stock_for_update").QueryRowContext(ctx, loteID, bodegaID).Scan(
		&stock.ID, &stock.LoteID, &stock.BodegaID, &stock.CantidadActual,
		&stock.CreatedAt, &stock.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &stock, nil
}

// UpdateStockCantidad fija la cantidad de una fila de stock
func (q *pgQueries) UpdateStockCantidad(ctx context.Context, id int, cantidad float64) error {
	result, err := q.stmt(ctx, "update_stock_cantidad").ExecContext(ctx, cantidad, id)
	if err != nil {
		return translateError(err, "update stock")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no stock record found with id %d", id)
	}
	return nil
}

// SumStockByLote suma el stock del lote en todas las bodegas
func (q *pgQueries) SumStockByLote(ctx context.Context, loteID int) (float64, error) {
	var total float64
	if err := q.stmt(ctx, "sum_stock_by_lote").QueryRowContext(ctx, loteID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum stock: %w", err)
	}
	return total, nil
}

// GetStockByLote obtiene el detalle por bodega de un lote
func (q *pgQueries) GetStockByLote(ctx context.Context, loteID int) ([]*models.StockWithDetails, error) {
	return q.queryStock(ctx, "get_stock_by_lote", loteID)
}

// GetStockByBodega obtiene los lotes con stock en una bodega
func (q *pgQueries) GetStockByBodega(ctx context.Context, bodegaID int) ([]*models.StockWithDetails, error) {
	return q.queryStock(ctx, "get_stock_by_bodega", bodegaID)
}

func (q *pgQueries) queryStock(ctx context.Context, name string, id int) ([]*models.StockWithDetails, error) {
	rows, err := q.stmt(ctx, name).QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	stocks := make([]*models.StockWithDetails, 0)
	for rows.Next() {
		stock, err := scanStockWithDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}
	return stocks, rows.Err()
}

// CreateMovimiento registra un movimiento de inventario
func (q *pgQueries) CreateMovimiento(ctx context.Context, mov *models.Movimiento) error {
	err := q.stmt(ctx, "create_movimiento").QueryRowContext(ctx,
		mov.LoteID, mov.TipoMovimiento, mov.Cantidad, nullInt(mov.GalponID), nullInt(mov.BodegaID),
		nullInt(mov.BodegaOrigenID), nullInt(mov.BodegaDestinoID), mov.Fecha, nullString(mov.Observaciones),
	).Scan(&mov.ID, &mov.CreatedAt)

	if err != nil {
		return translateError(err, "create movimiento")
	}
	return nil
}

// ListMovimientos consulta dinámica de movimientos, más recientes primero
func (q *pgQueries) ListMovimientos(ctx context.Context, filter *models.MovimientoFilter) ([]*models.Movimiento, error) {
	if filter == nil {
		filter = &models.MovimientoFilter{}
	}

	builder := psql.Select(movimientoColumns).
		From("inventario_alimento").
		OrderBy("fecha DESC", "id DESC").
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(filter.Offset))

	if filter.LoteID != nil {
		builder = builder.Where(sq.Eq{"lote_id": *filter.LoteID})
	}
	if filter.GalponID != nil {
		builder = builder.Where(sq.Eq{"galpon_id": *filter.GalponID})
	}
	if filter.TipoMovimiento != nil {
		builder = builder.Where(sq.Eq{"tipo_movimiento": string(*filter.TipoMovimiento)})
	}
	if filter.BodegaID != nil {
		id := *filter.BodegaID
		builder = builder.Where(sq.Or{
			sq.Eq{"bodega_id": id},
			sq.Eq{"bodega_origen_id": id},
			sq.Eq{"bodega_destino_id": id},
		})
	}
	if filter.FechaDesde != nil {
		builder = builder.Where(sq.GtOrEq{"fecha": *filter.FechaDesde})
	}
	if filter.FechaHasta != nil {
		builder = builder.Where(sq.LtOrEq{"fecha": *filter.FechaHasta})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build movimientos query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movimientos: %w", err)
	}
	defer rows.Close()

	movimientos := make([]*models.Movimiento, 0)
	for rows.Next() {
		mov, err := scanMovimiento(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movimiento: %w", err)
		}
		movimientos = append(movimientos, mov)
	}
	return movimientos, rows.Err()
}
