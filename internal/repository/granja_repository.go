package repository

import (
	"context"
	"database/sql"
	"fmt"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const bodegaColumns = `id, granja_id, nombre, COALESCE(ubicacion, ''), activo, created_at, updated_at`

const galponColumns = `id, granja_id, numero, COALESCE(nombre, ''), aves_iniciales, capacidad,
	fecha_inicio, bodega_id, galpon_padre_id, COALESCE(division_sufijo, ''), activo, created_at, updated_at`

var granjaStatements = map[string]string{
	"get_bodega": `
		SELECT ` + bodegaColumns + `
		FROM bodegas
		WHERE id = $1
	`,
	"create_bodega": `
		INSERT INTO bodegas (granja_id, nombre, ubicacion, activo)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`,
	"update_bodega": `
		UPDATE bodegas
		SET nombre = $1, ubicacion = $2, activo = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`,
	"get_galpon": `
		SELECT ` + galponColumns + `
		FROM galpones
		WHERE id = $1
	`,
	"create_galpon": `
		INSERT INTO galpones
		(granja_id, numero, nombre, aves_iniciales, capacidad, fecha_inicio, bodega_id,
		 galpon_padre_id, division_sufijo, activo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`,
	"update_galpon_bodega": `
		UPDATE galpones
		SET bodega_id = $1, updated_at = NOW()
		WHERE id = $2
	`,
	"count_divisiones": `
		SELECT COUNT(*)
		FROM galpones
		WHERE galpon_padre_id = $1
	`,
}

func scanBodega(row scanner) (*models.Bodega, error) {
	var bodega models.Bodega
	err := row.Scan(
		&bodega.ID, &bodega.GranjaID, &bodega.Nombre, &bodega.Ubicacion, &bodega.Activo,
		&bodega.CreatedAt, &bodega.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bodega, nil
}

func scanGalpon(row scanner) (*models.Galpon, error) {
	var (
		galpon            models.Galpon
		bodegaID, padreID sql.NullInt64
	)
	err := row.Scan(
		&galpon.ID, &galpon.GranjaID, &galpon.Numero, &galpon.Nombre, &galpon.AvesIniciales,
		&galpon.Capacidad, &galpon.FechaInicio, &bodegaID, &padreID, &galpon.DivisionSufijo,
		&galpon.Activo, &galpon.CreatedAt, &galpon.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	galpon.BodegaID = intPtr(bodegaID)
	galpon.GalponPadreID = intPtr(padreID)
	return &galpon, nil
}

// GetBodega obtiene una bodega por id
func (q *pgQueries) GetBodega(ctx context.Context, id int) (*models.Bodega, error) {
	bodega, err := scanBodega(q.stmt(ctx, "get_bodega").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bodega: %w", err)
	}
	return bodega, nil
}

// CreateBodega inserta una bodega; el nombre es único por granja
func (q *pgQueries) CreateBodega(ctx context.Context, bodega *models.Bodega) error {
	err := q.stmt(ctx, "create_bodega").QueryRowContext(ctx,
		bodega.GranjaID, bodega.Nombre, nullString(bodega.Ubicacion), bodega.Activo,
	).Scan(&bodega.ID, &bodega.CreatedAt, &bodega.UpdatedAt)

	if isUniqueViolation(err, constraintBodegaNombre) {
		return apperror.NewConflict("ya existe una bodega con ese nombre en la granja").
			WithDetail("nombre", bodega.Nombre).
			WithCause(err)
	}
	if err != nil {
		return translateError(err, "create bodega")
	}
	return nil
}

// UpdateBodega actualiza nombre, ubicación y estado
func (q *pgQueries) UpdateBodega(ctx context.Context, bodega *models.Bodega) error {
	err := q.stmt(ctx, "update_bodega").QueryRowContext(ctx,
		bodega.Nombre, nullString(bodega.Ubicacion), bodega.Activo, bodega.ID,
	).Scan(&bodega.UpdatedAt)

	if err == sql.ErrNoRows {
		return apperror.NewNotFound("bodega", bodega.ID)
	}
	if isUniqueViolation(err, constraintBodegaNombre) {
		return apperror.NewConflict("ya existe una bodega con ese nombre en la granja").
			WithDetail("nombre", bodega.Nombre).
			WithCause(err)
	}
	if err != nil {
		return translateError(err, "update bodega")
	}
	return nil
}

// ListBodegas lista bodegas por granja y estado
func (q *pgQueries) ListBodegas(ctx context.Context, filter *models.BodegaFilter) ([]*models.Bodega, error) {
	builder := psql.Select(bodegaColumns).From("bodegas").OrderBy("granja_id", "nombre")
	if filter != nil {
		if filter.GranjaID != nil {
			builder = builder.Where(sq.Eq{"granja_id": *filter.GranjaID})
		}
		if filter.Activo != nil {
			builder = builder.Where(sq.Eq{"activo": *filter.Activo})
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bodegas query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bodegas: %w", err)
	}
	defer rows.Close()

	bodegas := make([]*models.Bodega, 0)
	for rows.Next() {
		bodega, err := scanBodega(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bodega: %w", err)
		}
		bodegas = append(bodegas, bodega)
	}
	return bodegas, rows.Err()
}

// GetGalpon obtiene un galpón por id
func (q *pgQueries) GetGalpon(ctx context.Context, id int) (*models.Galpon, error) {
	galpon, err := scanGalpon(q.stmt(ctx, "get_galpon").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get galpon: %w", err)
	}
	return galpon, nil
}

// CreateGalpon inserta un galpón o una división A/B
func (q *pgQueries) CreateGalpon(ctx context.Context, galpon *models.Galpon) error {
	err := q.stmt(ctx, "create_galpon").QueryRowContext(ctx,
		galpon.GranjaID, galpon.Numero, nullString(galpon.Nombre), galpon.AvesIniciales,
		galpon.Capacidad, galpon.FechaInicio, nullInt(galpon.BodegaID), nullInt(galpon.GalponPadreID),
		nullString(galpon.DivisionSufijo), galpon.Activo,
	).Scan(&galpon.ID, &galpon.CreatedAt, &galpon.UpdatedAt)

	if isUniqueViolation(err, constraintGalponNumero) {
		return apperror.NewConflict("ya existe un galpón con ese número en la granja").
			WithDetail("numero", galpon.Numero).
			WithDetail("division_sufijo", galpon.DivisionSufijo).
			WithCause(err)
	}
	if err != nil {
		return translateError(err, "create galpon")
	}
	return nil
}

// UpdateGalponBodega asigna (o quita con nil) la bodega de consumo
func (q *pgQueries) UpdateGalponBodega(ctx context.Context, id int, bodegaID *int) error {
	result, err := q.stmt(ctx, "update_galpon_bodega").ExecContext(ctx, nullInt(bodegaID), id)
	if err != nil {
		return translateError(err, "update galpon bodega")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NewNotFound("galpón", id)
	}
	return nil
}

// ListGalpones lista galpones ordenados por número y sufijo
func (q *pgQueries) ListGalpones(ctx context.Context, filter *models.GalponFilter) ([]*models.Galpon, error) {
	builder := psql.Select(galponColumns).
		From("galpones").
		OrderBy("granja_id", "numero", "COALESCE(division_sufijo, '')")
	if filter != nil {
		if filter.GranjaID != nil {
			builder = builder.Where(sq.Eq{"granja_id": *filter.GranjaID})
		}
		if filter.Activo != nil {
			builder = builder.Where(sq.Eq{"activo": *filter.Activo})
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build galpones query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list galpones: %w", err)
	}
	defer rows.Close()

	galpones := make([]*models.Galpon, 0)
	for rows.Next() {
		galpon, err := scanGalpon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan galpon: %w", err)
		}
		galpones = append(galpones, galpon)
	}
	return galpones, rows.Err()
}

// CountDivisiones cuenta las divisiones hijas de un galpón
func (q *pgQueries) CountDivisiones(ctx context.Context, galponPadreID int) (int, error) {
	var count int
	if err := q.stmt(ctx, "count_divisiones").QueryRowContext(ctx, galponPadreID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count divisiones: %w", err)
	}
	return count, nil
}
