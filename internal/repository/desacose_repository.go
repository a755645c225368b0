package repository

import (
	"context"
	"database/sql"
	"fmt"

	"avicola-service/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const desacoseColumns = `id, galpon_origen_id, galpon_destino_id, fecha, cantidad_aves,
	COALESCE(motivo, ''), COALESCE(observaciones, ''), realizado_por, created_at`

var desacoseStatements = map[string]string{
	"create_desacose": `
		INSERT INTO desacose
		(galpon_origen_id, galpon_destino_id, fecha, cantidad_aves, motivo, observaciones, realizado_por)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
	"get_desacose": `
		SELECT ` + desacoseColumns + `
		FROM desacose
		WHERE id = $1
	`,
}

func scanDesacose(row scanner) (*models.Desacose, error) {
	var (
		d            models.Desacose
		realizadoPor sql.NullInt64
	)
	err := row.Scan(
		&d.ID, &d.GalponOrigenID, &d.GalponDestinoID, &d.Fecha, &d.CantidadAves,
		&d.Motivo, &d.Observaciones, &realizadoPor, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Fecha = DateOnly(d.Fecha)
	d.RealizadoPor = intPtr(realizadoPor)
	return &d, nil
}

// CreateDesacose inserta el movimiento de aves
func (q *pgQueries) CreateDesacose(ctx context.Context, d *models.Desacose) error {
	d.Fecha = DateOnly(d.Fecha)
	err := q.stmt(ctx, "create_desacose").QueryRowContext(ctx,
		d.GalponOrigenID, d.GalponDestinoID, d.Fecha, d.CantidadAves,
		nullString(d.Motivo), nullString(d.Observaciones), nullInt(d.RealizadoPor),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return translateError(err, "create desacose")
	}
	return nil
}

// GetDesacose obtiene un movimiento por id
func (q *pgQueries) GetDesacose(ctx context.Context, id int) (*models.Desacose, error) {
	d, err := scanDesacose(q.stmt(ctx, "get_desacose").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get desacose: %w", err)
	}
	return d, nil
}

// ListDesacoses consulta dinámica de movimientos, más recientes primero
func (q *pgQueries) ListDesacoses(ctx context.Context, filter *models.DesacoseFilter) ([]*models.Desacose, error) {
	if filter == nil {
		filter = &models.DesacoseFilter{}
	}

	builder := psql.Select(desacoseColumns).
		From("desacose").
		OrderBy("fecha DESC", "id DESC").
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(filter.Offset))

	if filter.GalponID != nil {
		builder = builder.Where(sq.Or{
			sq.Eq{"galpon_origen_id": *filter.GalponID},
			sq.Eq{"galpon_destino_id": *filter.GalponID},
		})
	}
	if filter.FechaDesde != nil {
		builder = builder.Where(sq.GtOrEq{"fecha": DateOnly(*filter.FechaDesde)})
	}
	if filter.FechaHasta != nil {
		builder = builder.Where(sq.LtOrEq{"fecha": DateOnly(*filter.FechaHasta)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build desacose query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query desacose: %w", err)
	}
	defer rows.Close()

	desacoses := make([]*models.Desacose, 0)
	for rows.Next() {
		d, err := scanDesacose(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan desacose: %w", err)
		}
		desacoses = append(desacoses, d)
	}
	return desacoses, rows.Err()
}
