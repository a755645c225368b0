package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"avicola-service/internal/apperror"
	"avicola-service/internal/models"

	sq "github.com/Masterminds/squirrel"
)

const alertaColumns = `id, tipo, severidad, mensaje, galpon_id, lote_id, fecha, atendida,
	atendida_por, fecha_atencion`

var alertaStatements = map[string]string{
	// El índice parcial alertas_abierta_tipo_sujeto_key hace de guardia de idempotencia
	"create_alerta_si_no_existe": `
		INSERT INTO alertas (tipo, severidad, mensaje, galpon_id, lote_id, sujeto, fecha, atendida)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		ON CONFLICT (tipo, sujeto) WHERE atendida = FALSE DO NOTHING
		RETURNING id
	`,
	"get_alerta": `
		SELECT ` + alertaColumns + `
		FROM alertas
		WHERE id = $1
	`,
	"resolver_alerta": `
		UPDATE alertas
		SET atendida = TRUE, atendida_por = $1, fecha_atencion = $2
		WHERE id = $3 AND atendida = FALSE
	`,
	"delete_alerta": `
		DELETE FROM alertas
		WHERE id = $1
	`,
	"count_alertas_pendientes": `
		SELECT severidad, COUNT(*)
		FROM alertas
		WHERE atendida = FALSE
		GROUP BY severidad
	`,
}

func scanAlerta(row scanner) (*models.Alerta, error) {
	var (
		alerta                        models.Alerta
		galponID, loteID, atendidaPor sql.NullInt64
		fechaAtencion                 sql.NullTime
	)
	err := row.Scan(
		&alerta.ID, &alerta.Tipo, &alerta.Severidad, &alerta.Mensaje, &galponID, &loteID,
		&alerta.Fecha, &alerta.Atendida, &atendidaPor, &fechaAtencion,
	)
	if err != nil {
		return nil, err
	}
	alerta.GalponID = intPtr(galponID)
	alerta.LoteID = intPtr(loteID)
	alerta.AtendidaPor = intPtr(atendidaPor)
	if fechaAtencion.Valid {
		t := fechaAtencion.Time
		alerta.FechaAtencion = &t
	}
	return &alerta, nil
}

// CreateAlertaSiNoExiste inserta la alerta salvo que ya haya una abierta del mismo
// (tipo, sujeto). Devuelve false si fue suprimida.
func (q *pgQueries) CreateAlertaSiNoExiste(ctx context.Context, alerta *models.Alerta) (bool, error) {
	sujeto := alerta.Sujeto()
	if sujeto == "" {
		return false, apperror.NewValidation("la alerta requiere galpón o lote")
	}

	err := q.stmt(ctx, "create_alerta_si_no_existe").QueryRowContext(ctx,
		alerta.Tipo, alerta.Severidad, alerta.Mensaje, nullInt(alerta.GalponID), nullInt(alerta.LoteID),
		sujeto, alerta.Fecha,
	).Scan(&alerta.ID)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, translateError(err, "create alerta")
	}
	alerta.Atendida = false
	return true, nil
}

// GetAlerta obtiene una alerta por id
func (q *pgQueries) GetAlerta(ctx context.Context, id int) (*models.Alerta, error) {
	alerta, err := scanAlerta(q.stmt(ctx, "get_alerta").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alerta: %w", err)
	}
	return alerta, nil
}

// ResolverAlerta marca la alerta como atendida; false si no existe o ya estaba atendida
func (q *pgQueries) ResolverAlerta(ctx context.Context, id, usuarioID int, fecha time.Time) (bool, error) {
	result, err := q.stmt(ctx, "resolver_alerta").ExecContext(ctx, usuarioID, fecha, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alerta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteAlerta borra una alerta; false si no existía
func (q *pgQueries) DeleteAlerta(ctx context.Context, id int) (bool, error) {
	result, err := q.stmt(ctx, "delete_alerta").ExecContext(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete alerta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListAlertas lista primero las abiertas, luego por severidad y fecha
func (q *pgQueries) ListAlertas(ctx context.Context, filter *models.AlertaFilter) ([]*models.Alerta, error) {
	if filter == nil {
		filter = &models.AlertaFilter{}
	}

	builder := psql.Select(alertaColumns).
		From("alertas").
		OrderBy(
			"atendida ASC",
			"CASE severidad WHEN 'alta' THEN 0 WHEN 'media' THEN 1 ELSE 2 END",
			"fecha DESC",
			"id DESC",
		).
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(filter.Offset))

	if filter.Atendida != nil {
		builder = builder.Where(sq.Eq{"atendida": *filter.Atendida})
	}
	if filter.Severidad != nil {
		builder = builder.Where(sq.Eq{"severidad": string(*filter.Severidad)})
	}
	if filter.Tipo != nil {
		builder = builder.Where(sq.Eq{"tipo": string(*filter.Tipo)})
	}
	if filter.GalponID != nil {
		builder = builder.Where(sq.Eq{"galpon_id": *filter.GalponID})
	}
	if filter.LoteID != nil {
		builder = builder.Where(sq.Eq{"lote_id": *filter.LoteID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build alertas query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alertas: %w", err)
	}
	defer rows.Close()

	alertas := make([]*models.Alerta, 0)
	for rows.Next() {
		alerta, err := scanAlerta(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alerta: %w", err)
		}
		alertas = append(alertas, alerta)
	}
	return alertas, rows.Err()
}

// CountAlertasPendientes cuenta las alertas abiertas por severidad
func (q *pgQueries) CountAlertasPendientes(ctx context.Context) (map[models.Severidad]int, error) {
	rows, err := q.stmt(ctx, "count_alertas_pendientes").QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count alertas: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Severidad]int)
	for rows.Next() {
		var (
			severidad models.Severidad
			count     int
		)
		if err := rows.Scan(&severidad, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alerta count: %w", err)
		}
		counts[severidad] = count
	}
	return counts, rows.Err()
}
