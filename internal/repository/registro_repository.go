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

const registroColumns = `id, galpon_id, fecha, edad_dias, consumo_kg, lote_id, mortalidad, seleccion,
	saldo_aves, peso_promedio, acumulado_alimento, temperatura, humedad,
	COALESCE(observaciones, ''), COALESCE(foto_factura, ''), COALESCE(foto_medidor, ''),
	created_at, updated_at`

var registroStatements = map[string]string{
	"get_registro": `
		SELECT ` + registroColumns + `
		FROM registros_diarios
		WHERE id = $1
	`,
	"get_registro_by_fecha": `
		SELECT ` + registroColumns + `
		FROM registros_diarios
		WHERE galpon_id = $1 AND fecha = $2
	`,
	"get_ultimo_registro": `
		SELECT ` + registroColumns + `
		FROM registros_diarios
		WHERE galpon_id = $1
		ORDER BY fecha DESC
		LIMIT 1
	`,
	"list_registros_anteriores": `
		SELECT ` + registroColumns + `
		FROM registros_diarios
		WHERE galpon_id = $1 AND fecha < $2
		ORDER BY fecha DESC
		LIMIT $3
	`,
	"create_registro": `
		INSERT INTO registros_diarios
		(galpon_id, fecha, edad_dias, consumo_kg, lote_id, mortalidad, seleccion, saldo_aves,
		 peso_promedio, acumulado_alimento, temperatura, humedad, observaciones,
		 foto_factura, foto_medidor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`,
	"update_registro": `
		UPDATE registros_diarios
		SET edad_dias = $1, consumo_kg = $2, mortalidad = $3, seleccion = $4, saldo_aves = $5,
			peso_promedio = $6, acumulado_alimento = $7, temperatura = $8, humedad = $9,
			observaciones = $10, foto_factura = $11, foto_medidor = $12, updated_at = NOW()
		WHERE id = $13
		RETURNING updated_at
	`,
	"delete_registro": `
		DELETE FROM registros_diarios
		WHERE id = $1
	`,
}

func scanRegistro(row scanner) (*models.RegistroDiario, error) {
	var (
		reg                        models.RegistroDiario
		loteID                     sql.NullInt64
		peso, temperatura, humedad sql.NullFloat64
	)
	err := row.Scan(
		&reg.ID, &reg.GalponID, &reg.Fecha, &reg.EdadDias, &reg.ConsumoKg, &loteID, &reg.Mortalidad,
		&reg.Seleccion, &reg.SaldoAves, &peso, &reg.AcumuladoAlimento, &temperatura, &humedad,
		&reg.Observaciones, &reg.FotoFactura, &reg.FotoMedidor, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.Fecha = DateOnly(reg.Fecha)
	reg.LoteID = intPtr(loteID)
	reg.PesoPromedio = floatPtr(peso)
	reg.Temperatura = floatPtr(temperatura)
	reg.Humedad = floatPtr(humedad)
	return &reg, nil
}

func (q *pgQueries) queryRegistros(rows *sql.Rows, err error) ([]*models.RegistroDiario, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query registros: %w", err)
	}
	defer rows.Close()

	registros := make([]*models.RegistroDiario, 0)
	for rows.Next() {
		reg, err := scanRegistro(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registro: %w", err)
		}
		registros = append(registros, reg)
	}
	return registros, rows.Err()
}

// GetRegistro obtiene un registro por id
func (q *pgQueries) GetRegistro(ctx context.Context, id int) (*models.RegistroDiario, error) {
	reg, err := scanRegistro(q.stmt(ctx, "get_registro").QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registro: %w", err)
	}
	return reg, nil
}

// GetRegistroByFecha obtiene el registro de un galpón para una fecha
func (q *pgQueries) GetRegistroByFecha(ctx context.Context, galponID int, fecha time.Time) (*models.RegistroDiario, error) {
	reg, err := scanRegistro(q.stmt(ctx, "get_registro_by_fecha").QueryRowContext(ctx, galponID, DateOnly(fecha)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registro by fecha: %w", err)
	}
	return reg, nil
}

// GetUltimoRegistro obtiene el registro más reciente del galpón
func (q *pgQueries) GetUltimoRegistro(ctx context.Context, galponID int) (*models.RegistroDiario, error) {
	reg, err := scanRegistro(q.stmt(ctx, "get_ultimo_registro").QueryRowContext(ctx, galponID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ultimo registro: %w", err)
	}
	return reg, nil
}

// ListRegistrosAnteriores devuelve hasta limit registros con fecha < antesDe, más recientes primero
func (q *pgQueries) ListRegistrosAnteriores(ctx context.Context, galponID int, antesDe time.Time, limit int) ([]*models.RegistroDiario, error) {
	rows, err := q.stmt(ctx, "list_registros_anteriores").QueryContext(ctx, galponID, DateOnly(antesDe), limit)
	return q.queryRegistros(rows, err)
}

// CreateRegistro inserta el registro diario; (galpón, fecha) repetido devuelve DUPLICATE_RECORD
func (q *pgQueries) CreateRegistro(ctx context.Context, reg *models.RegistroDiario) error {
	reg.Fecha = DateOnly(reg.Fecha)
	err := q.stmt(ctx, "create_registro").QueryRowContext(ctx,
		reg.GalponID, reg.Fecha, reg.EdadDias, reg.ConsumoKg, nullInt(reg.LoteID), reg.Mortalidad,
		reg.Seleccion, reg.SaldoAves, nullFloat(reg.PesoPromedio), reg.AcumuladoAlimento,
		nullFloat(reg.Temperatura), nullFloat(reg.Humedad), nullString(reg.Observaciones),
		nullString(reg.FotoFactura), nullString(reg.FotoMedidor),
	).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)

	if isUniqueViolation(err, constraintRegistroFecha) {
		return apperror.NewDuplicateRecord(reg.GalponID, reg.Fecha.Format("2006-01-02")).WithCause(err)
	}
	if err != nil {
		return translateError(err, "create registro")
	}
	return nil
}

// UpdateRegistro actualiza los campos medidos; galpón, fecha y lote no cambian
func (q *pgQueries) UpdateRegistro(ctx context.Context, reg *models.RegistroDiario) error {
	err := q.stmt(ctx, "update_registro").QueryRowContext(ctx,
		reg.EdadDias, reg.ConsumoKg, reg.Mortalidad, reg.Seleccion, reg.SaldoAves,
		nullFloat(reg.PesoPromedio), reg.AcumuladoAlimento, nullFloat(reg.Temperatura),
		nullFloat(reg.Humedad), nullString(reg.Observaciones), nullString(reg.FotoFactura),
		nullString(reg.FotoMedidor), reg.ID,
	).Scan(&reg.UpdatedAt)

	if err == sql.ErrNoRows {
		return apperror.NewNotFound("registro", reg.ID)
	}
	if err != nil {
		return translateError(err, "update registro")
	}
	return nil
}

// DeleteRegistro borra un registro; false si no existía
func (q *pgQueries) DeleteRegistro(ctx context.Context, id int) (bool, error) {
	result, err := q.stmt(ctx, "delete_registro").ExecContext(ctx, id)
	if err != nil {
		return false, translateError(err, "delete registro")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListRegistros consulta dinámica de registros, más recientes primero
func (q *pgQueries) ListRegistros(ctx context.Context, filter *models.RegistroFilter) ([]*models.RegistroDiario, error) {
	if filter == nil {
		filter = &models.RegistroFilter{}
	}

	builder := psql.Select(registroColumns).
		From("registros_diarios").
		OrderBy("fecha DESC", "galpon_id").
		Limit(uint64(normalizeLimit(filter.Limit))).
		Offset(uint64(filter.Offset))

	if filter.GalponID != nil {
		builder = builder.Where(sq.Eq{"galpon_id": *filter.GalponID})
	}
	if filter.FechaDesde != nil {
		builder = builder.Where(sq.GtOrEq{"fecha": DateOnly(*filter.FechaDesde)})
	}
	if filter.FechaHasta != nil {
		builder = builder.Where(sq.LtOrEq{"fecha": DateOnly(*filter.FechaHasta)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registros query: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	return q.queryRegistros(rows, err)
}
