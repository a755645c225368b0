package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"avicola-service/internal/apperror"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// psql builder para las consultas dinámicas
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// statements reúne las sentencias preparadas de cada grupo de tablas
var statements = mergeStatements(stockStatements, granjaStatements, registroStatements, desacoseStatements, alertaStatements)

func mergeStatements(groups ...map[string]string) map[string]string {
	all := make(map[string]string)
	for _, group := range groups {
		for name, query := range group {
			all[name] = query
		}
	}
	return all
}

// runner es lo común entre *sql.DB y *sql.Tx
type runner interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pgQueries implementa Queries sobre una conexión o una transacción
type pgQueries struct {
	db    runner
	tx    *sql.Tx
	stmts map[string]*sql.Stmt
}

// stmt devuelve la sentencia preparada, ligada a la transacción si hay una
func (q *pgQueries) stmt(ctx context.Context, name string) *sql.Stmt {
	s, ok := q.stmts[name]
	if !ok {
		panic(fmt.Sprintf("repository: statement %q not prepared", name))
	}
	if q.tx != nil {
		return q.tx.StmtContext(ctx, s)
	}
	return s
}

// PostgresStore implementa Store con database/sql y lib/pq
type PostgresStore struct {
	*pgQueries
	db *sql.DB
}

// NewPostgresStore prepara todas las sentencias y crea el store
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	stmts := make(map[string]*sql.Stmt, len(statements))
	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			for _, s := range stmts {
				s.Close()
			}
			return nil, fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		stmts[name] = stmt
	}

	return &PostgresStore{
		pgQueries: &pgQueries{db: db, stmts: stmts},
		db:        db,
	}, nil
}

// RunInTx ejecuta fn en una transacción; cualquier error o panic hace rollback
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgQueries{db: tx, tx: tx, stmts: s.stmts}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close libera las sentencias preparadas
func (s *PostgresStore) Close() error {
	var firstErr error
	for name, stmt := range s.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
	}
	return firstErr
}

// isUniqueViolation indica si err es una violación del constraint (o índice único) indicado
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == constraint
}

// translateError convierte violaciones de constraints genéricas en errores de negocio
func translateError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return apperror.NewConflict(fmt.Sprintf("%s: registro duplicado", op)).
				WithDetail("constraint", pqErr.Constraint).
				WithCause(err)
		case "check_violation":
			if pqErr.Constraint == constraintStockCantidad {
				return apperror.NewNegativeStock(0).WithCause(err)
			}
		case "foreign_key_violation":
			return apperror.NewValidation(fmt.Sprintf("%s: referencia inexistente", op)).
				WithDetail("constraint", pqErr.Constraint).
				WithCause(err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// scanner es lo común entre *sql.Row y *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
