package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgres error codes this broker distinguishes. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// FromPgError classifies a *pgconn.PgError into the taxonomy, the same way
// the teacher's ValidatePGError switches on ConstraintName/Code to produce
// a typed business error instead of leaking the driver error.
func FromPgError(queryText string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Database("postgres execution failed", err)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return DuplicateKey("unique constraint \""+pgErr.ConstraintName+"\" violated", pgErr)
	case pgForeignKeyViolation, pgNotNullViolation:
		return Query(queryText, pgErr.Message, pgErr)
	default:
		return Database(pgErr.Message, pgErr)
	}
}
