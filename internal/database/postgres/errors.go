package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/dyntable/internal/errs"
)

// PostgreSQL SQLSTATE error codes used for classification.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrNotNullViolation    = "23502"
	pgErrForeignKeyViolation = "23503"
	pgErrUniqueViolation     = "23505"
	pgErrSyntaxError         = "42601"
	pgErrUndefinedTable      = "42P01"
	pgErrUndefinedColumn     = "42703"
	pgErrDuplicateTable      = "42P07"
	pgErrDuplicateColumn     = "42701"
	pgErrQueryCanceled       = "57014"
)

// mapError translates pgx / pgconn native errors into *errs.Error. The
// server message is preserved so the schema engine can pattern-match known
// failure texts at the operation boundary.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		wrapped := fmt.Sprintf("%s: %s", msg, pgErr.Message)
		switch pgErr.Code {
		case pgErrUniqueViolation, pgErrForeignKeyViolation, pgErrNotNullViolation,
			pgErrDuplicateTable, pgErrDuplicateColumn:
			return errs.Wrap(errs.ErrKindConflict, wrapped, err)
		case pgErrQueryCanceled:
			return errs.Wrap(errs.ErrKindTimeout, wrapped, err)
		case pgErrSyntaxError, pgErrUndefinedTable, pgErrUndefinedColumn:
			return errs.Wrap(errs.ErrKindQueryFailed, wrapped, err)
		}
		// Class 08 — connection exceptions
		if strings.HasPrefix(pgErr.Code, "08") {
			return errs.Wrap(errs.ErrKindConnectionFailed, wrapped, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, wrapped, err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
