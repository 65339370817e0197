package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/dyntable/internal/errs"
)

// MySQL error numbers used for classification.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry   = 1062
	errNoDefaultValue   = 1364
	errNoReferencedRow  = 1452
	errRowIsReferenced  = 1451
	errDuplicateColumn  = 1060
	errTableExists      = 1050
	errBadFieldError    = 1054
	errBadNullError     = 1048
	errInvalidUseOfNull = 1138
	errAccessDenied     = 1045
	errConnRefused      = 2003
	errUnknownDatabase  = 1049
	errQueryInterrupted = 1317
)

// mapError translates go-sql-driver/mysql native errors into *errs.Error.
// The server message is preserved so the schema engine can pattern-match
// known failure texts at the operation boundary.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		wrapped := fmt.Sprintf("%s: %s", msg, mysqlErr.Message)
		switch mysqlErr.Number {
		case errDuplicateEntry, errNoReferencedRow, errRowIsReferenced,
			errDuplicateColumn, errTableExists, errBadNullError,
			errNoDefaultValue, errInvalidUseOfNull:
			return errs.Wrap(errs.ErrKindConflict, wrapped, err)
		case errQueryInterrupted:
			return errs.Wrap(errs.ErrKindTimeout, wrapped, err)
		case errAccessDenied, errConnRefused, errUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed, wrapped, err)
		case errBadFieldError:
			return errs.Wrap(errs.ErrKindQueryFailed, wrapped, err)
		default:
			return errs.Wrap(errs.ErrKindQueryFailed, wrapped, err)
		}
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
