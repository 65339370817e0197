package database

import "context"

// Session is the query surface shared by the connection pool and an open
// transaction. The schema engine runs every operation against a Session so
// the calling layer decides the transaction boundary — one ambient
// transaction per inbound command, per the platform's execution model.
type Session interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// Errors are deferred until the row's Scan is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement that returns no rows (DDL, UPDATE, DELETE)
	// and reports the number of rows affected. DDL statements report 0.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// InsertReturningID executes an INSERT and returns the generated key of
	// the new row. On PostgreSQL the statement must carry a RETURNING clause
	// (see dialect.Dialect.ReturningClause); on MySQL the driver reads
	// LAST_INSERT_ID.
	InsertReturningID(ctx context.Context, sql string, args ...any) (int64, error)
}

// DB is the central contract for all database access. All layers above this
// package talk only to this interface — they never import the postgres or
// mysql packages directly.
type DB interface {
	Session

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Begin opens a transaction. The returned Tx exposes the same query
	// surface as the pool; exactly one of Commit or Rollback must be called.
	Begin(ctx context.Context) (Tx, error)

	// Driver identifies the active engine, used to construct the matching
	// SQL dialect at startup.
	Driver() Driver
}

// Tx is an open database transaction.
type Tx interface {
	Session

	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Calling it after a successful Commit
	// is a no-op, so it is safe to defer.
	Rollback(ctx context.Context) error
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// ColumnTypes returns driver-reported metadata for each result column.
	// The DatabaseType name feeds display-type inference in the resultset
	// layer; fields a driver cannot report are left at their zero values.
	ColumnTypes() ([]ColumnType, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// ColumnType describes one column of a result set as reported by the driver.
type ColumnType struct {
	// Name is the column name (or alias) in the result set.
	Name string

	// DatabaseType is the engine's type name, upper-cased by the driver
	// (e.g. "VARCHAR", "BIGINT", "TIMESTAMP", "NUMERIC").
	DatabaseType string

	// Nullable reports whether the column admits NULL; nil when the driver
	// cannot tell.
	Nullable *bool

	// Length is the declared length for character types, -1 when unknown.
	Length int64
}
