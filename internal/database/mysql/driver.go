package mysql

import (
	"context"
	"database/sql"

	"github.com/koustreak/dyntable/internal/database"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New opens a MySQL connection pool using the provided Config and returns a
// Driver. It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, mapError(err, "invalid DSN")
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{db: db}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Driver() database.Driver {
	return database.DriverMySQL
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "rows affected unavailable")
	}
	return n, nil
}

// InsertReturningID executes an INSERT and reads LAST_INSERT_ID for the
// generated key.
func (d *Driver) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "insert failed")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapError(err, "generated key unavailable")
	}
	return id, nil
}

func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &mysqlTx{tx: tx}, nil
}

// --- transaction wrapper ---

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (t *mysqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *mysqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "rows affected unavailable")
	}
	return n, nil
}

func (t *mysqlTx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "insert failed")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapError(err, "generated key unavailable")
	}
	return id, nil
}

func (t *mysqlTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *mysqlTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err == nil || err == sql.ErrTxDone {
		return nil
	}
	return mapError(err, "rollback failed")
}

// --- sql.DB type wrappers ---

type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error     { return r.rows.Scan(dest...) }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }
func (r *mysqlRows) Err() error                 { return r.rows.Err() }

func (r *mysqlRows) ColumnTypes() ([]database.ColumnType, error) {
	cts, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, mapError(err, "column types unavailable")
	}
	types := make([]database.ColumnType, len(cts))
	for i, ct := range cts {
		t := database.ColumnType{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			Length:       -1,
		}
		if nullable, ok := ct.Nullable(); ok {
			t.Nullable = &nullable
		}
		if length, ok := ct.Length(); ok {
			t.Length = length
		}
		types[i] = t
	}
	return types, nil
}

// rowScanner is the single-row surface of *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

type mysqlRow struct {
	row rowScanner
}

// Scan translates the deferred query error here, so sql.ErrNoRows reaches
// callers as an errs not-found like every other driver error.
func (r *mysqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "row scan failed")
	}
	return nil
}
