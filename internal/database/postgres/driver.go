package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/dyntable/internal/database"
)

// Driver is a PostgreSQL implementation of database.DB backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, mapError(err, "invalid DSN")
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, mapError(err, "failed to create connection pool")
	}

	d := &Driver{pool: pool}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

// Driver reports the active engine.
func (d *Driver) Driver() database.Driver {
	return database.DriverPostgres
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *Driver) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: d.pool.QueryRow(ctx, sql, args...)}
}

// Exec executes a statement that returns no rows and reports rows affected.
func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// InsertReturningID executes an INSERT carrying a RETURNING clause and
// scans the generated key.
func (d *Driver) InsertReturningID(ctx context.Context, sql string, args ...any) (int64, error) {
	var id int64
	if err := d.pool.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, mapError(err, "insert failed")
	}
	return id, nil
}

// Begin opens a transaction with the pool's default isolation level.
func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &pgxTx{tx: tx}, nil
}

// --- transaction wrapper ---

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

func (t *pgxTx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) InsertReturningID(ctx context.Context, sql string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, mapError(err, "insert failed")
	}
	return id, nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || err == pgx.ErrTxClosed {
		return nil
	}
	return mapError(err, "rollback failed")
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

func (r *pgxRows) ColumnTypes() ([]database.ColumnType, error) {
	descs := r.rows.FieldDescriptions()
	types := make([]database.ColumnType, len(descs))
	for i, d := range descs {
		types[i] = database.ColumnType{
			Name:         d.Name,
			DatabaseType: typeNameForOID(d.DataTypeOID),
			Length:       varcharLength(d),
		}
	}
	return types, nil
}

// varcharLength decodes the declared length from the type modifier of
// character columns; -1 when the column carries no length.
func varcharLength(d pgconn.FieldDescription) int64 {
	const varcharOID = 1043
	if d.DataTypeOID != varcharOID || d.TypeModifier < 4 {
		return -1
	}
	// atttypmod stores declared length + 4 header bytes
	return int64(d.TypeModifier - 4)
}

// pgxRow wraps pgx.Row to satisfy database.Row.
type pgxRow struct {
	row pgx.Row
}

// Scan translates the deferred query error here, so pgx.ErrNoRows reaches
// callers as an errs not-found like every other driver error.
func (r *pgxRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "row scan failed")
	}
	return nil
}
