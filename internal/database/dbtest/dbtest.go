// Package dbtest provides a scriptable in-memory database.DB for unit
// tests. Results are queued in call order; every executed statement is
// recorded so tests can assert on the exact SQL and arguments a service
// produced.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/errs"
)

// Call records one statement sent to the fake.
type Call struct {
	SQL  string
	Args []any
}

// Result is one scripted resultset.
type Result struct {
	Columns []string
	Types   []database.ColumnType
	Rows    [][]any
	Err     error
}

type execResult struct {
	affected int64
	insertID int64
	err      error
}

// DB is a fake database.DB. Queries pop from the query queue, Exec and
// InsertReturningID pop from the exec queue. An exhausted queue returns an
// empty result rather than failing so read-mostly tests stay short.
type DB struct {
	driver database.Driver

	mu      sync.Mutex
	queries []*Result
	execs   []execResult

	Calls     []Call
	ExecCalls []Call

	Begun      int
	Committed  int
	RolledBack int
}

// New returns a fake reporting the given driver.
func New(driver database.Driver) *DB {
	return &DB{driver: driver}
}

// StubQuery queues a resultset for the next Query or QueryRow call.
func (d *DB) StubQuery(r *Result) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, r)
	return d
}

// StubValue queues a single-row single-column resultset.
func (d *DB) StubValue(column string, value any) *DB {
	return d.StubQuery(&Result{Columns: []string{column}, Rows: [][]any{{value}}})
}

// StubExec queues an Exec outcome.
func (d *DB) StubExec(affected int64, err error) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = append(d.execs, execResult{affected: affected, err: err})
	return d
}

// StubInsertID queues an InsertReturningID outcome.
func (d *DB) StubInsertID(id int64, err error) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = append(d.execs, execResult{insertID: id, err: err})
	return d
}

func (d *DB) nextQuery() *Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queries) == 0 {
		return &Result{}
	}
	r := d.queries[0]
	d.queries = d.queries[1:]
	return r
}

func (d *DB) nextExec() execResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.execs) == 0 {
		return execResult{}
	}
	r := d.execs[0]
	d.execs = d.execs[1:]
	return r
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, Call{SQL: query, Args: args})
	d.mu.Unlock()
	r := d.nextQuery()
	if r.Err != nil {
		return nil, r.Err
	}
	return &rows{result: r, cursor: -1}, nil
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	d.mu.Lock()
	d.Calls = append(d.Calls, Call{SQL: query, Args: args})
	d.mu.Unlock()
	return &row{result: d.nextQuery()}
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	d.mu.Lock()
	d.ExecCalls = append(d.ExecCalls, Call{SQL: query, Args: args})
	d.mu.Unlock()
	r := d.nextExec()
	return r.affected, r.err
}

func (d *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	d.mu.Lock()
	d.ExecCalls = append(d.ExecCalls, Call{SQL: query, Args: args})
	d.mu.Unlock()
	r := d.nextExec()
	return r.insertID, r.err
}

func (d *DB) Ping(ctx context.Context) error { return nil }
func (d *DB) Close()                         {}

func (d *DB) Driver() database.Driver { return d.driver }

func (d *DB) Begin(ctx context.Context) (database.Tx, error) {
	d.mu.Lock()
	d.Begun++
	d.mu.Unlock()
	return &tx{db: d}, nil
}

// LastExec returns the most recent Exec/InsertReturningID call.
func (d *DB) LastExec() Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.ExecCalls) == 0 {
		return Call{}
	}
	return d.ExecCalls[len(d.ExecCalls)-1]
}

type tx struct {
	db   *DB
	done bool
}

func (t *tx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t *tx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t *tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.db.Exec(ctx, query, args...)
}

func (t *tx) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return t.db.InsertReturningID(ctx, query, args...)
}

func (t *tx) Commit(ctx context.Context) error {
	t.done = true
	t.db.mu.Lock()
	t.db.Committed++
	t.db.mu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.db.mu.Lock()
	t.db.RolledBack++
	t.db.mu.Unlock()
	return nil
}

type rows struct {
	result *Result
	cursor int
}

func (r *rows) Next() bool {
	r.cursor++
	return r.cursor < len(r.result.Rows)
}

func (r *rows) Scan(dest ...any) error {
	if r.cursor < 0 || r.cursor >= len(r.result.Rows) {
		return fmt.Errorf("dbtest: scan without next")
	}
	return assignRow(r.result.Rows[r.cursor], dest)
}

func (r *rows) Columns() ([]string, error) { return r.result.Columns, nil }

func (r *rows) ColumnTypes() ([]database.ColumnType, error) {
	if r.result.Types != nil {
		return r.result.Types, nil
	}
	types := make([]database.ColumnType, len(r.result.Columns))
	for i, name := range r.result.Columns {
		types[i] = database.ColumnType{Name: name, DatabaseType: "TEXT", Length: -1}
	}
	return types, nil
}

func (r *rows) Close()     {}
func (r *rows) Err() error { return nil }

type row struct {
	result *Result
}

func (r *row) Scan(dest ...any) error {
	if r.result.Err != nil {
		return r.result.Err
	}
	if len(r.result.Rows) == 0 {
		return errs.New(errs.ErrKindNotFound, "no rows in result set")
	}
	return assignRow(r.result.Rows[0], dest)
}

func assignRow(src []any, dest []any) error {
	if len(src) != len(dest) {
		return fmt.Errorf("dbtest: scan expects %d destinations, got %d", len(src), len(dest))
	}
	for i, v := range src {
		if err := assign(dest[i], v); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer")
	}
	elem := dv.Elem()
	if src == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(elem.Type()):
		elem.Set(sv)
	case sv.Type().ConvertibleTo(elem.Type()) && elem.Kind() != reflect.String:
		elem.Set(sv.Convert(elem.Type()))
	case elem.Kind() == reflect.Interface:
		elem.Set(sv)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
	return nil
}
