package datatable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/catalog"
	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/database/dbtest"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/resultset"
)

func newTestService(t *testing.T, driver database.Driver, opts Options) (*Service, *dbtest.DB) {
	t.Helper()
	db := dbtest.New(driver)
	dl, err := dialect.New(driver)
	require.NoError(t, err)
	cat := catalog.New(db, dl)
	cd := codes.New(db, dl)
	rs := resultset.New(db, dl, cat, cd)
	return New(db, dl, cat, cd, rs, entity.NewScoper(db, dl), nil, opts), db
}

func ptr[T any](v T) *T { return &v }

// stubRegistration queues the registry lookup resolving a datatable to its
// application table.
func stubRegistration(db *dbtest.DB, name, appTable string) {
	db.StubQuery(&dbtest.Result{
		Columns: []string{"registered_table_name", "application_table_name", "entity_subtype", "category"},
		Rows:    [][]any{{name, appTable, (*string)(nil), 100}},
	})
}

func stubNotRegistered(db *dbtest.DB) {
	db.StubQuery(&dbtest.Result{Columns: []string{"application_table_name"}})
}

func stubAppTable(db *dbtest.DB, appTable string) {
	db.StubValue("application_table_name", appTable)
}

// stubColumns and stubIndexes queue one catalog introspection pair in the
// MySQL information-schema shape. Each row: name, data type, length,
// nullable, column key.
func stubColumns(db *dbtest.DB, rows [][]any) {
	db.StubQuery(&dbtest.Result{
		Columns: []string{"COLUMN_NAME", "DATA_TYPE", "LENGTH", "IS_NULLABLE", "COLUMN_KEY"},
		Rows:    rows,
	})
}

func stubIndexes(db *dbtest.DB, rows [][]any) {
	db.StubQuery(&dbtest.Result{
		Columns: []string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"},
		Rows:    rows,
	})
}

// stubNoMapping queues n empty code-mapping lookups, one per integer column
// the header classification will inspect.
func stubNoMapping(db *dbtest.DB, n int) {
	for i := 0; i < n; i++ {
		db.StubQuery(&dbtest.Result{Columns: []string{"code_id"}})
	}
}

func execSQL(calls []dbtest.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.SQL
	}
	return out
}
