package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/database/dbtest"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

func newService(t *testing.T, driver database.Driver, db database.DB) *Service {
	t.Helper()
	dl, err := dialect.New(driver)
	require.NoError(t, err)
	return New(db, dl)
}

func TestTableExists(t *testing.T) {
	db := dbtest.New(database.DriverMySQL).
		StubValue("count", int64(1)).
		StubValue("count", int64(0))
	svc := newService(t, database.DriverMySQL, db)

	ok, err := svc.TableExists(context.Background(), "extra_client_details")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.TableExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, db.Calls, 2)
	assert.Contains(t, db.Calls[0].SQL, "information_schema.tables")
	assert.Equal(t, []any{"extra_client_details"}, db.Calls[0].Args)
}

func TestColumnsMySQL(t *testing.T) {
	db := dbtest.New(database.DriverMySQL).
		StubQuery(&dbtest.Result{
			Columns: []string{"COLUMN_NAME", "DATA_TYPE", "LENGTH", "IS_NULLABLE", "COLUMN_KEY"},
			Rows: [][]any{
				{"id", "bigint", int64(0), "NO", "PRI"},
				{"client_id", "bigint", int64(0), "NO", "MUL"},
				{"notes", "varchar", int64(200), "YES", ""},
			},
		}).
		StubQuery(&dbtest.Result{
			Columns: []string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"},
			Rows: [][]any{
				{"PRIMARY", "id", int64(0)},
				{"idx_extra_client_details_client_id", "client_id", int64(1)},
			},
		})
	svc := newService(t, database.DriverMySQL, db)

	cols, err := svc.Columns(context.Background(), "extra_client_details")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "BIGINT", cols[0].Type)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].Unique)
	assert.True(t, cols[0].Indexed)

	assert.False(t, cols[1].Unique)
	assert.True(t, cols[1].Indexed)

	assert.Equal(t, "VARCHAR", cols[2].Type)
	assert.Equal(t, int64(200), cols[2].Length)
	assert.True(t, cols[2].Nullable)
	assert.False(t, cols[2].Indexed)
}

func TestColumnsPostgresNormalizesTypes(t *testing.T) {
	db := dbtest.New(database.DriverPostgres).
		StubQuery(&dbtest.Result{
			Columns: []string{"column_name", "data_type", "length", "is_nullable", "pk"},
			Rows: [][]any{
				{"id", "bigint", int64(0), "NO", "extra_pkey"},
				{"created_at", "timestamp without time zone", int64(0), "YES", ""},
				{"name", "character varying", int64(80), "YES", ""},
			},
		}).
		StubQuery(&dbtest.Result{
			Columns: []string{"relname", "attname", "indisunique"},
			Rows:    [][]any{{"extra_pkey", "id", true}},
		})
	svc := newService(t, database.DriverPostgres, db)

	cols, err := svc.Columns(context.Background(), "extra")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "TIMESTAMP", cols[1].Type)
	assert.Equal(t, "VARCHAR", cols[2].Type)
	assert.True(t, cols[0].PrimaryKey)
}

func TestColumnsMissingTableIsNotFound(t *testing.T) {
	db := dbtest.New(database.DriverMySQL).StubQuery(&dbtest.Result{})
	svc := newService(t, database.DriverMySQL, db)

	_, err := svc.Columns(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "datatable.not.found", errs.CodeOf(err))
}

func TestMarkKeyedSkipsCompositeIndexes(t *testing.T) {
	cols := []Column{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	indexes := []Index{
		{Name: "uk_t_ab", Column: "a", Unique: true},
		{Name: "uk_t_ab", Column: "b", Unique: true},
		{Name: "idx_t_c", Column: "c"},
	}
	markKeyed(cols, indexes)

	assert.False(t, cols[0].Unique)
	assert.False(t, cols[1].Unique)
	assert.True(t, cols[2].Indexed)
	assert.False(t, cols[2].Unique)
}

func TestExplicitKeyPredicates(t *testing.T) {
	const table = "extra client details"
	indexStub := &dbtest.Result{
		Columns: []string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"},
		Rows: [][]any{
			{"PRIMARY", "id", int64(0)},
			{"uk_extra client details_notes", "notes", int64(0)},
			{"idx_extra client details_age", "age", int64(1)},
			{"fk_client_id", "client_id", int64(1)},
		},
	}

	tests := []struct {
		name   string
		check  func(*Service) (bool, error)
		expect bool
	}{
		{"derived unique constraint counts", func(s *Service) (bool, error) {
			return s.IsExplicitlyUnique(context.Background(), table, "notes")
		}, true},
		{"primary key is not explicitly unique", func(s *Service) (bool, error) {
			return s.IsExplicitlyUnique(context.Background(), table, "id")
		}, false},
		{"derived index counts", func(s *Service) (bool, error) {
			return s.IsExplicitlyIndexed(context.Background(), table, "age")
		}, true},
		{"foreign key index is not explicit", func(s *Service) (bool, error) {
			return s.IsExplicitlyIndexed(context.Background(), table, "client_id")
		}, false},
		{"plain index is not unique", func(s *Service) (bool, error) {
			return s.IsExplicitlyUnique(context.Background(), table, "age")
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.New(database.DriverMySQL).StubQuery(indexStub)
			got, err := tt.check(newService(t, database.DriverMySQL, db))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestConstraintNames(t *testing.T) {
	assert.Equal(t, "uk_extra_client_details_nick", UniqueConstraintName("extra_client_details", "nick"))
	assert.Equal(t, "idx_extra_client_details_nick", IndexName("extra_client_details", "nick"))
	assert.Equal(t, "fk_extra_loan_data_loan_id", ForeignKeyName("extra loan data", "loan_id"))

	long := UniqueConstraintName("a_table_with_an_extremely_long_name_indeed", "and_a_long_column_name_too")
	assert.LessOrEqual(t, len(long), 63)
	assert.Equal(t, long, UniqueConstraintName("a_table_with_an_extremely_long_name_indeed", "and_a_long_column_name_too"))
}
