package resultset

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/catalog"
	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/database/dbtest"
	"github.com/koustreak/dyntable/internal/dialect"
)

func newService(t *testing.T, driver database.Driver, db database.DB) *Service {
	t.Helper()
	dl, err := dialect.New(driver)
	require.NoError(t, err)
	return New(db, dl, catalog.New(db, dl), codes.New(db, dl))
}

// Column metadata, index metadata, then one mapping lookup per integer
// column, in the order the service issues them.
func stubHeadersQueries(db *dbtest.DB) {
	db.StubQuery(&dbtest.Result{
		Columns: []string{"COLUMN_NAME", "DATA_TYPE", "LENGTH", "IS_NULLABLE", "COLUMN_KEY"},
		Rows: [][]any{
			{"id", "bigint", int64(0), "NO", "PRI"},
			{"client_id", "bigint", int64(0), "NO", ""},
			{"tier_cd_member", "int", int64(0), "YES", ""},
			{"notes", "varchar", int64(200), "YES", ""},
		},
	})
	db.StubQuery(&dbtest.Result{
		Columns: []string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"},
		Rows:    [][]any{{"PRIMARY", "id", int64(0)}},
	})
	// id: mapping lookup misses
	db.StubQuery(&dbtest.Result{})
	// client_id: mapping lookup misses
	db.StubQuery(&dbtest.Result{})
	// tier_cd_member: mapping lookup misses, falls back to the name marker
	db.StubQuery(&dbtest.Result{})
	db.StubValue("id", int64(5))
	db.StubQuery(&dbtest.Result{
		Columns: []string{"id", "code_value", "order_position"},
		Rows:    [][]any{{int64(21), "Gold", int64(1)}},
	})
}

func TestColumnHeaders(t *testing.T) {
	db := dbtest.New(database.DriverMySQL)
	stubHeadersQueries(db)
	svc := newService(t, database.DriverMySQL, db)

	headers, err := svc.ColumnHeaders(context.Background(), "extra_client_details")
	require.NoError(t, err)
	require.Len(t, headers, 4)

	assert.Equal(t, dialect.DisplayInteger, headers[0].DisplayType)
	assert.True(t, headers[0].PrimaryKey)
	assert.False(t, headers[0].Mandatory())

	assert.Equal(t, dialect.DisplayInteger, headers[1].DisplayType)
	assert.True(t, headers[1].Mandatory())

	assert.Equal(t, dialect.DisplayCodeLookup, headers[2].DisplayType)
	assert.Equal(t, "tier", headers[2].Code)
	require.Len(t, headers[2].Values, 1)
	assert.Equal(t, "Gold", headers[2].Values[0].Value)

	assert.Equal(t, dialect.DisplayText, headers[3].DisplayType)
	assert.Empty(t, headers[3].Values)
	assert.NotNil(t, headers[3].Values)
}

func TestColumnHeadersMappedDropdown(t *testing.T) {
	db := dbtest.New(database.DriverPostgres)
	db.StubQuery(&dbtest.Result{
		Columns: []string{"column_name", "data_type", "length", "is_nullable", "pk"},
		Rows:    [][]any{{"tier", "integer", int64(0), "YES", ""}},
	})
	db.StubQuery(&dbtest.Result{}) // no indexes
	db.StubValue("code_id", int64(9))
	db.StubQuery(&dbtest.Result{
		Columns: []string{"id", "code_value", "order_position"},
		Rows:    [][]any{{int64(31), "Silver", int64(1)}},
	})
	svc := newService(t, database.DriverPostgres, db)

	headers, err := svc.ColumnHeaders(context.Background(), "extra_client_details")
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, dialect.DisplayCodeLookup, headers[0].DisplayType)
	require.Len(t, headers[0].Values, 1)
	assert.Equal(t, int64(31), headers[0].Values[0].ID)
}

func TestFillAlignsValuesWithHeaders(t *testing.T) {
	headers := []ColumnHeader{
		{Name: "id", DisplayType: dialect.DisplayInteger},
		{Name: "opened_on", DisplayType: dialect.DisplayDate},
		{Name: "notes", DisplayType: dialect.DisplayText},
	}
	db := dbtest.New(database.DriverMySQL).StubQuery(&dbtest.Result{
		Columns: []string{"id", "opened_on", "notes"},
		Rows: [][]any{
			{int64(1), []byte("2026-01-02"), []byte("first")},
			{int64(2), nil, nil},
		},
	})
	svc := newService(t, database.DriverMySQL, db)

	rs, err := svc.Fill(context.Background(), db, headers, "SELECT `id`, `opened_on`, `notes` FROM `dt`")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, IntegerValue(1), rs.Rows[0].Values[0])
	assert.Equal(t, DateValue{2026, 1, 2}, rs.Rows[0].Values[1])
	assert.Equal(t, NullValue{}, rs.Rows[1].Values[1])
	assert.True(t, rs.MultiRow())
}

func TestFillPartialSelect(t *testing.T) {
	headers := []ColumnHeader{
		{Name: "id", DisplayType: dialect.DisplayInteger},
		{Name: "notes", DisplayType: dialect.DisplayText},
	}
	db := dbtest.New(database.DriverMySQL).StubQuery(&dbtest.Result{
		Columns: []string{"notes"},
		Rows:    [][]any{{"only notes"}},
	})
	svc := newService(t, database.DriverMySQL, db)

	rs, err := svc.Fill(context.Background(), db, headers, "SELECT `notes` FROM `dt`")
	require.NoError(t, err)
	require.Len(t, rs.Columns, 1)
	assert.Equal(t, "notes", rs.Columns[0].Name)
	assert.False(t, rs.MultiRow())
}

func TestFillUnknownColumnFails(t *testing.T) {
	db := dbtest.New(database.DriverMySQL).StubQuery(&dbtest.Result{
		Columns: []string{"ghost"},
		Rows:    [][]any{{"x"}},
	})
	svc := newService(t, database.DriverMySQL, db)

	_, err := svc.Fill(context.Background(), db, nil, "SELECT `ghost` FROM `dt`")
	assert.Error(t, err)
}

func boolPtr(b bool) *bool { return &b }

func TestFillFromQuery(t *testing.T) {
	db := dbtest.New(database.DriverMySQL).StubQuery(&dbtest.Result{
		Columns: []string{"id", "notes", "opened_on", "balance", "tier_cd_member"},
		Types: []database.ColumnType{
			{Name: "id", DatabaseType: "BIGINT", Length: -1, Nullable: boolPtr(false)},
			{Name: "notes", DatabaseType: "VARCHAR", Length: 200, Nullable: boolPtr(true)},
			{Name: "opened_on", DatabaseType: "DATE", Length: -1},
			{Name: "balance", DatabaseType: "DECIMAL", Length: -1},
			{Name: "tier_cd_member", DatabaseType: "INT", Length: -1},
		},
		Rows: [][]any{
			{int64(1), []byte("first"), []byte("2026-01-02"), []byte("19.500"), int64(21)},
			{int64(2), nil, nil, nil, nil},
		},
	})
	svc := newService(t, database.DriverMySQL, db)

	rs, err := svc.FillFromQuery(context.Background(), db,
		"SELECT c.`id`, c.`notes`, c.`opened_on`, l.`balance`, c.`tier_cd_member` FROM `c` JOIN `l` ON l.`cid` = c.`id`")
	require.NoError(t, err)

	require.Len(t, rs.Columns, 5)
	assert.Equal(t, dialect.DisplayInteger, rs.Columns[0].DisplayType)
	assert.False(t, rs.Columns[0].Nullable)
	assert.Equal(t, dialect.DisplayText, rs.Columns[1].DisplayType)
	assert.True(t, rs.Columns[1].Nullable)
	assert.Equal(t, int64(200), rs.Columns[1].Length)
	assert.Equal(t, dialect.DisplayDate, rs.Columns[2].DisplayType)
	assert.Equal(t, dialect.DisplayDecimal, rs.Columns[3].DisplayType)
	// Dropdown recognition still rides on the name marker.
	assert.Equal(t, dialect.DisplayCodeLookup, rs.Columns[4].DisplayType)
	assert.NotNil(t, rs.Columns[4].Values)

	require.Len(t, rs.Rows, 2)
	assert.Equal(t, IntegerValue(1), rs.Rows[0].Values[0])
	assert.Equal(t, DateValue{2026, 1, 2}, rs.Rows[0].Values[2])
	assert.Equal(t, NullValue{}, rs.Rows[1].Values[1])
}

func TestFillFromQueryEmptyResult(t *testing.T) {
	db := dbtest.New(database.DriverPostgres).StubQuery(&dbtest.Result{
		Columns: []string{"total"},
		Types:   []database.ColumnType{{Name: "total", DatabaseType: "NUMERIC", Length: -1}},
	})
	svc := newService(t, database.DriverPostgres, db)

	rs, err := svc.FillFromQuery(context.Background(), db, `SELECT SUM("balance") AS "total" FROM "l"`)
	require.NoError(t, err)
	require.Len(t, rs.Columns, 1)
	assert.Equal(t, dialect.DisplayDecimal, rs.Columns[0].DisplayType)
	assert.Empty(t, rs.Rows)
	assert.NotNil(t, rs.Rows)
}

func TestSelectSQL(t *testing.T) {
	dl, err := dialect.New(database.DriverMySQL)
	require.NoError(t, err)
	headers := []ColumnHeader{{Name: "id"}, {Name: "notes"}}
	assert.Equal(t, "SELECT `id`, `notes` FROM `dt`", SelectSQL(dl, "dt", headers))
}

func TestResultsetJSONShape(t *testing.T) {
	rs := &Resultset{
		Columns: []ColumnHeader{{Name: "id", DisplayType: dialect.DisplayInteger, Values: []codes.Value{}}},
		Rows:    []Row{{Values: []Value{IntegerValue(5)}}},
	}
	b, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columnHeaders": [{
			"columnName": "id",
			"columnType": "",
			"columnDisplayType": "INTEGER",
			"isColumnNullable": false,
			"isColumnPrimaryKey": false,
			"isColumnUnique": false,
			"isColumnIndexed": false,
			"columnValues": []
		}],
		"data": [{"row": [5]}]
	}`, string(b))
}

func TestWriteCSV(t *testing.T) {
	rs := &Resultset{
		Columns: []ColumnHeader{{Name: "id"}, {Name: "notes"}},
		Rows: []Row{
			{Values: []Value{IntegerValue(1), TextValue("a, b")}},
			{Values: []Value{IntegerValue(2), NullValue{}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, rs.WriteCSV(&buf))
	assert.Equal(t, "id,notes\n1,\"a, b\"\n2,\n", buf.String())
}
