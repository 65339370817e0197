package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBuilder(t *testing.T) {
	tests := []struct {
		name     string
		build    *SelectBuilder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "star select",
			build:   Select("m_client", DriverMySQL),
			wantSQL: "SELECT * FROM `m_client`",
		},
		{
			name: "columns where order limit offset postgres",
			build: Select("extra client details", DriverPostgres).
				Columns("id", "notes").
				Where("client_id", "=", int64(7)).
				OrderBy("notes", Asc).
				Limit(20).
				Offset(40),
			wantSQL:  `SELECT "id", "notes" FROM "extra client details" WHERE "client_id" = $1 ORDER BY "notes" ASC LIMIT $2 OFFSET $3`,
			wantArgs: []any{int64(7), 20, 40},
		},
		{
			name: "count with equality mysql",
			build: Select("extra loan details", DriverMySQL).
				Count().
				Where("loan_id", "=", int64(9)),
			wantSQL:  "SELECT COUNT(*) FROM `extra loan details` WHERE `loan_id` = ?",
			wantArgs: []any{int64(9)},
		},
		{
			name: "multiple where combined with and",
			build: Select("m_office", DriverPostgres).
				Where("hierarchy", "LIKE", ".%").
				Where("id", ">", 1),
			wantSQL:  `SELECT * FROM "m_office" WHERE "hierarchy" LIKE $1 AND "id" > $2`,
			wantArgs: []any{".%", 1},
		},
		{
			name: "descending order mysql",
			build: Select("m_loan", DriverMySQL).
				Columns("id").
				OrderBy("id", Desc),
			wantSQL: "SELECT `id` FROM `m_loan` ORDER BY `id` DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.build.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelectBuilder_RejectsUnknownOperator(t *testing.T) {
	_, _, err := Select("m_client", DriverMySQL).
		Where("name", "= 1 OR 1", "x").
		Build()
	require.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`extra `` details`", QuoteIdent(DriverMySQL, "extra ` details"))
	assert.Equal(t, `"extra "" details"`, QuoteIdent(DriverPostgres, `extra " details`))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", Placeholder(DriverMySQL, 3))
	assert.Equal(t, "$3", Placeholder(DriverPostgres, 3))
}
