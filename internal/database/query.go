package database

import (
	"fmt"
	"strings"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string — always passed as args.
// Identifiers are quoted for the active engine.
//
// Usage (Postgres):
//
//	sql, args, err := Select("users", DriverPostgres).
//	    Columns("id", "name", "email").
//	    Where("active", "=", true).
//	    OrderBy("created_at", Desc).
//	    Limit(20).
//	    Build()
type SelectBuilder struct {
	table   string
	driver  Driver
	columns []string
	count   bool
	where   []whereClause
	orderBy []orderClause
	limit   *int
	offset  *int
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type whereClause struct {
	column string
	op     string
	value  any
}

type orderClause struct {
	column string
	dir    SortDirection
}

// Select starts a new SelectBuilder for the given table and engine.
func Select(table string, d Driver) *SelectBuilder {
	return &SelectBuilder{table: table, driver: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Count switches the statement to SELECT COUNT(*).
func (b *SelectBuilder) Count() *SelectBuilder {
	b.count = true
	return b
}

// Where adds a WHERE condition. op must be one of the allowed comparison
// operators (=, !=, <, >, <=, >=, LIKE, ILIKE).
// Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	switch {
	case b.count:
		cols = "COUNT(*)"
	case len(b.columns) > 0:
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = QuoteIdent(b.driver, c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteIdent(b.driver, b.table))

	var args []any
	argIdx := 1

	if len(b.where) > 0 {
		parts := make([]string, 0, len(b.where))
		for _, w := range b.where {
			op := strings.ToUpper(w.op)
			if !validOps[op] {
				return "", nil, errInvalidOp(w.op)
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", QuoteIdent(b.driver, w.column), op, Placeholder(b.driver, argIdx)))
			args = append(args, w.value)
			argIdx++
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", QuoteIdent(b.driver, o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT %s", Placeholder(b.driver, argIdx)))
		args = append(args, *b.limit)
		argIdx++
	}

	if b.offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %s", Placeholder(b.driver, argIdx)))
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}
