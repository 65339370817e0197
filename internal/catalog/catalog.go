// Package catalog introspects the live database schema. Column and index
// metadata is always read fresh from the engine's information schema for the
// request at hand; nothing here is cached across calls, so DDL applied by a
// concurrent session is visible immediately.
package catalog

import (
	"context"
	"fmt"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// Column is the live definition of a single table column.
type Column struct {
	Name       string
	Type       string
	Length     int64
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Indexed    bool
}

// Index is a single column of a named index. Multi-column indexes appear as
// one entry per member column.
type Index struct {
	Name   string
	Column string
	Unique bool
}

// Service reads schema metadata through an open connection.
type Service struct {
	db      database.DB
	dialect *dialect.Dialect
}

// New returns a catalog service bound to the given connection.
func New(db database.DB, dl *dialect.Dialect) *Service {
	return &Service{db: db, dialect: dl}
}

const mysqlTableExistsSQL = `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_name = ?`

const postgresTableExistsSQL = `SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name = $1`

// TableExists reports whether the named table exists in the active schema.
func (s *Service) TableExists(ctx context.Context, table string) (bool, error) {
	query := mysqlTableExistsSQL
	if s.dialect.Driver() == database.DriverPostgres {
		query = postgresTableExistsSQL
	}
	var count int64
	if err := s.db.QueryRow(ctx, query, table).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

const mysqlColumnsSQL = `SELECT COLUMN_NAME, DATA_TYPE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0),
IS_NULLABLE, COLUMN_KEY
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ORDINAL_POSITION`

const postgresColumnsSQL = `SELECT c.column_name, c.data_type,
COALESCE(c.character_maximum_length, 0), c.is_nullable, COALESCE(pk.constraint_name, '')
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name, tc.constraint_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
    WHERE tc.table_schema = current_schema() AND tc.table_name = $1
      AND tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = current_schema() AND c.table_name = $2
ORDER BY c.ordinal_position`

// Columns returns the live column definitions of a table in declaration
// order, with unique/indexed flags resolved from the table's indexes. A
// table with no columns does not exist, which surfaces as not-found.
func (s *Service) Columns(ctx context.Context, table string) ([]Column, error) {
	var cols []Column
	var err error
	if s.dialect.Driver() == database.DriverMySQL {
		cols, err = s.mysqlColumns(ctx, table)
	} else {
		cols, err = s.postgresColumns(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errs.NotFound("datatable.not.found",
			fmt.Sprintf("datatable %q does not exist", table)).WithParam("datatable")
	}

	indexes, err := s.Indexes(ctx, table)
	if err != nil {
		return nil, err
	}
	markKeyed(cols, indexes)
	return cols, nil
}

func (s *Service) mysqlColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.Query(ctx, mysqlColumnsSQL, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable, key string
		if err := rows.Scan(&c.Name, &c.Type, &c.Length, &nullable, &key); err != nil {
			return nil, err
		}
		c.Type = normalizeType(c.Type)
		c.Nullable = nullable == "YES"
		c.PrimaryKey = key == "PRI"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *Service) postgresColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.Query(ctx, postgresColumnsSQL, table, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable, pkConstraint string
		if err := rows.Scan(&c.Name, &c.Type, &c.Length, &nullable, &pkConstraint); err != nil {
			return nil, err
		}
		c.Type = normalizeType(c.Type)
		c.Nullable = nullable == "YES"
		c.PrimaryKey = pkConstraint != ""
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

const mysqlIndexesSQL = `SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
FROM information_schema.statistics
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY INDEX_NAME, SEQ_IN_INDEX`

const postgresIndexesSQL = `SELECT i.relname, a.attname, ix.indisunique
FROM pg_class t
JOIN pg_index ix ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = current_schema() AND t.relname = $1
ORDER BY i.relname`

// Indexes returns every index entry on the table, one entry per member
// column. Primary keys and unique constraints appear as unique indexes on
// both engines.
func (s *Service) Indexes(ctx context.Context, table string) ([]Index, error) {
	if s.dialect.Driver() == database.DriverMySQL {
		return s.mysqlIndexes(ctx, table)
	}
	return s.postgresIndexes(ctx, table)
}

func (s *Service) mysqlIndexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := s.db.Query(ctx, mysqlIndexesSQL, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var ix Index
		var nonUnique int64
		if err := rows.Scan(&ix.Name, &ix.Column, &nonUnique); err != nil {
			return nil, err
		}
		ix.Unique = nonUnique == 0
		indexes = append(indexes, ix)
	}
	return indexes, rows.Err()
}

func (s *Service) postgresIndexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := s.db.Query(ctx, postgresIndexesSQL, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var ix Index
		if err := rows.Scan(&ix.Name, &ix.Column, &ix.Unique); err != nil {
			return nil, err
		}
		indexes = append(indexes, ix)
	}
	return indexes, rows.Err()
}

// markKeyed flags columns covered by a single-column index. Multi-column
// indexes do not make an individual column unique or searchable on its own,
// so they are skipped. Primary keys always count as both.
func markKeyed(cols []Column, indexes []Index) {
	members := map[string]int{}
	for _, ix := range indexes {
		members[ix.Name]++
	}
	unique := map[string]bool{}
	indexed := map[string]bool{}
	for _, ix := range indexes {
		if members[ix.Name] != 1 {
			continue
		}
		indexed[ix.Column] = true
		if ix.Unique {
			unique[ix.Column] = true
		}
	}
	for i := range cols {
		cols[i].Unique = unique[cols[i].Name] || cols[i].PrimaryKey
		cols[i].Indexed = indexed[cols[i].Name] || cols[i].PrimaryKey
	}
}

// IsExplicitlyUnique reports whether column carries the unique constraint
// this engine would have created for it, recognized by the derived
// uk_<table>_<column> name. Uniqueness implied by a primary key or a
// foreign-key-named index does not count.
func (s *Service) IsExplicitlyUnique(ctx context.Context, table, column string) (bool, error) {
	return s.hasNamedIndex(ctx, table, column, UniqueConstraintName(table, column))
}

// IsExplicitlyIndexed reports whether column carries the plain index this
// engine would have created for it, recognized by the derived
// idx_<table>_<column> name.
func (s *Service) IsExplicitlyIndexed(ctx context.Context, table, column string) (bool, error) {
	return s.hasNamedIndex(ctx, table, column, IndexName(table, column))
}

func (s *Service) hasNamedIndex(ctx context.Context, table, column, name string) (bool, error) {
	indexes, err := s.Indexes(ctx, table)
	if err != nil {
		return false, err
	}
	for _, ix := range indexes {
		if ix.Name == name && ix.Column == column {
			return true, nil
		}
	}
	return false, nil
}

// ColumnByName returns the column with the given name, or nil.
func ColumnByName(cols []Column, name string) *Column {
	for i := range cols {
		if cols[i].Name == name {
			return &cols[i]
		}
	}
	return nil
}

// HasColumn reports whether the column list contains the given name.
func HasColumn(cols []Column, name string) bool {
	return ColumnByName(cols, name) != nil
}
