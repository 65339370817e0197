// Package codes resolves dropdown columns against the code tables: m_code
// holds the named value sets, m_code_value their members, and
// x_table_column_code_mappings binds a datatable column to its set.
package codes

import (
	"context"
	"fmt"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// Value is one selectable member of a code.
type Value struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
	Score int64  `json:"score"`
}

// Service reads the code tables and maintains column mappings.
type Service struct {
	db      database.DB
	dialect *dialect.Dialect
}

// New returns a code service bound to the given connection.
func New(db database.DB, dl *dialect.Dialect) *Service {
	return &Service{db: db, dialect: dl}
}

// IDByName resolves a code name to its id.
func (s *Service) IDByName(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.dialect.Escape("id"), s.dialect.Escape("m_code"),
		s.dialect.Escape("code_name"), s.dialect.Placeholder(1))
	var id int64
	if err := s.db.QueryRow(ctx, query, name).Scan(&id); err != nil {
		if errs.IsNotFound(err) {
			return 0, errs.NotFound("code.not.found",
				fmt.Sprintf("code %q does not exist", name)).WithParam("code")
		}
		return 0, err
	}
	return id, nil
}

// ValuesByCodeID returns the members of a code ordered by position, ties
// broken by id so the ordering is stable.
func (s *Service) ValuesByCodeID(ctx context.Context, codeID int64) ([]Value, error) {
	query := fmt.Sprintf(
		"SELECT %s, %s, %s FROM %s WHERE %s = %s ORDER BY %s, %s",
		s.dialect.Escape("id"), s.dialect.Escape("code_value"), s.dialect.Escape("order_position"),
		s.dialect.Escape("m_code_value"),
		s.dialect.Escape("code_id"), s.dialect.Placeholder(1),
		s.dialect.Escape("order_position"), s.dialect.Escape("id"))

	rows, err := s.db.Query(ctx, query, codeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.ID, &v.Value, &v.Score); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ValuesByCodeName returns the members of the code with the given name.
func (s *Service) ValuesByCodeName(ctx context.Context, name string) ([]Value, error) {
	id, err := s.IDByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.ValuesByCodeID(ctx, id)
}

// MappedCodeID returns the code id bound to a column alias, or false when
// the column has no mapping.
func (s *Service) MappedCodeID(ctx context.Context, alias string) (int64, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.dialect.Escape("code_id"), s.dialect.Escape("x_table_column_code_mappings"),
		s.dialect.Escape("column_alias_name"), s.dialect.Placeholder(1))
	var id int64
	if err := s.db.QueryRow(ctx, query, alias).Scan(&id); err != nil {
		if errs.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// InsertColumnMapping binds a column alias to a code inside the caller's
// transaction.
func (s *Service) InsertColumnMapping(ctx context.Context, sess database.Session, alias string, codeID int64) error {
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		s.dialect.Escape("x_table_column_code_mappings"),
		s.dialect.Escape("column_alias_name"), s.dialect.Escape("code_id"),
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	_, err := sess.Exec(ctx, query, alias, codeID)
	return err
}

// UpdateColumnMapping re-points a column alias at a different code, or
// renames the alias when a mapped column is renamed.
func (s *Service) UpdateColumnMapping(ctx context.Context, sess database.Session, oldAlias, newAlias string, codeID int64) error {
	query := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		s.dialect.Escape("x_table_column_code_mappings"),
		s.dialect.Escape("column_alias_name"), s.dialect.Placeholder(1),
		s.dialect.Escape("code_id"), s.dialect.Placeholder(2),
		s.dialect.Escape("column_alias_name"), s.dialect.Placeholder(3))
	_, err := sess.Exec(ctx, query, newAlias, codeID, oldAlias)
	return err
}

// DeleteColumnMapping removes the mapping for one column alias. Missing
// mappings are not an error; dropping an unmapped column is legal.
func (s *Service) DeleteColumnMapping(ctx context.Context, sess database.Session, alias string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.dialect.Escape("x_table_column_code_mappings"),
		s.dialect.Escape("column_alias_name"), s.dialect.Placeholder(1))
	_, err := sess.Exec(ctx, query, alias)
	return err
}

// DeleteTableMappings removes every mapping created for a datatable's
// columns, matched by the alias prefix "<datatable>_".
func (s *Service) DeleteTableMappings(ctx context.Context, sess database.Session, datatable string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s LIKE %s",
		s.dialect.Escape("x_table_column_code_mappings"),
		s.dialect.Escape("column_alias_name"), s.dialect.Placeholder(1))
	_, err := sess.Exec(ctx, query, datatable+"_%")
	return err
}

// ColumnAlias derives the mapping alias for a datatable column.
func ColumnAlias(datatable, column string) string {
	return datatable + "_" + column
}
