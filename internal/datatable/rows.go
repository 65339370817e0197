package datatable

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/resultset"
)

// tableAccess is everything the row engine needs to touch one datatable:
// its owning application table, the derived reference column, and the live
// headers. Cardinality comes from the catalog, never the registry: a table
// is multi-row iff it carries the surrogate id column.
type tableAccess struct {
	appTable string
	fkColumn string
	headers  []resultset.ColumnHeader
	multiRow bool
}

func (s *Service) access(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64) (*tableAccess, error) {
	appTable, err := s.appTableOf(ctx, datatable)
	if err != nil {
		return nil, err
	}
	if sctx != nil {
		if err := s.scoper.CheckScope(ctx, sctx, appTable, appTableID); err != nil {
			return nil, err
		}
	}
	headers, err := s.rs.ColumnHeaders(ctx, datatable)
	if err != nil {
		return nil, err
	}
	a := &tableAccess{appTable: appTable, fkColumn: entity.FKColumn(appTable), headers: headers}
	for _, h := range headers {
		if h.Name == "id" {
			a.multiRow = true
			break
		}
	}
	return a, nil
}

func (a *tableAccess) header(name string) *resultset.ColumnHeader {
	for i := range a.headers {
		if a.headers[i].Name == name {
			return &a.headers[i]
		}
	}
	for i := range a.headers {
		if strings.EqualFold(a.headers[i].Name, name) {
			return &a.headers[i]
		}
	}
	return nil
}

// writableValues resolves a document against the live headers in header
// order: coerced bind values for matched columns, ColumnNotFound for
// document fields the table does not have. The surrogate id, the reference
// column, and the audit columns are never writable from a document.
func (a *tableAccess) writableValues(datatable string, doc Document) ([]string, []any, error) {
	matched := make(map[string]bool, len(doc))
	var columns []string
	var values []any
	for _, h := range a.headers {
		if h.Name == "id" || h.Name == a.fkColumn ||
			h.Name == createdAtColumn || h.Name == updatedAtColumn {
			continue
		}
		raw, ok := docValue(doc, h.Name)
		if !ok {
			continue
		}
		matched[strings.ToLower(h.Name)] = true
		v, err := coerceValue(h, raw)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, h.Name)
		values = append(values, v)
	}
	for key := range doc {
		if !matched[strings.ToLower(key)] {
			return nil, nil, errs.NotFound("datatable.column.not.found",
				fmt.Sprintf("column %q does not exist in datatable %q", key, datatable)).WithParam(key)
		}
	}
	return columns, values, nil
}

func docValue(doc Document, column string) (string, bool) {
	if v, ok := doc[column]; ok {
		return v, true
	}
	for k, v := range doc {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return "", false
}

// CreateEntry inserts one row for the given entity instance. Single-row
// tables reuse the entity id as primary key, so a second insert surfaces as
// a duplicate-entry conflict. The new row id is returned: the generated
// surrogate for multi-row tables, the entity id otherwise.
func (s *Service) CreateEntry(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64, doc Document) (int64, error) {
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return 0, err
	}
	columns, values, err := a.writableValues(datatable, doc)
	if err != nil {
		return 0, err
	}

	names := []string{s.dl.Escape(a.fkColumn)}
	placeholders := []string{s.dl.Placeholder(1)}
	args := []any{appTableID}
	for i, col := range columns {
		names = append(names, s.dl.Escape(col))
		placeholders = append(placeholders, s.dl.Placeholder(i+2))
		args = append(args, values[i])
	}
	now := s.dl.CurrentDateTime()
	names = append(names, s.dl.Escape(createdAtColumn), s.dl.Escape(updatedAtColumn))
	placeholders = append(placeholders, now, now)

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dl.Escape(datatable), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	if a.multiRow {
		id, err := s.db.InsertReturningID(ctx, insert+s.dl.ReturningClause(), args...)
		if err != nil {
			return 0, translateEntryError(err, datatable)
		}
		return id, nil
	}
	if _, err := s.db.Exec(ctx, insert, args...); err != nil {
		return 0, translateEntryError(err, datatable)
	}
	return appTableID, nil
}

// ReadEntries returns every row belonging to the entity instance, optionally
// ordered by one of the table's own columns.
func (s *Service) ReadEntries(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64, orderBy string) (*resultset.Resultset, error) {
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("%s WHERE %s = %s",
		resultset.SelectSQL(s.dl, datatable, a.headers), s.dl.Escape(a.fkColumn), s.dl.Placeholder(1))
	if orderBy != "" {
		h := a.header(orderBy)
		if h == nil {
			return nil, errs.NotFound("datatable.column.not.found",
				fmt.Sprintf("column %q does not exist in datatable %q", orderBy, datatable)).WithParam("order")
		}
		query += " ORDER BY " + s.dl.Escape(h.Name)
	}
	return s.rs.Fill(ctx, s.db, a.headers, query, appTableID)
}

// ReadEntry returns a single row of a multi-row datatable by surrogate id.
func (s *Service) ReadEntry(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID, rowID int64) (*resultset.Resultset, error) {
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("%s WHERE %s = %s",
		resultset.SelectSQL(s.dl, datatable, a.headers), s.dl.Escape("id"), s.dl.Placeholder(1))
	rs, err := s.rs.Fill(ctx, s.db, a.headers, query, rowID)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 {
		return nil, errs.NotFound("datatable.entry.not.found",
			fmt.Sprintf("datatable %q has no entry %d", datatable, rowID)).WithParam("id")
	}
	return rs, nil
}

// UpdateEntryOneToOne diffs the document against the entity's single row
// and writes only the columns that actually changed. An identical document
// is a successful no-op with no SQL side effects. Exactly one row must
// match.
func (s *Service) UpdateEntryOneToOne(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64, doc Document) (Document, error) {
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return nil, err
	}
	where := fmt.Sprintf("%s = %s", s.dl.Escape(a.fkColumn), s.dl.Placeholder(1))
	return s.updateEntry(ctx, a, datatable, doc, where, appTableID)
}

// UpdateEntryOneToMany updates one row of a multi-row datatable by
// surrogate id, with the same diff semantics as the one-to-one variant.
func (s *Service) UpdateEntryOneToMany(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID, rowID int64, doc Document) (Document, error) {
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return nil, err
	}
	where := fmt.Sprintf("%s = %s", s.dl.Escape("id"), s.dl.Placeholder(1))
	return s.updateEntry(ctx, a, datatable, doc, where, rowID)
}

func (s *Service) updateEntry(ctx context.Context, a *tableAccess, datatable string, doc Document, where string, keyArg any) (Document, error) {
	query := fmt.Sprintf("%s WHERE %s", resultset.SelectSQL(s.dl, datatable, a.headers), where)
	existing, err := s.rs.Fill(ctx, s.db, a.headers, query, keyArg)
	if err != nil {
		return nil, err
	}
	if len(existing.Rows) == 0 {
		return nil, errs.NotFound("datatable.entry.not.found",
			fmt.Sprintf("datatable %q has no matching entry", datatable)).WithParam("datatableName")
	}
	if len(existing.Rows) > 1 {
		return nil, errs.Conflict("datatable.multiple.rows.matched",
			fmt.Sprintf("datatable %q matched more than one entry", datatable)).WithParam("datatableName")
	}
	row := existing.Rows[0]

	columns, values, err := a.writableValues(datatable, doc)
	if err != nil {
		return nil, err
	}
	changes := Document{}
	var setClauses []string
	var args []any
	idx := 1
	for i, col := range columns {
		h := a.header(col)
		pos := headerIndex(existing.Columns, col)
		raw, _ := docValue(doc, col)
		changed, err := columnChanged(*h, raw, row.Values[pos])
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		changes[col] = raw
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", s.dl.Escape(col), s.dl.Placeholder(idx)))
		args = append(args, values[i])
		idx++
	}
	if len(setClauses) == 0 {
		return changes, nil
	}

	setClauses = append(setClauses,
		fmt.Sprintf("%s = %s", s.dl.Escape(updatedAtColumn), s.dl.CurrentDateTime()))
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		s.dl.Escape(datatable), strings.Join(setClauses, ", "),
		strings.Replace(where, s.dl.Placeholder(1), s.dl.Placeholder(idx), 1))
	args = append(args, keyArg)
	if _, err := s.db.Exec(ctx, stmt, args...); err != nil {
		return nil, translateEntryError(err, datatable)
	}
	return changes, nil
}

func headerIndex(headers []resultset.ColumnHeader, name string) int {
	for i, h := range headers {
		if h.Name == name {
			return i
		}
	}
	return -1
}

// DeleteEntries removes every row belonging to the entity instance,
// provided no entity-datatable check gates the table.
func (s *Service) DeleteEntries(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID int64) (int64, error) {
	attached, err := s.attachedCheckCount(ctx, datatable)
	if err != nil {
		return 0, err
	}
	if attached > 0 {
		return 0, errs.Conflict("datatable.entry.required",
			fmt.Sprintf("entries of datatable %q are required by an entity check and cannot be deleted", datatable)).
			WithParam("datatableName")
	}
	a, err := s.access(ctx, sctx, datatable, appTableID)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.dl.Escape(datatable), s.dl.Escape(a.fkColumn), s.dl.Placeholder(1))
	affected, err := s.db.Exec(ctx, stmt, appTableID)
	if err != nil {
		return 0, translateEntryError(err, datatable)
	}
	return affected, nil
}

// DeleteEntry removes one row of a multi-row datatable by surrogate id.
func (s *Service) DeleteEntry(ctx context.Context, sctx entity.SecurityContext, datatable string, appTableID, rowID int64) error {
	attached, err := s.attachedCheckCount(ctx, datatable)
	if err != nil {
		return err
	}
	if attached > 0 {
		return errs.Conflict("datatable.entry.required",
			fmt.Sprintf("entries of datatable %q are required by an entity check and cannot be deleted", datatable)).
			WithParam("datatableName")
	}
	if _, err := s.access(ctx, sctx, datatable, appTableID); err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.dl.Escape(datatable), s.dl.Escape("id"), s.dl.Placeholder(1))
	affected, err := s.db.Exec(ctx, stmt, rowID)
	if err != nil {
		return translateEntryError(err, datatable)
	}
	if affected == 0 {
		return errs.NotFound("datatable.entry.not.found",
			fmt.Sprintf("datatable %q has no entry %d", datatable, rowID)).WithParam("id")
	}
	return nil
}

// CountEntries counts the rows a datatable holds for one entity instance.
func (s *Service) CountEntries(ctx context.Context, datatable string, appTableID int64) (int64, error) {
	appTable, err := s.appTableOf(ctx, datatable)
	if err != nil {
		return 0, err
	}
	return s.countByColumn(ctx, datatable, entity.FKColumn(appTable), appTableID)
}

func (s *Service) countByColumn(ctx context.Context, table, column string, value any) (int64, error) {
	query, args, err := database.Select(table, s.db.Driver()).Count().Where(column, "=", value).Build()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// QueryValues runs the one supported filter shape: a single equality
// predicate on one column, returning a chosen subset of columns.
func (s *Service) QueryValues(ctx context.Context, datatable, filterColumn, filterValue string, resultColumns []string) (*resultset.Resultset, error) {
	if _, err := s.appTableOf(ctx, datatable); err != nil {
		return nil, err
	}
	headers, err := s.rs.ColumnHeaders(ctx, datatable)
	if err != nil {
		return nil, err
	}
	a := &tableAccess{headers: headers}

	filter := a.header(filterColumn)
	if filter == nil {
		return nil, errs.NotFound("datatable.column.not.found",
			fmt.Sprintf("column %q does not exist in datatable %q", filterColumn, datatable)).
			WithParam("column")
	}
	value, err := coerceValue(*filter, filterValue)
	if err != nil {
		return nil, err
	}

	selected := make([]resultset.ColumnHeader, 0, len(resultColumns))
	for _, name := range resultColumns {
		h := a.header(name)
		if h == nil {
			return nil, errs.NotFound("datatable.column.not.found",
				fmt.Sprintf("column %q does not exist in datatable %q", name, datatable)).
				WithParam("resultColumns")
		}
		selected = append(selected, *h)
	}
	if len(selected) == 0 {
		selected = headers
	}

	query := fmt.Sprintf("%s WHERE %s = %s",
		resultset.SelectSQL(s.dl, datatable, selected), s.dl.Escape(filter.Name), s.dl.Placeholder(1))
	return s.rs.Fill(ctx, s.db, headers, query, value)
}
