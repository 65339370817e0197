package resultset

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/catalog"
	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// Service builds resultsets: column headers from the live catalog, rows
// from arbitrary queries against the table.
type Service struct {
	db      database.DB
	dialect *dialect.Dialect
	catalog *catalog.Service
	codes   *codes.Service
}

// New returns a resultset service over the given connection.
func New(db database.DB, dl *dialect.Dialect, cat *catalog.Service, cd *codes.Service) *Service {
	return &Service{db: db, dialect: dl, catalog: cat, codes: cd}
}

// ColumnHeaders reads the live column definitions of a datatable and
// classifies each for display. Dropdown columns are recognized two ways: a
// row in the column-code mapping table, or the legacy "_cd" name marker;
// either way the selectable values ride along on the header.
func (s *Service) ColumnHeaders(ctx context.Context, table string) ([]ColumnHeader, error) {
	cols, err := s.catalog.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	headers := make([]ColumnHeader, 0, len(cols))
	for _, col := range cols {
		h := ColumnHeader{
			Name:       col.Name,
			Type:       col.Type,
			Length:     col.Length,
			Nullable:   col.Nullable,
			PrimaryKey: col.PrimaryKey,
			Unique:     col.Unique,
			Indexed:    col.Indexed,
			Values:     []codes.Value{},
		}
		if err := s.classify(ctx, table, col, &h); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func (s *Service) classify(ctx context.Context, table string, col catalog.Column, h *ColumnHeader) error {
	base := dialect.DisplayTypeOf(col.Type)
	switch base {
	case dialect.DisplayText:
		h.DisplayType = dialect.StringDisplayType(col.Name)
		if h.DisplayType == dialect.DisplayCodeValue {
			return s.attachValuesByName(ctx, col.Name, h)
		}
	case dialect.DisplayInteger:
		codeID, mapped, err := s.codes.MappedCodeID(ctx, codes.ColumnAlias(table, col.Name))
		if err != nil {
			return err
		}
		if mapped {
			h.DisplayType = dialect.DisplayCodeLookup
			values, err := s.codes.ValuesByCodeID(ctx, codeID)
			if err != nil {
				return err
			}
			if values != nil {
				h.Values = values
			}
			return nil
		}
		h.DisplayType = dialect.IntegerDisplayType(col.Name)
		if h.DisplayType == dialect.DisplayCodeLookup {
			return s.attachValuesByName(ctx, col.Name, h)
		}
	default:
		h.DisplayType = base
	}
	return nil
}

// attachValuesByName resolves a legacy name-marked column against the code
// whose name is embedded in the column name. A missing code leaves the
// value list empty rather than failing the read.
func (s *Service) attachValuesByName(ctx context.Context, columnName string, h *ColumnHeader) error {
	h.Code = codeNameFromColumn(columnName)
	values, err := s.codes.ValuesByCodeName(ctx, h.Code)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil
		}
		return err
	}
	if values != nil {
		h.Values = values
	}
	return nil
}

func codeNameFromColumn(columnName string) string {
	if i := strings.Index(columnName, "_cd"); i > 0 {
		return columnName[:i]
	}
	return strings.TrimSuffix(columnName, "_cv")
}

// SelectSQL renders the SELECT listing every header column in order, so
// fetched values align positionally with the headers.
func SelectSQL(dl *dialect.Dialect, table string, headers []ColumnHeader) string {
	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = dl.Escape(h.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(parts, ", "), dl.Escape(table))
}

// Fill runs a query whose select list was built from the given headers and
// converts each raw value into its tagged variant.
func (s *Service) Fill(ctx context.Context, sess database.Session, headers []ColumnHeader, query string, args ...any) (*Resultset, error) {
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	values, names, err := database.ScanValues(rows)
	if err != nil {
		return nil, err
	}

	selected, err := matchHeaders(headers, names)
	if err != nil {
		return nil, err
	}

	rs := &Resultset{Columns: selected, Rows: make([]Row, 0, len(values))}
	for _, raw := range values {
		row := Row{Values: make([]Value, len(selected))}
		for i, cell := range raw {
			v, err := NewValue(selected[i].DisplayType, cell)
			if err != nil {
				return nil, err
			}
			row.Values[i] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// FillFromQuery runs an arbitrary query and builds the resultset from the
// driver-reported column metadata alone: no catalog lookup, headers
// inferred from each result column's type name with the usual name-based
// dropdown refinement. Report-style reads over joins and expressions go
// through here, since those result columns exist in no table.
func (s *Service) FillFromQuery(ctx context.Context, sess database.Session, query string, args ...any) (*Resultset, error) {
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}
	headers := make([]ColumnHeader, len(types))
	for i, ct := range types {
		headers[i] = headerFromColumnType(ct)
	}

	values, _, err := database.ScanValues(rows)
	if err != nil {
		return nil, err
	}

	rs := &Resultset{Columns: headers, Rows: make([]Row, 0, len(values))}
	for _, raw := range values {
		row := Row{Values: make([]Value, len(headers))}
		for i, cell := range raw {
			v, err := NewValue(headers[i].DisplayType, cell)
			if err != nil {
				return nil, err
			}
			row.Values[i] = v
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// headerFromColumnType builds a display header from what the wire protocol
// reports about one result column. Catalog-only facts (keys, uniqueness)
// stay at their zero values.
func headerFromColumnType(ct database.ColumnType) ColumnHeader {
	h := ColumnHeader{Name: ct.Name, Type: ct.DatabaseType, Values: []codes.Value{}}
	if ct.Length > 0 {
		h.Length = ct.Length
	}
	if ct.Nullable != nil {
		h.Nullable = *ct.Nullable
	}
	switch base := dialect.DisplayTypeOf(ct.DatabaseType); base {
	case dialect.DisplayText:
		h.DisplayType = dialect.StringDisplayType(ct.Name)
	case dialect.DisplayInteger:
		h.DisplayType = dialect.IntegerDisplayType(ct.Name)
	default:
		h.DisplayType = base
	}
	return h
}

// matchHeaders aligns the scanned column names with their headers,
// preserving scan order so partial selects work.
func matchHeaders(headers []ColumnHeader, names []string) ([]ColumnHeader, error) {
	byName := make(map[string]ColumnHeader, len(headers))
	for _, h := range headers {
		byName[h.Name] = h
	}
	selected := make([]ColumnHeader, len(names))
	for i, name := range names {
		h, ok := byName[name]
		if !ok {
			return nil, errs.New(errs.ErrKindQueryFailed,
				fmt.Sprintf("fetched column %q has no header", name))
		}
		selected[i] = h
	}
	return selected, nil
}
