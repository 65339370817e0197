package resultset

import (
	"encoding/csv"
	"io"

	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/dialect"
)

// ColumnHeader describes one column of a resultset: its live catalog
// definition plus the display classification and, for dropdown columns, the
// selectable values.
type ColumnHeader struct {
	Name        string              `json:"columnName"`
	Type        string              `json:"columnType"`
	Length      int64               `json:"columnLength,omitempty"`
	DisplayType dialect.DisplayType `json:"columnDisplayType"`
	Nullable    bool                `json:"isColumnNullable"`
	PrimaryKey  bool                `json:"isColumnPrimaryKey"`
	Unique      bool                `json:"isColumnUnique"`
	Indexed     bool                `json:"isColumnIndexed"`
	Code        string              `json:"columnCode,omitempty"`
	Values      []codes.Value       `json:"columnValues"`
}

// Mandatory reports whether a value must be supplied for this column.
func (h ColumnHeader) Mandatory() bool {
	return !h.Nullable && !h.PrimaryKey
}

// Row is one fetched row, values positionally aligned with the headers.
type Row struct {
	Values []Value `json:"row"`
}

// Resultset is the generic result of reading a datatable: headers first,
// then rows in query order.
type Resultset struct {
	Columns []ColumnHeader `json:"columnHeaders"`
	Rows    []Row          `json:"data"`
}

// HasColumn reports whether the resultset contains a column with the given
// name.
func (r *Resultset) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// MultiRow reports whether the resultset belongs to a one-to-many
// datatable, recognized by its surrogate id column.
func (r *Resultset) MultiRow() bool {
	return r.HasColumn("id")
}

// WriteCSV streams the resultset as CSV: one header record of column names,
// then one record per row using each value's CSV rendering.
func (r *Resultset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, v := range row.Values {
			record[i] = v.CSV()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
