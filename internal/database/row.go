package database

import (
	"fmt"

	"github.com/koustreak/dyntable/internal/errs"
)

// errInvalidOp reports an operator outside the WHERE allowlist.
func errInvalidOp(op string) *errs.Error {
	return errs.Validation("query.invalid.operator",
		fmt.Sprintf("unsupported WHERE operator: %q", op))
}

// ScanRows reads all rows from the result set and returns them as a slice
// of maps, where each key is the column name and each value is the Go-native
// representation of the DB value.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows — callers do not need to call Close().
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]map[string]any, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = dest[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}

// ScanValues reads all rows, preserving column order: one []any per row,
// index-aligned with the Columns() of the result set. Used by the resultset
// layer, which needs positional alignment with its column headers.
// ScanValues always closes the Rows.
func ScanValues(rows Rows) ([][]any, []string, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	var result [][]any
	for rows.Next() {
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}
		if err := rows.Scan(destPtrs...); err != nil {
			return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}
		result = append(result, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}
	return result, columns, nil
}
