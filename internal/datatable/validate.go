package datatable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// Datatable names may contain spaces (the alias form replaces them); column
// names may not. Both start with a letter and never end in a separator.
var (
	datatableNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_ ]{0,48}[a-zA-Z0-9]$`)
	columnNamePattern    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,48}[a-zA-Z0-9]$`)
)

var columnTypes = map[string]bool{
	dialect.TypeString:   true,
	dialect.TypeNumber:   true,
	dialect.TypeDecimal:  true,
	dialect.TypeBoolean:  true,
	dialect.TypeDate:     true,
	dialect.TypeDatetime: true,
	dialect.TypeText:     true,
	dialect.TypeDropdown: true,
}

func validateDatatableName(name string) error {
	if !datatableNamePattern.MatchString(name) {
		return errs.Validation("datatable.name.invalid",
			fmt.Sprintf("invalid datatable name %q", name)).WithParam("datatableName")
	}
	return nil
}

func validateColumnName(name string) error {
	if !columnNamePattern.MatchString(name) {
		return errs.Validation("datatable.column.name.invalid",
			fmt.Sprintf("invalid column name %q", name)).WithParam("name")
	}
	return nil
}

func validateColumnSpec(col ColumnSpec) error {
	if err := validateColumnName(col.Name); err != nil {
		return err
	}
	if !columnTypes[strings.ToLower(col.Type)] {
		return errs.Validation("datatable.column.type.invalid",
			fmt.Sprintf("unsupported type %q for column %q", col.Type, col.Name)).WithParam("type")
	}
	if strings.EqualFold(col.Type, dialect.TypeString) && col.Length <= 0 {
		return errs.Validation("datatable.column.length.invalid",
			fmt.Sprintf("column %q requires a positive length", col.Name)).WithParam("length")
	}
	if strings.EqualFold(col.Type, dialect.TypeDropdown) && col.Code == "" {
		return errs.Validation("datatable.column.code.missing",
			fmt.Sprintf("dropdown column %q requires a code", col.Name)).WithParam("code")
	}
	return nil
}

// alias is the datatable name as used inside generated constraint names and
// code-mapping keys.
func alias(datatable string) string {
	return strings.ReplaceAll(strings.ToLower(datatable), " ", "_")
}
