package dialect

import "strings"

// DisplayType classifies how a fetched column value is rendered on the
// wire. It is a closed set, inferred from the live catalog type so every
// engine maps onto the same variants.
type DisplayType string

const (
	DisplayText       DisplayType = "TEXT"
	DisplayInteger    DisplayType = "INTEGER"
	DisplayDecimal    DisplayType = "DECIMAL"
	DisplayBoolean    DisplayType = "BOOLEAN"
	DisplayDate       DisplayType = "DATE"
	DisplayDateTime   DisplayType = "DATETIME"
	DisplayTime       DisplayType = "TIME"
	DisplayCodeLookup DisplayType = "CODELOOKUP"
	DisplayCodeValue  DisplayType = "CODEVALUE"
)

// DisplayTypeOf maps a catalog type name (as reported by either engine's
// information schema or wire protocol) to its display classification.
// Unknown types degrade to TEXT rather than failing the whole resultset.
func DisplayTypeOf(sqlType string) DisplayType {
	switch strings.ToUpper(sqlType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL":
		return DisplayInteger
	case "DECIMAL", "NUMERIC", "DOUBLE", "FLOAT", "REAL":
		return DisplayDecimal
	case "BIT", "BOOL", "BOOLEAN":
		return DisplayBoolean
	case "DATE":
		return DisplayDate
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return DisplayDateTime
	case "TIME", "TIMETZ":
		return DisplayTime
	default:
		return DisplayText
	}
}

// StringDisplayType refines a string column's display classification using
// its name: legacy code columns carry a "_cd" marker and surface as code
// values instead of free text.
func StringDisplayType(columnName string) DisplayType {
	if strings.Contains(columnName, "_cd") {
		return DisplayCodeValue
	}
	return DisplayText
}

// IntegerDisplayType refines an integer column's display classification
// using its name: "_cd_"-marked and "_cv"-suffixed columns hold code value
// ids and surface as lookups.
func IntegerDisplayType(columnName string) DisplayType {
	if strings.Contains(columnName, "_cd_") || strings.HasSuffix(columnName, "_cv") {
		return DisplayCodeLookup
	}
	return DisplayInteger
}
