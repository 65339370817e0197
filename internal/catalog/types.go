package catalog

import "strings"

// information_schema type spellings that differ from the canonical names
// used everywhere above the catalog.
var typeAliases = map[string]string{
	"character varying":           "VARCHAR",
	"character":                   "CHAR",
	"timestamp without time zone": "TIMESTAMP",
	"timestamp with time zone":    "TIMESTAMPTZ",
	"time without time zone":      "TIME",
	"time with time zone":         "TIMETZ",
	"double precision":            "DOUBLE",
}

// normalizeType folds the engine's reported data type into a single
// canonical uppercase vocabulary shared by both dialects.
func normalizeType(dataType string) string {
	if canonical, ok := typeAliases[strings.ToLower(dataType)]; ok {
		return canonical
	}
	return strings.ToUpper(dataType)
}
