package postgres

// typeNameForOID maps the common built-in type OIDs to the upper-cased type
// names the resultset layer keys its display-type inference on. Datatables
// only ever declare columns from the fixed API type list, so this table
// covers every type the engine can produce plus a few introspection types.
func typeNameForOID(oid uint32) string {
	switch oid {
	case 16: // bool
		return "BOOLEAN"
	case 17: // bytea
		return "BYTEA"
	case 20: // int8
		return "BIGINT"
	case 21: // int2
		return "SMALLINT"
	case 23: // int4
		return "INTEGER"
	case 25:
		return "TEXT"
	case 700:
		return "REAL"
	case 701:
		return "DOUBLE PRECISION"
	case 1042: // bpchar
		return "CHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1700:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}
