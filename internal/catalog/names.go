package catalog

import "strings"

// Engines cap identifier length at 64 (MySQL) and 63 (PostgreSQL) bytes;
// generated names are truncated to the smaller cap so the same name works on
// both.
const maxIdentifierLength = 63

// UniqueConstraintName derives the name of the unique constraint guarding a
// single column. The derivation is pure: the same table and column always
// produce the same name, so the constraint can be dropped later without
// reading the catalog.
func UniqueConstraintName(table, column string) string {
	return truncateIdentifier("uk_" + table + "_" + column)
}

// IndexName derives the name of the plain index on a single column, with
// the same stability guarantee as UniqueConstraintName.
func IndexName(table, column string) string {
	return truncateIdentifier("idx_" + table + "_" + column)
}

// ForeignKeyName derives the name of the foreign key from a datatable's
// reference column to its parent entity table.
func ForeignKeyName(table, column string) string {
	return truncateIdentifier("fk_" + strings.ReplaceAll(table, " ", "_") + "_" + column)
}

func truncateIdentifier(name string) string {
	if len(name) > maxIdentifierLength {
		return name[:maxIdentifierLength]
	}
	return name
}
