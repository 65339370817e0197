package datatable

import (
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/errs"
)

// Driver errors keep the engine's native message; the patterns below match
// both engines' wording for the same fault so callers see one stable code
// regardless of which database produced it.
var (
	duplicatePatterns = []string{
		"Duplicate entry",              // MySQL 1062
		"duplicate key value violates", // PostgreSQL 23505
	}
	missingDefaultPatterns = []string{
		"doesn't have a default value", // MySQL 1364
		"null value in column",         // PostgreSQL 23502
		"Column cannot be null",        // MySQL 1048
	}
	renamePatterns = []string{
		"Error on rename",  // MySQL
		"cannot be cast",   // PostgreSQL USING failure
		"does not exist",   // PostgreSQL missing source column
		"Unknown column",   // MySQL 1054
		"Duplicate column", // MySQL 1060
	}
	nullDataPatterns = []string{
		"invalid use of null value", // MySQL mandatory retype over NULLs
		"contains null values",      // PostgreSQL SET NOT NULL
	}
)

func matchesAny(msg string, patterns []string) bool {
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// translateRegisterError reports a duplicate registration no matter which
// unique constraint (registry or permission) tripped first. Only duplicate
// key faults earn the registered code; other integrity violations (foreign
// keys, null constraints) surface as the unknown-integrity fault.
func translateRegisterError(err error, datatable string) error {
	if err == nil {
		return nil
	}
	if matchesAny(err.Error(), duplicatePatterns) {
		return errs.Conflict("datatable.already.registered",
			fmt.Sprintf("datatable %q is already registered against an application table", datatable)).
			WithParam("datatableName")
	}
	return errs.Integrity("unknown data integrity issue with resource", err)
}

// translateEntryError maps row-write failures onto the stable codes the
// outer layer surfaces: duplicate unique values and mandatory columns left
// without a value.
func translateEntryError(err error, datatable string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case matchesAny(msg, duplicatePatterns):
		return errs.Conflict("datatable.entry.duplicate",
			fmt.Sprintf("an entry with the same unique value already exists in %q", datatable)).
			WithParam("datatableName")
	case matchesAny(msg, missingDefaultPatterns):
		return errs.Validation("datatable.entry.mandatory.column.missing",
			fmt.Sprintf("a mandatory column of %q was given no value", datatable)).
			WithParam("datatableName")
	case errs.IsNotFound(err) || errs.IsValidation(err) || errs.IsConflict(err) || errs.IsTimeout(err):
		return err
	default:
		return errs.Integrity("unknown data integrity issue with resource", err)
	}
}

// translateAlterError maps column-change failures: rename collisions and
// mandatory retypes over existing NULLs.
func translateAlterError(err error, column string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case matchesAny(msg, nullDataPatterns):
		return errs.Conflict("datatable.column.contains.null.values",
			fmt.Sprintf("column %q holds NULL values and cannot be made mandatory", column)).
			WithParam("name")
	case matchesAny(msg, duplicatePatterns):
		return errs.Conflict("datatable.column.update.not.allowed",
			fmt.Sprintf("column %q cannot be changed: duplicate values or names exist", column)).
			WithParam("name")
	case matchesAny(msg, renamePatterns):
		return errs.Conflict("datatable.column.update.not.allowed",
			fmt.Sprintf("column %q cannot be renamed or retyped as requested", column)).
			WithParam("name")
	case errs.IsValidation(err) || errs.IsConflict(err) || errs.IsNotFound(err) || errs.IsTimeout(err):
		return err
	default:
		return errs.Integrity("unknown data integrity issue with resource", err)
	}
}
