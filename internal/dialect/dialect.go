// Package dialect abstracts the DDL/DML syntax differences between the two
// supported engines (MySQL and PostgreSQL): identifier escaping, typed column
// declarations, identity columns, index management, and timestamp
// expressions. Everything above this package builds SQL from dialect
// fragments and never branches on the engine itself.
package dialect

import (
	"fmt"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/errs"
)

// API column types accepted in datatable definitions.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeDecimal  = "decimal"
	TypeBoolean  = "boolean"
	TypeDate     = "date"
	TypeDatetime = "datetime"
	TypeText     = "text"
	TypeDropdown = "dropdown"
)

// Decimal columns always use a fixed precision/scale pair regardless of the
// declared length, so rounding behaves identically platform-wide.
const decimalPrecision = "(19,6)"

var mysqlTypes = map[string]string{
	TypeString:   "VARCHAR",
	TypeNumber:   "INT",
	TypeBoolean:  "BIT",
	TypeDecimal:  "DECIMAL",
	TypeDate:     "DATE",
	TypeDatetime: "DATETIME",
	TypeText:     "TEXT",
	TypeDropdown: "INT",
}

var postgresTypes = map[string]string{
	TypeString:   "VARCHAR",
	TypeNumber:   "INT",
	TypeBoolean:  "boolean",
	TypeDecimal:  "DECIMAL",
	TypeDate:     "DATE",
	TypeDatetime: "TIMESTAMP",
	TypeText:     "TEXT",
	TypeDropdown: "INT",
}

// Dialect renders engine-specific SQL fragments. Construct one per process
// at startup; it is immutable and safe for concurrent use.
type Dialect struct {
	driver database.Driver
}

// New returns the Dialect for the given engine. An unsupported engine is a
// configuration fault surfaced at startup, never per request.
func New(d database.Driver) (*Dialect, error) {
	if !d.Supported() {
		return nil, errs.New(errs.ErrKindValidation,
			fmt.Sprintf("unsupported database engine %q", d))
	}
	return &Dialect{driver: d}, nil
}

// Driver reports the engine this dialect renders for.
func (d *Dialect) Driver() database.Driver {
	return d.driver
}

// Escape quotes a single identifier for the active engine.
func (d *Dialect) Escape(name string) string {
	return database.QuoteIdent(d.driver, name)
}

// Placeholder returns the parameter placeholder for the idx-th argument (1-based).
func (d *Dialect) Placeholder(idx int) string {
	return database.Placeholder(d.driver, idx)
}

// ColumnTypeSQL formats the type portion of a column declaration for the
// given API type. length only applies to string columns; decimal columns
// always take the fixed (19,6) pair, and dropdown columns are lookup-id
// integers.
func (d *Dialect) ColumnTypeSQL(apiType string, length int) (string, error) {
	var sqlType string
	var ok bool
	if d.driver == database.DriverMySQL {
		sqlType, ok = mysqlTypes[apiType]
	} else {
		sqlType, ok = postgresTypes[apiType]
	}
	if !ok {
		return "", errs.Validation("datatable.column.type.invalid",
			fmt.Sprintf("unsupported column type %q", apiType)).WithParam("type")
	}

	switch apiType {
	case TypeString:
		if length <= 0 {
			return "", errs.Validation("datatable.column.length.invalid",
				"string columns require a positive length").WithParam("length")
		}
		return fmt.Sprintf("%s(%d)", sqlType, length), nil
	case TypeDecimal:
		return sqlType + decimalPrecision, nil
	case TypeDropdown:
		if d.driver == database.DriverMySQL {
			return sqlType + "(11)", nil
		}
		return sqlType, nil
	default:
		return sqlType, nil
	}
}

// GeneratedIDColumn renders the surrogate auto-generated id primary-key
// column used by multi-row datatables.
func (d *Dialect) GeneratedIDColumn() string {
	if d.driver == database.DriverMySQL {
		return d.Escape("id") + " BIGINT NOT NULL AUTO_INCREMENT"
	}
	return d.Escape("id") + " BIGINT NOT NULL GENERATED BY DEFAULT AS IDENTITY"
}

// ReturningClause is appended to INSERT statements that need the generated
// key back. MySQL reads LAST_INSERT_ID instead, so it takes no clause.
func (d *Dialect) ReturningClause() string {
	if d.driver == database.DriverPostgres {
		return " RETURNING " + d.Escape("id")
	}
	return ""
}

// CurrentDateTime is the SQL expression for the current timestamp, used for
// the implicit audit columns.
func (d *Dialect) CurrentDateTime() string {
	return "CURRENT_TIMESTAMP"
}

// CreateTableSuffix is appended after the closing parenthesis of CREATE TABLE.
func (d *Dialect) CreateTableSuffix() string {
	if d.driver == database.DriverMySQL {
		return " ENGINE=InnoDB DEFAULT CHARSET=UTF8MB4"
	}
	return ""
}

// CreateIndex renders a plain (non-unique) index creation statement.
func (d *Dialect) CreateIndex(table, index, column string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		d.Escape(index), d.Escape(table), d.Escape(column))
}

// DropIndex renders the engine's index-drop statement. MySQL scopes the
// index to its table, PostgreSQL treats it as a schema-level object.
func (d *Dialect) DropIndex(table, index string) string {
	if d.driver == database.DriverMySQL {
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", d.Escape(table), d.Escape(index))
	}
	return fmt.Sprintf("DROP INDEX %s", d.Escape(index))
}

// AddUniqueConstraint renders the statement creating a named unique
// constraint on a single column.
func (d *Dialect) AddUniqueConstraint(table, constraint, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		d.Escape(table), d.Escape(constraint), d.Escape(column))
}

// DropUniqueConstraint renders the statement removing a named unique
// constraint. MySQL implements unique constraints as indexes.
func (d *Dialect) DropUniqueConstraint(table, constraint string) string {
	if d.driver == database.DriverMySQL {
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", d.Escape(table), d.Escape(constraint))
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Escape(table), d.Escape(constraint))
}

// DropForeignKey renders the statement removing a named foreign key.
func (d *Dialect) DropForeignKey(table, constraint string) string {
	if d.driver == database.DriverMySQL {
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.Escape(table), d.Escape(constraint))
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Escape(table), d.Escape(constraint))
}

// AddForeignKey renders the statement adding a named single-column foreign
// key referencing refTable(id).
func (d *Dialect) AddForeignKey(table, constraint, column, refTable string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.Escape(table), d.Escape(constraint), d.Escape(column), d.Escape(refTable), d.Escape("id"))
}

// ChangeColumn renders the statement batch that renames and/or redeclares a
// column. typeSQL is the full type fragment (from ColumnTypeSQL or the
// catalog's live declaration). MySQL does this in one CHANGE clause; for
// PostgreSQL each aspect is a separate ALTER so a rename failure cannot
// leave a half-applied type change.
func (d *Dialect) ChangeColumn(table, oldName, newName, typeSQL string, mandatory bool) []string {
	if d.driver == database.DriverMySQL {
		null := " DEFAULT NULL"
		if mandatory {
			null = " NOT NULL"
		}
		return []string{fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s%s",
			d.Escape(table), d.Escape(oldName), d.Escape(newName), typeSQL, null)}
	}

	var stmts []string
	if oldName != newName {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			d.Escape(table), d.Escape(oldName), d.Escape(newName)))
	}
	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
		d.Escape(table), d.Escape(newName), typeSQL, d.Escape(newName), typeSQL))
	if mandatory {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL",
			d.Escape(table), d.Escape(newName)))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL",
			d.Escape(table), d.Escape(newName)))
	}
	return stmts
}
