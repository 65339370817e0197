package datatable

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/catalog"
	"github.com/koustreak/dyntable/internal/codes"
	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/errs"
)

// columnMapping is a pending x_table_column_code_mappings row, written after
// the table exists.
type columnMapping struct {
	alias  string
	codeID int64
}

// builtColumn is one declared column fully resolved for DDL: its physical
// name (possibly rewritten to embed the lookup category), its declaration,
// and any lookup constraint and mapping it drags along.
type builtColumn struct {
	spec         ColumnSpec
	physicalName string
	definition   string
	fkConstraint string
	mapping      *columnMapping
}

// Create builds and executes the datatable's CREATE TABLE, its secondary
// unique/index statements, the lookup mappings, and the registry entry, all
// as one operation.
func (s *Service) Create(ctx context.Context, req CreateRequest) error {
	if err := validateDatatableName(req.Name); err != nil {
		return err
	}
	appTable, err := entity.Normalize(req.AppTable)
	if err != nil {
		return err
	}
	for _, col := range req.Columns {
		if err := validateColumnSpec(col); err != nil {
			return err
		}
	}
	registered, err := s.IsRegistered(ctx, req.Name)
	if err != nil {
		return err
	}
	if registered {
		return errs.Conflict("datatable.already.registered",
			fmt.Sprintf("datatable %q is already registered against an application table", req.Name)).
			WithParam("datatableName")
	}

	fkCol := entity.FKColumn(appTable)
	actual := entity.Actual(appTable)
	tableAlias := alias(req.Name)

	columns := append([]ColumnSpec{}, req.Columns...)
	columns = append(columns,
		ColumnSpec{Name: createdAtColumn, Type: dialect.TypeDatetime},
		ColumnSpec{Name: updatedAtColumn, Type: dialect.TypeDatetime},
	)

	built := make([]builtColumn, 0, len(columns))
	for _, col := range columns {
		bc, err := s.buildColumn(ctx, tableAlias, col)
		if err != nil {
			return err
		}
		built = append(built, bc)
	}

	createSQL := s.createTableSQL(req.Name, tableAlias, fkCol, actual, req.MultiRow, built)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return translateRegisterError(err, req.Name)
	}
	if err := s.createKeyedColumns(ctx, tx, req.Name, built); err != nil {
		return err
	}
	for _, bc := range built {
		if bc.mapping != nil {
			if err := s.codes.InsertColumnMapping(ctx, tx, bc.mapping.alias, bc.mapping.codeID); err != nil {
				return translateRegisterError(err, req.Name)
			}
		}
	}
	if err := s.register(ctx, tx, req.Name, appTable, req.EntitySubType, req.Category); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.log.With().Str("datatable", req.Name).Str("apptable", appTable).Logger().
		Info("datatable created")
	return nil
}

// buildColumn resolves one declared column. Dropdown columns bind to their
// lookup category either through a foreign key plus mapping row (constraint
// approach) or by rewriting the name to <code>_cd_<name> (legacy).
func (s *Service) buildColumn(ctx context.Context, tableAlias string, col ColumnSpec) (builtColumn, error) {
	bc := builtColumn{spec: col, physicalName: col.Name}

	isDropdown := strings.EqualFold(col.Type, dialect.TypeDropdown)
	if isDropdown {
		if s.opts.ConstraintApproach {
			codeID, err := s.codes.IDByName(ctx, col.Code)
			if err != nil {
				return bc, err
			}
			bc.fkConstraint = fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				s.dl.Escape("fk_"+tableAlias+"_"+col.Name),
				s.dl.Escape(col.Name), s.dl.Escape("m_code_value"), s.dl.Escape("id"))
			bc.mapping = &columnMapping{alias: codes.ColumnAlias(tableAlias, col.Name), codeID: codeID}
		} else {
			bc.physicalName = col.Code + "_cd_" + col.Name
		}
	}

	typeSQL, err := s.dl.ColumnTypeSQL(strings.ToLower(col.Type), col.Length)
	if err != nil {
		return bc, err
	}
	null := " DEFAULT NULL"
	if col.Mandatory {
		null = " NOT NULL"
	}
	bc.definition = s.dl.Escape(bc.physicalName) + " " + typeSQL + null
	return bc, nil
}

func (s *Service) createTableSQL(name, tableAlias, fkCol, actual string, multiRow bool, built []builtColumn) string {
	var parts []string
	if multiRow {
		parts = append(parts, s.dl.GeneratedIDColumn())
	}
	parts = append(parts, s.dl.Escape(fkCol)+" BIGINT NOT NULL")
	for _, bc := range built {
		parts = append(parts, bc.definition)
	}

	fkName := catalog.ForeignKeyName(tableAlias, fkCol)
	if multiRow {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", s.dl.Escape("id")))
		if s.dl.Driver() == database.DriverMySQL {
			parts = append(parts, fmt.Sprintf("KEY %s (%s)",
				s.dl.Escape("fk_"+fkCol), s.dl.Escape(fkCol)))
		}
	} else {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", s.dl.Escape(fkCol)))
	}
	parts = append(parts, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		s.dl.Escape(fkName), s.dl.Escape(fkCol), s.dl.Escape(actual), s.dl.Escape("id")))
	for _, bc := range built {
		if bc.fkConstraint != "" {
			parts = append(parts, bc.fkConstraint)
		}
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)%s",
		s.dl.Escape(name), strings.Join(parts, ", "), s.dl.CreateTableSuffix())
}

// createKeyedColumns issues the secondary statements for declared unique
// and indexed columns. Unique already implies an index, so an indexed
// request on a unique column is a no-op.
func (s *Service) createKeyedColumns(ctx context.Context, sess database.Session, table string, built []builtColumn) error {
	for _, bc := range built {
		if bc.spec.Unique {
			stmt := s.dl.AddUniqueConstraint(table,
				catalog.UniqueConstraintName(table, bc.physicalName), bc.physicalName)
			if _, err := sess.Exec(ctx, stmt); err != nil {
				return translateRegisterError(err, table)
			}
			continue
		}
		if bc.spec.Indexed {
			stmt := s.dl.CreateIndex(table,
				catalog.IndexName(table, bc.physicalName), bc.physicalName)
			if _, err := sess.Exec(ctx, stmt); err != nil {
				return translateRegisterError(err, table)
			}
		}
	}
	return nil
}
