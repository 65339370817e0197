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

// Update alters a datatable: adds, changes, and drops columns, each as its
// own ALTER statement so one failing batch cannot corrupt the others, and
// optionally re-points the table at a different application table.
func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) error {
	reg, err := s.Retrieve(ctx, nil, name)
	if err != nil {
		return err
	}
	cols, err := s.cat.Columns(ctx, name)
	if err != nil {
		return err
	}
	rowCount, err := s.rowCount(ctx, name)
	if err != nil {
		return err
	}
	tableAlias := alias(name)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if req.AppTable != "" && !strings.EqualFold(req.AppTable, reg.AppTable) {
		newApp, err := entity.Normalize(req.AppTable)
		if err != nil {
			return err
		}
		subType := reg.EntitySubType
		if req.EntitySubType != nil {
			subType = *req.EntitySubType
		}
		if err := s.repointEntity(ctx, tx, name, tableAlias, reg.AppTable, newApp, subType, reg.Category); err != nil {
			return err
		}
	} else if req.EntitySubType != nil {
		stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
			s.dl.Escape("x_registered_table"), s.dl.Escape("entity_subtype"), s.dl.Placeholder(1),
			s.dl.Escape("registered_table_name"), s.dl.Placeholder(2))
		if _, err := tx.Exec(ctx, stmt, *req.EntitySubType, name); err != nil {
			return err
		}
	}

	for _, colName := range req.DropColumns {
		if err := s.dropColumn(ctx, tx, name, tableAlias, cols, rowCount, colName); err != nil {
			return err
		}
	}
	for _, spec := range req.AddColumns {
		if err := s.addColumn(ctx, tx, name, tableAlias, rowCount, spec); err != nil {
			return err
		}
	}
	for _, ch := range req.ChangeColumns {
		if err := s.changeColumn(ctx, tx, name, tableAlias, cols, rowCount, ch); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Service) rowCount(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dl.Escape(table))
	var count int64
	if err := s.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Service) dropColumn(ctx context.Context, sess database.Session, name, tableAlias string,
	cols []catalog.Column, rowCount int64, colName string) error {
	if rowCount > 0 {
		return errs.Conflict("datatable.non.empty.column.cannot.be.deleted",
			fmt.Sprintf("column %q cannot be deleted: datatable %q holds rows", colName, name)).
			WithParam("name")
	}
	if !catalog.HasColumn(cols, colName) {
		return errs.NotFound("datatable.column.not.found",
			fmt.Sprintf("column %q does not exist in datatable %q", colName, name)).WithParam("name")
	}
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", s.dl.Escape(name), s.dl.Escape(colName))
	if _, err := sess.Exec(ctx, stmt); err != nil {
		return translateAlterError(err, colName)
	}
	return s.codes.DeleteColumnMapping(ctx, sess, codes.ColumnAlias(tableAlias, colName))
}

func (s *Service) addColumn(ctx context.Context, sess database.Session, name, tableAlias string,
	rowCount int64, spec ColumnSpec) error {
	if err := validateColumnSpec(spec); err != nil {
		return err
	}
	if spec.Mandatory && rowCount > 0 {
		return errs.Conflict("datatable.non.empty.mandatory.column.cannot.be.added",
			fmt.Sprintf("mandatory column %q cannot be added: datatable %q holds rows", spec.Name, name)).
			WithParam("name")
	}
	bc, err := s.buildColumn(ctx, tableAlias, spec)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD %s", s.dl.Escape(name), bc.definition)
	if _, err := sess.Exec(ctx, stmt); err != nil {
		return translateAlterError(err, spec.Name)
	}
	if bc.fkConstraint != "" {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD %s", s.dl.Escape(name), bc.fkConstraint)
		if _, err := sess.Exec(ctx, stmt); err != nil {
			return translateAlterError(err, spec.Name)
		}
	}
	if bc.mapping != nil {
		if err := s.codes.InsertColumnMapping(ctx, sess, bc.mapping.alias, bc.mapping.codeID); err != nil {
			return err
		}
	}
	return s.createKeyedColumns(ctx, sess, name, []builtColumn{bc})
}

// changeColumn renames, retypes, re-links, and re-keys one column. The
// physical rename happens first; every dependent artifact (unique
// constraint, index, foreign key, mapping row) is then dropped and
// recreated under the name convention so its state survives the rename.
func (s *Service) changeColumn(ctx context.Context, sess database.Session, name, tableAlias string,
	cols []catalog.Column, rowCount int64, ch ChangeColumnSpec) error {
	col := catalog.ColumnByName(cols, ch.Name)
	if col == nil {
		return errs.NotFound("datatable.column.not.found",
			fmt.Sprintf("column %q does not exist in datatable %q", ch.Name, name)).WithParam("name")
	}

	newName := ch.Name
	if ch.NewName != "" && ch.NewName != ch.Name {
		if err := validateColumnName(ch.NewName); err != nil {
			return err
		}
		newName = ch.NewName
	}
	if !s.opts.ConstraintApproach && ch.Code != nil && *ch.Code != "" {
		newName = legacyCodeName(*ch.Code, newName)
	}

	mandatory := !col.Nullable
	if ch.Mandatory != nil {
		mandatory = *ch.Mandatory
	}

	typeSQL, isString, err := s.changeTypeSQL(col, ch)
	if err != nil {
		return err
	}

	// A mandatory retype fails against existing NULLs; blank them first so
	// string columns never keep NULL once declared mandatory.
	if mandatory && col.Nullable && isString && rowCount > 0 {
		blank := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL",
			s.dl.Escape(name), s.dl.Escape(ch.Name), s.dl.Placeholder(1), s.dl.Escape(ch.Name))
		if _, err := sess.Exec(ctx, blank, ""); err != nil {
			return translateAlterError(err, ch.Name)
		}
	}

	for _, stmt := range s.dl.ChangeColumn(name, ch.Name, newName, typeSQL, mandatory) {
		if _, err := sess.Exec(ctx, stmt); err != nil {
			return translateAlterError(err, ch.Name)
		}
	}

	if err := s.rekeyColumn(ctx, sess, name, col, ch, newName); err != nil {
		return err
	}
	return s.remapColumn(ctx, sess, name, tableAlias, ch, newName)
}

// changeTypeSQL picks the column's target type: the requested one, or the
// current catalog declaration when the change only renames or re-flags.
func (s *Service) changeTypeSQL(col *catalog.Column, ch ChangeColumnSpec) (string, bool, error) {
	if ch.Type != "" {
		typeSQL, err := s.dl.ColumnTypeSQL(strings.ToLower(ch.Type), ch.Length)
		if err != nil {
			return "", false, err
		}
		return typeSQL, strings.EqualFold(ch.Type, dialect.TypeString), nil
	}
	switch col.Type {
	case "VARCHAR", "CHAR":
		return fmt.Sprintf("%s(%d)", col.Type, col.Length), true, nil
	case "DECIMAL", "NUMERIC":
		return "DECIMAL(19,6)", false, nil
	default:
		return col.Type, false, nil
	}
}

// rekeyColumn carries unique/index state across a rename and applies any
// requested toggle. Primary keys are left alone; their uniqueness is the
// table layout, not a named constraint.
func (s *Service) rekeyColumn(ctx context.Context, sess database.Session, name string,
	col *catalog.Column, ch ChangeColumnSpec, newName string) error {
	if col.PrimaryKey {
		return nil
	}
	renamed := newName != ch.Name

	unique := col.Unique
	wantUnique := unique
	if ch.Unique != nil {
		wantUnique = *ch.Unique
	}
	indexed := col.Indexed && !col.Unique
	wantIndexed := indexed
	if ch.Indexed != nil {
		wantIndexed = *ch.Indexed
	}
	// Unique constraints are backed by an index already.
	if wantUnique {
		wantIndexed = false
	}

	exec := func(stmt string) error {
		if _, err := sess.Exec(ctx, stmt); err != nil {
			return translateAlterError(err, ch.Name)
		}
		return nil
	}

	if unique && (renamed || !wantUnique) {
		if err := exec(s.dl.DropUniqueConstraint(name, catalog.UniqueConstraintName(name, ch.Name))); err != nil {
			return err
		}
		unique = false
	}
	if indexed && (renamed || !wantIndexed) {
		if err := exec(s.dl.DropIndex(name, catalog.IndexName(name, ch.Name))); err != nil {
			return err
		}
		indexed = false
	}
	if wantUnique && !unique {
		if err := exec(s.dl.AddUniqueConstraint(name, catalog.UniqueConstraintName(name, newName), newName)); err != nil {
			return err
		}
	}
	if wantIndexed && !indexed {
		if err := exec(s.dl.CreateIndex(name, catalog.IndexName(name, newName), newName)); err != nil {
			return err
		}
	}
	return nil
}

// remapColumn moves the lookup binding across a rename or a code change:
// the mapping row follows the column's alias and, under the constraint
// approach, the foreign key to the lookup value table is rebuilt.
func (s *Service) remapColumn(ctx context.Context, sess database.Session, name, tableAlias string,
	ch ChangeColumnSpec, newName string) error {
	oldAlias := codes.ColumnAlias(tableAlias, ch.Name)
	newAlias := codes.ColumnAlias(tableAlias, newName)

	mappedID, mapped, err := s.codes.MappedCodeID(ctx, oldAlias)
	if err != nil {
		return err
	}

	if ch.Code == nil {
		if mapped && newAlias != oldAlias {
			if s.opts.ConstraintApproach {
				if err := s.rebuildLookupFK(ctx, sess, name, tableAlias, ch.Name, newName); err != nil {
					return err
				}
			}
			return s.codes.UpdateColumnMapping(ctx, sess, oldAlias, newAlias, mappedID)
		}
		return nil
	}

	if *ch.Code == "" {
		if !mapped {
			return nil
		}
		if s.opts.ConstraintApproach {
			stmt := s.dl.DropForeignKey(name, "fk_"+tableAlias+"_"+ch.Name)
			if _, err := sess.Exec(ctx, stmt); err != nil {
				return translateAlterError(err, ch.Name)
			}
		}
		return s.codes.DeleteColumnMapping(ctx, sess, oldAlias)
	}

	codeID, err := s.codes.IDByName(ctx, *ch.Code)
	if err != nil {
		return err
	}
	if s.opts.ConstraintApproach {
		if mapped {
			if err := s.rebuildLookupFK(ctx, sess, name, tableAlias, ch.Name, newName); err != nil {
				return err
			}
		} else {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				s.dl.Escape(name), s.dl.Escape("fk_"+tableAlias+"_"+newName),
				s.dl.Escape(newName), s.dl.Escape("m_code_value"), s.dl.Escape("id"))
			if _, err := sess.Exec(ctx, stmt); err != nil {
				return translateAlterError(err, ch.Name)
			}
		}
	}
	if mapped {
		return s.codes.UpdateColumnMapping(ctx, sess, oldAlias, newAlias, codeID)
	}
	return s.codes.InsertColumnMapping(ctx, sess, newAlias, codeID)
}

func (s *Service) rebuildLookupFK(ctx context.Context, sess database.Session, name, tableAlias, oldCol, newCol string) error {
	drop := s.dl.DropForeignKey(name, "fk_"+tableAlias+"_"+oldCol)
	if _, err := sess.Exec(ctx, drop); err != nil {
		return translateAlterError(err, oldCol)
	}
	add := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		s.dl.Escape(name), s.dl.Escape("fk_"+tableAlias+"_"+newCol),
		s.dl.Escape(newCol), s.dl.Escape("m_code_value"), s.dl.Escape("id"))
	if _, err := sess.Exec(ctx, add); err != nil {
		return translateAlterError(err, newCol)
	}
	return nil
}

// legacyCodeName embeds the lookup category in a column name, replacing any
// category a previous name carried.
func legacyCodeName(code, name string) string {
	base := name
	if i := strings.Index(base, "_cd_"); i >= 0 {
		base = base[i+len("_cd_"):]
	}
	return code + "_cd_" + base
}

// repointEntity moves a datatable to a different application table: the
// reference column is renamed, the foreign key and its backing index are
// rebuilt, and the registration is replaced so the subtype and permission
// rows stay consistent.
func (s *Service) repointEntity(ctx context.Context, sess database.Session, name, tableAlias,
	oldApp, newApp, entitySubType string, category int) error {
	oldFK := entity.FKColumn(oldApp)
	newFK := entity.FKColumn(newApp)

	drop := s.dl.DropForeignKey(name, catalog.ForeignKeyName(tableAlias, oldFK))
	if _, err := sess.Exec(ctx, drop); err != nil {
		return translateAlterError(err, oldFK)
	}

	indexes, err := s.cat.Indexes(ctx, name)
	if err != nil {
		return err
	}
	hadFKIndex := false
	for _, ix := range indexes {
		if ix.Name == "fk_"+oldFK {
			hadFKIndex = true
			break
		}
	}
	if hadFKIndex {
		if _, err := sess.Exec(ctx, s.dl.DropIndex(name, "fk_"+oldFK)); err != nil {
			return translateAlterError(err, oldFK)
		}
	}

	for _, stmt := range s.dl.ChangeColumn(name, oldFK, newFK, "BIGINT", true) {
		if _, err := sess.Exec(ctx, stmt); err != nil {
			return translateAlterError(err, oldFK)
		}
	}

	if hadFKIndex {
		if _, err := sess.Exec(ctx, s.dl.CreateIndex(name, "fk_"+newFK, newFK)); err != nil {
			return translateAlterError(err, newFK)
		}
	}
	add := s.dl.AddForeignKey(name, catalog.ForeignKeyName(tableAlias, newFK), newFK, entity.Actual(newApp))
	if _, err := sess.Exec(ctx, add); err != nil {
		return translateAlterError(err, newFK)
	}

	if err := s.deregister(ctx, sess, name); err != nil {
		return err
	}
	return s.register(ctx, sess, name, newApp, entitySubType, category)
}
