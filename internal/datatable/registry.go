package datatable

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/entity"
	"github.com/koustreak/dyntable/internal/errs"
)

// The seven permission codes seeded per datatable. Maker-checker applies to
// the writing actions only.
type permissionSeed struct {
	code         string
	action       string
	makerChecker bool
}

func permissionSeeds(datatable string) []permissionSeed {
	return []permissionSeed{
		{"CREATE_" + datatable, "CREATE", true},
		{"CREATE_" + datatable + "_CHECKER", "CREATE", false},
		{"READ_" + datatable, "READ", false},
		{"UPDATE_" + datatable, "UPDATE", true},
		{"UPDATE_" + datatable + "_CHECKER", "UPDATE", false},
		{"DELETE_" + datatable, "DELETE", true},
		{"DELETE_" + datatable + "_CHECKER", "DELETE", false},
	}
}

func permissionCodes(datatable string) []string {
	seeds := permissionSeeds(datatable)
	codes := make([]string, len(seeds))
	for i, s := range seeds {
		codes[i] = s.code
	}
	return codes
}

// Register records an existing physical table in the registry and seeds its
// permission codes. Survey tables additionally get a disabled feature-toggle
// row. Everything runs in one transaction so a duplicate leaves no trace.
func (s *Service) Register(ctx context.Context, name, appTable, entitySubType string, category int) error {
	appTable, err := entity.Normalize(appTable)
	if err != nil {
		return err
	}
	if err := validateDatatableName(name); err != nil {
		return err
	}
	exists, err := s.cat.TableExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return errs.NotFound("datatable.not.found",
			fmt.Sprintf("datatable %q does not exist", name)).WithParam("datatableName")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.register(ctx, tx, name, appTable, entitySubType, category); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) register(ctx context.Context, sess database.Session, name, appTable, entitySubType string, category int) error {
	if category == 0 {
		category = CategoryDefault
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s, %s, %s, %s)",
		s.dl.Escape("x_registered_table"),
		s.dl.Escape("registered_table_name"), s.dl.Escape("application_table_name"),
		s.dl.Escape("entity_subtype"), s.dl.Escape("category"),
		s.dl.Placeholder(1), s.dl.Placeholder(2), s.dl.Placeholder(3), s.dl.Placeholder(4))
	if _, err := sess.Exec(ctx, insert, name, appTable, entitySubType, category); err != nil {
		return translateRegisterError(err, name)
	}

	if err := s.insertPermissions(ctx, sess, name); err != nil {
		return translateRegisterError(err, name)
	}

	if category == CategorySurvey {
		toggle := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s)",
			s.dl.Escape("c_configuration"),
			s.dl.Escape("name"), s.dl.Escape("value"), s.dl.Escape("enabled"),
			s.dl.Placeholder(1), s.dl.Placeholder(2), s.dl.Placeholder(3))
		if _, err := sess.Exec(ctx, toggle, name, "0", false); err != nil {
			return translateRegisterError(err, name)
		}
	}
	return nil
}

func (s *Service) insertPermissions(ctx context.Context, sess database.Session, name string) error {
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s) VALUES (%s, %s, %s, %s, %s)",
		s.dl.Escape("m_permission"),
		s.dl.Escape("grouping"), s.dl.Escape("code"), s.dl.Escape("action_name"),
		s.dl.Escape("entity_name"), s.dl.Escape("can_maker_checker"),
		s.dl.Placeholder(1), s.dl.Placeholder(2), s.dl.Placeholder(3),
		s.dl.Placeholder(4), s.dl.Placeholder(5))
	for _, p := range permissionSeeds(name) {
		if _, err := sess.Exec(ctx, insert, "datatable", p.code, p.action, name, p.makerChecker); err != nil {
			return err
		}
	}
	return nil
}

// Deregister removes the registry row, the seeded permissions, any role
// grants over them, and the feature-toggle row, as one transaction.
func (s *Service) Deregister(ctx context.Context, name string) error {
	if _, err := s.appTableOf(ctx, name); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.deregister(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) deregister(ctx context.Context, sess database.Session, name string) error {
	codes := permissionCodes(name)
	placeholders := make([]string, len(codes))
	args := make([]any, len(codes))
	for i, c := range codes {
		placeholders[i] = s.dl.Placeholder(i + 1)
		args[i] = c
	}
	in := "(" + strings.Join(placeholders, ", ") + ")"

	statements := []string{
		fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s IN %s)",
			s.dl.Escape("m_role_permission"), s.dl.Escape("permission_id"),
			s.dl.Escape("id"), s.dl.Escape("m_permission"), s.dl.Escape("code"), in),
		fmt.Sprintf("DELETE FROM %s WHERE %s IN %s",
			s.dl.Escape("m_permission"), s.dl.Escape("code"), in),
	}
	for _, stmt := range statements {
		if _, err := sess.Exec(ctx, stmt, args...); err != nil {
			return err
		}
	}

	single := []struct{ table, column string }{
		{"x_registered_table", "registered_table_name"},
		{"c_configuration", "name"},
	}
	for _, d := range single {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			s.dl.Escape(d.table), s.dl.Escape(d.column), s.dl.Placeholder(1))
		if _, err := sess.Exec(ctx, stmt, name); err != nil {
			return err
		}
	}
	return nil
}

// appTableOf resolves a registered datatable to its application table.
func (s *Service) appTableOf(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.dl.Escape("application_table_name"), s.dl.Escape("x_registered_table"),
		s.dl.Escape("registered_table_name"), s.dl.Placeholder(1))
	var appTable string
	if err := s.db.QueryRow(ctx, query, name).Scan(&appTable); err != nil {
		if errs.IsNotFound(err) {
			return "", errs.NotFound("datatable.not.found",
				fmt.Sprintf("datatable %q is not registered", name)).WithParam("datatableName")
		}
		return "", err
	}
	return appTable, nil
}

// IsRegistered reports whether a datatable name is present in the registry.
func (s *Service) IsRegistered(ctx context.Context, name string) (bool, error) {
	_, err := s.appTableOf(ctx, name)
	if errs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) scanRegistrations(ctx context.Context, query string, args ...any) ([]Registration, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		var r Registration
		var subType *string
		if err := rows.Scan(&r.Name, &r.AppTable, &subType, &r.Category); err != nil {
			return nil, err
		}
		if subType != nil {
			r.EntitySubType = *subType
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

func (s *Service) registrationSelect() string {
	return fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s",
		s.dl.Escape("registered_table_name"), s.dl.Escape("application_table_name"),
		s.dl.Escape("entity_subtype"), s.dl.Escape("category"),
		s.dl.Escape("x_registered_table"))
}

// RetrieveAll lists registered datatables the caller may read, optionally
// narrowed to one application table. A nil security context skips the
// permission filter.
func (s *Service) RetrieveAll(ctx context.Context, sctx entity.SecurityContext, appTable string) ([]Registration, error) {
	query := s.registrationSelect()
	var args []any
	if appTable != "" {
		query += fmt.Sprintf(" WHERE %s = %s", s.dl.Escape("application_table_name"), s.dl.Placeholder(1))
		args = append(args, appTable)
	}
	query += fmt.Sprintf(" ORDER BY %s, %s",
		s.dl.Escape("application_table_name"), s.dl.Escape("registered_table_name"))

	regs, err := s.scanRegistrations(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if sctx == nil {
		return regs, nil
	}
	visible := make([]Registration, 0, len(regs))
	for _, r := range regs {
		if sctx.HasAnyPermission("ALL_FUNCTIONS", "ALL_FUNCTIONS_READ", "READ_"+r.Name) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// Retrieve returns one registered datatable, subject to the same read
// permission as RetrieveAll.
func (s *Service) Retrieve(ctx context.Context, sctx entity.SecurityContext, name string) (*Registration, error) {
	query := s.registrationSelect() +
		fmt.Sprintf(" WHERE %s = %s", s.dl.Escape("registered_table_name"), s.dl.Placeholder(1))
	regs, err := s.scanRegistrations(ctx, query, name)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, errs.NotFound("datatable.not.found",
			fmt.Sprintf("datatable %q is not registered", name)).WithParam("datatableName")
	}
	r := regs[0]
	if sctx != nil && !sctx.HasAnyPermission("ALL_FUNCTIONS", "ALL_FUNCTIONS_READ", "READ_"+r.Name) {
		return nil, errs.NotFound("datatable.not.found",
			fmt.Sprintf("datatable %q is not registered", name)).WithParam("datatableName")
	}
	return &r, nil
}
