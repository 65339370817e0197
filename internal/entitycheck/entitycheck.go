// Package entitycheck is the guard consulted before entity lifecycle
// transitions: a small rule registry mapping (entity, status, optional
// product) to datatables that must hold at least one row before the
// transition may proceed.
package entitycheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
	"github.com/koustreak/dyntable/internal/logger"
)

// Check is one gating rule.
type Check struct {
	ID            int64  `json:"id"`
	EntityName    string `json:"entity"`
	Status        int    `json:"status"`
	Datatable     string `json:"datatableName"`
	SubType       string `json:"entitySubType,omitempty"`
	ProductID     *int64 `json:"productId,omitempty"`
	SystemDefined bool   `json:"systemDefined"`
}

// CreateRequest declares a new gating rule.
type CreateRequest struct {
	EntityName string `json:"entity"`
	Status     int    `json:"status"`
	Datatable  string `json:"datatableName"`
	SubType    string `json:"entitySubType,omitempty"`
	ProductID  *int64 `json:"productId,omitempty"`
}

// Service manages and evaluates entity-datatable checks.
type Service struct {
	db  database.DB
	dl  *dialect.Dialect
	log *logger.Logger
}

// New returns a check service over the given connection.
func New(db database.DB, dl *dialect.Dialect, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New(nil)
	}
	return &Service{db: db, dl: dl, log: log}
}

const checkColumns = "id, application_table_name, status_enum, x_registered_table_name, entity_subtype, product_id, system_defined"

func (s *Service) checkSelect() string {
	names := strings.Split(checkColumns, ", ")
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = s.dl.Escape(n)
	}
	return fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(escaped, ", "), s.dl.Escape("m_entity_datatable_check"))
}

func (s *Service) scanChecks(ctx context.Context, query string, args ...any) ([]Check, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]Check, 0)
	for rows.Next() {
		var c Check
		var subType *string
		if err := rows.Scan(&c.ID, &c.EntityName, &c.Status, &c.Datatable, &subType, &c.ProductID, &c.SystemDefined); err != nil {
			return nil, err
		}
		if subType != nil {
			c.SubType = *subType
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// CreateCheck registers a gating rule. At most one rule may exist for a
// given (entity, status, datatable, product) tuple; the registered
// datatable must extend the entity being gated.
func (s *Service) CreateCheck(ctx context.Context, req CreateRequest) (int64, error) {
	appTable, err := s.registeredAppTable(ctx, req.Datatable)
	if err != nil {
		return 0, err
	}
	if !strings.EqualFold(appTable, req.EntityName) {
		return 0, errs.Validation("entity.datatable.check.entity.mismatch",
			fmt.Sprintf("datatable %q extends %q, not %q", req.Datatable, appTable, req.EntityName)).
			WithParam("datatableName")
	}
	duplicate, err := s.exists(ctx, req)
	if err != nil {
		return 0, err
	}
	if duplicate {
		return 0, errs.Conflict("entity.datatable.check.duplicate",
			fmt.Sprintf("a check for datatable %q with the same entity, status, and product already exists", req.Datatable)).
			WithParam("datatableName")
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (%s, %s, %s, %s, %s, %s)%s",
		s.dl.Escape("m_entity_datatable_check"),
		s.dl.Escape("application_table_name"), s.dl.Escape("status_enum"),
		s.dl.Escape("x_registered_table_name"), s.dl.Escape("entity_subtype"),
		s.dl.Escape("product_id"), s.dl.Escape("system_defined"),
		s.dl.Placeholder(1), s.dl.Placeholder(2), s.dl.Placeholder(3),
		s.dl.Placeholder(4), s.dl.Placeholder(5), s.dl.Placeholder(6),
		s.dl.ReturningClause())

	id, err := s.db.InsertReturningID(ctx, insert,
		req.EntityName, req.Status, req.Datatable, req.SubType, req.ProductID, false)
	if err != nil {
		if errs.IsConflict(err) {
			return 0, errs.Conflict("entity.datatable.check.duplicate",
				fmt.Sprintf("a check for datatable %q with the same entity, status, and product already exists", req.Datatable)).
				WithParam("datatableName")
		}
		return 0, err
	}
	return id, nil
}

func (s *Service) registeredAppTable(ctx context.Context, datatable string) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.dl.Escape("application_table_name"), s.dl.Escape("x_registered_table"),
		s.dl.Escape("registered_table_name"), s.dl.Placeholder(1))
	var appTable string
	if err := s.db.QueryRow(ctx, query, datatable).Scan(&appTable); err != nil {
		if errs.IsNotFound(err) {
			return "", errs.NotFound("datatable.not.found",
				fmt.Sprintf("datatable %q is not registered", datatable)).WithParam("datatableName")
		}
		return "", err
	}
	return appTable, nil
}

func (s *Service) exists(ctx context.Context, req CreateRequest) (bool, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s = %s AND %s = %s AND %s = %s",
		s.dl.Escape("m_entity_datatable_check"),
		s.dl.Escape("application_table_name"), s.dl.Placeholder(1),
		s.dl.Escape("status_enum"), s.dl.Placeholder(2),
		s.dl.Escape("x_registered_table_name"), s.dl.Placeholder(3))
	args := []any{req.EntityName, req.Status, req.Datatable}
	if req.ProductID != nil {
		query += fmt.Sprintf(" AND %s = %s", s.dl.Escape("product_id"), s.dl.Placeholder(4))
		args = append(args, *req.ProductID)
	} else {
		query += fmt.Sprintf(" AND %s IS NULL", s.dl.Escape("product_id"))
	}
	var count int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteCheck removes one rule by id.
func (s *Service) DeleteCheck(ctx context.Context, id int64) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.dl.Escape("m_entity_datatable_check"), s.dl.Escape("id"), s.dl.Placeholder(1))
	affected, err := s.db.Exec(ctx, stmt, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFound("entity.datatable.check.not.found",
			fmt.Sprintf("entity datatable check %d does not exist", id)).WithParam("id")
	}
	return nil
}

// ListChecks returns every rule for an entity, optionally narrowed by
// status and product. The result is empty, never nil, when nothing
// applies.
func (s *Service) ListChecks(ctx context.Context, entityName string, status *int, productID *int64) ([]Check, error) {
	query := s.checkSelect()
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, s.dl.Placeholder(len(args))))
	}
	if entityName != "" {
		add(s.dl.Escape("application_table_name")+" = %s", entityName)
	}
	if status != nil {
		add(s.dl.Escape("status_enum")+" = %s", *status)
	}
	if productID != nil {
		add(s.dl.Escape("product_id")+" = %s", *productID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s", s.dl.Escape("id"))
	return s.scanChecks(ctx, query, args...)
}

func (s *Service) applicableChecks(ctx context.Context, entityName string, status int, productID *int64) ([]Check, error) {
	if productID != nil {
		checks, err := s.ListChecks(ctx, entityName, &status, productID)
		if err != nil {
			return nil, err
		}
		if len(checks) > 0 {
			return checks, nil
		}
	}
	query := s.checkSelect() + fmt.Sprintf(
		" WHERE %s = %s AND %s = %s AND %s IS NULL ORDER BY %s",
		s.dl.Escape("application_table_name"), s.dl.Placeholder(1),
		s.dl.Escape("status_enum"), s.dl.Placeholder(2),
		s.dl.Escape("product_id"), s.dl.Escape("id"))
	return s.scanChecks(ctx, query, entityName, status)
}

// RunTheCheck evaluates every applicable rule for the transition and fails
// with the full list of unpopulated datatables; it never enforces
// partially.
func (s *Service) RunTheCheck(ctx context.Context, entityID int64, entityName string, status int, fkColumn string) error {
	return s.run(ctx, entityID, entityName, status, fkColumn, nil)
}

// RunTheCheckForProduct is RunTheCheck with product-scoped rules taking
// priority: when any rule targets this product, only those apply; otherwise
// the non-product rules for the same entity and status do.
func (s *Service) RunTheCheckForProduct(ctx context.Context, entityID int64, entityName string, status int, fkColumn string, productID int64) error {
	return s.run(ctx, entityID, entityName, status, fkColumn, &productID)
}

func (s *Service) run(ctx context.Context, entityID int64, entityName string, status int, fkColumn string, productID *int64) error {
	checks, err := s.applicableChecks(ctx, entityName, status, productID)
	if err != nil {
		return err
	}

	var missing []string
	for _, c := range checks {
		query, args, err := database.Select(c.Datatable, s.db.Driver()).
			Count().Where(fkColumn, "=", entityID).Build()
		if err != nil {
			return err
		}
		var count int64
		if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			missing = append(missing, c.Datatable)
		}
	}
	if len(missing) > 0 {
		return errs.Conflict("datatable.entry.required",
			fmt.Sprintf("datatable entries required before this transition: %s", strings.Join(missing, ", "))).
			WithParam(strings.Join(missing, ","))
	}
	return nil
}
