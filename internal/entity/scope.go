package entity

import (
	"context"
	"fmt"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/dialect"
	"github.com/koustreak/dyntable/internal/errs"
)

// SecurityContext carries what data scoping and permission-aware discovery
// need to know about the caller. Implementations come from whatever
// authentication layer fronts this module.
type SecurityContext interface {
	// OfficeHierarchy is the caller's office hierarchy prefix; a row is in
	// scope when its office's hierarchy starts with it.
	OfficeHierarchy() string
	// HasAnyPermission reports whether the caller holds at least one of
	// the named permission codes.
	HasAnyPermission(codes ...string) bool
}

// Scoper verifies that an application table row exists and is visible
// within the caller's office hierarchy before any datatable row operation
// touches it.
type Scoper struct {
	db      database.DB
	dialect *dialect.Dialect
}

// NewScoper returns a scope checker over the given connection.
func NewScoper(db database.DB, dl *dialect.Dialect) *Scoper {
	return &Scoper{db: db, dialect: dl}
}

// CheckScope confirms the identified row is reachable by the caller. Loans
// and savings accounts connect to an office through either their client or
// their group; clients, groups, and offices connect directly; products are
// unscoped and only need to exist.
func (s *Scoper) CheckScope(ctx context.Context, sctx SecurityContext, appTable string, appTableID int64) error {
	appTable, err := Normalize(appTable)
	if err != nil {
		return err
	}
	query, args := s.scopeQuery(sctx, appTable, appTableID)

	var count int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return errs.NotFound("entity.not.found.in.scope",
			fmt.Sprintf("%s with id %d does not exist or is out of scope", appTable, appTableID)).
			WithParam("apptableId")
	}
	return nil
}

func (s *Scoper) scopeQuery(sctx SecurityContext, appTable string, appTableID int64) (string, []any) {
	dl := s.dialect
	hierarchy := sctx.OfficeHierarchy() + "%"

	switch appTable {
	case Loan, SavingsAccount:
		// Accounts reach an office through a client or a group; held by a
		// client in a group, both branches match the same account.
		table := dl.Escape(appTable)
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM ("+
				"SELECT a.%[1]s FROM %[2]s a"+
				" JOIN %[3]s c ON c.%[1]s = a.%[4]s"+
				" JOIN %[5]s o ON o.%[1]s = c.%[6]s AND o.%[7]s LIKE %[8]s"+
				" WHERE a.%[1]s = %[9]s"+
				" UNION ALL "+
				"SELECT a.%[1]s FROM %[2]s a"+
				" JOIN %[10]s g ON g.%[1]s = a.%[11]s"+
				" JOIN %[5]s o ON o.%[1]s = g.%[6]s AND o.%[7]s LIKE %[12]s"+
				" WHERE a.%[1]s = %[13]s"+
				") x",
			dl.Escape("id"), table,
			dl.Escape(Client), dl.Escape("client_id"),
			dl.Escape(Office), dl.Escape("office_id"), dl.Escape("hierarchy"),
			dl.Placeholder(1), dl.Placeholder(2),
			dl.Escape(Group), dl.Escape("group_id"),
			dl.Placeholder(3), dl.Placeholder(4),
		), []any{hierarchy, appTableID, hierarchy, appTableID}

	case Client:
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s c JOIN %s o ON o.%s = c.%s AND o.%s LIKE %s WHERE c.%s = %s",
			dl.Escape(Client), dl.Escape(Office),
			dl.Escape("id"), dl.Escape("office_id"), dl.Escape("hierarchy"),
			dl.Placeholder(1), dl.Escape("id"), dl.Placeholder(2),
		), []any{hierarchy, appTableID}

	case Group, Center:
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s g JOIN %s o ON o.%s = g.%s AND o.%s LIKE %s WHERE g.%s = %s",
			dl.Escape(Group), dl.Escape(Office),
			dl.Escape("id"), dl.Escape("office_id"), dl.Escape("hierarchy"),
			dl.Placeholder(1), dl.Escape("id"), dl.Placeholder(2),
		), []any{hierarchy, appTableID}

	case Office:
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s o WHERE o.%s LIKE %s AND o.%s = %s",
			dl.Escape(Office), dl.Escape("hierarchy"),
			dl.Placeholder(1), dl.Escape("id"), dl.Placeholder(2),
		), []any{hierarchy, appTableID}

	default:
		return fmt.Sprintf(
			"SELECT COUNT(*) FROM %s p WHERE p.%s = %s",
			dl.Escape(appTable), dl.Escape("id"), dl.Placeholder(1),
		), []any{appTableID}
	}
}
