package datatable

import (
	"context"
	"fmt"

	"github.com/koustreak/dyntable/internal/errs"
)

// Delete drops a datatable: it must be registered, hold no rows, and gate
// no entity lifecycle transition. Mappings, registration, and the physical
// table go as one transaction.
func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.appTableOf(ctx, name); err != nil {
		return err
	}
	rowCount, err := s.rowCount(ctx, name)
	if err != nil {
		return err
	}
	if rowCount > 0 {
		return errs.Conflict("datatable.non.empty.cannot.be.deleted",
			fmt.Sprintf("datatable %q holds %d rows and cannot be deleted", name, rowCount)).
			WithParam("datatableName")
	}
	attached, err := s.attachedCheckCount(ctx, name)
	if err != nil {
		return err
	}
	if attached > 0 {
		return errs.Conflict("datatable.cannot.be.deleted.attached.to.entity.check",
			fmt.Sprintf("datatable %q gates %d entity transition(s) and cannot be deleted", name, attached)).
			WithParam("datatableName")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.codes.DeleteTableMappings(ctx, tx, alias(name)); err != nil {
		return err
	}
	if err := s.deregister(ctx, tx, name); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DROP TABLE "+s.dl.Escape(name)); err != nil {
		return errs.Integrity("unknown data integrity issue with resource", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.log.With().Str("datatable", name).Logger().Info("datatable deleted")
	return nil
}

// attachedCheckCount counts entity-datatable checks referencing this
// datatable through the registry.
func (s *Service) attachedCheckCount(ctx context.Context, name string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s xrt JOIN %s edc ON edc.%s = xrt.%s WHERE xrt.%s = %s",
		s.dl.Escape("x_registered_table"), s.dl.Escape("m_entity_datatable_check"),
		s.dl.Escape("x_registered_table_name"), s.dl.Escape("registered_table_name"),
		s.dl.Escape("registered_table_name"), s.dl.Placeholder(1))
	var count int64
	if err := s.db.QueryRow(ctx, query, name).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
