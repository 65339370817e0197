package datatable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/dyntable/internal/errs"
)

func TestTranslateRegisterError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"mysql duplicate", errors.New("Error 1062: Duplicate entry 'extra' for key 'registered_table_name'"),
			"datatable.already.registered"},
		{"postgres duplicate", errors.New("ERROR: duplicate key value violates unique constraint"),
			"datatable.already.registered"},
		{"conflict kind with duplicate message",
			errs.Wrap(errs.ErrKindConflict,
				"exec failed: Error 1062: Duplicate entry 'extra' for key 'registered_table_name'",
				errors.New("dup")),
			"datatable.already.registered"},
		{"foreign key violation", errs.Wrap(errs.ErrKindConflict,
			"exec failed: Error 1452: Cannot add or update a child row: a foreign key constraint fails",
			errors.New("fk")), ""},
		{"anything else", errors.New("connection reset"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateRegisterError(tt.err, "extra")
			if tt.code == "" {
				assert.True(t, errs.IsIntegrity(got))
				return
			}
			assert.True(t, errs.IsConflict(got))
			assert.Equal(t, tt.code, errs.CodeOf(got))
		})
	}
	assert.NoError(t, translateRegisterError(nil, "extra"))
}

func TestTranslateEntryError(t *testing.T) {
	t.Run("duplicate either engine", func(t *testing.T) {
		for _, msg := range []string{
			"Error 1062: Duplicate entry '7' for key 'PRIMARY'",
			"ERROR: duplicate key value violates unique constraint \"uk_t_c\"",
		} {
			got := translateEntryError(errors.New(msg), "extra")
			assert.True(t, errs.IsConflict(got), msg)
			assert.Equal(t, "datatable.entry.duplicate", errs.CodeOf(got), msg)
		}
	})

	t.Run("mandatory column missing either engine", func(t *testing.T) {
		for _, msg := range []string{
			"Error 1364: Field 'notes' doesn't have a default value",
			"ERROR: null value in column \"notes\" violates not-null constraint",
			"Error 1048: Column cannot be null",
		} {
			got := translateEntryError(errors.New(msg), "extra")
			assert.True(t, errs.IsValidation(got), msg)
			assert.Equal(t, "datatable.entry.mandatory.column.missing", errs.CodeOf(got), msg)
		}
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		in := errs.NotFound("datatable.entry.not.found", "gone")
		got := translateEntryError(in, "extra")
		assert.True(t, errs.IsNotFound(got))
		assert.Equal(t, "datatable.entry.not.found", errs.CodeOf(got))
	})

	t.Run("fallback is integrity", func(t *testing.T) {
		got := translateEntryError(errors.New("disk full"), "extra")
		assert.True(t, errs.IsIntegrity(got))
	})
}

func TestTranslateAlterError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"mysql nulls", errors.New("Error 1138: Invalid use of NULL value"),
			"datatable.column.contains.null.values"},
		{"postgres nulls", errors.New("ERROR: column \"notes\" contains null values"),
			"datatable.column.contains.null.values"},
		{"duplicate values", errors.New("Duplicate entry 'x' for key 'uk_t_c'"),
			"datatable.column.update.not.allowed"},
		{"mysql unknown column", errors.New("Error 1054: Unknown column 'ghost' in 'client details'"),
			"datatable.column.update.not.allowed"},
		{"postgres cast failure", errors.New("ERROR: column \"notes\" cannot be cast automatically to type integer"),
			"datatable.column.update.not.allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateAlterError(tt.err, "notes")
			assert.True(t, errs.IsConflict(got))
			assert.Equal(t, tt.code, errs.CodeOf(got))
		})
	}
}
