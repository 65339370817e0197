package datatable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/database/dbtest"
	"github.com/koustreak/dyntable/internal/errs"
)

type stubContext struct {
	hierarchy   string
	permissions map[string]bool
}

func (s *stubContext) OfficeHierarchy() string { return s.hierarchy }

func (s *stubContext) HasAnyPermission(codes ...string) bool {
	for _, c := range codes {
		if s.permissions[c] {
			return true
		}
	}
	return false
}

func TestRegister(t *testing.T) {
	t.Run("registers and seeds permissions", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubValue("count", int64(1)) // table exists

		require.NoError(t, svc.Register(context.Background(), "extra client details", "m_client", "", 0))

		require.Len(t, db.ExecCalls, 8)
		reg := db.ExecCalls[0]
		assert.Equal(t,
			"INSERT INTO `x_registered_table` (`registered_table_name`, `application_table_name`, `entity_subtype`, `category`) VALUES (?, ?, ?, ?)",
			reg.SQL)
		assert.Equal(t, []any{"extra client details", "m_client", "", CategoryDefault}, reg.Args)

		wantCodes := []string{
			"CREATE_extra client details", "CREATE_extra client details_CHECKER",
			"READ_extra client details",
			"UPDATE_extra client details", "UPDATE_extra client details_CHECKER",
			"DELETE_extra client details", "DELETE_extra client details_CHECKER",
		}
		wantMakerChecker := []bool{true, false, false, true, false, true, false}
		for i, call := range db.ExecCalls[1:] {
			assert.Equal(t,
				"INSERT INTO `m_permission` (`grouping`, `code`, `action_name`, `entity_name`, `can_maker_checker`) VALUES (?, ?, ?, ?, ?)",
				call.SQL)
			assert.Equal(t, "datatable", call.Args[0])
			assert.Equal(t, wantCodes[i], call.Args[1])
			assert.Equal(t, "extra client details", call.Args[3])
			assert.Equal(t, wantMakerChecker[i], call.Args[4])
		}
		assert.Equal(t, 1, db.Committed)
	})

	t.Run("survey category seeds a disabled toggle", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverPostgres, Options{})
		db.StubValue("count", int64(1))

		require.NoError(t, svc.Register(context.Background(), "ppi_survey", "m_client", "", CategorySurvey))

		require.Len(t, db.ExecCalls, 9)
		toggle := db.LastExec()
		assert.Equal(t,
			`INSERT INTO "c_configuration" ("name", "value", "enabled") VALUES ($1, $2, $3)`,
			toggle.SQL)
		assert.Equal(t, []any{"ppi_survey", "0", false}, toggle.Args)
	})

	t.Run("missing physical table", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubValue("count", int64(0))

		err := svc.Register(context.Background(), "ghost_table", "m_client", "", 0)
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
		assert.Equal(t, "datatable.not.found", errs.CodeOf(err))
		assert.Zero(t, db.Begun)
	})

	t.Run("unknown application table", func(t *testing.T) {
		svc, _ := newTestService(t, database.DriverMySQL, Options{})

		err := svc.Register(context.Background(), "extra details", "m_ledger", "", 0)
		require.Error(t, err)
		assert.True(t, errs.IsValidation(err))
		assert.Equal(t, "datatable.application.table.invalid", errs.CodeOf(err))
	})

	t.Run("duplicate registration rolls back", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubValue("count", int64(1))
		db.StubExec(0, errs.New(errs.ErrKindQueryFailed, "Error 1062: Duplicate entry 'extra details'"))

		err := svc.Register(context.Background(), "extra details", "m_client", "", 0)
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
		assert.Equal(t, "datatable.already.registered", errs.CodeOf(err))
		assert.Equal(t, 1, db.RolledBack)
		assert.Zero(t, db.Committed)
	})
}

func TestDeregister(t *testing.T) {
	svc, db := newTestService(t, database.DriverMySQL, Options{})
	stubAppTable(db, "m_client")

	require.NoError(t, svc.Deregister(context.Background(), "extra client details"))

	sql := execSQL(db.ExecCalls)
	require.Len(t, sql, 4)
	assert.Equal(t,
		"DELETE FROM `m_role_permission` WHERE `permission_id` IN (SELECT `id` FROM `m_permission` WHERE `code` IN (?, ?, ?, ?, ?, ?, ?))",
		sql[0])
	assert.Equal(t, "DELETE FROM `m_permission` WHERE `code` IN (?, ?, ?, ?, ?, ?, ?)", sql[1])
	assert.Equal(t, "DELETE FROM `x_registered_table` WHERE `registered_table_name` = ?", sql[2])
	assert.Equal(t, "DELETE FROM `c_configuration` WHERE `name` = ?", sql[3])

	wantCodes := []any{
		"CREATE_extra client details", "CREATE_extra client details_CHECKER",
		"READ_extra client details",
		"UPDATE_extra client details", "UPDATE_extra client details_CHECKER",
		"DELETE_extra client details", "DELETE_extra client details_CHECKER",
	}
	assert.Equal(t, wantCodes, db.ExecCalls[0].Args)
	assert.Equal(t, wantCodes, db.ExecCalls[1].Args)
	assert.Equal(t, 1, db.Committed)
}

func TestDeregisterUnknown(t *testing.T) {
	svc, db := newTestService(t, database.DriverMySQL, Options{})
	stubNotRegistered(db)

	err := svc.Deregister(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, "datatable.not.found", errs.CodeOf(err))
	assert.Zero(t, db.Begun)
}

func TestRetrieveAll(t *testing.T) {
	regRows := func() *dbtest.Result {
		return &dbtest.Result{
			Columns: []string{"registered_table_name", "application_table_name", "entity_subtype", "category"},
			Rows: [][]any{
				{"client kyc", "m_client", ptr("Person"), 100},
				{"loan notes", "m_loan", (*string)(nil), 100},
			},
		}
	}

	t.Run("nil context sees everything", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubQuery(regRows())

		regs, err := svc.RetrieveAll(context.Background(), nil, "")
		require.NoError(t, err)
		require.Len(t, regs, 2)
		assert.Equal(t, "Person", regs[0].EntitySubType)
		assert.Contains(t, db.Calls[0].SQL, "ORDER BY `application_table_name`, `registered_table_name`")
		assert.Empty(t, db.Calls[0].Args)
	})

	t.Run("filtered by application table", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubQuery(regRows())

		_, err := svc.RetrieveAll(context.Background(), nil, "m_client")
		require.NoError(t, err)
		assert.Contains(t, db.Calls[0].SQL, "WHERE `application_table_name` = ?")
		assert.Equal(t, []any{"m_client"}, db.Calls[0].Args)
	})

	t.Run("read permission narrows the list", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubQuery(regRows())
		sctx := &stubContext{permissions: map[string]bool{"READ_loan notes": true}}

		regs, err := svc.RetrieveAll(context.Background(), sctx, "")
		require.NoError(t, err)
		require.Len(t, regs, 1)
		assert.Equal(t, "loan notes", regs[0].Name)
	})

	t.Run("ALL_FUNCTIONS sees everything", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubQuery(regRows())
		sctx := &stubContext{permissions: map[string]bool{"ALL_FUNCTIONS": true}}

		regs, err := svc.RetrieveAll(context.Background(), sctx, "")
		require.NoError(t, err)
		assert.Len(t, regs, 2)
	})
}

func TestRetrieve(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubRegistration(db, "client kyc", "m_client")

		reg, err := svc.Retrieve(context.Background(), nil, "client kyc")
		require.NoError(t, err)
		assert.Equal(t, "m_client", reg.AppTable)
		assert.Equal(t, 100, reg.Category)
	})

	t.Run("hidden by permissions reads as missing", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubRegistration(db, "client kyc", "m_client")
		sctx := &stubContext{permissions: map[string]bool{}}

		_, err := svc.Retrieve(context.Background(), sctx, "client kyc")
		require.Error(t, err)
		assert.Equal(t, "datatable.not.found", errs.CodeOf(err))
	})

	t.Run("unregistered", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		db.StubQuery(&dbtest.Result{Columns: []string{"registered_table_name", "application_table_name", "entity_subtype", "category"}})

		_, err := svc.Retrieve(context.Background(), nil, "ghost")
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})
}
