package datatable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/database"
	"github.com/koustreak/dyntable/internal/errs"
)

func TestDelete(t *testing.T) {
	t.Run("drops table, registration, and mappings", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubAppTable(db, "m_client")
		db.StubValue("count", int64(0)) // rows
		db.StubValue("count", int64(0)) // attached checks

		require.NoError(t, svc.Delete(context.Background(), "client details"))

		sql := execSQL(db.ExecCalls)
		require.Len(t, sql, 6)
		assert.Contains(t, sql[0], "x_table_column_code_mappings")
		assert.Equal(t, []any{"client_details_%"}, db.ExecCalls[0].Args)
		assert.Contains(t, sql[1], "m_role_permission")
		assert.Contains(t, sql[2], "m_permission")
		assert.Contains(t, sql[3], "x_registered_table")
		assert.Contains(t, sql[4], "c_configuration")
		assert.Equal(t, "DROP TABLE `client details`", sql[5])
		assert.Equal(t, 1, db.Committed)
	})

	t.Run("refused while rows exist", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubAppTable(db, "m_client")
		db.StubValue("count", int64(4))

		err := svc.Delete(context.Background(), "client details")
		require.Error(t, err)
		assert.True(t, errs.IsConflict(err))
		assert.Equal(t, "datatable.non.empty.cannot.be.deleted", errs.CodeOf(err))
		assert.Zero(t, db.Begun)
	})

	t.Run("refused while an entity check attaches it", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubAppTable(db, "m_client")
		db.StubValue("count", int64(0))
		db.StubValue("count", int64(1))

		err := svc.Delete(context.Background(), "client details")
		require.Error(t, err)
		assert.Equal(t, "datatable.cannot.be.deleted.attached.to.entity.check", errs.CodeOf(err))
		assert.Zero(t, db.Begun)
	})

	t.Run("unregistered", func(t *testing.T) {
		svc, db := newTestService(t, database.DriverMySQL, Options{})
		stubNotRegistered(db)

		err := svc.Delete(context.Background(), "ghost")
		require.Error(t, err)
		assert.True(t, errs.IsNotFound(err))
	})
}
