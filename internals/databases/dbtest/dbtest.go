// Package dbtest opens a migrated in-memory SQLite database per test.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	database "rentflow_backend/internals/databases"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])

	db, err := database.OpenSQLite(dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { database.Close(db) })
	return db
}
