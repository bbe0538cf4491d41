// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/database"
)

// Open returns a freshly migrated, private in-memory SQLite database that
// is closed when the test ends.
func Open(t testing.TB) *database.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1"
	db, err := database.Open(context.Background(), database.Config{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
