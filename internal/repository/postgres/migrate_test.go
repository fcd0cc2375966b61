package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)

	assert.Contains(t, files, "migrations/000001_create_kv_store.up.sql")
	assert.Contains(t, files, "migrations/000001_create_kv_store.down.sql")

	up, err := fs.ReadFile(migrationFiles, "migrations/000001_create_kv_store.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS kv_store")
}
