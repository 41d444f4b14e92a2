package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempConfig(t *testing.T) Config {
	t.Helper()
	return Config{Path: filepath.Join(t.TempDir(), "sites.db")}
}

func TestRunMigrations_EmbeddedSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(tempConfig(t), testLogger())
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrationManager(db, testLogger())
	require.NoError(t, m.RunMigrations(ctx))
	// Second run is a no-op
	require.NoError(t, m.RunMigrations(ctx))

	applied, err := m.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, applied)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sites").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestLoadMigrations_OrdersAndSkipsBadNames(t *testing.T) {
	source := fstest.MapFS{
		"m/010_later.sql":   {Data: []byte("SELECT 1;")},
		"m/002_earlier.sql": {Data: []byte("SELECT 2;")},
		"m/notes.txt":       {Data: []byte("ignored")},
		"m/broken.sql":      {Data: []byte("SELECT 3;")},
	}
	m := NewMigrationManagerFS(nil, source, "m", testLogger())

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "002_earlier", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestApplyMigration_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, err := Open(tempConfig(t), testLogger())
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrationManagerFS(db, fstest.MapFS{}, ".", testLogger())
	require.NoError(t, m.InitMigrationsTable(ctx))

	err = m.ApplyMigration(ctx, Migration{Version: 7, Name: "007_bad", SQL: "CREATE TABLE"})
	require.Error(t, err)

	applied, err := m.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
