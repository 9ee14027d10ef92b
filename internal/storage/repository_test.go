package storage_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
	"spendwise/internal/storage"
	"spendwise/internal/storage/storagetest"
)

func newSQLite(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "data", "spendwise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newSQLite(t)
	})
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendwise.db")
	repo, err := storage.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, storage.RunMigrations(storage.DialectSQLite, storage.SQLiteDSN(path)))
	version, dirty, err := storage.MigrationVersion(storage.DialectSQLite, storage.SQLiteDSN(path))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendwise.db")
	repo, err := storage.OpenSQLite(path)
	require.NoError(t, err)

	tx := storagetest.Txn(core.NewDate(2025, 10, 2), "Whole Foods", 8899, "Groceries")
	_, err = repo.Ingest(context.Background(), storage.IngestPlan{Rows: []core.Transaction{tx}, Mode: core.ModeAppend})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := storage.OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8899), got.AmountCents)
	assert.NoError(t, reopened.Ping(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	dsn := storage.SQLiteDSN("/tmp/x.db")
	assert.True(t, strings.HasPrefix(dsn, "/tmp/x.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "journal_mode")
}

func TestOpenMySQLRejectsBadDSN(t *testing.T) {
	_, err := storage.OpenMySQL("")
	assert.Error(t, err)
	_, err = storage.OpenMySQL("not a dsn")
	assert.Error(t, err)
}
