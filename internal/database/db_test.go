package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "nested", "ledger.db"),
		Profile: ProfileLedger,
		Name:    LedgerName,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesDirectoryAndMigrates(t *testing.T) {
	db := openLedger(t)
	ctx := context.Background()

	assert.True(t, filepath.IsAbs(db.Path()))
	assert.Equal(t, LedgerName, db.Name())

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migration is idempotent")

	for _, table := range []string{"runs", "account_runs", "order_results"} {
		var name string
		err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	assert.NoError(t, db.HealthCheck(ctx))
}

func TestMigrate_UnknownName(t *testing.T) {
	db, err := New(Config{Path: "file:unknown?mode=memory", Profile: ProfileMemory, Name: "nope"})
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.Migrate(context.Background()))
}

func TestWithTransaction(t *testing.T) {
	db := openLedger(t)
	ctx := context.Background()
	_, err := db.Conn().Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM kv").Scan(&n))
		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := WithTransaction(ctx, db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO kv VALUES ('a', '1')")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(ctx, db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO kv VALUES ('b', '2')"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(ctx, db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec("INSERT INTO kv VALUES ('c', '3')")
			panic("mid-transaction")
		})
		assert.ErrorContains(t, err, "panic in transaction")
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(ctx, nil, func(*sql.Tx) error { return nil }))
	})
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/tmp/ledger.db", ProfileLedger)
	assert.Contains(t, ledger, "/tmp/ledger.db?_pragma=foreign_keys(1)")
	assert.Contains(t, ledger, "_pragma=synchronous(FULL)")
	assert.Contains(t, ledger, "_pragma=journal_mode(WAL)")

	mem := buildConnectionString("file:x?mode=memory", ProfileMemory)
	assert.Contains(t, mem, "file:x?mode=memory&_pragma=")
	assert.Contains(t, mem, "synchronous(OFF)")
}
