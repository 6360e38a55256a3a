package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

// TestPool connects to TEST_DATABASE_URL once per test binary and applies
// the schema. Tests are skipped when the variable is unset.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	sharedPoolOnce.Do(func() {
		ctx := context.Background()
		if sharedPool, sharedPoolErr = Connect(ctx, url); sharedPoolErr != nil {
			return
		}
		sharedPoolErr = RunMigrations(ctx, sharedPool)
	})
	if sharedPoolErr != nil {
		t.Fatalf("test database unavailable: %v", sharedPoolErr)
	}
	return sharedPool
}

// TestTx opens a transaction on the shared pool and rolls it back when the
// test ends, so persistence tests can run in parallel.
//
//	tx := database.TestTx(t)
//	p, err := persistence.NewPostgres(ctx, tx)
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// CleanupTables truncates every persistence table visible through db.
func CleanupTables(t *testing.T, db PGXDB) {
	t.Helper()

	for _, table := range Tables {
		if _, err := db.Exec(context.Background(), "TRUNCATE TABLE "+table); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
