//go:build integration

// Package pgtest provides a shared PostgreSQL fixture for integration tests.
// Tests point TEST_DATABASE_URL at a disposable database; when it is unset
// the suites skip. The database is shared across suites in the same package,
// so every suite truncates the tables it touches in SetupTest.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"poolpay/migrations"
)

// Harness wraps a migrated database connection for integration tests.
type Harness struct {
	DSN string
	DB  *sql.DB
}

var (
	mu      sync.Mutex
	shared  *Harness
	initErr error
)

// Get returns the shared harness, connecting and applying migrations on first
// use. It skips the calling test when TEST_DATABASE_URL is unset and fails it
// when the database cannot be prepared.
func Get(t *testing.T) *Harness {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	mu.Lock()
	defer mu.Unlock()

	if shared == nil && initErr == nil {
		shared, initErr = connect(dsn)
	}
	if initErr != nil {
		t.Fatalf("preparing test database: %v", initErr)
	}
	return shared
}

func connect(dsn string) (*Harness, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open test database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping test database: %w", err)
	}

	h := &Harness{DSN: dsn, DB: db}
	if err := h.runMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *Harness) runMigrations(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := h.DB.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
	}
	return nil
}

// TruncateTables clears the given tables between tests. CASCADE handles the
// pool_members and access_grants foreign keys.
func (h *Harness) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := h.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll clears every settlement table.
func (h *Harness) TruncateAll(ctx context.Context) error {
	return h.TruncateTables(ctx, "access_grants", "pool_members", "pools", "services", "audit_events")
}
