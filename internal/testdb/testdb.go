// Package testdb provides utilities for database integration tests. Tests
// that need a real Postgres call GetTestDBWithT, which skips automatically
// when no test database is configured.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds test database operations.
const TestTimeout = 5 * time.Second

// GetTestDatabaseURL returns the database URL for tests. It checks
// DATABASE_URL and PRESSWORK_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("PRESSWORK_TEST_DB_URL")
}

// GetTestDBWithT returns a migrated database connection for integration
// tests, skipping the test when no test database is configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or PRESSWORK_TEST_DB_URL not set - skipping integration test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "Failed to open database connection")

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	SetupTestDatabaseSchema(t, db)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	return db
}

// SetupTestDatabaseSchema runs the goose migrations against the test database.
func SetupTestDatabaseSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	projectRoot, err := findProjectRoot()
	require.NoError(t, err, "Failed to find project root")

	migrationsDir := filepath.Join(projectRoot, "migrations")
	require.DirExists(t, migrationsDir, "Migrations directory does not exist: %s", migrationsDir)

	goose.SetLogger(&testGooseLogger{t: t})
	goose.SetTableName("schema_migrations")
	goose.SetBaseFS(os.DirFS(migrationsDir))

	require.NoError(t, goose.Up(db, "."), "Failed to run migrations")
}

// WithTx executes a test function within a transaction that is always rolled
// back, keeping integration tests isolated from each other.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// findProjectRoot walks upward from the working directory until it finds
// go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			return "", fmt.Errorf("could not find go.mod in any parent directory")
		}
		dir = parentDir
	}
}

// testGooseLogger routes goose output through the test log.
type testGooseLogger struct {
	t *testing.T
}

func (l *testGooseLogger) Printf(format string, v ...interface{}) {
	l.t.Log("Goose: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *testGooseLogger) Fatalf(format string, v ...interface{}) {
	l.t.Fatal("Goose fatal error: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}
