// Package testutil provides test helpers shared across packages: an
// in-memory store.Store (store.go, fixtures.go) for unit tests, and a
// DATABASE_URL-gated connection pair (pgxpool for store/pgxv5,
// database/sql for store/databasesql) for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// TestDB wraps both a pgxpool connection and a database/sql connection to
// the same database, so either driver's integration tests can use it.
type TestDB struct {
	Pool *pgxpool.Pool
	DB   *sql.DB
}

// NewTestDB creates a test database connection from DATABASE_URL env var
// Skips the test if DATABASE_URL is not set
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		pool.Close()
		t.Fatalf("Failed to open database/sql connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		pool.Close()
		db.Close()
		t.Fatalf("Failed to ping database/sql connection: %v", err)
	}

	return &TestDB{Pool: pool, DB: db}
}

// Close closes both connections
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.DB != nil {
		db.DB.Close()
	}
}

// CleanTables truncates all tables for test isolation
func (db *TestDB) CleanTables(ctx context.Context) error {
	tables := []string{
		"orchd_human_approvals",
		"orchd_tool_executions",
		"orchd_tool_definitions",
		"orchd_traces",
		"orchd_events",
		"orchd_installations",
		"orchd_manifests",
		"orchd_instances",
		"orchd_users",
	}

	for _, table := range tables {
		_, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return nil
}

// SetupTestUser inserts a bare user row with the given ID.
func (db *TestDB) SetupTestUser(ctx context.Context, t *testing.T, userID string) {
	t.Helper()

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO orchd_users (user_id, profile, shared_context, created_at, updated_at)
		VALUES ($1, '{}', '{}', NOW(), NOW())
	`, userID)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
}

// RequireIntegration skips the test if not running integration tests
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
}
