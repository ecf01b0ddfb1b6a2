package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// SetupTestDB creates a migrated SQLite database in a temporary directory
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := GetDatabase(filepath.Join(t.TempDir(), "changes.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if _, err := Migrate(db, nil); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// MustExec executes a SQL statement and fails the test if it errors
func MustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("failed to exec query: %v", err)
	}
}
