// Package testutil provides store fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"sphincs.io/sphincs/internal/infrastructure"
	"sphincs.io/sphincs/internal/repository"
)

// OpenSQLite opens a private in-memory SQLite database with the full schema
// applied. It is closed when the test ends.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := infrastructure.OpenSQLite(ctx, infrastructure.MemoryPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
