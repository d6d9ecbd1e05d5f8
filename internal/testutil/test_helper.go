// Package testutil prepares a migrated Postgres database for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/facenoel/chatter/sql/schema"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// TestURL loads .env from the project root and returns TEST_DB_URL.
func TestURL() string {
	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}
	return os.Getenv("TEST_DB_URL")
}

// DbInit connects to TEST_DB_URL, resets the schema, and applies every
// migration. The test is skipped when no database is configured.
func DbInit(t testing.TB) (*pgxpool.Pool, *sql.DB) {
	t.Helper()

	testURL := TestURL()
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	goose.SetBaseFS(schema.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("goose.SetDialect() error = %+v", err)
	}

	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	DbGooseReset(t, dbForGoose)
	DbGooseUp(t, dbForGoose)

	t.Cleanup(func() { DbCleanup(t, dbPool, dbForGoose) })
	return dbPool, dbForGoose
}

func DbGooseUp(t testing.TB, dbForGoose *sql.DB) {
	t.Helper()
	if err := goose.Up(dbForGoose, "."); err != nil {
		t.Fatalf("goose.Up() error = %+v", err)
	}
}

func DbGooseReset(t testing.TB, dbForGoose *sql.DB) {
	t.Helper()
	if err := goose.Reset(dbForGoose, "."); err != nil {
		t.Fatalf("goose.Reset() error = %+v", err)
	}
}

// DbCleanup drops every migration and releases the connections.
func DbCleanup(t testing.TB, db *pgxpool.Pool, dbForGoose *sql.DB) {
	t.Helper()
	DbGooseReset(t, dbForGoose)

	if err := dbForGoose.Close(); err != nil {
		t.Errorf("db.Close() error = %+v", err)
	}
	db.Close()
}
