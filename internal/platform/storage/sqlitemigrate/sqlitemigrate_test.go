package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func migrationFS(name, stmts string) fstest.MapFS {
	return fstest.MapFS{
		name: &fstest.MapFile{Data: []byte("-- +migrate Up\n" + stmts)},
	}
}

func TestApplyMigrationsCreatesAndRecords(t *testing.T) {
	db := newTestDB(t)

	fsys := migrationFS("001_journal.sql", "CREATE TABLE journal(seq INTEGER PRIMARY KEY);")
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("tracking rows = %d, want 1", got)
	}
	if !hasTable(t, db, "journal") {
		t.Fatal("expected journal table to exist")
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	fsys := migrationFS("001_journal.sql", "CREATE TABLE journal(seq INTEGER PRIMARY KEY);")
	for i := 0; i < 2; i++ {
		if err := ApplyMigrations(db, fsys, ""); err != nil {
			t.Fatalf("apply run %d: %v", i+1, err)
		}
	}

	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("tracking rows after replay = %d, want 1", got)
	}
}

func TestApplyMigrationsLeavesFailureUnrecorded(t *testing.T) {
	db := newTestDB(t)

	bad := migrationFS("001_journal.sql", "CREAT TABLE journal(seq INTEGER);")
	if err := ApplyMigrations(db, bad, ""); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if got := countRows(t, db, "schema_migrations"); got != 0 {
		t.Fatalf("tracking rows after failure = %d, want 0", got)
	}

	fixed := migrationFS("001_journal.sql", "CREATE TABLE journal(seq INTEGER PRIMARY KEY);")
	if err := ApplyMigrations(db, fixed, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("tracking rows after fix = %d, want 1", got)
	}
}

func TestApplyMigrationsKeysIncludeDir(t *testing.T) {
	db := newTestDB(t)

	fsys := fstest.MapFS{
		"wmd/001_journal.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE journal(seq INTEGER PRIMARY KEY);"),
		},
	}
	if err := ApplyMigrations(db, fsys, "wmd"); err != nil {
		t.Fatalf("apply migrations with dir: %v", err)
	}

	var key string
	if err := db.QueryRow("SELECT name FROM schema_migrations").Scan(&key); err != nil {
		t.Fatalf("read tracking key: %v", err)
	}
	if key != "wmd/001_journal.sql" {
		t.Fatalf("tracking key = %q, want wmd/001_journal.sql", key)
	}
}

func TestUpSection(t *testing.T) {
	full := "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;"
	if got := upSection(full); got != "\nCREATE TABLE a(x);\n" {
		t.Fatalf("upSection = %q", got)
	}
	bare := "CREATE TABLE a(x);"
	if got := upSection(bare); got != bare {
		t.Fatalf("upSection without markers = %q", got)
	}
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func hasTable(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var got string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&got)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("lookup table %s: %v", name, err)
	}
	return true
}
