package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestApplyRunsEachFileOnce(t *testing.T) {
	db := openDB(t)
	fsys := fstest.MapFS{
		"0002_index.sql":  {Data: []byte("-- +migrate Up\nCREATE INDEX items_name ON items(name);\n-- +migrate Down\nDROP INDEX items_name;")},
		"0001_create.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE items(id TEXT PRIMARY KEY, name TEXT);\n-- +migrate Down\nDROP TABLE items;")},
		"README.md":       {Data: []byte("not a migration")},
	}
	applied, err := Apply(context.Background(), db, fsys, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 2 || applied[0] != "0001_create.sql" || applied[1] != "0002_index.sql" {
		t.Fatalf("applied = %v", applied)
	}

	applied, err = Apply(context.Background(), db, fsys, ".")
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("re-apply ran %v", applied)
	}
	if n := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 2 {
		t.Fatalf("recorded = %d, want 2", n)
	}
	if n := count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'items'"); n != 1 {
		t.Fatal("items table missing")
	}
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db := openDB(t)
	bad := fstest.MapFS{"0001_bad.sql": {Data: []byte("-- +migrate Up\nCREAT TABLE things(id INT);")}}
	if _, err := Apply(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected failure")
	}
	if n := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 0 {
		t.Fatalf("recorded = %d, want 0", n)
	}

	good := fstest.MapFS{"0001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE things(id INT);")}}
	if _, err := Apply(context.Background(), db, good, ""); err != nil {
		t.Fatalf("fixed migration: %v", err)
	}
}

func TestApplyToleratesExistingObjects(t *testing.T) {
	db := openDB(t)
	if _, err := db.Exec("CREATE TABLE items(id TEXT)"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fsys := fstest.MapFS{"0001.sql": {Data: []byte("CREATE TABLE items(id TEXT);")}}
	if _, err := Apply(context.Background(), db, fsys, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestApplyNestedRoot(t *testing.T) {
	db := openDB(t)
	fsys := fstest.MapFS{"migrations/0001.sql": {Data: []byte("CREATE TABLE a(id INT);")}}
	applied, err := Apply(context.Background(), db, fsys, "migrations")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 1 || applied[0] != "migrations/0001.sql" {
		t.Fatalf("applied = %v", applied)
	}
}

func TestUpSection(t *testing.T) {
	cases := []struct{ in, want string }{
		{"CREATE TABLE a(x);", "CREATE TABLE a(x);"},
		{"-- +migrate Up\nA;\n-- +migrate Down\nB;", "\nA;\n"},
		{"-- +migrate Up\nA;", "\nA;"},
	}
	for _, c := range cases {
		if got := UpSection(c.in); got != c.want {
			t.Fatalf("UpSection(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if _, err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected error")
	}
}
