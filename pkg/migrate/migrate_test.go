package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"m/001_create_subjects.up.sql":   {Data: []byte("CREATE TABLE subjects (name TEXT PRIMARY KEY);")},
	"m/001_create_subjects.down.sql": {Data: []byte("DROP TABLE subjects;")},
	"m/002_add_charts.up.sql":        {Data: []byte("CREATE TABLE charts (id TEXT PRIMARY KEY); CREATE INDEX charts_id ON charts (id);")},
	"m/002_add_charts.down.sql":      {Data: []byte("DROP TABLE charts;")},
	"m/README.md":                    {Data: []byte("not a migration")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "m", "").GetMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("len(migrations) = %d, expected 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create subjects" {
		t.Errorf("migrations[0] = %d %q", migrations[0].Version, migrations[0].Name)
	}
	if !strings.HasPrefix(migrations[1].Down, "DROP TABLE charts") {
		t.Errorf("migrations[1].Down = %q", migrations[1].Down)
	}

	if _, err := NewFSProvider(testMigrations, "missing", "").GetMigrations(); err == nil {
		t.Error("GetMigrations on a missing directory succeeded")
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "m", "test_migrations"), nil)

	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 2 {
		t.Errorf("version = %d, expected 2", v)
	}
	if !tableExists(t, db, "subjects") || !tableExists(t, db, "charts") {
		t.Error("tables missing after MigrateUp")
	}

	// idempotent
	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	if err := m.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
	if tableExists(t, db, "charts") {
		t.Error("charts survived rollback to 1")
	}
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("pending = %+v", pending)
	}

	if err := m.MigrateDown(ctx, 0); err != nil {
		t.Fatalf("MigrateDown(0): %v", err)
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 0 {
		t.Errorf("version = %d, expected 0", v)
	}
	if tableExists(t, db, "subjects") {
		t.Error("subjects survived rollback to 0")
	}

	if err := m.MigrateDown(ctx, 0); err == nil {
		t.Error("MigrateDown to the current version succeeded")
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	fsys := fstest.MapFS{
		"m/001_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"m/002_broken.up.sql": {Data: []byte("CREATE TABLE half (id INTEGER); CREATE TABLE ok (id INTEGER);")},
	}
	m := NewMigrator(db, NewFSProvider(fsys, "m", ""), nil)

	if err := m.MigrateUp(ctx); err == nil {
		t.Fatal("MigrateUp with a broken migration succeeded")
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
	if tableExists(t, db, "half") {
		t.Error("partial migration was committed")
	}

	if err := m.MigrateDown(ctx, 0); err == nil || !strings.Contains(err.Error(), "no down SQL") {
		t.Errorf("MigrateDown without down SQL = %v", err)
	}
}

func TestSetVersion(t *testing.T) {
	ctx := context.Background()
	m := NewMigrator(openDB(t), NewFSProvider(testMigrations, "m", ""), nil)

	if err := m.SetVersion(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 5 {
		t.Errorf("version = %d, expected 5", v)
	}
	if err := m.SetVersion(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetCurrentVersion(ctx); v != 2 {
		t.Errorf("version = %d after lowering, expected 2", v)
	}
}
