package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"runs", "units", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)
		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNeedsMigration) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNeedsMigration", err)
		}
	})

	t.Run("current after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	version, dirty, err := Version(db)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if dirty || version != latest {
		t.Errorf("Version() = %d dirty=%v, want %d clean", version, dirty, latest)
	}
}

func TestSchema_UnitsReferenceRuns(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO units (run_id, source, old_path, new_path, outcome, reason, strategy, matched, updated, attempts, recorded_at)
		VALUES ('missing-run', '/data/a.png', '/a.png', '/ab/cd/x.png', 'done', '', 'none', 0, 0, 1, datetime('now'))
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_UnitsActionDefault(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO runs (id, operation, migration_id, dry_run, started_at, status)
		VALUES ('r1', 'fix', 'm1', 0, datetime('now'), 'running')`); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO units (run_id, source, old_path, new_path, outcome, reason, strategy, matched, updated, attempts, recorded_at)
		VALUES ('r1', '/a.png', '/a.png', '/ab/cd/x.png', 'done', '', 'linked', 1, 1, 1, datetime('now'))`); err != nil {
		t.Fatalf("insert unit: %v", err)
	}

	var action string
	if err := db.QueryRow("SELECT action FROM units WHERE run_id = 'r1'").Scan(&action); err != nil {
		t.Fatalf("select action: %v", err)
	}
	if action != "none" {
		t.Errorf("action = %q, want none", action)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
