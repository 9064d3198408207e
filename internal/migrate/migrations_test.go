package migrate_test

import (
	"testing"

	"dayline/internal/db"
	"dayline/internal/migrate"
)

func TestMigrateIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatal(err)
	}
	if v < 1 {
		t.Fatalf("version %d after migrate", v)
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	again, err := migrate.Version(conn)
	if err != nil {
		t.Fatal(err)
	}
	if again != v {
		t.Fatalf("version moved on a no-op migrate: %d vs %d", again, v)
	}

	// The schema is usable after migration.
	if _, err := conn.Exec(`INSERT INTO users(id, name, created_at) VALUES ('u1', 'Test', '2026-01-05T09:00:00Z')`); err != nil {
		t.Fatalf("insert into migrated schema: %v", err)
	}
}
