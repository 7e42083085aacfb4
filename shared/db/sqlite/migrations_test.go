package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func connect(t *testing.T, path string) *SQLiteDB {
	t.Helper()
	database := NewSQLiteDB(&SQLiteConfig{Path: path})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return database
}

func countSchemaObjects(t *testing.T, conn *sql.DB, kind, name string) int {
	t.Helper()
	var count int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to inspect schema: %v", err)
	}
	return count
}

func TestMigrate(t *testing.T) {
	database := connect(t, MemoryPath)
	defer database.Close()

	conn := database.DB()

	for _, obj := range []struct{ kind, name string }{
		{"table", "schema_migrations"},
		{"table", "records"},
		{"index", "idx_records_type_publication"},
	} {
		if n := countSchemaObjects(t, conn, obj.kind, obj.name); n != 1 {
			t.Errorf("%s %s not created", obj.kind, obj.name)
		}
	}

	var version int
	var name string
	err := conn.QueryRow("SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&version, &name)
	if err != nil {
		t.Fatalf("Failed to query schema_migrations: %v", err)
	}
	if version != len(migrations) || name != migrations[len(migrations)-1].name {
		t.Errorf("latest migration = %d %q", version, name)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	database := connect(t, path)
	database.Close()

	database = connect(t, path)
	defer database.Close()

	if err := Migrate(database.DB()); err != nil {
		t.Fatalf("explicit Migrate() error = %v", err)
	}

	var count int
	if err := database.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("migrations recorded %d times, want %d", count, len(migrations))
	}
}

func TestRecordsTableSchema(t *testing.T) {
	database := connect(t, MemoryPath)
	defer database.Close()

	conn := database.DB()

	insert := `
		INSERT INTO records (id, uid, type, first_publication_date, last_publication_date, data, created_at, updated_at)
		VALUES (?, ?, ?, 1, 1, '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`
	if _, err := conn.Exec(insert, "001", "first-post", "post"); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	var id string
	var uid string
	err := conn.QueryRow("SELECT id, uid FROM records WHERE uid = ?", "first-post").Scan(&id, &uid)
	if err != nil {
		t.Fatalf("Failed to query record: %v", err)
	}
	if id != "001" || uid != "first-post" {
		t.Errorf("record = %q %q", id, uid)
	}

	if _, err := conn.Exec(insert, "002", "first-post", "post"); err == nil {
		t.Error("expected unique constraint violation for duplicate uid")
	}
	if _, err := conn.Exec(insert, "003", "first-post", "page"); err != nil {
		t.Errorf("same uid under another type should be allowed: %v", err)
	}
}

func TestMigrate_ConvertsNanosecondDates(t *testing.T) {
	database := connect(t, MemoryPath)
	defer database.Close()

	conn := database.DB()
	if _, err := conn.Exec("DELETE FROM schema_migrations WHERE version = 2"); err != nil {
		t.Fatalf("failed to roll back version: %v", err)
	}

	const seconds = int64(1615809600)
	_, err := conn.Exec(`INSERT INTO records (id, uid, type, first_publication_date, last_publication_date, data, created_at, updated_at)
		VALUES ('1', 'a', 'post', ?, ?, '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, seconds*1_000_000_000, (seconds+60)*1_000_000_000)
	if err != nil {
		t.Fatalf("insert error = %v", err)
	}

	if err := Migrate(conn); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var first, last int64
	if err := conn.QueryRow("SELECT first_publication_date, last_publication_date FROM records").Scan(&first, &last); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if first != seconds || last != seconds+60 {
		t.Errorf("dates = %d/%d, want %d/%d", first, last, seconds, seconds+60)
	}
}
