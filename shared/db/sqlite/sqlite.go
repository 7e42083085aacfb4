// Package sqlite opens the local content store.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/dfryer1193/spacetraveling/shared/db"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	defaultPath        = "./spacetraveling.db"
	defaultBusyTimeout = 5 * time.Second

	// MemoryPath opens a private in-memory store.
	MemoryPath = ":memory:"
)

type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// SQLiteDB implements the db.Database interface for SQLite
type SQLiteDB struct {
	path        string
	busyTimeout time.Duration
	db          *sql.DB
}

var _ db.Database = (*SQLiteDB)(nil)

// NewSQLiteDB creates a new SQLite database instance.
// An empty path falls back to "./spacetraveling.db".
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	s := &SQLiteDB{
		path:        cfg.Path,
		busyTimeout: cfg.BusyTimeout,
	}
	if s.path == "" {
		s.path = defaultPath
	}
	if s.busyTimeout <= 0 {
		s.busyTimeout = defaultBusyTimeout
	}
	return s
}

func (s *SQLiteDB) inMemory() bool {
	return s.path == MemoryPath
}

// dsn carries the pragmas as connection parameters so every pooled connection gets them.
func (s *SQLiteDB) dsn() string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	params.Add("_pragma", "foreign_keys(1)")
	if !s.inMemory() {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
		params.Add("_pragma", "cache_size(-64000)")
	}
	return s.path + "?" + params.Encode()
}

// Connect opens the database and applies pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	conn, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if s.inMemory() {
		// Each connection to :memory: would see its own empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = conn
	log.Debug().Str("path", s.path).Msg("Connected to SQLite")
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB instance
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}
