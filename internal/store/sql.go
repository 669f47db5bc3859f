package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps accounts in a SQL database (SQLite or PostgreSQL)
type SQLStore struct {
	db     *sqlx.DB
	schema string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) a SQLite database at path
func OpenSQLite(path string, logger *slog.Logger) (*SQLStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Connect with WAL mode enabled
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newSQLStore(db, sqliteSchema, logger), nil
}

// OpenPostgres connects to a PostgreSQL database
func OpenPostgres(url string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newSQLStore(db, postgresSchema, logger), nil
}

func newSQLStore(db *sqlx.DB, schema string, logger *slog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		schema: schema,
		logger: logger.With("component", "store", "backend", db.DriverName()),
	}
}

// Migrate runs database migrations
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
