package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open establishes a connection to the database and makes sure the schema exists
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		// Create data directory if it doesn't exist
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create data directory: %w", err)
				}
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers; an in-memory database
		// also only lives as long as its single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		// Enable foreign keys
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitSchema creates the groups, users and reminders tables if they don't exist
func InitSchema(db *sqlx.DB) error {
	statements := sqliteSchema
	if db.DriverName() == DriverPostgres {
		statements = postgresSchema
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

type schemaStatement struct {
	name string
	sql  string
}

var sqliteSchema = []schemaStatement{
	{"groups table", `
		CREATE TABLE IF NOT EXISTS groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT ''
		)`},
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			username TEXT NOT NULL,
			UNIQUE(chat_id, username)
		)`},
	{"reminders table", `
		CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			group_id INTEGER NOT NULL,
			time TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE,
			UNIQUE(user_id, group_id)
		)`},
	{"reminders time index", `CREATE INDEX IF NOT EXISTS idx_reminders_time ON reminders(time)`},
}

var postgresSchema = []schemaStatement{
	{"groups table", `
		CREATE TABLE IF NOT EXISTS groups (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT ''
		)`},
	{"users table", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			username TEXT NOT NULL,
			UNIQUE(chat_id, username)
		)`},
	{"reminders table", `
		CREATE TABLE IF NOT EXISTS reminders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			time TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, group_id)
		)`},
	{"reminders time index", `CREATE INDEX IF NOT EXISTS idx_reminders_time ON reminders(time)`},
}
