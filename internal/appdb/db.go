// Package appdb stores license keys and application settings in SQLite.
package appdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DB is an open application database
type DB struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database file at path and applies the schema
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?" + pragmas +
		"&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	return open(dsn, 0)
}

// OpenMemory opens a private in-memory database
func OpenMemory() (*DB, error) {
	// Every connection to :memory: is a separate database, so pin the pool to one
	return open(":memory:?"+pragmas, 1)
}

func open(dsn string, maxConns int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}
	return db.sqlDB.Close()
}

// Ping checks the database is reachable; used by the health endpoint
func (db *DB) Ping(ctx context.Context) error {
	if db == nil || db.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return db.sqlDB.PingContext(ctx)
}

// LicenseKeys returns the license key repository
func (db *DB) LicenseKeys() *LicenseKeys {
	return &LicenseKeys{sqlDB: db.sqlDB}
}

// Settings returns the key/value settings store
func (db *DB) Settings() *Settings {
	return &Settings{sqlDB: db.sqlDB}
}
