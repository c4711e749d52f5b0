// Package db keeps the local history of reconciliation runs and entity
// saves in a SQLite database under the working directory.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".bam"
	dbFile   = ".bam/bam.db"
)

// DB wraps the database connection
type DB struct {
	conn    *sql.DB
	baseDir string
	command string

	mu       sync.Mutex
	attempts map[string]int
}

// Open opens the database under baseDir, creating it when missing, and
// runs any pending migrations.
func Open(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout as fallback protection (500ms, matches lock timeout)
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	conn.Exec("PRAGMA synchronous=NORMAL")

	db, err := Wrap(conn, baseDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap uses an already open connection, for example an in-memory database,
// and migrates it. baseDir locates the write lock.
func Wrap(conn *sql.DB, baseDir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, stateDir), 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db := &DB{conn: conn, baseDir: baseDir, attempts: make(map[string]int)}
	if _, err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// BaseDir returns the base directory for the database
func (db *DB) BaseDir() string {
	return db.baseDir
}

// SetCommand names the bam command using the database. Other processes
// waiting on the write lock see it in the holder record.
func (db *DB) SetCommand(command string) {
	db.command = command
}

// withWriteLock runs fn while holding the cross-process write lock. runID,
// when set, is the reconcile run being written.
func (db *DB) withWriteLock(ctx context.Context, runID string, fn func() error) error {
	locker := newWriteLocker(db.baseDir, LockHolder{Command: db.command, RunID: runID})
	if err := locker.acquire(ctx, defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
