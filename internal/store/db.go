package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the engram SQLite database. It is the
// single durable store: memory records, the session index, and sweep
// metadata all live in one file.
type DB struct {
	*sql.DB
	Path string

	lockPath string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// DefaultDBPath returns the default database path: ~/.engram/engram.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".engram", "engram.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := newDB(sqlDB, path)
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}

	db := newDB(sqlDB, ":memory:")
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func newDB(sqlDB *sql.DB, path string) *DB {
	lockPath := path + ".lock"
	if path == ":memory:" {
		// In-memory databases still need a stable lock path for the
		// lifetime of the handle.
		lockPath = filepath.Join(os.TempDir(),
			fmt.Sprintf("engram-%d-%d.lock", os.Getpid(), time.Now().UnixNano()))
	}
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &DB{
		DB:       sqlDB,
		Path:     path,
		lockPath: lockPath,
		entropy:  ulid.Monotonic(seed, 0),
	}
}

func (db *DB) init() error {
	if err := db.configurePragmas(); err != nil {
		return err
	}
	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// newID returns a fresh ULID. Monotonic within a process so ids created
// in the same millisecond still sort by insertion order.
func (db *DB) newID() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), db.entropy).String()
}
