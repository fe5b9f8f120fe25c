package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WriteLock is a process-level advisory lock guarding all bulk writes:
// add, delete, decay sweep application, and reconciliation application.
// A second writer is rejected with a ConflictError rather than queued,
// so two processes can never interleave mutations.
type WriteLock struct {
	path string
}

// AcquireWriteLock takes the advisory lock next to the database file.
// In-memory databases (tests) lock a throwaway path in the temp dir.
func (db *DB) AcquireWriteLock() (*WriteLock, error) {
	path := db.lockPath

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &ConflictError{Holder: lockHolder(path)}
		}
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return &WriteLock{path: path}, nil
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *WriteLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release write lock: %w", err)
	}
	return nil
}

func lockHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	pid := strings.TrimSpace(string(data))
	if _, err := strconv.Atoi(pid); err != nil {
		return ""
	}
	return pid
}
