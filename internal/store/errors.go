package store

import "fmt"

// ValidationError reports structurally invalid input: unknown category,
// out-of-range significance, missing required fields. Maps to exit
// code 2 on the CLI.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup for a record id that does not exist.
// Maps to exit code 3 on the CLI.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("record %s not found", e.ID) }

// ConflictError reports that another process holds the write lock.
// Maps to exit code 5 on the CLI.
type ConflictError struct {
	Holder string // pid of the current holder, if readable
}

func (e *ConflictError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("another engram process (pid %s) holds the write lock", e.Holder)
	}
	return "another engram process holds the write lock"
}
