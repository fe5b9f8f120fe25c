// Package cli implements the engram command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
	"github.com/engram/engram/internal/reconcile"
	"github.com/engram/engram/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "engram",
	Short:         "Significance-weighted memory that persists across assistant sessions",
	Long:          "Engram keeps a local memory store where each record decays over time unless significant enough to persist. Important things stay; trivia fades.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return ExitCode(err)
	}
	return 0
}

// ExitCode maps an error to the documented process exit code: 2 for
// invalid input, 3 for a missing record, 4 for an oracle failure, 5
// for a lock conflict, 1 otherwise.
func ExitCode(err error) int {
	var (
		verr *store.ValidationError
		nerr *store.NotFoundError
		oerr *reconcile.OracleError
		cerr *store.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return 2
	case errors.As(err, &nerr):
		return 3
	case errors.As(err, &oerr):
		return 4
	case errors.As(err, &cerr):
		return 5
	default:
		return 1
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

// openDB opens the configured database. ENGRAM_DB wins over the
// config file; both win over the default path.
func openDB(cfg *config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// withWriteLock runs fn while holding the advisory write lock, so two
// mutating engram processes on the same database fail fast instead of
// interleaving.
func withWriteLock(db *store.DB, fn func() error) error {
	lock, err := db.AcquireWriteLock()
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// maybeSweep runs a decay sweep if the last one is older than the
// configured interval. Reads stay correct without it (strength is
// recomputed on every read); the sweep just refreshes status
// snapshots and the last_decay marker. The sweep is a bulk write, so
// it takes the advisory lock like any other writer; if another
// process holds it, this opportunistic sweep is simply skipped.
func maybeSweep(db *store.DB, cfg *config.Config, now time.Time) {
	if cfg.Decay.IntervalDays <= 0 {
		return
	}
	last, err := db.GetMeta("last_decay")
	if err == nil && last != "" {
		if t, perr := time.Parse(time.RFC3339, last); perr == nil {
			if now.Sub(t) < time.Duration(cfg.Decay.IntervalDays)*24*time.Hour {
				return
			}
		}
	}
	err = withWriteLock(db, func() error {
		_, err := db.Sweep(now)
		return err
	})
	if err != nil {
		var cerr *store.ConflictError
		if errors.As(err, &cerr) {
			return
		}
		fmt.Fprintf(os.Stderr, "warning: decay sweep failed: %v\n", err)
	}
}
