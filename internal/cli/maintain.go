package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
	"github.com/engram/engram/internal/store"
)

// --- decay command ---

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run a decay sweep",
	Long:  "Recompute every record's strength and refresh status snapshots. Running this twice in a row changes nothing; strength depends only on elapsed time.",
	RunE:  runDecay,
}

func runDecay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var res *store.SweepResult
	err = withWriteLock(db, func() error {
		res, err = db.Sweep(time.Now())
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("swept %d records: %d changed status, %d prune-eligible\n",
		res.Total, res.StatusChanged, res.PruneEligible)
	return nil
}

// --- prune command ---

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete fully faded low-significance memories",
	Long:  "Delete records with significance below 5 whose strength has fallen below the prune floor. Significant memories are never pruned, no matter how faded.",
	RunE:  runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()

	if pruneDryRun {
		records, err := db.All(now)
		if err != nil {
			return err
		}
		n := 0
		for _, r := range records {
			if r.PruneEligible() {
				fmt.Printf("would prune %s [%s] sig=%d %.3f  %s\n",
					r.ID, r.Category, r.Significance, r.Strength, r.Title)
				n++
			}
		}
		fmt.Printf("%d records eligible\n", n)
		return nil
	}

	var n int
	err = withWriteLock(db, func() error {
		n, err = db.Prune(now)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d records\n", n)
	return nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store statistics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("db: %s\n", db.Path)
	fmt.Printf("records: %d (%d clear, %d fuzzy, %d fading)\n",
		stats.Total, stats.Clear, stats.Fuzzy, stats.Fading)
	fmt.Printf("average strength: %.2f\n", stats.AvgStrength)

	cats := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Printf("  %-14s %d\n", c, stats.ByCategory[c])
	}

	fmt.Printf("sessions indexed: %d\n", stats.Sessions)
	fmt.Printf("last decay sweep: %s\n", stats.LastDecay)
	fmt.Printf("last reconciliation: %s\n", stats.LastRecon)
	return nil
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "List eligible records without deleting")
}
