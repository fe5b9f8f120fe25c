package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
	"github.com/engram/engram/internal/decay"
	"github.com/engram/engram/internal/store"
)

// --- add command ---

var (
	addCategory     string
	addSignificance int
	addBody         string
	addTags         []string
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Record a new memory",
	Long:  "Record a new memory with full strength. Significance (1-10) controls how fast it fades; 10 never decays.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var rec *store.Record
	err = withWriteLock(db, func() error {
		rec, err = db.Add(store.AddParams{
			Category:     decay.Category(addCategory),
			Significance: addSignificance,
			Title:        strings.Join(args, " "),
			Body:         addBody,
			Tags:         addTags,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("added %s [%s] sig=%d %q\n", rec.ID, rec.Category, rec.Significance, rec.Title)
	return nil
}

// --- get command ---

var getPeek bool

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Read a memory by id",
	Long:  "Read a memory by id. Reading reinforces it (+0.15 strength) unless --peek is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var rec *store.Record
	if getPeek {
		rec, err = db.Peek(args[0], time.Now())
	} else {
		rec, err = db.Get(args[0])
	}
	if err != nil {
		return err
	}

	printRecord(rec)
	return nil
}

func printRecord(r *store.Record) {
	fmt.Printf("%s [%s] %s\n", r.ID, r.Category, r.Title)
	fmt.Printf("  significance: %d   strength: %.2f (%s)\n", r.Significance, r.Strength, r.Status)
	fmt.Printf("  accessed: %d times, last %s\n", r.AccessCount, r.LastAccessedAt.Format("2006-01-02"))
	if len(r.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.StaleAt != nil {
		fmt.Printf("  stale since %s: %s\n", r.StaleAt.Format("2006-01-02"), r.StaleReason)
	}
	if r.Body != "" {
		fmt.Printf("\n%s\n", r.Body)
	}
}

// --- search command ---

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories",
	Long:  "Full-text search over titles, bodies and tags. Searching never reinforces results; only an explicit get does.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Search(strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s  %s (sig=%d, %.2f %s)\n",
			i+1, r.Score, r.ID, r.Title, r.Significance, r.Strength, r.Status)
	}
	return nil
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List memories, optionally by category",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
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
	var records []*store.Record
	if len(args) == 1 {
		records, err = db.ListByCategory(decay.Category(args[0]), now)
	} else {
		records, err = db.All(now)
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No memories.")
		return nil
	}

	for _, r := range records {
		stale := ""
		if r.StaleAt != nil {
			stale = " STALE"
		}
		fmt.Printf("%s [%s] sig=%d %.2f %-6s%s  %s\n",
			r.ID, r.Category, r.Significance, r.Strength, r.Status, stale, r.Title)
	}
	return nil
}

// --- delete command ---

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a prune-eligible memory",
	Long:  "Permanently delete a memory. Only faded low-significance memories may be deleted; everything else is protected.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := withWriteLock(db, func() error { return db.Delete(args[0]) }); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func init() {
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "knowledge", "Category: knowledge, current_state, decision, session, recovered")
	addCmd.Flags().IntVarP(&addSignificance, "significance", "s", 5, "Significance 1-10")
	addCmd.Flags().StringVarP(&addBody, "body", "b", "", "Memory body text")
	addCmd.Flags().StringSliceVarP(&addTags, "tags", "t", nil, "Comma-separated tags")

	getCmd.Flags().BoolVar(&getPeek, "peek", false, "Read without reinforcing")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
}
