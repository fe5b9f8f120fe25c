package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
)

var (
	indexDate string
	indexRef  string
	indexList int
	indexTrim int
)

var indexCmd = &cobra.Command{
	Use:   "index [bullet]...",
	Short: "Append to the session index",
	Long:  "Append a compressed session summary (a few bullets) to the append-only session index. Entries older than the retention window are dropped by --trim.",
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if indexTrim != 0 {
		days := indexTrim
		if days < 0 {
			days = cfg.Sessions.RetentionDays
		}
		var n int
		err = withWriteLock(db, func() error {
			n, err = db.TrimSessions(days, time.Now())
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("trimmed %d session entries older than %d days\n", n, days)
		return nil
	}

	if indexList > 0 {
		entries, err := db.RecentSessions(indexList)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No session entries.")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s: %s", e.Date, strings.Join(e.Bullets, "; "))
			if e.Ref != "" {
				line += fmt.Sprintf(" (%s)", e.Ref)
			}
			fmt.Println(line)
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("nothing to index: pass one bullet per argument")
	}

	err = withWriteLock(db, func() error {
		_, err := db.AppendSession(indexDate, args, indexRef)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("indexed session (%d bullets)\n", len(args))
	return nil
}

func init() {
	indexCmd.Flags().StringVar(&indexDate, "date", "", "Session date YYYY-MM-DD (default today)")
	indexCmd.Flags().StringVar(&indexRef, "ref", "", "Optional reference (transcript path, ticket, ...)")
	indexCmd.Flags().IntVar(&indexList, "list", 0, "List the N most recent entries instead of appending")
	indexCmd.Flags().IntVar(&indexTrim, "trim", 0, "Drop entries older than N days (-1 for the configured retention)")
}
