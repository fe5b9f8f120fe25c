package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/brief"
	"github.com/engram/engram/internal/config"
)

var (
	briefOutput string
	briefStdout bool
)

var briefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Compile the session brief",
	Long:  "Compile the memory store into a single bounded markdown document, suitable for injecting at the start of an assistant session. The output path is fixed and overwritten each run.",
	RunE:  runBrief,
}

func runBrief(cmd *cobra.Command, args []string) error {
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
	maybeSweep(db, &cfg, now)

	doc, err := brief.Build(db, brief.Options{
		SectionLines:   cfg.Brief.SectionLines,
		MaxTokens:      cfg.Brief.MaxTokens,
		SessionEntries: cfg.Sessions.BriefEntries,
	}, now)
	if err != nil {
		return err
	}

	if briefStdout {
		fmt.Print(doc)
		return nil
	}

	out := briefOutput
	if out == "" {
		out = cfg.Brief.OutputPath
	}
	if err := os.WriteFile(out, []byte(doc), 0644); err != nil {
		return fmt.Errorf("write brief: %w", err)
	}
	fmt.Printf("wrote %s (%d lines)\n", out, strings.Count(doc, "\n"))
	return nil
}

func init() {
	briefCmd.Flags().StringVarP(&briefOutput, "output", "o", "", "Output path (default from config)")
	briefCmd.Flags().BoolVar(&briefStdout, "stdout", false, "Print the brief instead of writing the file")
}
