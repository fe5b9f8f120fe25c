package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
	"github.com/engram/engram/internal/reconcile"
)

var reconcileRoot string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile memory against the project corpus",
	Long:  "Export memory and the project's files, ask the reasoning oracle to classify discrepancies, then apply the verdict in one transaction: recovered items come back as new memories, stale ones are flagged, gaps are reported for review. Requires ANTHROPIC_API_KEY.",
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	oracle, err := buildOracle(&cfg)
	if err != nil {
		return err
	}

	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := reconcile.CollectorConfig{
		Root:       cfg.Corpus.Root,
		Extensions: cfg.Corpus.Extensions,
		MaxFile:    cfg.Corpus.MaxFile,
		MaxTotal:   cfg.Corpus.MaxTotal,
	}
	if reconcileRoot != "" {
		collector.Root = reconcileRoot
	}

	eng := reconcile.NewEngine(db, oracle, collector, cfg.Corpus.ReportDir, cfg.Oracle.MaxRetries)

	var sum *reconcile.Summary
	err = withWriteLock(db, func() error {
		sum, err = eng.Run(context.Background())
		return err
	})
	if err != nil {
		var oerr *reconcile.OracleError
		if errors.As(err, &oerr) {
			fmt.Fprintln(os.Stderr, "oracle unavailable; no changes applied")
		}
		return err
	}

	fmt.Printf("reconciled: %d recovered, %d stale flagged, %d gaps for review\n",
		sum.Recovered, sum.Stale, sum.Gaps)
	if sum.Oracle != "" {
		fmt.Printf("  %s\n", sum.Oracle)
	}
	if sum.ReportPath != "" {
		fmt.Printf("  report: %s\n", sum.ReportPath)
	}
	return nil
}

func buildOracle(cfg *config.Config) (reconcile.Oracle, error) {
	switch cfg.Oracle.Provider {
	case "", "anthropic":
		return reconcile.NewAnthropicOracle(
			cfg.Oracle.APIKey,
			cfg.Oracle.Model,
			time.Duration(cfg.Oracle.TimeoutSec)*time.Second,
		)
	case "mock":
		// Exercises the full pipeline without network; applies nothing.
		return &reconcile.MockOracle{Result: &reconcile.Classification{Summary: "mock oracle: no findings"}}, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileRoot, "root", "", "Corpus root to scan (default from config)")
}
