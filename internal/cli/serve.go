package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/brief"
	"github.com/engram/engram/internal/config"
	"github.com/engram/engram/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	maybeSweep(db, &cfg, time.Now())

	srv := server.New(db, brief.Options{
		SectionLines:   cfg.Brief.SectionLines,
		MaxTokens:      cfg.Brief.MaxTokens,
		SessionEntries: cfg.Sessions.BriefEntries,
	}, VersionString())

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "engram serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
