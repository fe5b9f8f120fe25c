package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram/engram/internal/config"
)

var exportText bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the store as JSON (or --text for the oracle format)",
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if exportText {
		doc, err := db.ExportText(time.Now())
		if err != nil {
			return err
		}
		fmt.Print(doc)
		return nil
	}
	return db.ExportJSON(os.Stdout)
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import records from a JSON export",
	Long:  "Import records and session entries from a JSON export, from a file or stdin. Imported records start at full strength.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	in := os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var n int
	err = withWriteLock(db, func() error {
		n, err = db.ImportJSON(in)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records\n", n)
	return nil
}

func init() {
	exportCmd.Flags().BoolVar(&exportText, "text", false, "Emit the flat text document used for reconciliation")
}
