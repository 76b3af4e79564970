// Command docmerge is the operator CLI: run a merge synchronously, inspect
// progress records, sweep old job directories and export the job ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docmerge/internal/common"
	repo "github.com/joseph-ayodele/docmerge/internal/repository"
)

var (
	version = "0.1.0"
	appName = "docmerge"

	verbose bool

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
	colorWhite  = color.New(color.FgWhite)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Merge archives of Word documents into one DOCX and PDF",
	Long: `docmerge extracts the .doc/.docx files of a ZIP archive, normalizes each
one, merges them into a single document and renders it to PDF.

Examples:
  docmerge process batch.zip
  docmerge status status/1760000000_0a1b2c3d
  docmerge sweep uploads outputs status --max-age 24h
  docmerge export --out report.xlsx
  docmerge submit batch.zip --addr localhost:8080 --wait`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline events to stderr")
	rootCmd.AddCommand(processCmd, statusCmd, sweepCmd, exportCmd, submitCmd)
}

// loadConfig reads the shared configuration and builds the CLI logger, which
// is silent unless --verbose is set.
func loadConfig() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	level := "error"
	if verbose {
		level = cfg.Log.Level
	}
	logger := common.NewLogger(common.LogConfig{Level: level, Format: cfg.Log.Format}, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openLedger opens and migrates the configured ledger; it returns nil when
// no DSN is configured.
func openLedger(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repo.DB, repo.JobRepository, error) {
	if !cfg.LedgerEnabled() {
		return nil, nil, nil
	}
	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo.NewJobRepository(db, logger), nil
}

func printSeparator() {
	colorWhite.Println(strings.Repeat("─", 60))
}
