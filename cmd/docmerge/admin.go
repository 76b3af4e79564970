package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docmerge/internal/export"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	"github.com/joseph-ayodele/docmerge/internal/sweep"
)

var (
	sweepMaxAge time.Duration

	exportOut  string
	exportJobs int
	exportDays int

	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status <status_dir>",
	Short: "Print the progress record of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep <root>...",
	Short: "Delete job directories older than --max-age",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSweep,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the job ledger to an XLSX workbook",
	RunE:  runExport,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw record")
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", sweep.DefaultMaxAge, "retention threshold")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "docmerge-report.xlsx", "output XLSX file path")
	exportCmd.Flags().IntVar(&exportJobs, "jobs", 100, "number of recent jobs to include")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "number of days of usage to include")
}

func runStatus(_ *cobra.Command, args []string) error {
	rec, err := progress.ReadFile(args[0])
	if err != nil {
		return err
	}
	if statusJSON {
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	switch {
	case rec.Failed():
		colorRed.Printf("%s (%d%%)\n", rec.CurrentStep, rec.Percent)
	case rec.Complete:
		colorGreen.Printf("%s (%d%%)\n", rec.CurrentStep, rec.Percent)
	default:
		colorCyan.Printf("%s (%d%%)\n", rec.CurrentStep, rec.Percent)
	}
	colorWhite.Println(rec.StatusText)
	if rec.Error != nil {
		colorRed.Printf("error: %s\n", *rec.Error)
	}
	if rec.Complete {
		colorWhite.Printf("files: %d  time: %ds\n", rec.FileCount, rec.ProcessingTime)
		colorWhite.Printf("docx:  %s\npdf:   %s\n", rec.OutputDocx, rec.OutputPDF)
	}
	if err := progress.ValidateRecord(rec); err != nil {
		colorYellow.Printf("warning: record does not match schema: %v\n", err)
	}
	return nil
}

func runSweep(_ *cobra.Command, args []string) error {
	failed := 0
	for _, root := range args {
		if sweep.Cleanup(root, sweepMaxAge) {
			colorGreen.Printf("swept %s\n", root)
			continue
		}
		colorRed.Printf("cannot read %s\n", root)
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d roots could not be swept", failed, len(args))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, jobs, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("no ledger configured: set DB_URL")
	}
	defer db.Close()

	b, err := export.NewService(jobs, logger).ExportLedgerXLSX(ctx, export.Options{Jobs: exportJobs, Days: exportDays})
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	colorGreen.Printf("wrote %s (%d bytes)\n", exportOut, len(b))
	return nil
}
