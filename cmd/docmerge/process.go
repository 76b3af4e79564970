package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/pipeline"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	repo "github.com/joseph-ayodele/docmerge/internal/repository"
)

var (
	processOutDir    string
	processStatusDir string
)

var processCmd = &cobra.Command{
	Use:   "process <archive.zip>",
	Short: "Run the merge pipeline on one archive and wait for it",
	Long: `Runs extract, normalize, merge and render in the foreground. Progress is
printed as it happens and also written to the job's status.json.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processOutDir, "out-dir", "", "job working directory (default <OUTPUT_DIR>/<job id>)")
	processCmd.Flags().StringVar(&processStatusDir, "status-dir", "", "progress record directory (default <STATUS_DIR>/<job id>)")
}

// consoleReporter prints every progress record as a single line.
type consoleReporter struct{}

func (consoleReporter) Report(_ context.Context, rec progress.Record) {
	switch {
	case rec.Failed():
		colorRed.Printf("[%3d%%] %s\n", rec.Percent, rec.StatusText)
	case rec.Complete:
		colorGreen.Printf("[%3d%%] %s\n", rec.Percent, rec.StatusText)
	default:
		colorCyan.Printf("[%3d%%] ", rec.Percent)
		colorWhite.Printf("%-24s %s\n", rec.CurrentStep, rec.StatusText)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	archive := args[0]
	if err := common.NewValidator().Field("archive", archive, common.Required, common.ZipPath).Error(); err != nil {
		return err
	}
	if _, err := os.Stat(archive); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, jobs, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var ledger pipeline.Ledger
	if db != nil {
		defer db.Close()
		ledger = jobs
	}

	now := time.Now()
	jobID := pipeline.NewJobID(now)
	layout := pipeline.NewLayout(cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.StatusDir, jobID)
	if processOutDir != "" {
		layout.OutputDir = processOutDir
	}
	if processStatusDir != "" {
		layout.StatusDir = processStatusDir
	}
	name := filepath.Base(archive)
	if jobs != nil {
		if err := jobs.Create(ctx, repo.Job{ID: jobID, OriginalFilename: name, CreatedAt: now}); err != nil {
			colorYellow.Printf("ledger: %v\n", err)
		}
	}

	colorCyan.Printf("Job %s\n", jobID)
	colorWhite.Printf("Archive:   %s\nOutput:    %s\nStatus:    %s\n", archive, layout.OutputDir, layout.StatusDir)
	printSeparator()

	proc := pipeline.NewFromConfig(cfg, ledger, logger)
	res, err := proc.Run(ctx, pipeline.Job{
		ID:               jobID,
		ArchivePath:      archive,
		OutputDir:        layout.OutputDir,
		StatusDir:        layout.StatusDir,
		OriginalFilename: name,
		Reporter:         progress.Tee{progress.NewFileReporter(layout.StatusDir, logger), consoleReporter{}},
	})
	printSeparator()
	if err != nil {
		if errors.Is(err, common.ErrNoDocuments) {
			colorYellow.Println("The archive holds no .doc or .docx files.")
		}
		return err
	}

	colorGreen.Println("Merge complete")
	colorWhite.Printf("Documents: %d\n", res.FileCount)
	colorWhite.Printf("DOCX:      %s\n", res.Docx)
	if res.PDF != "" {
		colorWhite.Printf("PDF:       %s (%s, %d pages)\n", res.PDF, res.PDFTier, res.PDFPages)
	} else {
		colorYellow.Println("PDF:       not produced, use the DOCX")
	}
	colorWhite.Printf("Elapsed:   %s\n", res.Elapsed().Round(time.Millisecond))
	if res.MergeFails > 0 {
		colorYellow.Printf("%d document(s) could not be merged; see the inline error notes.\n", res.MergeFails)
	}
	for _, s := range res.Skipped {
		colorYellow.Printf("skipped: %s\n", s)
	}
	return nil
}
