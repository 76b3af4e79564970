package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/repository"
)

const (
	SheetSummary = "Summary"
	SheetJobs    = "Jobs"
	SheetDaily   = "Daily Usage"
)

// StatsSource is the part of the job repository the export reads.
type StatsSource interface {
	Stats(ctx context.Context, recent, days int) (*repository.Stats, error)
}

// Service produces XLSX reports of the job ledger.
type Service struct {
	ledger StatsSource
	logger *slog.Logger
}

func NewService(ledger StatsSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, logger: logger}
}

// Options bounds the report. Zero values mean 100 jobs and 30 days.
type Options struct {
	Jobs int
	Days int
}

// ExportLedgerXLSX returns a workbook (as bytes) with a summary sheet, the
// most recent jobs and the daily usage aggregates.
func (s *Service) ExportLedgerXLSX(ctx context.Context, opts Options) ([]byte, error) {
	start := time.Now()
	if opts.Jobs <= 0 {
		opts.Jobs = 100
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}

	st, err := s.ledger.Stats(ctx, opts.Jobs, opts.Days)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetJobs, SheetDaily} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	writeSummary(f, st)
	writeJobs(f, st.Recent)
	writeDaily(f, st.Daily)

	index, _ := f.GetSheetIndex(SheetSummary)
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(st.Recent),
		"days", len(st.Daily),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func writeSummary(f *excelize.File, st *repository.Stats) {
	rows := [][]any{
		{"Metric", "Value"},
		{"Total jobs", st.TotalJobs},
		{"Completed jobs", st.ByStatus[constants.JobStatusCompleted]},
		{"Failed jobs", st.ByStatus[constants.JobStatusError]},
		{"In progress", st.ByStatus[constants.JobStatusProcessing] + st.ByStatus[constants.JobStatusUploaded]},
		{"Files processed", st.TotalFiles},
		{"Total processing time (s)", round2(st.TotalProcessingTime)},
		{"Average processing time (s)", round2(st.AverageProcessingTime)},
	}
	for i, r := range rows {
		writeRow(f, SheetSummary, i+1, r...)
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 30)
	_ = f.SetColWidth(SheetSummary, "B", "B", 14)
}

func writeJobs(f *excelize.File, jobs []repository.Job) {
	writeRow(f, SheetJobs, 1, "Job ID", "Status", "Original Filename", "Files", "Processing Time (s)", "Created At", "Completed At")
	for i, j := range jobs {
		completed := ""
		if j.CompletedAt != nil {
			completed = j.CompletedAt.UTC().Format(time.RFC3339)
		}
		writeRow(f, SheetJobs, i+2,
			j.ID,
			string(j.Status),
			truncate(j.OriginalFilename, 120),
			j.FileCount,
			round2(j.ProcessingTime),
			j.CreatedAt.UTC().Format(time.RFC3339),
			completed,
		)
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetJobs, "A", "A", 22) // id
	_ = f.SetColWidth(SheetJobs, "B", "B", 12) // status
	_ = f.SetColWidth(SheetJobs, "C", "C", 40) // filename
	_ = f.SetColWidth(SheetJobs, "F", "G", 22) // timestamps
}

func writeDaily(f *excelize.File, days []repository.UsageStat) {
	writeRow(f, SheetDaily, 1, "Day", "Jobs", "Files", "Processing Time (s)", "Average (s)")
	for i, d := range days {
		writeRow(f, SheetDaily, i+2, d.Day, d.TotalJobs, d.TotalFiles, round2(d.TotalProcessingTime), round2(d.AverageProcessingTime()))
	}
	_ = f.SetColWidth(SheetDaily, "A", "A", 12)
	_ = f.SetColWidth(SheetDaily, "D", "E", 20)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
