// Package progress owns the job progress record: a small JSON document that is
// overwritten wholesale on every update and polled by whoever submitted the job.
package progress

import (
	"time"

	"github.com/joseph-ayodele/docmerge/constants"
)

// Record is the on-disk progress document. Absent optional fields are omitted.
type Record struct {
	CurrentStep    constants.Step `json:"current_step"`
	Complete       bool           `json:"complete"`
	Percent        int            `json:"percent"`
	StatusText     string         `json:"status_text"`
	Error          *string        `json:"error"`
	FileCount      int            `json:"file_count,omitempty"`
	Processed      int            `json:"processed,omitempty"`
	Total          int            `json:"total,omitempty"`
	StartTime      int64          `json:"start_time,omitempty"` // unix seconds
	EndTime        int64          `json:"end_time,omitempty"`   // unix seconds
	ProcessingTime int            `json:"processing_time,omitempty"`
	OutputDocx     string         `json:"output_docx,omitempty"`
	OutputPDF      string         `json:"output_pdf,omitempty"`
	Stats          *Stats         `json:"stats,omitempty"`
}

// Stats is the summary block attached to the terminal success record.
type Stats struct {
	ProcessingTime int `json:"processing_time"` // whole seconds
	FileCount      int `json:"file_count"`
}

// Step builds a non-terminal record.
func Step(step constants.Step, percent int, text string) Record {
	return Record{CurrentStep: step, Percent: clamp(percent), StatusText: text}
}

// Failure builds the terminal error record. Percent is reset to 0.
func Failure(err error) Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Record{
		CurrentStep: constants.StepError,
		Percent:     constants.PercentError,
		StatusText:  "Error: " + msg,
		Error:       &msg,
	}
}

// Done builds the terminal success record.
func Done(fileCount int, docx, pdf string, start, end time.Time) Record {
	elapsed := int(end.Unix() - start.Unix())
	return Record{
		CurrentStep:    constants.StepComplete,
		Complete:       true,
		Percent:        constants.PercentComplete,
		StatusText:     "Processing complete",
		FileCount:      fileCount,
		StartTime:      start.Unix(),
		EndTime:        end.Unix(),
		ProcessingTime: elapsed,
		OutputDocx:     docx,
		OutputPDF:      pdf,
		Stats:          &Stats{ProcessingTime: elapsed, FileCount: fileCount},
	}
}

// Failed reports whether the record is the terminal error record.
func (r Record) Failed() bool { return r.CurrentStep == constants.StepError }

// Terminal reports whether no further updates are expected.
func (r Record) Terminal() bool { return r.Complete || r.Failed() }

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
