package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/docmerge/constants"
)

// Reporter publishes progress records. Implementations must not fail the
// caller: write errors are logged and swallowed.
type Reporter interface {
	Report(ctx context.Context, rec Record)
}

// FileReporter writes <dir>/status.json, replacing it atomically on every update.
type FileReporter struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileReporter(dir string, logger *slog.Logger) *FileReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileReporter{path: filepath.Join(dir, constants.StatusFileName), logger: logger}
}

// Path returns the status file location.
func (r *FileReporter) Path() string { return r.path }

func (r *FileReporter) Report(_ context.Context, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := writeAtomic(r.path, rec); err != nil {
		r.logger.Error("progress.write.failed", "path", r.path, "step", rec.CurrentStep, "error", err)
		return
	}
	r.logger.Debug("progress.write.ok", "path", r.path, "step", rec.CurrentStep, "percent", rec.Percent)
}

func writeAtomic(path string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadFile loads the status record stored in dir.
func ReadFile(dir string) (Record, error) {
	var rec Record
	b, err := os.ReadFile(filepath.Join(dir, constants.StatusFileName))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("decode status: %w", err)
	}
	return rec, nil
}

// Nop discards every record.
type Nop struct{}

func (Nop) Report(context.Context, Record) {}

// Memory keeps every record in order. Useful in tests and for synchronous CLI runs.
type Memory struct {
	mu   sync.Mutex
	recs []Record
}

func (m *Memory) Report(_ context.Context, rec Record) {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
}

// Records returns a copy of everything reported so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.recs))
	copy(out, m.recs)
	return out
}

// Last returns the latest record; ok is false when nothing was reported.
func (m *Memory) Last() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recs) == 0 {
		return Record{}, false
	}
	return m.recs[len(m.recs)-1], true
}

// Tee fans a record out to several reporters.
type Tee []Reporter

func (t Tee) Report(ctx context.Context, rec Record) {
	for _, r := range t {
		if r != nil {
			r.Report(ctx, rec)
		}
	}
}
