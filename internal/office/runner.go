package office

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// DefaultWaitDelay bounds how long Run waits for output pipes after the
// process was killed. Office suites fork helpers that keep them open.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs real processes.
type ExecRunner struct {
	Logger    *slog.Logger
	WaitDelay time.Duration // <= 0 means DefaultWaitDelay
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	// a killed process reports "signal: killed"; callers want the deadline
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	attrs := []any{
		"tool", name,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch {
	case ctx.Err() != nil:
		logger.Warn("office.exec.timeout", append(attrs, "error", err)...)
	case err != nil:
		logger.Warn("office.exec.failed", append(attrs, "error", err, "stderr", truncate(stderr.String(), 8<<10))...)
	default:
		logger.Debug("office.exec.ok", append(attrs, "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())...)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f(ctx, name, args...)
}
