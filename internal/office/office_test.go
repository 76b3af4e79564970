package office

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noPath(string) (string, error) { return "", errors.New("not found") }

func onPath(names ...string) func(string) (string, error) {
	return func(n string) (string, error) {
		for _, x := range names {
			if x == n {
				return "/bin/" + n, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestLocateProbeOrder(t *testing.T) {
	s := NewSuite(Config{}, nil, WithLookPath(onPath("soffice", "libreoffice")))
	p, err := s.Locate()
	require.NoError(t, err)
	assert.Equal(t, "/bin/libreoffice", p)

	s = NewSuite(Config{SuitePath: "lo-custom"}, nil, WithLookPath(onPath("lo-custom", "libreoffice")))
	p, err = s.Locate()
	require.NoError(t, err)
	assert.Equal(t, "/bin/lo-custom", p)
}

func TestLocateAbsoluteCandidate(t *testing.T) {
	s := NewSuite(Config{}, nil,
		WithLookPath(noPath),
		WithStat(func(p string) (os.FileInfo, error) {
			if p == "/opt/libreoffice/program/soffice" {
				return os.Stat(os.Args[0])
			}
			return nil, os.ErrNotExist
		}))
	p, err := s.Locate()
	require.NoError(t, err)
	assert.Equal(t, "/opt/libreoffice/program/soffice", p)
}

func TestLocateNothing(t *testing.T) {
	s := NewSuite(Config{}, nil, WithLookPath(noPath), WithStat(func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }))
	_, err := s.Locate()
	assert.ErrorIs(t, err, ErrSuiteNotFound)
}

func TestConvertWritesExpectedOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.doc")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	var gotArgs []string
	runner := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotArgs = args
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil, nil, os.WriteFile(filepath.Join(args[4], "report.docx"), []byte("PK"), 0o644)
	})
	s := NewSuite(Config{}, nil, WithRunner(runner), WithLookPath(onPath("libreoffice")))

	out, err := s.Convert(context.Background(), src, "docx", dir, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.docx"), out)
	assert.Equal(t, []string{"--headless", "--convert-to", "docx", "--outdir", dir, src}, gotArgs)
}

func TestConvertMissingOutput(t *testing.T) {
	dir := t.TempDir()
	runner := RunnerFunc(func(context.Context, string, ...string) ([]byte, []byte, error) { return nil, nil, nil })
	s := NewSuite(Config{}, nil, WithRunner(runner), WithLookPath(onPath("libreoffice")))

	_, err := s.Convert(context.Background(), filepath.Join(dir, "a.doc"), "docx", dir, 0)
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		switch filepath.Base(name) {
		case "antiword":
			return []byte("caf\xe9 menu\n"), nil, nil
		case "catdoc":
			return []byte("   \n"), nil, nil
		}
		return nil, nil, errors.New("unexpected")
	})
	s := NewSuite(Config{}, nil, WithRunner(runner), WithLookPath(onPath("antiword", "catdoc")))

	text, err := s.ExtractText(context.Background(), Antiword, "a.doc", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "café menu\n", text)

	_, err = s.ExtractText(context.Background(), Catdoc, "a.doc", time.Second)
	assert.ErrorContains(t, err, "no text")

	s = NewSuite(Config{}, nil, WithRunner(runner), WithLookPath(noPath))
	_, err = s.ExtractText(context.Background(), Antiword, "a.doc", time.Second)
	assert.ErrorContains(t, err, "not installed")
}

func TestExecRunnerTimeout(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := ExecRunner{}.Run(ctx, "/bin/sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunnerLogsFailures(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("sh not available")
	}
	var buf bytes.Buffer
	r := ExecRunner{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	_, stderr, err := r.Run(context.Background(), "/bin/sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "oops\n", string(stderr))
	assert.Contains(t, buf.String(), "msg=office.exec.failed")
	assert.Contains(t, buf.String(), "stderr=")

	buf.Reset()
	out, _, err := r.Run(context.Background(), "/bin/sh", "-c", "printf ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Contains(t, buf.String(), "msg=office.exec.ok")
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", DecodeText([]byte("plain")))
	assert.Equal(t, "naïve “quote”", DecodeText([]byte("na\xefve \x93quote\x94")))
}
