package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docmerge/constants"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n, "extracted"), 0o755))
	}
}

func TestCleanup(t *testing.T) {
	root := t.TempDir()
	old := fmt.Sprintf("%d_deadbeef", time.Now().Add(-48*time.Hour).Unix())
	fresh := fmt.Sprintf("%d_cafebabe", time.Now().Unix())
	mkdirs(t, root, old, fresh, "abc_123", "noprefix", "_123")
	require.NoError(t, os.WriteFile(filepath.Join(root, "1_file"), []byte("x"), 0o644))

	assert.True(t, Cleanup(root, 24*time.Hour))

	assert.NoDirExists(t, filepath.Join(root, old))
	assert.DirExists(t, filepath.Join(root, fresh))
	assert.DirExists(t, filepath.Join(root, "abc_123"))
	assert.DirExists(t, filepath.Join(root, "noprefix"))
	assert.DirExists(t, filepath.Join(root, "_123"))
	assert.FileExists(t, filepath.Join(root, "1_file"))
}

func TestCleanupMissingRoot(t *testing.T) {
	assert.False(t, Cleanup(filepath.Join(t.TempDir(), "gone"), time.Hour))
}

func TestActiveMarkerProtectsRunningJob(t *testing.T) {
	root := t.TempDir()
	name := fmt.Sprintf("%d_00000001", time.Now().Add(-2*time.Hour).Unix())
	mkdirs(t, root, name)
	marker := filepath.Join(root, name, constants.ActiveMarkerName)
	require.NoError(t, os.WriteFile(marker, nil, 0o644))

	s := &Sweeper{Roots: []string{root}, MaxAge: time.Hour}
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.DirExists(t, filepath.Join(root, name))

	stale := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(marker, stale, stale))
	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepAcrossRoots(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	roots := []string{t.TempDir(), t.TempDir(), filepath.Join(t.TempDir(), "missing")}
	for i, r := range roots[:2] {
		mkdirs(t, r, fmt.Sprintf("%d_a%d", base.Unix(), i), fmt.Sprintf("%d_b%d", base.Add(23*time.Hour).Unix(), i))
	}

	s := &Sweeper{Roots: roots, Now: func() time.Time { return base.Add(25 * time.Hour) }}
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "1_old")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		(&Sweeper{Roots: []string{root}, Interval: time.Hour}).Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "1_old"))
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTimestamp(t *testing.T) {
	ts, ok := Timestamp("1700000000_abcd")
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000), ts.Unix())

	for _, bad := range []string{"", "abc", "12a_x", "_x", "-5_x", "17000"} {
		_, ok := Timestamp(bad)
		assert.False(t, ok, bad)
	}
}
