package progress

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docmerge/constants"
)

func TestFileReporterOverwritesWholesale(t *testing.T) {
	dir := t.TempDir()
	r := NewFileReporter(dir, nil)
	ctx := context.Background()

	r.Report(ctx, Step(constants.StepExtract, constants.PercentExtract, "Extracting files..."))
	r.Report(ctx, Record{CurrentStep: constants.StepMerge, Percent: 60, StatusText: "Merging 2/5", Processed: 2, Total: 5})

	rec, err := ReadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, constants.StepMerge, rec.CurrentStep)
	assert.Equal(t, 60, rec.Percent)
	assert.Equal(t, 2, rec.Processed)
	assert.Nil(t, rec.Error)

	b, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"error":null`)
	require.NoError(t, Validate(b))

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".status-*"))
	assert.Empty(t, leftovers)
}

func TestFileReporterSwallowsWriteErrors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := NewFileReporter(filepath.Join(blocker, "nested"), nil)
	assert.NotPanics(t, func() {
		r.Report(context.Background(), Step(constants.StepExtract, 10, "x"))
	})
}

func TestRecordsValidate(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := map[string]Record{
		"step":    Step(constants.StepConvert, constants.PercentConvert, "Converting"),
		"failure": Failure(errors.New("no .doc files")),
		"done":    Done(5, "/o/merged.docx", "/o/merged.pdf", start, start.Add(3*time.Second)),
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, ValidateRecord(rec))
		})
	}

	done := cases["done"]
	assert.True(t, done.Complete)
	assert.Equal(t, 100, done.Percent)
	assert.Equal(t, 3, done.Stats.ProcessingTime)
	assert.True(t, done.Terminal())

	fail := cases["failure"]
	assert.Equal(t, 0, fail.Percent)
	require.NotNil(t, fail.Error)
	assert.Equal(t, "no .doc files", *fail.Error)
	assert.True(t, fail.Failed())
}

func TestDoneWritesEpochSeconds(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	b, err := json.Marshal(Done(5, "/o/merged.docx", "/o/merged.pdf", start, start.Add(1500*time.Millisecond)))
	require.NoError(t, err)
	require.NoError(t, Validate(b))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, `1700000000`, string(raw["start_time"]))
	assert.JSONEq(t, `1700000001`, string(raw["end_time"]))
	assert.JSONEq(t, `1`, string(raw["processing_time"]))
	assert.JSONEq(t, `{"processing_time":1,"file_count":5}`, string(raw["stats"]))

	assert.Error(t, Validate([]byte(`{"current_step":"extract","complete":false,"percent":0,"status_text":"x","error":null,"start_time":"2023-11-14T22:13:20Z"}`)))
}

func TestValidateRejectsInconsistentRecord(t *testing.T) {
	bad := Record{CurrentStep: constants.StepComplete, Complete: false, Percent: 100, StatusText: "x"}
	assert.Error(t, ValidateRecord(bad))

	assert.Error(t, Validate([]byte(`{"current_step":"merge","complete":false,"percent":120,"status_text":"","error":null}`)))
	assert.Error(t, Validate([]byte(`not json`)))
}

func TestStepClampsPercent(t *testing.T) {
	assert.Equal(t, 100, Step(constants.StepMerge, 140, "").Percent)
	assert.Equal(t, 0, Step(constants.StepMerge, -3, "").Percent)
}

func TestThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottle(time.Second, func() time.Time { return now })

	assert.False(t, th.Allow())
	now = now.Add(500 * time.Millisecond)
	assert.False(t, th.Allow())
	now = now.Add(500 * time.Millisecond)
	assert.True(t, th.Allow())
	assert.False(t, th.Allow())
	now = now.Add(2 * time.Second)
	assert.True(t, th.Allow())
}

func TestMemoryAndTee(t *testing.T) {
	var a, b Memory
	Tee{&a, nil, &b, Nop{}}.Report(context.Background(), Step(constants.StepMerge, 50, "m"))

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, constants.StepMerge, last.CurrentStep)
	assert.Len(t, b.Records(), 1)

	var empty Memory
	_, ok = empty.Last()
	assert.False(t, ok)
}
