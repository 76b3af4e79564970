package server

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/async"
	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/ingest"
	"github.com/joseph-ayodele/docmerge/internal/pipeline"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	"github.com/joseph-ayodele/docmerge/internal/repository"
)

// doneRunner marks every job complete without touching the archive.
type doneRunner struct{}

func (doneRunner) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	start := time.Now()
	docx := filepath.Join(job.OutputDir, constants.MergedDocxName)
	pdf := filepath.Join(job.OutputDir, constants.MergedPDFName)
	progress.NewFileReporter(job.StatusDir, nil).Report(ctx, progress.Done(3, docx, pdf, start, time.Now()))
	return &pipeline.Result{JobID: job.ID, FileCount: 3, Start: start, End: time.Now()}, nil
}

type fakeLedger struct {
	st  *repository.Stats
	err error
}

func (f *fakeLedger) Stats(context.Context, int, int) (*repository.Stats, error) { return f.st, f.err }

type harness struct {
	client *JobServiceClient
	conn   *grpc.ClientConn
	root   string
}

func startServer(t *testing.T, ledger LedgerReader) *harness {
	t.Helper()
	root := t.TempDir()
	storage := common.StorageConfig{
		UploadDir: filepath.Join(root, "uploads"),
		OutputDir: filepath.Join(root, "outputs"),
		StatusDir: filepath.Join(root, "status"),
	}
	queue := async.NewProcessorQueue(doneRunner{}, nil, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	svc := NewJobService(ingest.NewFSIngestor(storage, queue, nil, nil), storage.StatusDir, ledger, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	svc.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: NewJobServiceClient(conn), conn: conn, root: root}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestSubmitStatusRoundTrip(t *testing.T) {
	h := startServer(t, nil)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "docs.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip bytes"), 0o644))

	resp, err := h.client.Submit(ctx, mustStruct(t, map[string]any{"archive_path": archive, "original_filename": "My Docs.zip"}))
	require.NoError(t, err)
	jobID := resp.GetFields()["job_id"].GetStringValue()
	assert.Regexp(t, `^[0-9]+_[0-9a-f]{8}$`, jobID)
	assert.Equal(t, "My_Docs.zip", resp.GetFields()["original_filename"].GetStringValue())
	assert.DirExists(t, resp.GetFields()["status_dir"].GetStringValue())

	require.Eventually(t, func() bool {
		st, err := h.client.Status(ctx, mustStruct(t, map[string]any{"job_id": jobID}))
		return err == nil && st.GetFields()["complete"].GetBoolValue()
	}, 5*time.Second, 20*time.Millisecond)

	st, err := h.client.Status(ctx, mustStruct(t, map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	assert.Equal(t, jobID, st.GetFields()["job_id"].GetStringValue())
	assert.EqualValues(t, 100, st.GetFields()["percent"].GetNumberValue())
	assert.Equal(t, "complete", st.GetFields()["current_step"].GetStringValue())
	assert.EqualValues(t, 3, st.GetFields()["file_count"].GetNumberValue())

	latest, err := h.client.Status(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, jobID, latest.GetFields()["job_id"].GetStringValue())
}

func TestSubmitRejectsBadInput(t *testing.T) {
	h := startServer(t, nil)
	ctx := context.Background()

	_, err := h.client.Submit(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.Submit(ctx, mustStruct(t, map[string]any{"archive_path": "notes.txt"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.Submit(ctx, mustStruct(t, map[string]any{"archive_path": filepath.Join(t.TempDir(), "gone.zip")}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStatusErrors(t *testing.T) {
	h := startServer(t, nil)
	ctx := context.Background()

	_, err := h.client.Status(ctx, mustStruct(t, map[string]any{"job_id": "../etc"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.Status(ctx, mustStruct(t, map[string]any{"job_id": "1700000000_deadbeef"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.Status(ctx, &structpb.Struct{})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	_, err := startServer(t, nil).client.Stats(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = startServer(t, &fakeLedger{err: errors.New("db down")}).client.Stats(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Internal, status.Code(err))

	done := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	h := startServer(t, &fakeLedger{st: &repository.Stats{
		TotalJobs:             2,
		ByStatus:              map[constants.JobStatus]int{constants.JobStatusCompleted: 1, constants.JobStatusProcessing: 1},
		TotalFiles:            4,
		TotalProcessingTime:   8,
		AverageProcessingTime: 8,
		Recent: []repository.Job{
			{ID: "1775124000_00000001", Status: constants.JobStatusCompleted, FileCount: 4, ProcessingTime: 8, CreatedAt: done.Add(-8 * time.Second), CompletedAt: &done},
			{ID: "1775124100_00000002", Status: constants.JobStatusProcessing, CreatedAt: done},
		},
		Daily: []repository.UsageStat{{Day: "2026-04-02", TotalJobs: 1, TotalFiles: 4, TotalProcessingTime: 8}},
	}})
	out, err := h.client.Stats(ctx, &structpb.Struct{})
	require.NoError(t, err)

	m := out.AsMap()
	assert.EqualValues(t, 2, m["total_jobs"])
	assert.EqualValues(t, 1, m["completed_jobs"])
	assert.EqualValues(t, 4, m["total_files_processed"])
	recent := m["recent_jobs"].([]any)
	require.Len(t, recent, 2)
	assert.Equal(t, "2026-04-02T10:00:00Z", recent[0].(map[string]any)["completed_at"])
	assert.Nil(t, recent[1].(map[string]any)["completed_at"])
	daily := m["daily"].([]any)
	require.Len(t, daily, 1)
	assert.EqualValues(t, 8, daily[0].(map[string]any)["average_processing_time"])
}

func TestHealthServing(t *testing.T) {
	h := startServer(t, nil)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: JobServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
