package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/ingest"
	"github.com/joseph-ayodele/docmerge/internal/progress"
	"github.com/joseph-ayodele/docmerge/internal/repository"
)

const (
	statsRecentJobs = 10
	statsDays       = 7
)

// LedgerReader is the read side of the job ledger. nil disables Stats.
type LedgerReader interface {
	Stats(ctx context.Context, recent, days int) (*repository.Stats, error)
}

// JobService accepts archives and reports their progress.
type JobService struct {
	ingestor   ingest.Ingestor
	statusRoot string
	ledger     LedgerReader
	logger     *slog.Logger
}

func NewJobService(ing ingest.Ingestor, statusRoot string, ledger LedgerReader, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		ingestor:   ing,
		statusRoot: statusRoot,
		ledger:     ledger,
		logger:     logger,
	}
}

// Register mounts the job service, health and reflection on gs.
func (s *JobService) Register(gs *grpc.Server) *health.Server {
	RegisterJobServiceServer(gs, s)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(JobServiceName, healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl
	reflection.Register(gs)
	return hs
}

// Submit takes {archive_path, original_filename?} and returns
// {job_id, output_dir, status_dir, original_filename}.
func (s *JobService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(stringField(req, "archive_path"))
	name := strings.TrimSpace(stringField(req, "original_filename"))

	v := common.NewValidator().Field("archive_path", path, common.Required, common.ZipPath)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Error("submit request rejected", "archive_path", path, "error", err)
		return nil, err
	}

	t, err := s.ingestor.SubmitArchive(ctx, path, name)
	if err != nil {
		s.logger.Error("submit failed", "archive_path", path, "job_id", t.JobID, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("job submitted", "job_id", t.JobID, "archive_path", path)

	return structpb.NewStruct(map[string]any{
		"job_id":            t.JobID,
		"output_dir":        t.OutputDir,
		"status_dir":        t.StatusDir,
		"original_filename": t.OriginalFilename,
	})
}

// Status takes {job_id} and returns that job's progress record with job_id
// added. An empty job_id selects the most recently updated job.
func (s *JobService) Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	jobID := strings.TrimSpace(stringField(req, "job_id"))
	if jobID == "" {
		latest, err := latestJob(s.statusRoot)
		if err != nil {
			return nil, common.ToStatus(err)
		}
		jobID = latest
	} else {
		v := common.NewValidator().Field("job_id", jobID, common.JobID)
		if err := common.ValidateAndReturnError(v); err != nil {
			return nil, err
		}
	}

	rec, err := progress.ReadFile(filepath.Join(s.statusRoot, jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NotFoundError(fmt.Sprintf("job %s not found", jobID))
	}
	if err != nil {
		s.logger.Error("status read failed", "job_id", jobID, "error", err)
		return nil, common.InternalError("status read failed")
	}

	out, err := toStruct(rec)
	if err != nil {
		return nil, common.InternalErrorf("encode status: %v", err)
	}
	out.Fields["job_id"] = structpb.NewStringValue(jobID)
	return out, nil
}

type jobRow struct {
	JobID            string  `json:"job_id"`
	Status           string  `json:"status"`
	OriginalFilename string  `json:"original_filename"`
	FileCount        int     `json:"file_count"`
	ProcessingTime   float64 `json:"processing_time"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      *string `json:"completed_at"`
}

type dayRow struct {
	Day                   string  `json:"day"`
	TotalJobs             int     `json:"total_jobs"`
	TotalFilesProcessed   int     `json:"total_files_processed"`
	TotalProcessingTime   float64 `json:"total_processing_time"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

type statsBody struct {
	TotalJobs             int            `json:"total_jobs"`
	CompletedJobs         int            `json:"completed_jobs"`
	FailedJobs            int            `json:"failed_jobs"`
	ByStatus              map[string]int `json:"by_status"`
	TotalFilesProcessed   int            `json:"total_files_processed"`
	TotalProcessingTime   float64        `json:"total_processing_time"`
	AverageProcessingTime float64        `json:"average_processing_time"`
	RecentJobs            []jobRow       `json:"recent_jobs"`
	Daily                 []dayRow       `json:"daily"`
}

// Stats returns ledger totals, the most recent jobs and the last 7 days.
func (s *JobService) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.ledger == nil {
		return nil, common.UnavailableError("job ledger is disabled")
	}
	st, err := s.ledger.Stats(ctx, statsRecentJobs, statsDays)
	if err != nil {
		s.logger.Warn("stats query failed", "error", err)
		return nil, common.InternalError("stats query failed")
	}

	body := statsBody{
		TotalJobs:             st.TotalJobs,
		CompletedJobs:         st.ByStatus[constants.JobStatusCompleted],
		FailedJobs:            st.ByStatus[constants.JobStatusError],
		ByStatus:              make(map[string]int, len(st.ByStatus)),
		TotalFilesProcessed:   st.TotalFiles,
		TotalProcessingTime:   st.TotalProcessingTime,
		AverageProcessingTime: st.AverageProcessingTime,
		RecentJobs:            make([]jobRow, 0, len(st.Recent)),
		Daily:                 make([]dayRow, 0, len(st.Daily)),
	}
	for k, n := range st.ByStatus {
		body.ByStatus[string(k)] = n
	}
	for _, j := range st.Recent {
		row := jobRow{
			JobID:            j.ID,
			Status:           string(j.Status),
			OriginalFilename: j.OriginalFilename,
			FileCount:        j.FileCount,
			ProcessingTime:   j.ProcessingTime,
			CreatedAt:        j.CreatedAt.UTC().Format(time.RFC3339),
		}
		if j.CompletedAt != nil {
			ts := j.CompletedAt.UTC().Format(time.RFC3339)
			row.CompletedAt = &ts
		}
		body.RecentJobs = append(body.RecentJobs, row)
	}
	for _, d := range st.Daily {
		body.Daily = append(body.Daily, dayRow{
			Day:                   d.Day,
			TotalJobs:             d.TotalJobs,
			TotalFilesProcessed:   d.TotalFiles,
			TotalProcessingTime:   d.TotalProcessingTime,
			AverageProcessingTime: d.AverageProcessingTime(),
		})
	}

	out, err := toStruct(body)
	if err != nil {
		return nil, common.InternalErrorf("encode stats: %v", err)
	}
	return out, nil
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// toStruct converts v through its JSON form so field names follow json tags.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return out, nil
}

// latestJob returns the job whose status directory changed last.
func latestJob(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(root, e.Name(), constants.StatusFileName))
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best, bestTime = e.Name(), info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no jobs in progress: %w", common.ErrNotFound)
	}
	return best, nil
}
