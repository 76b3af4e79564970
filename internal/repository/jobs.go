package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/common"
)

const (
	tableJobs  = "jobs"
	tableUsage = "usage_stats"

	// DayLayout keys usage_stats rows (UTC).
	DayLayout = "2006-01-02"
)

var jobColumns = []string{"job_id", "status", "original_filename", "file_count", "processing_time", "created_at", "completed_at"}

// Job is one row of the job ledger.
type Job struct {
	ID               string
	Status           constants.JobStatus
	OriginalFilename string
	FileCount        int
	ProcessingTime   float64 // seconds
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// UsageStat aggregates completed jobs per UTC day.
type UsageStat struct {
	Day                 string
	TotalJobs           int
	TotalFiles          int
	TotalProcessingTime float64
}

// AverageProcessingTime is the mean seconds per job for the day.
func (u UsageStat) AverageProcessingTime() float64 {
	if u.TotalJobs == 0 {
		return 0
	}
	return u.TotalProcessingTime / float64(u.TotalJobs)
}

// Stats is the ledger summary served to operators.
type Stats struct {
	TotalJobs             int
	ByStatus              map[constants.JobStatus]int
	TotalFiles            int
	TotalProcessingTime   float64
	AverageProcessingTime float64
	Recent                []Job
	Daily                 []UsageStat
}

type JobRepository interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status constants.JobStatus, fileCount int, processingTime float64) error
	IncrementUsage(ctx context.Context, day time.Time, files int, processingTime float64) error
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	DailyUsage(ctx context.Context, days int) ([]UsageStat, error)
	Stats(ctx context.Context, recent, days int) (*Stats, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log, now: time.Now}
}

func (r *jobRepo) sql() *entsql.DialectBuilder { return entsql.Dialect(r.db.Dialect()) }

func (r *jobRepo) exec(ctx context.Context, q string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := r.db.drv.Exec(ctx, q, args, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return res, nil
}

func (r *jobRepo) query(ctx context.Context, q string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return rows, nil
}

func (r *jobRepo) Create(ctx context.Context, job Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusUploaded
	}
	q, args := r.sql().Insert(tableJobs).
		Columns(jobColumns...).
		Values(job.ID, string(job.Status), job.OriginalFilename, job.FileCount, job.ProcessingTime, job.CreatedAt.UTC(), timeArg(job.CompletedAt)).
		Query()
	if _, err := r.exec(ctx, q, args); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "err", err)
		return err
	}
	r.log.Info("job created", "job_id", job.ID, "status", job.Status, "original_filename", job.OriginalFilename)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, jobID string) (*Job, error) {
	q, args := r.sql().Select(jobColumns...).
		From(entsql.Table(tableJobs)).
		Where(entsql.EQ("job_id", jobID)).
		Query()
	jobs, err := r.scanJobs(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	return &jobs[0], nil
}

// UpdateJobStatus upserts the row so runs started outside the service (CLI)
// are recorded too. Terminal statuses stamp completed_at; the counters are
// only overwritten by a terminal status.
func (r *jobRepo) UpdateJobStatus(ctx context.Context, jobID string, status constants.JobStatus, fileCount int, processingTime float64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: job status %q", common.ErrInvalidInput, status)
	}
	now := r.now().UTC()
	var completed any
	if status.Terminal() {
		completed = now
	}
	q, args := r.sql().Insert(tableJobs).
		Columns(jobColumns...).
		Values(jobID, string(status), "", fileCount, processingTime, now, completed).
		OnConflict(
			entsql.ConflictColumns("job_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("status").SetExcluded("completed_at")
				if status.Terminal() {
					u.SetExcluded("file_count").SetExcluded("processing_time")
				}
			}),
		).
		Query()
	if _, err := r.exec(ctx, q, args); err != nil {
		r.log.Error("job status update failed", "job_id", jobID, "status", status, "err", err)
		return err
	}
	r.log.Debug("job status updated", "job_id", jobID, "status", status, "file_count", fileCount)
	return nil
}

// IncrementUsage adds one job to the aggregate row of day's UTC date.
func (r *jobRepo) IncrementUsage(ctx context.Context, day time.Time, files int, processingTime float64) error {
	key := day.UTC().Format(DayLayout)
	q, args := r.sql().Insert(tableUsage).
		Columns("day", "total_jobs", "total_files_processed", "total_processing_time").
		Values(key, 1, files, processingTime).
		OnConflict(
			entsql.ConflictColumns("day"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add("total_jobs", 1).
					Add("total_files_processed", files).
					Add("total_processing_time", processingTime)
			}),
		).
		Query()
	if _, err := r.exec(ctx, q, args); err != nil {
		r.log.Error("usage increment failed", "day", key, "err", err)
		return err
	}
	return nil
}

func (r *jobRepo) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 10
	}
	q, args := r.sql().Select(jobColumns...).
		From(entsql.Table(tableJobs)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("job_id")).
		Limit(limit).
		Query()
	return r.scanJobs(ctx, q, args)
}

// DailyUsage returns up to days rows, newest first.
func (r *jobRepo) DailyUsage(ctx context.Context, days int) ([]UsageStat, error) {
	if days <= 0 {
		days = 7
	}
	since := r.now().UTC().AddDate(0, 0, -(days - 1)).Format(DayLayout)
	q, args := r.sql().Select("day", "total_jobs", "total_files_processed", "total_processing_time").
		From(entsql.Table(tableUsage)).
		Where(entsql.GTE("day", since)).
		OrderBy(entsql.Desc("day")).
		Limit(days).
		Query()
	rows, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageStat
	for rows.Next() {
		var u UsageStat
		if err := rows.Scan(&u.Day, &u.TotalJobs, &u.TotalFiles, &u.TotalProcessingTime); err != nil {
			return nil, fmt.Errorf("%w: scan usage: %v", common.ErrDatabase, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *jobRepo) Stats(ctx context.Context, recent, days int) (*Stats, error) {
	st := &Stats{ByStatus: make(map[constants.JobStatus]int)}

	q, args := r.sql().Select("status", entsql.Count("*")).
		From(entsql.Table(tableJobs)).
		GroupBy("status").
		Query()
	rows, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan status counts: %v", common.ErrDatabase, err)
		}
		st.ByStatus[constants.JobStatus(status)] = n
		st.TotalJobs += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	q, args = r.sql().Select(entsql.Sum("total_files_processed"), entsql.Sum("total_processing_time")).
		From(entsql.Table(tableUsage)).
		Query()
	rows, err = r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if rows.Next() {
		var (
			files   sql.NullInt64
			seconds sql.NullFloat64
		)
		if err := rows.Scan(&files, &seconds); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan totals: %v", common.ErrDatabase, err)
		}
		st.TotalFiles = int(files.Int64)
		st.TotalProcessingTime = seconds.Float64
	}
	rows.Close()

	if done := st.ByStatus[constants.JobStatusCompleted]; done > 0 {
		st.AverageProcessingTime = st.TotalProcessingTime / float64(done)
	}
	if st.Recent, err = r.ListJobs(ctx, recent); err != nil {
		return nil, err
	}
	if st.Daily, err = r.DailyUsage(ctx, days); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *jobRepo) scanJobs(ctx context.Context, q string, args []any) ([]Job, error) {
	rows, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j         Job
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&j.ID, &status, &j.OriginalFilename, &j.FileCount, &j.ProcessingTime, &j.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
		}
		j.Status = constants.JobStatus(status)
		if completed.Valid {
			t := completed.Time
			j.CompletedAt = &t
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool { return errors.Is(err, common.ErrNotFound) }
