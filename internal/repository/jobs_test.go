package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docmerge/constants"
	"github.com/joseph-ayodele/docmerge/internal/common"
)

func openSQLiteLedger(t *testing.T) (*DB, *jobRepo) {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db, NewJobRepository(db, nil).(*jobRepo)
}

func TestSQLiteLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, repo := openSQLiteLedger(t)
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return day }

	require.NoError(t, repo.Create(ctx, Job{ID: "1773489600_aaaaaaaa", OriginalFilename: "batch.zip", CreatedAt: day.Add(-time.Minute)}))

	got, err := repo.Get(ctx, "1773489600_aaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusUploaded, got.Status)
	assert.Equal(t, "batch.zip", got.OriginalFilename)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateJobStatus(ctx, got.ID, constants.JobStatusProcessing, 0, 0))
	require.NoError(t, repo.UpdateJobStatus(ctx, got.ID, constants.JobStatusCompleted, 5, 12.5))
	require.NoError(t, repo.IncrementUsage(ctx, day, 5, 12.5))

	got, err = repo.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 5, got.FileCount)
	assert.InDelta(t, 12.5, got.ProcessingTime, 1e-9)
	assert.Equal(t, "batch.zip", got.OriginalFilename, "status updates keep the original filename")
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(day))

	// a run recorded without a prior Create (CLI) is inserted
	require.NoError(t, repo.UpdateJobStatus(ctx, "1773489700_bbbbbbbb", constants.JobStatusError, 0, 1))
	require.NoError(t, repo.UpdateJobStatus(ctx, "1773489800_cccccccc", constants.JobStatusCompleted, 3, 7.5))
	require.NoError(t, repo.IncrementUsage(ctx, day, 3, 7.5))
	require.NoError(t, repo.IncrementUsage(ctx, day.AddDate(0, 0, -1), 1, 2))

	daily, err := repo.DailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-03-14", daily[0].Day)
	assert.Equal(t, 2, daily[0].TotalJobs)
	assert.Equal(t, 8, daily[0].TotalFiles)
	assert.InDelta(t, 10.0, daily[0].AverageProcessingTime(), 1e-9)
	assert.Equal(t, "2026-03-13", daily[1].Day)

	st, err := repo.Stats(ctx, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalJobs)
	assert.Equal(t, 2, st.ByStatus[constants.JobStatusCompleted])
	assert.Equal(t, 1, st.ByStatus[constants.JobStatusError])
	assert.Equal(t, 9, st.TotalFiles)
	assert.InDelta(t, 22.0, st.TotalProcessingTime, 1e-9)
	assert.InDelta(t, 11.0, st.AverageProcessingTime, 1e-9)
	assert.Len(t, st.Recent, 3)
	assert.Len(t, st.Daily, 2)
}

func TestGetMissingJob(t *testing.T) {
	_, repo := openSQLiteLedger(t)
	_, err := repo.Get(context.Background(), "1_deadbeef")
	assert.True(t, IsNotFound(err))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, _ := openSQLiteLedger(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestStatsOnEmptyLedger(t *testing.T) {
	_, repo := openSQLiteLedger(t)
	st, err := repo.Stats(context.Background(), 10, 7)
	require.NoError(t, err)
	assert.Zero(t, st.TotalJobs)
	assert.Zero(t, st.TotalFiles)
	assert.Zero(t, st.AverageProcessingTime)
	assert.Empty(t, st.Recent)
}

func mockRepo(t *testing.T) (JobRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewJobRepository(NewWithDriver(entsql.OpenDB(dialect.Postgres, db), nil), nil), mock
}

func TestUpdateJobStatusPropagatesDatabaseErrors(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectExec(`INSERT INTO "jobs".*ON CONFLICT \("job_id"\) DO UPDATE SET`).
		WillReturnError(errors.New("connection reset"))

	err := repo.UpdateJobStatus(context.Background(), "1_deadbeef", constants.JobStatusProcessing, 0, 0)
	assert.ErrorIs(t, err, common.ErrDatabase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusRejectsUnknownStatus(t *testing.T) {
	repo, mock := mockRepo(t)
	err := repo.UpdateJobStatus(context.Background(), "1_deadbeef", constants.JobStatus("paused"), 0, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementUsageUpsert(t *testing.T) {
	repo, mock := mockRepo(t)
	day := time.Date(2026, 1, 2, 23, 59, 0, 0, time.FixedZone("X", -3600))
	mock.ExpectExec(`INSERT INTO "usage_stats".*ON CONFLICT \("day"\) DO UPDATE SET .*total_jobs`).
		WithArgs("2026-01-03", 1, 4, 2.5, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementUsage(context.Background(), day, 4, 2.5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsQueryFailure(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectQuery(`SELECT .* FROM "jobs"`).WillReturnError(errors.New("timeout"))

	_, err := repo.ListJobs(context.Background(), 5)
	assert.ErrorIs(t, err, common.ErrDatabase)
	require.NoError(t, mock.ExpectationsWereMet())
}
