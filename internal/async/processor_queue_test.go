package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docmerge/internal/pipeline"
)

type recordingRunner struct {
	mu   sync.Mutex
	seen []string
	fail bool
	gate chan struct{}
}

func (r *recordingRunner) Run(_ context.Context, job pipeline.Job) (*pipeline.Result, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.seen = append(r.seen, job.ID)
	r.mu.Unlock()
	if r.fail {
		return nil, errors.New("failed")
	}
	now := time.Now()
	return &pipeline.Result{JobID: job.ID, Start: now, End: now}, nil
}

func (r *recordingRunner) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestSubmitRunsAllJobsBeforeShutdownReturns(t *testing.T) {
	r := &recordingRunner{}
	q := NewProcessorQueue(r, nil, WithWorkers(3), WithQueueSize(8))

	for _, id := range []string{"1_a", "2_b", "3_c", "4_d", "5_e"} {
		require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: id}}))
	}
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, []string{"1_a", "2_b", "3_c", "4_d", "5_e"}, r.ids())
}

func TestProcessQueuesOneRun(t *testing.T) {
	r := &recordingRunner{}
	q := NewProcessorQueue(r, nil, WithWorkers(1))

	require.NoError(t, Process(context.Background(), q, "/in/a.zip", "/out/7_ab", "/status/7_ab", "7_ab"))
	q.Shutdown(context.Background())

	assert.Equal(t, []string{"7_ab"}, r.ids())
	assert.ErrorIs(t, Process(context.Background(), q, "/in/a.zip", "/out", "/status", "8_cd"), ErrQueueClosed)
}

func TestSubmitAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingRunner{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "1_a"}})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestFailedJobsDoNotStopWorkers(t *testing.T) {
	r := &recordingRunner{fail: true}
	q := NewProcessorQueue(r, nil, WithWorkers(1))
	for _, id := range []string{"1_a", "2_b"} {
		require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: id}}))
	}
	q.Shutdown(context.Background())
	assert.Equal(t, []string{"1_a", "2_b"}, r.ids())
}

func TestFullQueueHonoursContext(t *testing.T) {
	r := &recordingRunner{gate: make(chan struct{})}
	q := NewProcessorQueue(r, nil, WithWorkers(1), WithQueueSize(1))

	// one job held by the worker, one in the buffer
	require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "1_a"}}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "2_b"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Submit(ctx, Job{Job: pipeline.Job{ID: "3_c"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(r.gate)
	q.Shutdown(context.Background())
	assert.Equal(t, []string{"1_a", "2_b"}, r.ids())
}

func TestBlockedSubmitDoesNotStallOthers(t *testing.T) {
	r := &recordingRunner{gate: make(chan struct{})}
	q := NewProcessorQueue(r, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "1_a"}}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "2_b"}}))

	// queue is full; this submitter waits without a deadline
	blocked := make(chan error, 1)
	go func() { blocked <- q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "3_c"}}) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Submit(ctx, Job{Job: pipeline.Job{ID: "4_d"}}), context.DeadlineExceeded)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		q.Shutdown(context.Background())
	}()
	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked submitter was not released by Shutdown")
	}

	close(r.gate)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
	assert.Equal(t, []string{"1_a", "2_b"}, r.ids())
}

type slowRunner struct{ started atomic.Int32 }

func (s *slowRunner) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	s.started.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestJobTimeoutCancelsRun(t *testing.T) {
	s := &slowRunner{}
	q := NewProcessorQueue(s, nil, WithWorkers(1), WithJobTimeout(10*time.Millisecond))
	require.NoError(t, q.Submit(context.Background(), Job{Job: pipeline.Job{ID: "1_a"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, int32(1), s.started.Load())
}
