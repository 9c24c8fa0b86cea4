package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int32
	err  error
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestAddJob_RejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("every morning", &countingJob{})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Entries())
}

func TestAddJob_Runs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))
	require.NoError(t, s.AddJob("0 8 * * MON", &countingJob{}))
	assert.Equal(t, 2, s.Entries())

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

type fakeFlusher struct {
	frequencies []models.AlertFrequency
	n           int
	err         error
}

func (f *fakeFlusher) FlushDigest(ctx context.Context, frequency models.AlertFrequency) (int, error) {
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected a deadline")
	}
	f.frequencies = append(f.frequencies, frequency)
	return f.n, f.err
}

func TestDigestJob(t *testing.T) {
	flusher := &fakeFlusher{n: 3}
	job := NewDigestJob(zerolog.Nop(), flusher, models.FrequencyWeekly, 0)

	assert.Equal(t, "weekly_digest", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, []models.AlertFrequency{models.FrequencyWeekly}, flusher.frequencies)

	flusher.err = errors.New("telegram down")
	assert.Error(t, job.Run())
}
