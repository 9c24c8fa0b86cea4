package scheduler

import (
	"context"
	"time"

	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rs/zerolog"
)

// DigestFlusher delivers queued alert digests.
type DigestFlusher interface {
	FlushDigest(ctx context.Context, frequency models.AlertFrequency) (int, error)
}

// DigestJob flushes the queued alerts of one frequency
type DigestJob struct {
	log       zerolog.Logger
	flusher   DigestFlusher
	frequency models.AlertFrequency
	timeout   time.Duration
}

// NewDigestJob creates a digest job. timeout bounds one run; zero means one minute.
func NewDigestJob(log zerolog.Logger, flusher DigestFlusher, frequency models.AlertFrequency, timeout time.Duration) *DigestJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &DigestJob{
		log:       log.With().Str("job", string(frequency)+"_digest").Logger(),
		flusher:   flusher,
		frequency: frequency,
		timeout:   timeout,
	}
}

// Name returns the job name
func (j *DigestJob) Name() string {
	return string(j.frequency) + "_digest"
}

// Run flushes the digest
func (j *DigestJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.flusher.FlushDigest(ctx, j.frequency)
	if err != nil {
		return err
	}
	j.log.Info().Int("alerts", n).Msg("Digest flushed")
	return nil
}
