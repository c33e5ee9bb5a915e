package scheduler

import (
	"context"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"
	"github.com/mana170183uk/homeal-orders/internal/util"

	"go.uber.org/zap"
)

const claimBatchSize = 50

// JobStore claims due jobs from the durable schedule and retires them once
// their action succeeded.
type JobStore interface {
	ClaimDueJobs(ctx context.Context, limit int) ([]models.ScheduledJob, error)
	MarkJobDone(ctx context.Context, jobID int64) error
}

// Rejector runs the auto-reject check for one order.
type Rejector interface {
	AutoReject(ctx context.Context, orderID int64) error
}

// Scheduler polls the scheduled_jobs table and executes due deadline checks.
// Jobs are durable rows, so deadlines survive restarts and any instance may
// claim them; the check itself only acts on orders still observed PLACED, so
// duplicate execution is harmless.
type Scheduler struct {
	jobs     JobStore
	rejector Rejector
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new scheduler
func New(jobs JobStore, rejector Rejector, interval time.Duration) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		rejector: rejector,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Deadline scheduler started",
		zap.Duration("poll_interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Deadline scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick claims one batch of due jobs and executes them. A job is marked done
// only after its action succeeds; on failure the claim is left to expire so
// the job is handed out again on a later poll.
func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.jobs.ClaimDueJobs(ctx, claimBatchSize)
	if err != nil {
		s.logger.Error("Failed to claim due jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		util.ScheduledJobsExecutedTotal.Inc()

		switch job.Kind {
		case models.JobKindAutoReject:
			if err := s.rejector.AutoReject(ctx, job.OrderID); err != nil {
				s.logger.Error("Auto-reject check failed",
					zap.Int64("order_id", job.OrderID),
					zap.Int64("job_id", job.ID),
					zap.Error(err))
				continue
			}
		default:
			// Retire unknown kinds so they are not reclaimed forever.
			s.logger.Warn("Unknown job kind",
				zap.String("kind", job.Kind),
				zap.Int64("job_id", job.ID))
		}

		if err := s.jobs.MarkJobDone(ctx, job.ID); err != nil {
			s.logger.Error("Failed to retire job",
				zap.Int64("job_id", job.ID),
				zap.Error(err))
		}
	}
}
