package store

import (
	"context"
	"time"

	"github.com/mana170183uk/homeal-orders/internal/models"
)

// claimLease bounds how long a claimed job may sit unexecuted before another
// poller may reclaim it. Must exceed the longest plausible job execution time.
const claimLease = 2 * time.Minute

// ClaimDueJobs atomically claims up to limit due jobs. SKIP LOCKED keeps
// concurrent pollers from claiming the same row, so each due job is handed to
// exactly one worker at a time. Claiming does not retire the job: the worker
// calls MarkJobDone after the job's action succeeds, and a claim whose lease
// expired is handed out again, so a worker crash between claim and execution
// cannot drop a deadline.
func (s *Store) ClaimDueJobs(ctx context.Context, limit int) ([]models.ScheduledJob, error) {
	staleBefore := time.Now().Add(-claimLease)
	var jobs []models.ScheduledJob
	err := s.db.SelectContext(ctx, &jobs, `
		UPDATE scheduled_jobs SET status = $1, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM scheduled_jobs
			WHERE run_at <= NOW()
			  AND (status = $2 OR (status = $1 AND claimed_at <= $3))
			ORDER BY run_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		models.JobStatusClaimed, models.JobStatusPending, staleBefore, limit)
	return jobs, err
}

// MarkJobDone retires a claimed job after its action succeeded.
func (s *Store) MarkJobDone(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs SET status = $1, executed_at = NOW()
		WHERE id = $2`, models.JobStatusDone, jobID)
	return err
}

// GetJobByOrderID retrieves the scheduled job for an order and kind.
func (s *Store) GetJobByOrderID(ctx context.Context, orderID int64, kind string) (*models.ScheduledJob, error) {
	var job models.ScheduledJob
	err := s.db.GetContext(ctx, &job,
		"SELECT * FROM scheduled_jobs WHERE order_id = $1 AND kind = $2", orderID, kind)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
