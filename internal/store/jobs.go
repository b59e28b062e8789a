package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Queue names shared by the API (producer) and the worker pool (consumer).
const (
	QueueClassifyBatch = "classify_batch"
	QueueRefreshRates  = "refresh_rates"
)

// Job is a claimed job ready for execution by the worker pool.
type Job struct {
	ID       uuid.UUID
	Queue    string
	Payload  json.RawMessage
	Attempts int32
}

// ClaimJob atomically claims one pending job from the named queue for the
// given workerID using FOR UPDATE SKIP LOCKED. Returns (nil, nil) when no
// job is currently available.
func (s *Store) ClaimJob(ctx context.Context, queue, workerID string) (*Job, error) {
	var job Job
	err := s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'running', started_at = now(), locked_by = $2,
		        attempts = attempts + 1
		 WHERE id = (
		     SELECT id FROM jobs
		     WHERE queue = $1 AND status = 'pending' AND run_after <= now()
		       AND NOT EXISTS (
		           SELECT 1 FROM jobs running
		           WHERE running.status = 'running'
		             AND running.lock_key IS NOT NULL
		             AND running.lock_key = jobs.lock_key
		       )
		     ORDER BY priority DESC, run_after ASC
		     FOR UPDATE SKIP LOCKED
		     LIMIT 1
		 )
		 RETURNING id, queue, payload, attempts`,
		queue, workerID).
		Scan(&job.ID, &job.Queue, &job.Payload, &job.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

// CompleteJob marks a job as succeeded.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'done', finished_at = now(), locked_by = NULL WHERE id = $1`,
		id); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// FailJob marks a job as failed, applying exponential backoff for retry or
// moving it to 'dead' status if max_attempts is exhausted.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
		     status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'pending' END,
		     run_after = now() + (interval '30 seconds' * power(2, attempts)),
		     last_error = $2,
		     locked_by = NULL
		 WHERE id = $1`,
		id, errMsg); err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	return nil
}

// RecoverStaleJobs resets jobs stuck in 'running' state longer than staleAfter
// back to 'pending'. Returns the number of jobs recovered.
func (s *Store) RecoverStaleJobs(ctx context.Context, staleAfter time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', locked_by = NULL
		 WHERE status = 'running' AND started_at < now() - ($1 * interval '1 second')`,
		int64(staleAfter.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// EnqueueJob inserts a new job into the named queue and returns its ID.
// lockKey prevents concurrent execution of jobs with the same key.
// runAfter defaults to now() when nil.
func (s *Store) EnqueueJob(
	ctx context.Context,
	queue string,
	priority int32,
	payload json.RawMessage,
	lockKey *string,
	maxAttempts int32,
	runAfter *time.Time,
) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (queue, priority, payload, lock_key, max_attempts, run_after)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		 RETURNING id`,
		queue, priority, payload, lockKey, maxAttempts, runAfter).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}
