// ABOUTME: Integration tests for store/jobs.go — the SKIP LOCKED job queue.
// ABOUTME: Uses testutil.NewTestDB; each test runs in its own container (t.Parallel).
package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Milo6x/dutyleak/internal/store"
	"github.com/Milo6x/dutyleak/internal/testutil"
)

// jobStatus reads a job's status directly.
func jobStatus(t *testing.T, s *testutil.TestDB, id uuid.UUID) string {
	t.Helper()
	var status string
	if err := s.Pool().QueryRow(context.Background(),
		"SELECT status FROM jobs WHERE id = $1", id).Scan(&status); err != nil {
		t.Fatalf("read job status: %v", err)
	}
	return status
}

func TestEnqueueClaimComplete(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"workspace_id":"test"}`)
	id, err := s.EnqueueJob(ctx, store.QueueClassifyBatch, 0, payload, nil, 3, nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if job == nil {
		t.Fatal("ClaimJob returned nil for a pending job")
	}
	if job.ID != id {
		t.Errorf("claimed job ID = %v, want %v", job.ID, id)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	if string(job.Payload) != string(payload) {
		t.Errorf("payload = %s, want %s", job.Payload, payload)
	}

	// A claimed job is not claimable again.
	second, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-2")
	if err != nil {
		t.Fatalf("second ClaimJob: %v", err)
	}
	if second != nil {
		t.Error("running job should not be claimable")
	}

	if err := s.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if got := jobStatus(t, s, job.ID); got != "done" {
		t.Errorf("status after complete = %q, want done", got)
	}
}

func TestClaimJob_EmptyQueue(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	job, err := s.ClaimJob(ctx, store.QueueRefreshRates, "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if job != nil {
		t.Errorf("empty queue should yield nil, got %+v", job)
	}
}

func TestClaimJob_LockKeySerializes(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	lockKey := "classify_batch:ws1"
	payload := json.RawMessage(`{}`)
	if _, err := s.EnqueueJob(ctx, store.QueueClassifyBatch, 0, payload, &lockKey, 3, nil); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if _, err := s.EnqueueJob(ctx, store.QueueClassifyBatch, 0, payload, &lockKey, 3, nil); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	first, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if err != nil || first == nil {
		t.Fatalf("claim first: job=%v err=%v", first, err)
	}

	// Second job shares the lock key with a running job — must not be claimed.
	blocked, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-2")
	if err != nil {
		t.Fatalf("claim while locked: %v", err)
	}
	if blocked != nil {
		t.Fatal("job with a held lock key should not be claimable")
	}

	// Completing the first releases the lock key.
	if err := s.CompleteJob(ctx, first.ID); err != nil {
		t.Fatalf("complete first: %v", err)
	}
	second, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-2")
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	if second == nil {
		t.Fatal("second job should be claimable after the first completes")
	}
	if second.ID == first.ID {
		t.Error("claimed the same job twice")
	}
}

func TestFailJob_RetriesThenDead(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	id, err := s.EnqueueJob(ctx, store.QueueClassifyBatch, 0, json.RawMessage(`{}`), nil, 2, nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// Attempt 1 fails: below max_attempts → back to pending with backoff.
	job, _ := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if job == nil {
		t.Fatal("claim attempt 1")
	}
	if err := s.FailJob(ctx, job.ID, "provider timeout"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if got := jobStatus(t, s, id); got != "pending" {
		t.Fatalf("status after first failure = %q, want pending", got)
	}

	// Backoff pushes run_after into the future, so the job is not immediately claimable.
	notYet, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if err != nil {
		t.Fatalf("claim during backoff: %v", err)
	}
	if notYet != nil {
		t.Error("job should be in backoff, not claimable")
	}

	// Force the retry due now, then exhaust the final attempt.
	if _, err := s.Pool().Exec(ctx, "UPDATE jobs SET run_after = now() WHERE id = $1", id); err != nil {
		t.Fatalf("reset run_after: %v", err)
	}
	job2, _ := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if job2 == nil {
		t.Fatal("claim attempt 2")
	}
	if job2.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", job2.Attempts)
	}
	if err := s.FailJob(ctx, job2.ID, "provider timeout"); err != nil {
		t.Fatalf("FailJob (final): %v", err)
	}
	if got := jobStatus(t, s, id); got != "dead" {
		t.Errorf("status after exhausting attempts = %q, want dead", got)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	id, err := s.EnqueueJob(ctx, store.QueueRefreshRates, 0, json.RawMessage(`{}`), nil, 3, nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job, _ := s.ClaimJob(ctx, store.QueueRefreshRates, "worker-dead")
	if job == nil {
		t.Fatal("claim")
	}

	// Fresh running job is not recovered.
	n, err := s.RecoverStaleJobs(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("RecoverStaleJobs: %v", err)
	}
	if n != 0 {
		t.Errorf("recovered %d fresh jobs, want 0", n)
	}

	// Backdate started_at past the threshold — job is recovered to pending.
	if _, err := s.Pool().Exec(ctx,
		"UPDATE jobs SET started_at = now() - interval '20 minutes' WHERE id = $1", id); err != nil {
		t.Fatalf("backdate started_at: %v", err)
	}
	n, err = s.RecoverStaleJobs(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("RecoverStaleJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered %d jobs, want 1", n)
	}
	if got := jobStatus(t, s, id); got != "pending" {
		t.Errorf("status after recovery = %q, want pending", got)
	}
}

func TestEnqueueJob_RunAfterDelays(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()

	future := time.Now().Add(1 * time.Hour)
	if _, err := s.EnqueueJob(ctx, store.QueueClassifyBatch, 0, json.RawMessage(`{}`), nil, 3, &future); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimJob(ctx, store.QueueClassifyBatch, "worker-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if job != nil {
		t.Error("job scheduled in the future should not be claimable yet")
	}
}
