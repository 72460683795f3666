// Package queue provides the job broker contract, an in-process broker, and
// the worker loop that drives documents through the processing lifecycle.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when the broker cannot accept a job. Callers
// must transition the affected document to failed rather than leave it
// pending.
var ErrUnavailable = errors.New("queue unavailable")

// Job is one unit of deferred work: run the metadata pipeline for a
// document. Jobs are ephemeral and identified by a deterministic key so that
// duplicate enqueues for the same document and tenant collide instead of
// double-processing.
type Job struct {
	DocumentID int64
	TenantID   int64
	Timeout    time.Duration
}

// Key returns the deterministic job identity for dedup and coalescing.
func (j Job) Key() string {
	return fmt.Sprintf("doc:%d:%d", j.DocumentID, j.TenantID)
}

// Broker hands jobs from the API boundary to workers. It delivers each job
// to exactly one consumer at a time and coalesces duplicate enqueues of a
// live job key.
type Broker interface {
	// Enqueue submits a job and returns its id. Returns ErrUnavailable when
	// the broker cannot accept it. Enqueuing a job whose key is already live
	// returns the existing id without adding a second job.
	Enqueue(ctx context.Context, job Job) (string, error)

	// Consume blocks until a job is available or ctx is done.
	Consume(ctx context.Context) (*Job, error)

	// Done marks a job's key as no longer live, allowing re-enqueue.
	Done(job *Job)

	Close()
}
