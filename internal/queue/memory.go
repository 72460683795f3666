package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryBroker is a channel-backed Broker for a single process: one logical
// queue that any number of workers consume from. A buffered channel bounds
// the backlog; a full or closed broker reports ErrUnavailable so the caller
// can fail the document instead of blocking the upload request.
type MemoryBroker struct {
	ch     chan Job
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	closed   bool
}

// NewMemoryBroker returns a broker with the given backlog capacity.
func NewMemoryBroker(size int, logger *zap.Logger) *MemoryBroker {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBroker{
		ch:       make(chan Job, size),
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Enqueue submits a job. A job whose key is already live is coalesced: the
// existing id is returned and nothing new is queued.
func (b *MemoryBroker) Enqueue(ctx context.Context, job Job) (string, error) {
	key := job.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrUnavailable
	}
	if b.inFlight[key] {
		b.logger.Debug("duplicate enqueue coalesced", zap.String("job", key))
		return key, nil
	}

	// Close closes ch under mu; the send must not leave the critical section
	select {
	case b.ch <- job:
		b.inFlight[key] = true
		b.logger.Debug("job enqueued", zap.String("job", key))
		return key, nil
	default:
		return "", ErrUnavailable
	}
}

// Consume blocks until a job arrives, the broker closes, or ctx is done.
func (b *MemoryBroker) Consume(ctx context.Context) (*Job, error) {
	select {
	case job, ok := <-b.ch:
		if !ok {
			return nil, ErrUnavailable
		}
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done releases a job's key so the document can be enqueued again.
func (b *MemoryBroker) Done(job *Job) {
	b.mu.Lock()
	delete(b.inFlight, job.Key())
	b.mu.Unlock()
}

// Close stops accepting jobs. Queued jobs are still delivered to consumers.
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
