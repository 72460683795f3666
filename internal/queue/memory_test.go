package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueueConsume(t *testing.T) {
	b := NewMemoryBroker(4, nil)
	defer b.Close()
	ctx := context.Background()

	id, err := b.Enqueue(ctx, Job{DocumentID: 7, TenantID: 3, Timeout: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if id != "doc:7:3" {
		t.Errorf("job id = %q", id)
	}

	job, err := b.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job.DocumentID != 7 || job.TenantID != 3 {
		t.Errorf("got %+v", job)
	}
}

func TestEnqueueDuplicateCoalesced(t *testing.T) {
	b := NewMemoryBroker(4, nil)
	defer b.Close()
	ctx := context.Background()

	id1, err := b.Enqueue(ctx, Job{DocumentID: 7, TenantID: 3})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := b.Enqueue(ctx, Job{DocumentID: 7, TenantID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}

	if _, err := b.Consume(ctx); err != nil {
		t.Fatal(err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := b.Consume(ctx2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second consume should block (got %v); duplicate was not coalesced", err)
	}
}

func TestEnqueueAfterDone(t *testing.T) {
	b := NewMemoryBroker(4, nil)
	defer b.Close()
	ctx := context.Background()

	if _, err := b.Enqueue(ctx, Job{DocumentID: 1, TenantID: 1}); err != nil {
		t.Fatal(err)
	}
	job, err := b.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b.Done(job)

	if _, err := b.Enqueue(ctx, Job{DocumentID: 1, TenantID: 1}); err != nil {
		t.Errorf("re-enqueue after Done: %v", err)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	b := NewMemoryBroker(1, nil)
	defer b.Close()
	ctx := context.Background()

	if _, err := b.Enqueue(ctx, Job{DocumentID: 1, TenantID: 1}); err != nil {
		t.Fatal(err)
	}
	_, err := b.Enqueue(ctx, Job{DocumentID: 2, TenantID: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}

	// The rejected key must not stay live.
	if _, cerr := b.Consume(ctx); cerr != nil {
		t.Fatal(cerr)
	}
	if _, err := b.Enqueue(ctx, Job{DocumentID: 2, TenantID: 1}); err != nil {
		t.Errorf("enqueue after drain: %v", err)
	}
}

func TestEnqueueClosedBroker(t *testing.T) {
	b := NewMemoryBroker(4, nil)
	b.Close()
	_, err := b.Enqueue(context.Background(), Job{DocumentID: 1, TenantID: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestEnqueueRacesClose(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		b := NewMemoryBroker(2, nil)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for d := int64(1); d <= 8; d++ {
				if _, err := b.Enqueue(ctx, Job{DocumentID: d, TenantID: 1}); err != nil {
					if !errors.Is(err, ErrUnavailable) {
						t.Errorf("enqueue: %v", err)
					}
					return
				}
			}
		}()
		b.Close()
		<-done
	}
}

func TestConsumeClosedBroker(t *testing.T) {
	b := NewMemoryBroker(4, nil)
	b.Close()
	_, err := b.Consume(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}
