package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

type recordingRepo struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	fail   bool
	block  chan struct{}
}

func (r *recordingRepo) InsertEvent(_ context.Context, event *domain.AuditEvent) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail {
		return errors.New("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingRepo) EventsForJob(_ context.Context, jobID int64) ([]*domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditEvent
	for _, e := range r.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestDispatcher_PreservesPerJobOrder(t *testing.T) {
	repo := &recordingRepo{}
	d := NewDispatcher(3, repo, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < 50; i++ {
		for job := int64(1); job <= 4; job++ {
			d.Record(&domain.AuditEvent{JobID: job, Kind: domain.AuditStatusChanged, ActorID: int64(i)})
		}
	}
	d.Close()

	for job := int64(1); job <= 4; job++ {
		events, _ := repo.EventsForJob(context.Background(), job)
		if len(events) != 50 {
			t.Fatalf("job %d: expected 50 events, got %d", job, len(events))
		}
		for i, e := range events {
			if e.ActorID != int64(i) {
				t.Fatalf("job %d: event %d out of order (actor %d)", job, i, e.ActorID)
			}
		}
	}
}

func TestDispatcher_DropsWhenShardFull(t *testing.T) {
	repo := &recordingRepo{block: make(chan struct{})}
	d := NewDispatcher(1, repo, zerolog.Nop())
	var dropped atomic.Int64
	d.OnDrop(func(*domain.AuditEvent) { dropped.Add(1) })
	d.Start(context.Background())

	// One event is held by the blocked worker, channelBuffer more fill the shard.
	total := channelBuffer + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			d.Record(&domain.AuditEvent{JobID: 1, Kind: domain.AuditJobCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full shard")
	}
	if dropped.Load() == 0 {
		t.Fatal("expected at least one dropped event")
	}
	close(repo.block)
	d.Close()
}

func TestDispatcher_RecordAfterCloseDrops(t *testing.T) {
	repo := &recordingRepo{}
	d := NewDispatcher(2, repo, zerolog.Nop())
	var dropped atomic.Int64
	d.OnDrop(func(*domain.AuditEvent) { dropped.Add(1) })
	d.Start(context.Background())
	d.Close()
	d.Close()

	d.Record(&domain.AuditEvent{JobID: 7, Kind: domain.AuditJobDeleted})
	if dropped.Load() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", dropped.Load())
	}
}

func TestDispatcher_PersistFailureKeepsWorkerAlive(t *testing.T) {
	repo := &recordingRepo{fail: true}
	d := NewDispatcher(1, repo, zerolog.Nop())
	d.Start(context.Background())
	d.Record(&domain.AuditEvent{JobID: 1})
	d.Record(&domain.AuditEvent{JobID: 1})
	d.Close()

	events, _ := repo.EventsForJob(context.Background(), 1)
	if len(events) != 0 {
		t.Fatalf("expected no stored events, got %d", len(events))
	}
}

func TestDispatcher_ShardIndexNegativeIDs(t *testing.T) {
	d := NewDispatcher(3, &recordingRepo{}, zerolog.Nop())
	for _, id := range []int64{-7, -1, 0, 1, 5} {
		if idx := d.shardIndex(id); idx < 0 || idx >= 3 {
			t.Fatalf("shardIndex(%d) = %d out of range", id, idx)
		}
	}
}

func TestDispatcher_FlushWaitsForQueuedEvents(t *testing.T) {
	repo := &recordingRepo{block: make(chan struct{})}
	d := NewDispatcher(2, repo, zerolog.Nop())
	d.Start(context.Background())
	defer d.Close()

	d.Record(&domain.AuditEvent{JobID: 7, Kind: domain.AuditJobCreated})
	d.Record(&domain.AuditEvent{JobID: 7, Kind: domain.AuditJobDeleted})

	flushed := make(chan error, 1)
	go func() { flushed <- d.Flush(context.Background(), 7) }()

	select {
	case err := <-flushed:
		t.Fatalf("Flush returned before the events were written: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.block)
	select {
	case err := <-flushed:
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not return after the worker caught up")
	}

	events, _ := repo.EventsForJob(context.Background(), 7)
	if len(events) != 2 {
		t.Fatalf("expected both events persisted before Flush returned, got %d", len(events))
	}
}

func TestDispatcher_FlushHonoursContext(t *testing.T) {
	repo := &recordingRepo{block: make(chan struct{})}
	d := NewDispatcher(1, repo, zerolog.Nop())
	d.Start(context.Background())
	defer func() {
		close(repo.block)
		d.Close()
	}()

	d.Record(&domain.AuditEvent{JobID: 1, Kind: domain.AuditJobCreated})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Flush(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcher_FlushAfterClose(t *testing.T) {
	d := NewDispatcher(1, &recordingRepo{}, zerolog.Nop())
	d.Start(context.Background())
	d.Close()

	if err := d.Flush(context.Background(), 1); err != nil {
		t.Fatalf("Flush after Close must be a no-op, got %v", err)
	}
}
