package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// item is either an event to persist or, when flushed is set, a barrier that
// is acknowledged once everything queued ahead of it on the shard is written.
type item struct {
	event   *domain.AuditEvent
	flushed chan struct{}
}

// Dispatcher records audit events asynchronously. Events are sharded by job id
// so the events of one job are persisted in the order they were recorded.
type Dispatcher struct {
	workers []chan item
	repo    ports.AuditRepository
	log     zerolog.Logger
	onDrop  func(*domain.AuditEvent)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan item, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan item, channelBuffer)
	}
	return d
}

// OnDrop registers fn to be called for every event discarded because its
// shard was full or the dispatcher was closed. Call before Start.
func (d *Dispatcher) OnDrop(fn func(*domain.AuditEvent)) {
	d.onDrop = fn
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled or
// Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Record hands event to its shard without blocking. A full shard drops the
// event; mutations never wait on the audit trail.
func (d *Dispatcher) Record(event *domain.AuditEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}
	select {
	case d.workers[d.shardIndex(event.JobID)] <- item{event: event}:
	default:
		d.drop(event, "shard full")
	}
}

// Flush blocks until every event recorded for jobID before the call has been
// handed to the repository, or ctx is done.
func (d *Dispatcher) Flush(ctx context.Context, jobID int64) error {
	done := make(chan struct{})

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil
	}
	select {
	case d.workers[d.shardIndex(jobID)] <- item{flushed: done}:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the workers to drain what was
// already queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drop(event *domain.AuditEvent, reason string) {
	d.log.Warn().
		Int64("job_id", event.JobID).
		Str("kind", string(event.Kind)).
		Str("reason", reason).
		Msg("audit event dropped")
	if d.onDrop != nil {
		d.onDrop(event)
	}
}

// shardIndex maps a job id deterministically to a worker index.
func (d *Dispatcher) shardIndex(jobID int64) int {
	n := int64(len(d.workers))
	return int(((jobID % n) + n) % n)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan item) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-ch:
			if !ok {
				return
			}
			if it.flushed != nil {
				close(it.flushed)
				continue
			}
			d.persist(id, it.event)
		}
	}
}

func (d *Dispatcher) persist(worker int, event *domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.repo.InsertEvent(ctx, event); err != nil {
		d.log.Error().Err(err).
			Int64("job_id", event.JobID).
			Str("kind", string(event.Kind)).
			Int("worker_id", worker).
			Msg("audit event persistence failed")
	}
}
