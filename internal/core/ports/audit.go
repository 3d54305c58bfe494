package ports

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// AuditRepository stores the job audit trail.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
	// EventsForJob returns the events of a job in insertion order.
	EventsForJob(ctx context.Context, jobID int64) ([]*domain.AuditEvent, error)
}

// AuditRecorder accepts events for asynchronous persistence. Record must not
// block the caller.
type AuditRecorder interface {
	Record(event *domain.AuditEvent)
}

// AuditFlusher is implemented by recorders that can wait for the events of
// one job to be persisted.
type AuditFlusher interface {
	Flush(ctx context.Context, jobID int64) error
}

// IdempotencyStore maps client supplied idempotency keys to created job ids.
type IdempotencyStore interface {
	// Lookup returns the job id remembered for key, if any.
	Lookup(ctx context.Context, key string) (int64, bool, error)
	// Remember binds key to jobID unless key is already bound, in which case
	// domain.ErrIdempotencyConflict is returned.
	Remember(ctx context.Context, key string, jobID int64) error
}
