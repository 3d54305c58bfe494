package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// AuditRepository persists job audit events to job_events.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_events (event_id, job_id, kind, actor_id, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.JobID, string(event.Kind), event.ActorID, event.Detail, event.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func (r *AuditRepository) EventsForJob(ctx context.Context, jobID int64) ([]*domain.AuditEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, job_id, kind, actor_id, detail, at
		FROM job_events
		WHERE job_id = $1
		ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job events: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEvent
	for rows.Next() {
		var (
			e    domain.AuditEvent
			kind string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &kind, &e.ActorID, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		e.Kind = domain.AuditKind(kind)
		e.At = e.At.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
