package ports

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// CreateJobInput carries the data needed to create a job.
type CreateJobInput struct {
	CustomerID     *int64
	ServiceType    string
	TechnicianID   *int64
	IdempotencyKey string
}

// JobService defines the job lifecycle use cases. Every method authorizes
// the caller before touching the store.
type JobService interface {
	Create(ctx context.Context, in CreateJobInput, caller *domain.Claims) (*domain.Job, error)
	ListAll(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error)
	ListOwn(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error)
	UpdateStatus(ctx context.Context, jobID int64, status string, caller *domain.Claims) (domain.JobStatus, error)
	AssignTechnician(ctx context.Context, jobID, technicianID int64, caller *domain.Claims) error
	Delete(ctx context.Context, jobID int64, caller *domain.Claims) error
	Events(ctx context.Context, jobID int64, caller *domain.Claims) ([]*domain.AuditEvent, error)
}
