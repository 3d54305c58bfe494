package ports

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// JobRepository persists jobs keyed by a store-allocated numeric id.
// Lookups of unknown ids return domain.ErrJobNotFound.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)
	FindByID(ctx context.Context, id int64) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
	FindByCustomer(ctx context.Context, customerID int64) ([]*domain.Job, error)
	FindByTechnician(ctx context.Context, technicianID int64) ([]*domain.Job, error)
	// SetStatus overwrites the job status in place.
	SetStatus(ctx context.Context, id int64, status domain.JobStatus) error
	// SetTechnician overwrites the assigned technician in place.
	SetTechnician(ctx context.Context, id int64, technicianID int64) error
	Delete(ctx context.Context, id int64) error
}
