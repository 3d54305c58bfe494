package ports

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// IdentityRepository persists identities keyed by a store-allocated numeric id.
// Ids are monotonically increasing and never reused.
type IdentityRepository interface {
	// Create assigns an id to identity and stores it. Returns
	// domain.ErrUsernameTaken when the username is already registered.
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	// CreateFirst stores identity only if the directory is empty, as one atomic
	// step. Returns domain.ErrDirectoryNotEmpty otherwise.
	CreateFirst(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	FindByID(ctx context.Context, id int64) (*domain.Identity, error)
	FindByUsername(ctx context.Context, username string) (*domain.Identity, error)
	List(ctx context.Context) ([]*domain.Identity, error)
	Delete(ctx context.Context, id int64) error
}
