package ports

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to DirectoryService.
type RegisterInput struct {
	Username    string
	Password    string
	Roles       []string
	ContactInfo string
	Address     string
}

// DirectoryService owns identity registration, login and removal.
type DirectoryService interface {
	// Register creates an identity. A nil caller takes the first-admin
	// bootstrap path.
	Register(ctx context.Context, in RegisterInput, caller *domain.Claims) (*domain.Identity, error)
	Login(ctx context.Context, username, password string) (string, error)
	List(ctx context.Context, caller *domain.Claims) ([]*domain.Identity, error)
	Delete(ctx context.Context, id int64, caller *domain.Claims) error
}
