package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/policy"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// DirectoryService owns identity invariants: unique usernames, immutable
// role sets and the first-admin bootstrap rule.
type DirectoryService struct {
	repo   ports.IdentityRepository
	creds  ports.CredentialVerifier
	tokens ports.TokenIssuer
	log    zerolog.Logger
	now    func() time.Time
}

func NewDirectoryService(
	repo ports.IdentityRepository,
	creds ports.CredentialVerifier,
	tokens ports.TokenIssuer,
	log zerolog.Logger,
) *DirectoryService {
	return &DirectoryService{
		repo:   repo,
		creds:  creds,
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}
}

// Register creates an identity. With a nil caller the request is treated as
// a bootstrap attempt, which succeeds only for an ADMIN role set against an
// empty directory; emptiness is checked by the store in the same step as the
// insert so two concurrent attempts cannot both win.
func (s *DirectoryService) Register(ctx context.Context, in ports.RegisterInput, caller *domain.Claims) (*domain.Identity, error) {
	roles, err := domain.ParseRoleSet(in.Roles)
	if err != nil {
		return nil, err
	}

	bootstrap := caller == nil
	if bootstrap {
		if !policy.CanBootstrap(roles) {
			return nil, domain.ErrAdminAuthRequired
		}
	} else if err := policy.Authorize(caller, policy.ActionRegister, policy.Ownership{}); err != nil {
		s.log.Warn().Int64("caller_id", caller.SubjectID).Msg("registration denied: admin role required")
		return nil, err
	}

	identity, err := s.newIdentity(in, roles)
	if err != nil {
		return nil, err
	}

	var created *domain.Identity
	if bootstrap {
		created, err = s.repo.CreateFirst(ctx, identity)
		if errors.Is(err, domain.ErrDirectoryNotEmpty) {
			s.log.Warn().Str("username", identity.Username).Msg("bootstrap registration denied: directory not empty")
			return nil, domain.ErrAdminAuthRequired
		}
	} else {
		created, err = s.repo.Create(ctx, identity)
	}
	if errors.Is(err, domain.ErrUsernameTaken) {
		return nil, domain.NewValidationError("duplicate username")
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", created.ID).
		Str("username", created.Username).
		Strs("roles", created.Roles.Strings()).
		Bool("bootstrap", bootstrap).
		Msg("identity registered")
	return created, nil
}

func (s *DirectoryService) newIdentity(in ports.RegisterInput, roles domain.RoleSet) (*domain.Identity, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, domain.NewValidationError("username is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, domain.NewValidationError("password is required")
	}
	if len(roles) == 0 {
		return nil, domain.NewValidationError("at least one role is required")
	}

	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		Username:       username,
		CredentialHash: hash,
		Roles:          roles,
		ContactInfo:    strings.TrimSpace(in.ContactInfo),
		Address:        strings.TrimSpace(in.Address),
		CreatedAt:      s.now().UTC(),
	}, nil
}

// Login verifies the credentials and returns a signed token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *DirectoryService) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", domain.NewValidationError("username and password are required")
	}

	identity, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrIdentityNotFound) {
		s.log.Warn().Str("username", username).Msg("login failed: unknown user")
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !s.creds.Verify(password, identity.CredentialHash) {
		s.log.Warn().Str("username", username).Msg("login failed: bad password")
		return "", domain.ErrInvalidCredentials
	}

	return s.tokens.Issue(identity)
}

func (s *DirectoryService) List(ctx context.Context, caller *domain.Claims) ([]*domain.Identity, error) {
	if err := policy.Authorize(caller, policy.ActionListIdentities, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *DirectoryService) Delete(ctx context.Context, id int64, caller *domain.Claims) error {
	if err := policy.Authorize(caller, policy.ActionDeleteIdentity, policy.Ownership{}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", id).Int64("caller_id", caller.SubjectID).Msg("identity deleted")
	return nil
}
