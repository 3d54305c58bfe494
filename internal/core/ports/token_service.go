package ports

import "github.com/fieldops/job-dispatch/internal/core/domain"

// TokenIssuer mints bearer tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identity *domain.Identity) (string, error)
}

// TokenValidator verifies bearer tokens. Failures are one of
// domain.ErrTokenMalformed, domain.ErrTokenBadSignature or domain.ErrTokenExpired.
type TokenValidator interface {
	Validate(token string) (*domain.Claims, error)
}
