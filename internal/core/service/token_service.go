package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// DefaultTokenTTL is the fixed lifetime of an issued token.
const DefaultTokenTTL = 24 * time.Hour

// tokenClaims is the signed payload. The signature covers every field, so
// neither the subject, the role snapshot nor the expiry can be altered.
type tokenClaims struct {
	UserID   int64    `json:"uid"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService issues and validates stateless HS256 bearer tokens. It keeps
// no session state; validity is derived from the signature and expiry alone.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity carrying its current role set.
func (s *TokenService) Issue(identity *domain.Identity) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID:   identity.ID,
		Username: identity.Username,
		Roles:    identity.Roles.Strings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the token signature and expiry and returns its claims.
func (s *TokenService) Validate(token string) (*domain.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)

	var tc tokenClaims
	_, err := parser.ParseWithClaims(token, &tc, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, domain.ErrTokenBadSignature
	default:
		return nil, domain.ErrTokenMalformed
	}

	if tc.UserID <= 0 || tc.Username == "" || tc.Subject != strconv.FormatInt(tc.UserID, 10) {
		return nil, domain.ErrTokenMalformed
	}
	roles, err := domain.ParseRoleSet(tc.Roles)
	if err != nil {
		return nil, domain.ErrTokenMalformed
	}

	claims := &domain.Claims{
		SubjectID: tc.UserID,
		Username:  tc.Username,
		Roles:     roles,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}
