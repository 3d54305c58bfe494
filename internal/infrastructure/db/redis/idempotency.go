package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore binds client-supplied Idempotency-Key values to the id of
// the job they created.
// Key format: idempotency:job:<callerId>:<key>, the caller prefix being
// supplied by the job service.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. Keys expire after ttl, or after a day when
// ttl is not positive.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: corrupt value %q", v)
	}
	return id, true, nil
}

// Remember binds key to jobID. Rebinding to the same job is a no-op; binding to
// a different job returns domain.ErrIdempotencyConflict.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, jobID int64) error {
	ok, err := s.client.SetNX(ctx, s.key(key), strconv.FormatInt(jobID, 10), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	if ok {
		return nil
	}
	existing, found, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if found && existing == jobID {
		return nil
	}
	return domain.ErrIdempotencyConflict
}

func (s *IdempotencyStore) key(key string) string {
	return "idempotency:job:" + key
}
