package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// bootstrapLockKey serialises first-identity creation across instances.
const bootstrapLockKey int64 = 0x6a6f6273

// IdentityRepository implements ports.IdentityRepository on Postgres.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, username, password_hash, roles, contact_info, address, created_at`

const insertIdentity = `
	INSERT INTO identities (username, password_hash, roles, contact_info, address, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insert(ctx context.Context, q querier, identity *domain.Identity) (*domain.Identity, error) {
	created := identity.Clone()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	err := q.QueryRow(ctx, insertIdentity,
		created.Username,
		created.CredentialHash,
		created.Roles.Strings(),
		created.ContactInfo,
		created.Address,
		created.CreatedAt,
	).Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return created, nil
}

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	return insert(ctx, r.pool, identity)
}

// CreateFirst takes a transaction-scoped advisory lock so that the emptiness
// check and the insert are atomic with respect to other bootstrap attempts.
func (r *IdentityRepository) CreateFirst(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return nil, fmt.Errorf("bootstrap lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM identities)`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check identities: %w", err)
	}
	if exists {
		return nil, domain.ErrDirectoryNotEmpty
	}

	created, err := insert(ctx, tx, identity)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bootstrap: %w", err)
	}
	return created, nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		u     domain.Identity
		roles []string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.CredentialHash, &roles, &u.ContactInfo, &u.Address, &u.CreatedAt); err != nil {
		return nil, err
	}
	set, err := domain.ParseRoleSet(roles)
	if err != nil {
		return nil, fmt.Errorf("decode identity %d: %w", u.ID, err)
	}
	u.Roles = set
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *IdentityRepository) findOne(ctx context.Context, where string, arg any) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE `+where, arg)
	u, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return u, nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.findOne(ctx, `username = $1`, username)
}

func (r *IdentityRepository) List(ctx context.Context) ([]*domain.Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*domain.Identity
	for rows.Next() {
		u, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}
