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

// JobRepository implements ports.JobRepository on Postgres.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, customer_id, technician_id, service_type, status, created_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j      domain.Job
		status string
	)
	if err := row.Scan(&j.ID, &j.CustomerID, &j.TechnicianID, &j.ServiceType, &status, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	j.CreatedAt = j.CreatedAt.UTC()
	return &j, nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	created := job.Clone()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO jobs (customer_id, technician_id, service_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		created.CustomerID,
		created.TechnicianID,
		created.ServiceType,
		string(created.Status),
		created.CreatedAt,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return created, nil
}

func (r *JobRepository) FindByID(ctx context.Context, id int64) (*domain.Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return j, nil
}

func (r *JobRepository) query(ctx context.Context, where string, args ...any) ([]*domain.Job, error) {
	sql := `SELECT ` + jobColumns + ` FROM jobs`
	if where != "" {
		sql += ` WHERE ` + where
	}
	rows, err := r.pool.Query(ctx, sql+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *JobRepository) List(ctx context.Context) ([]*domain.Job, error) {
	return r.query(ctx, "")
}

func (r *JobRepository) FindByCustomer(ctx context.Context, customerID int64) ([]*domain.Job, error) {
	return r.query(ctx, `customer_id = $1`, customerID)
}

func (r *JobRepository) FindByTechnician(ctx context.Context, technicianID int64) ([]*domain.Job, error) {
	return r.query(ctx, `technician_id = $1`, technicianID)
}

func (r *JobRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) SetStatus(ctx context.Context, id int64, status domain.JobStatus) error {
	return r.exec(ctx, `UPDATE jobs SET status = $2 WHERE id = $1`, id, string(status))
}

func (r *JobRepository) SetTechnician(ctx context.Context, id int64, technicianID int64) error {
	return r.exec(ctx, `UPDATE jobs SET technician_id = $2 WHERE id = $1`, id, technicianID)
}

func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
}
