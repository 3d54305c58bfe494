package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// JobRepository implements ports.JobRepository using MongoDB.
type JobRepository struct {
	col *mongo.Collection
	ids *sequence
}

func NewJobRepository(db *mongo.Database) *JobRepository {
	return &JobRepository{col: db.Collection(collectionJobs), ids: newSequence(db, collectionJobs)}
}

type mongoJob struct {
	ID           int64     `bson:"_id"`
	CustomerID   int64     `bson:"customer_id"`
	TechnicianID *int64    `bson:"technician_id,omitempty"`
	ServiceType  string    `bson:"service_type"`
	Status       string    `bson:"status"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (m mongoJob) toDomain() *domain.Job {
	return &domain.Job{
		ID:           m.ID,
		CustomerID:   m.CustomerID,
		TechnicianID: m.TechnicianID,
		ServiceType:  m.ServiceType,
		Status:       domain.JobStatus(m.Status),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.ids.next(ctx)
	if err != nil {
		return nil, err
	}
	created := job.Clone()
	created.ID = id

	doc := mongoJob{
		ID:           created.ID,
		CustomerID:   created.CustomerID,
		TechnicianID: created.TechnicianID,
		ServiceType:  created.ServiceType,
		Status:       string(created.Status),
		CreatedAt:    created.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return created, nil
}

func (r *JobRepository) FindByID(ctx context.Context, id int64) (*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mj mongoJob
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&mj); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return mj.toDomain(), nil
}

func (r *JobRepository) find(ctx context.Context, filter bson.M) ([]*domain.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	var docs []mongoJob
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	out := make([]*domain.Job, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *JobRepository) List(ctx context.Context) ([]*domain.Job, error) {
	return r.find(ctx, bson.M{})
}

func (r *JobRepository) FindByCustomer(ctx context.Context, customerID int64) ([]*domain.Job, error) {
	return r.find(ctx, bson.M{"customer_id": customerID})
}

func (r *JobRepository) FindByTechnician(ctx context.Context, technicianID int64) ([]*domain.Job, error) {
	return r.find(ctx, bson.M{"technician_id": technicianID})
}

func (r *JobRepository) update(ctx context.Context, id int64, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) SetStatus(ctx context.Context, id int64, status domain.JobStatus) error {
	return r.update(ctx, id, bson.M{"status": string(status)})
}

func (r *JobRepository) SetTechnician(ctx context.Context, id int64, technicianID int64) error {
	return r.update(ctx, id, bson.M{"technician_id": technicianID})
}

func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
