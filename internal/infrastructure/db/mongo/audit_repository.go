package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// AuditRepository persists job audit events to the job_events collection.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionJobEvents)}
}

type mongoAuditEvent struct {
	// ObjectIDs grow monotonically within a process, giving insertion order.
	OID     primitive.ObjectID `bson:"_id"`
	EventID string             `bson:"event_id"`
	JobID   int64              `bson:"job_id"`
	Kind    string             `bson:"kind"`
	ActorID int64              `bson:"actor_id"`
	Detail  string             `bson:"detail,omitempty"`
	At      time.Time          `bson:"at"`
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	doc := mongoAuditEvent{
		OID:     primitive.NewObjectID(),
		EventID: event.ID,
		JobID:   event.JobID,
		Kind:    string(event.Kind),
		ActorID: event.ActorID,
		Detail:  event.Detail,
		At:      event.At.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func (r *AuditRepository) EventsForJob(ctx context.Context, jobID int64) ([]*domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"job_id": jobID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find job events: %w", err)
	}
	var docs []mongoAuditEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode job events: %w", err)
	}

	out := make([]*domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AuditEvent{
			ID:      d.EventID,
			JobID:   d.JobID,
			Kind:    domain.AuditKind(d.Kind),
			ActorID: d.ActorID,
			Detail:  d.Detail,
			At:      d.At.UTC(),
		})
	}
	return out, nil
}
