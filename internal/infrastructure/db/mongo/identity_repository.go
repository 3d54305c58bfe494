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

const (
	bootstrapMarker = "bootstrap"
	bootstrapLease  = 2 * defaultTimeout
)

// IdentityRepository implements ports.IdentityRepository using MongoDB.
type IdentityRepository struct {
	col  *mongo.Collection
	meta *mongo.Collection
	ids  *sequence
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{
		col:  db.Collection(collectionIdentities),
		meta: db.Collection(collectionMeta),
		ids:  newSequence(db, collectionIdentities),
	}
}

type mongoIdentity struct {
	ID           int64     `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	Roles        []string  `bson:"roles"`
	ContactInfo  string    `bson:"contact_info,omitempty"`
	Address      string    `bson:"address,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toMongoIdentity(u *domain.Identity) mongoIdentity {
	return mongoIdentity{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.CredentialHash,
		Roles:        u.Roles.Strings(),
		ContactInfo:  u.ContactInfo,
		Address:      u.Address,
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

func (m mongoIdentity) toDomain() (*domain.Identity, error) {
	roles, err := domain.ParseRoleSet(m.Roles)
	if err != nil {
		return nil, fmt.Errorf("decode identity %d: %w", m.ID, err)
	}
	return &domain.Identity{
		ID:             m.ID,
		Username:       m.Username,
		CredentialHash: m.PasswordHash,
		Roles:          roles,
		ContactInfo:    m.ContactInfo,
		Address:        m.Address,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}

func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.ids.next(ctx)
	if err != nil {
		return nil, err
	}
	created := identity.Clone()
	created.ID = id

	if _, err := r.col.InsertOne(ctx, toMongoIdentity(created)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return created, nil
}

// CreateFirst inserts identity only when the directory is empty. The bootstrap
// marker document, whose fixed _id lets exactly one caller hold it, serialises
// concurrent attempts for the duration of the check and insert and is released
// afterwards, so the directory can be bootstrapped again once it is emptied.
func (r *IdentityRepository) CreateFirst(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := r.claimBootstrap(ctx); err != nil {
		return nil, err
	}
	defer r.releaseBootstrap()

	n, err := r.col.CountDocuments(ctx, bson.M{}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}
	if n > 0 {
		return nil, domain.ErrDirectoryNotEmpty
	}
	return r.Create(ctx, identity)
}

// claimBootstrap inserts the marker. A marker older than bootstrapLease was
// left behind by a process that died mid-bootstrap and is taken over.
func (r *IdentityRepository) claimBootstrap(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC()
		_, err := r.meta.InsertOne(ctx, bson.M{"_id": bootstrapMarker, "at": now})
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("claim bootstrap: %w", err)
		}
		res, err := r.meta.DeleteOne(ctx, bson.M{
			"_id": bootstrapMarker,
			"at":  bson.M{"$lt": now.Add(-bootstrapLease)},
		})
		if err != nil {
			return fmt.Errorf("expire bootstrap marker: %w", err)
		}
		if res.DeletedCount == 0 {
			// Another bootstrap is in flight.
			return domain.ErrDirectoryNotEmpty
		}
	}
	return domain.ErrDirectoryNotEmpty
}

func (r *IdentityRepository) releaseBootstrap() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	_, _ = r.meta.DeleteOne(ctx, bson.M{"_id": bootstrapMarker})
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoIdentity
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return mu.toDomain()
}

func (r *IdentityRepository) FindByID(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *IdentityRepository) List(ctx context.Context) ([]*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	var docs []mongoIdentity
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}

	out := make([]*domain.Identity, 0, len(docs))
	for _, d := range docs {
		u, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}
