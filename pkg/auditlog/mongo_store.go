package auditlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Collection is the subset of *mongo.Collection the store uses.
type Collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

type document struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	Timestamp  string        `bson:"timestamp"`
	Action     string        `bson:"action"`
	FromPlan   string        `bson:"from_plan"`
	ToPlan     string        `bson:"to_plan"`
	RecordedAt time.Time     `bson:"recorded_at"`
}

// MongoStore keeps the audit trail in MongoDB.
type MongoStore struct {
	coll Collection
	now  func() time.Time
}

func NewMongoStore(coll Collection) *MongoStore {
	if coll == nil {
		panic("auditlog: collection cannot be nil")
	}
	return &MongoStore{coll: coll, now: time.Now}
}

// RecordAudit appends an entry. The entry timestamp is stored verbatim.
func (s *MongoStore) RecordAudit(ctx context.Context, userID uuid.UUID, e subscription.AuditEntry) error {
	_, err := s.coll.InsertOne(ctx, document{
		UserID:     userID.String(),
		Timestamp:  e.Timestamp,
		Action:     e.Action,
		FromPlan:   e.FromPlan,
		ToPlan:     e.ToPlan,
		RecordedAt: s.now().UTC(),
	})
	if err != nil {
		return errors.Join(ErrFailedToRecord, err)
	}
	return nil
}

// FetchAuditHistory returns up to limit entries, newest first by insertion time.
// Entry timestamps can be in mixed formats so they are never used for ordering here.
func (s *MongoStore) FetchAuditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]subscription.AuditEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID.String()}}, opts)
	if err != nil {
		return nil, errors.Join(ErrFailedToFetch, err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrFailedToFetch, err)
	}

	entries := make([]subscription.AuditEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, subscription.AuditEntry{
			Timestamp: d.Timestamp,
			Action:    d.Action,
			FromPlan:  d.FromPlan,
			ToPlan:    d.ToPlan,
		})
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
