// internal/app/store/sendlogs/store.go
package sendlogs

import (
	"context"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is append-only; nothing in the application updates or deletes it.
const Collection = "send_logs"

// QueryFilter defines filters for listing send logs.
type QueryFilter struct {
	Date      string
	Kind      string
	WorkerID  *primitive.ObjectID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages send log records.
type Store struct {
	c *mongo.Collection
}

// New creates a new send log Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Append inserts entry and returns it with its ID and timestamp filled in.
func (s *Store) Append(ctx context.Context, entry models.SendLog) (models.SendLog, error) {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Kind == "" {
		entry.Kind = models.SendLogBatch
	}
	if _, err := s.c.InsertOne(ctx, entry); err != nil {
		return models.SendLog{}, err
	}
	return entry, nil
}

// List returns entries matching filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]models.SendLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SendLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of entries matching filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.Date != "" {
		query["date"] = filter.Date
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.WorkerID != nil {
		query["worker_id"] = filter.WorkerID
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}
