// internal/app/store/workers/workerstore.go
package workerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds the per-day roster.
const Collection = "day_workers"

var (
	ErrNotFound    = errors.New("worker not found")
	ErrDuplicateID = errors.New("roster lists the same worker twice")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// ListByDate returns the roster for date in registry order.
func (s *Store) ListByDate(ctx context.Context, date string) ([]models.Worker, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"date": date}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Worker
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus records a concluded delivery outcome.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status models.WorkerStatus, lastErr string) error {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	if status == models.WorkerError {
		set["last_error"] = lastErr
	} else {
		update["$unset"] = bson.M{"last_error": ""}
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceDay deletes the roster for date and inserts workers in the given
// order. Order, NameCI, status and timestamps are filled in; IDs are kept when
// set so that existing slot references stay valid.
func (s *Store) ReplaceDay(ctx context.Context, date string, workers []models.Worker) ([]models.Worker, error) {
	now := time.Now().UTC()
	out := make([]models.Worker, 0, len(workers))
	docs := make([]any, 0, len(workers))
	for i, w := range workers {
		w.Name = strings.TrimSpace(w.Name)
		if w.Name == "" {
			return nil, fmt.Errorf("worker %d: name is required", i+1)
		}
		if w.ID.IsZero() {
			w.ID = primitive.NewObjectID()
		}
		w.Date = date
		w.Order = i + 1
		w.NameCI = text.Fold(w.Name)
		w.Contact = strings.TrimSpace(w.Contact)
		if !w.Status.Valid() || w.Status == models.WorkerSending {
			w.Status = models.WorkerUnsent
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = &now
		out = append(out, w)
		docs = append(docs, w)
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"date": date}); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return out, nil
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateID
		}
		return nil, err
	}
	return out, nil
}

// CountByDate returns the roster size for date.
func (s *Store) CountByDate(ctx context.Context, date string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"date": date})
}
