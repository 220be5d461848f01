// internal/app/store/sites/sitestore.go
package sitestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds sites keyed by date.
const Collection = "sites"

var ErrNotFound = errors.New("site not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// ListByDate returns the sites scheduled for date ordered by start time.
func (s *Store) ListByDate(ctx context.Context, date string) ([]models.Site, error) {
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"date": date}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Site
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns a site by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Site, error) {
	var site models.Site
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&site)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Site{}, ErrNotFound
	}
	return site, err
}

// SetSlots writes the full slot array of a site.
func (s *Store) SetSlots(ctx context.Context, id primitive.ObjectID, slots []*primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"slots": slots, "updated_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSlot writes one cell of a site's slot array. workerID nil clears it.
// Writing a single cell keeps concurrent changes to other cells of the same
// site intact.
func (s *Store) SetSlot(ctx context.Context, id primitive.ObjectID, slot int, workerID *primitive.ObjectID) error {
	if slot < 0 || slot >= models.MaxSlots {
		return fmt.Errorf("slot %d out of range", slot)
	}
	now := time.Now().UTC()
	set := bson.M{fmt.Sprintf("slots.%d", slot): workerID, "updated_at": now}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceDay deletes every site for date and inserts sites. Slots are padded
// to MaxSlots and RequiredSlots must be in 1..MaxSlots.
func (s *Store) ReplaceDay(ctx context.Context, date string, sites []models.Site) ([]models.Site, error) {
	now := time.Now().UTC()
	out := make([]models.Site, 0, len(sites))
	docs := make([]any, 0, len(sites))
	for i, site := range sites {
		site.Name = strings.TrimSpace(site.Name)
		if site.Name == "" {
			return nil, fmt.Errorf("site %d: name is required", i+1)
		}
		if site.RequiredSlots < 1 || site.RequiredSlots > models.MaxSlots {
			return nil, fmt.Errorf("site %q: required slots must be 1..%d", site.Name, models.MaxSlots)
		}
		if site.ID.IsZero() {
			site.ID = primitive.NewObjectID()
		}
		site.Date = date
		slots := make([]*primitive.ObjectID, models.MaxSlots)
		copy(slots, site.Slots)
		site.Slots = slots
		if site.CreatedAt.IsZero() {
			site.CreatedAt = now
		}
		site.UpdatedAt = &now
		out = append(out, site)
		docs = append(docs, site)
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"date": date}); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return out, nil
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return out, nil
}
