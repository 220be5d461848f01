package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateWorker inserts an unsent roster entry for date.
func (f *Fixtures) CreateWorker(ctx context.Context, date string, order int, name string) models.Worker {
	f.t.Helper()

	w := Worker(date, order, name)
	if _, err := f.db.Collection("day_workers").InsertOne(ctx, w); err != nil {
		f.t.Fatalf("failed to create test worker: %v", err)
	}
	return w
}

// CreateSite inserts a site for date starting at the given hour.
func (f *Fixtures) CreateSite(ctx context.Context, date string, hour int, name string, required int) models.Site {
	f.t.Helper()

	s := Site(date, hour, name, required)
	if _, err := f.db.Collection("sites").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test site: %v", err)
	}
	return s
}

// Worker builds an unsent worker without persisting it.
func Worker(date string, order int, name string) models.Worker {
	return models.Worker{
		ID:        primitive.NewObjectID(),
		Date:      date,
		Order:     order,
		Name:      name,
		NameCI:    text.Fold(name),
		Contact:   fmt.Sprintf("worker%d@example.com", order),
		Status:    models.WorkerUnsent,
		CreatedAt: time.Now().UTC(),
	}
}

// Site builds a site with empty slots without persisting it.
func Site(date string, hour int, name string, required int) models.Site {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(fmt.Sprintf("testutil.Site: bad date %q", date))
	}
	return models.Site{
		ID:               primitive.NewObjectID(),
		Date:             date,
		StartsAt:         day.Add(time.Duration(hour) * time.Hour).UTC(),
		Name:             name,
		CounterpartyName: name + " Client",
		Address:          "1 Test Street",
		RequiredSlots:    required,
		Slots:            make([]*primitive.ObjectID, models.MaxSlots),
		CreatedAt:        time.Now().UTC(),
	}
}

// ScenarioDay returns the reference day: five workers, the first named
// "長田", and three sites requiring 4, 4 and 3 workers in start order.
func ScenarioDay(date string) ([]models.Worker, []models.Site) {
	workers := []models.Worker{
		Worker(date, 1, "長田"),
		Worker(date, 2, "Sato"),
		Worker(date, 3, "Suzuki"),
		Worker(date, 4, "Tanaka"),
		Worker(date, 5, "Ito"),
	}
	sites := []models.Site{
		Site(date, 9, "site-1", 4),
		Site(date, 10, "site-2", 4),
		Site(date, 11, "site-3", 3),
	}
	return workers, sites
}
