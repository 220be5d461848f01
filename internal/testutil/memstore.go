package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrMemNotFound is returned by the in-memory stores for unknown IDs.
var ErrMemNotFound = errors.New("not found")

// MemWorkers is an in-memory roster store for handler tests.
type MemWorkers struct {
	mu      sync.Mutex
	workers []models.Worker
	// FailReplace, when set, is returned by ReplaceDay.
	FailReplace error
	// BeforeReplace, when set, runs at the start of ReplaceDay.
	BeforeReplace func()
}

// NewMemWorkers returns a store seeded with workers.
func NewMemWorkers(workers ...models.Worker) *MemWorkers {
	return &MemWorkers{workers: append([]models.Worker(nil), workers...)}
}

func (m *MemWorkers) ListByDate(_ context.Context, date string) ([]models.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Worker
	for _, w := range m.workers {
		if w.Date == date {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MemWorkers) SetStatus(_ context.Context, id primitive.ObjectID, status models.WorkerStatus, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.workers {
		if m.workers[i].ID == id {
			m.workers[i].Status = status
			m.workers[i].LastError = lastErr
			return nil
		}
	}
	return ErrMemNotFound
}

func (m *MemWorkers) ReplaceDay(_ context.Context, date string, workers []models.Worker) ([]models.Worker, error) {
	if m.BeforeReplace != nil {
		m.BeforeReplace()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReplace != nil {
		return nil, m.FailReplace
	}
	kept := m.workers[:0:0]
	for _, w := range m.workers {
		if w.Date != date {
			kept = append(kept, w)
		}
	}
	out := make([]models.Worker, 0, len(workers))
	for i, w := range workers {
		if w.ID.IsZero() {
			w.ID = primitive.NewObjectID()
		}
		w.Date = date
		w.Order = i + 1
		w.NameCI = text.Fold(w.Name)
		if !w.Status.Valid() || w.Status == models.WorkerSending {
			w.Status = models.WorkerUnsent
		}
		out = append(out, w)
	}
	m.workers = append(kept, out...)
	return out, nil
}

// Get returns the stored copy of a worker.
func (m *MemWorkers) Get(id primitive.ObjectID) (models.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.ID == id {
			return w, true
		}
	}
	return models.Worker{}, false
}

// MemSites is an in-memory site store for handler tests.
type MemSites struct {
	mu    sync.Mutex
	sites []models.Site
	// FailWrites, when set, is returned by SetSlot and SetSlots.
	FailWrites error
	// BeforeWrite, when set, runs at the start of SetSlot and SetSlots.
	BeforeWrite func()
}

// NewMemSites returns a store seeded with sites.
func NewMemSites(sites ...models.Site) *MemSites {
	m := &MemSites{}
	for _, s := range sites {
		m.sites = append(m.sites, s.Clone())
	}
	return m
}

func (m *MemSites) ListByDate(_ context.Context, date string) ([]models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Site
	for _, s := range m.sites {
		if s.Date == date {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *MemSites) SetSlot(_ context.Context, id primitive.ObjectID, slot int, workerID *primitive.ObjectID) error {
	if m.BeforeWrite != nil {
		m.BeforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range m.sites {
		if m.sites[i].ID == id {
			if slot < 0 || slot >= len(m.sites[i].Slots) {
				return ErrMemNotFound
			}
			m.sites[i].Slots[slot] = copyID(workerID)
			return nil
		}
	}
	return ErrMemNotFound
}

func (m *MemSites) SetSlots(_ context.Context, id primitive.ObjectID, slots []*primitive.ObjectID) error {
	if m.BeforeWrite != nil {
		m.BeforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range m.sites {
		if m.sites[i].ID == id {
			cp := make([]*primitive.ObjectID, len(slots))
			for j, s := range slots {
				cp[j] = copyID(s)
			}
			m.sites[i].Slots = cp
			return nil
		}
	}
	return ErrMemNotFound
}

// Get returns the stored copy of a site.
func (m *MemSites) Get(id primitive.ObjectID) (models.Site, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sites {
		if s.ID == id {
			return s.Clone(), true
		}
	}
	return models.Site{}, false
}

func copyID(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
