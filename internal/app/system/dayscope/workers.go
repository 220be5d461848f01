// internal/app/system/dayscope/workers.go
package dayscope

import (
	"fmt"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkerRegistry is the ordered roster of a day-scope. It is not safe for
// concurrent use on its own; access it through Scope.View or Scope.Update.
type WorkerRegistry struct {
	list []*models.Worker
	byID map[primitive.ObjectID]int
}

func newWorkerRegistry(workers []models.Worker) (*WorkerRegistry, error) {
	r := &WorkerRegistry{
		list: make([]*models.Worker, 0, len(workers)),
		byID: make(map[primitive.ObjectID]int, len(workers)),
	}
	for _, w := range workers {
		if w.ID.IsZero() {
			return nil, fmt.Errorf("worker %q has no id", w.Name)
		}
		if _, dup := r.byID[w.ID]; dup {
			return nil, fmt.Errorf("duplicate worker id %s", w.ID.Hex())
		}
		w := w
		switch {
		case w.Status == models.WorkerSending:
			// The previous attempt never reported back; its outcome is unknown.
			w.Status = models.WorkerError
			w.LastError = "delivery interrupted"
		case !w.Status.Valid():
			w.Status = models.WorkerUnsent
		}
		if w.NameCI == "" {
			w.NameCI = text.Fold(w.Name)
		}
		r.byID[w.ID] = len(r.list)
		r.list = append(r.list, &w)
	}
	return r, nil
}

// Len returns the number of workers in the roster.
func (r *WorkerRegistry) Len() int { return len(r.list) }

// Has reports whether id is in the roster.
func (r *WorkerRegistry) Has(id primitive.ObjectID) bool {
	_, ok := r.byID[id]
	return ok
}

// Get returns a copy of the worker with the given id.
func (r *WorkerRegistry) Get(id primitive.ObjectID) (models.Worker, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.Worker{}, false
	}
	return *r.list[i], true
}

// List returns copies of all workers in registry order.
func (r *WorkerRegistry) List() []models.Worker {
	out := make([]models.Worker, len(r.list))
	for i, w := range r.list {
		out[i] = *w
	}
	return out
}

// FindByName returns the first worker whose folded name matches name.
func (r *WorkerRegistry) FindByName(name string) (models.Worker, bool) {
	key := text.Fold(name)
	for _, w := range r.list {
		if w.NameCI == key {
			return *w, true
		}
	}
	return models.Worker{}, false
}

// SetStatus transitions a worker. lastErr is stored for error status and
// cleared otherwise.
func (r *WorkerRegistry) SetStatus(id primitive.ObjectID, status models.WorkerStatus, lastErr string) error {
	i, ok := r.byID[id]
	if !ok {
		return ErrUnknownWorker
	}
	w := r.list[i]
	w.Status = status
	if status == models.WorkerError {
		w.LastError = lastErr
	} else {
		w.LastError = ""
	}
	now := time.Now().UTC()
	w.UpdatedAt = &now
	return nil
}

// InFlight returns the number of workers claimed by a running dispatch.
func (r *WorkerRegistry) InFlight() int {
	n := 0
	for _, w := range r.list {
		if w.Status == models.WorkerSending {
			n++
		}
	}
	return n
}
