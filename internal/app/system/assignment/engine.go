// internal/app/system/assignment/engine.go
package assignment

import (
	"fmt"
	"sort"

	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engine answers eligibility queries and applies slot mutations for one
// day-scope. It keeps no state of its own; every call reads the scope as it
// is at that moment.
type Engine struct {
	scope *dayscope.Scope
}

// New returns an Engine over scope.
func New(scope *dayscope.Scope) *Engine {
	return &Engine{scope: scope}
}

// Change describes the outcome of SetSlot.
type Change struct {
	SiteID   primitive.ObjectID
	Slot     int
	Previous *primitive.ObjectID
	Current  *primitive.ObjectID
	Changed  bool
	Slots    []*primitive.ObjectID // the site's cells after the change
}

// Cell identifies one (site, slot) pair.
type Cell struct {
	SiteID primitive.ObjectID
	Slot   int
}

// EligibleFor lists, in roster order, every worker who may be placed in the
// given slot: everyone not seated in some other cell of the day. The current
// occupant of the slot is included so it can be re-selected.
func (e *Engine) EligibleFor(siteID primitive.ObjectID, slot int) ([]models.Worker, error) {
	var out []models.Worker
	err := e.scope.View(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		if err := checkSlot(sites, siteID, slot); err != nil {
			return err
		}
		busy := make(map[primitive.ObjectID]struct{})
		sites.Occupied(func(sid primitive.ObjectID, i int, wid primitive.ObjectID) {
			if sid == siteID && i == slot {
				return
			}
			busy[wid] = struct{}{}
		})
		all := workers.List()
		out = make([]models.Worker, 0, len(all))
		for _, w := range all {
			if _, taken := busy[w.ID]; !taken {
				out = append(out, w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Persist writes an applied change to storage.
type Persist func(ch Change) error

// SetSlot places workerID in the slot, or clears it when workerID is nil.
// Validation and the write happen under the scope's write lock. Setting a
// slot to its current value is a no-op. A worker seated elsewhere is never
// moved; the call fails with ErrDuplicateAssignment instead.
func (e *Engine) SetSlot(siteID primitive.ObjectID, slot int, workerID *primitive.ObjectID) (Change, error) {
	return e.Commit(siteID, slot, workerID, nil)
}

// Commit is SetSlot with persist run inside the same critical section, so
// changes reach storage in the order they were applied. When persist fails
// the cell is put back and the error is returned wrapped. persist is not
// called for a no-op.
func (e *Engine) Commit(siteID primitive.ObjectID, slot int, workerID *primitive.ObjectID, persist Persist) (Change, error) {
	ch := Change{SiteID: siteID, Slot: slot}
	err := e.scope.Update(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		if err := checkSlot(sites, siteID, slot); err != nil {
			return err
		}
		if workerID != nil && !workers.Has(*workerID) {
			return dayscope.ErrUnknownWorker
		}

		prev, err := sites.Slot(siteID, slot)
		if err != nil {
			return err
		}
		ch.Previous = prev
		ch.Current = workerID

		if sameOccupant(prev, workerID) {
			ch.Slots = slotsOf(sites, siteID)
			return nil
		}
		if workerID != nil {
			if at, ok := seatOf(sites, *workerID); ok {
				return &DuplicateError{WorkerID: *workerID, SiteID: at.SiteID, Slot: at.Slot}
			}
		}
		if err := sites.SetSlot(siteID, slot, workerID); err != nil {
			return err
		}
		ch.Changed = true
		ch.Slots = slotsOf(sites, siteID)

		if persist == nil {
			return nil
		}
		if err := persist(ch); err != nil {
			// Nothing else ran under the lock, so prev is still free to take back the cell.
			_ = sites.SetSlot(siteID, slot, prev)
			ch.Current = prev
			ch.Changed = false
			ch.Slots = slotsOf(sites, siteID)
			return fmt.Errorf("persist slot: %w", err)
		}
		return nil
	})
	return ch, err
}

// Status derives the assignment status of a site.
func (e *Engine) Status(siteID primitive.ObjectID) (models.AssignmentStatus, error) {
	var st models.AssignmentStatus
	err := e.scope.View(func(_ *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		s, ok := sites.Get(siteID)
		if !ok {
			return dayscope.ErrUnknownSite
		}
		st = StatusOf(s)
		return nil
	})
	return st, err
}

// StatusOf derives the assignment status from a site's active slots.
func StatusOf(s models.Site) models.AssignmentStatus {
	filled := 0
	for i := 0; i < s.RequiredSlots && i < len(s.Slots); i++ {
		if s.Slots[i] != nil {
			filled++
		}
	}
	switch {
	case filled == 0:
		return models.Unassigned
	case filled >= s.RequiredSlots:
		return models.Complete
	default:
		return models.Partial
	}
}

// WorkerAssignedSites returns the sites where the named worker holds a slot,
// ordered by start time.
func (e *Engine) WorkerAssignedSites(name string) ([]models.Site, error) {
	var out []models.Site
	err := e.scope.View(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		w, ok := workers.FindByName(name)
		if !ok {
			return dayscope.ErrUnknownWorker
		}
		out = SitesHeldBy(sites, w.ID)
		return nil
	})
	return out, err
}

// SitesHeldBy returns the sites where workerID holds an active slot, ordered
// by start time. The caller must hold the scope lock.
func SitesHeldBy(sites *dayscope.SiteRegistry, workerID primitive.ObjectID) []models.Site {
	var out []models.Site
	for _, s := range sites.List() {
		if s.Holds(workerID) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

// Occupancy maps every seated worker to the cells holding them. With the
// invariant intact each worker maps to exactly one cell.
func (e *Engine) Occupancy() map[primitive.ObjectID][]Cell {
	out := make(map[primitive.ObjectID][]Cell)
	_ = e.scope.View(func(_ *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		sites.Occupied(func(sid primitive.ObjectID, i int, wid primitive.ObjectID) {
			out[wid] = append(out[wid], Cell{SiteID: sid, Slot: i})
		})
		return nil
	})
	return out
}

func checkSlot(sites *dayscope.SiteRegistry, siteID primitive.ObjectID, slot int) error {
	s, ok := sites.Get(siteID)
	if !ok {
		return dayscope.ErrUnknownSite
	}
	if !s.Active(slot) {
		return ErrInvalidSlot
	}
	return nil
}

func seatOf(sites *dayscope.SiteRegistry, workerID primitive.ObjectID) (Cell, bool) {
	var at Cell
	found := false
	sites.Occupied(func(sid primitive.ObjectID, i int, wid primitive.ObjectID) {
		if !found && wid == workerID {
			at = Cell{SiteID: sid, Slot: i}
			found = true
		}
	})
	return at, found
}

func slotsOf(sites *dayscope.SiteRegistry, siteID primitive.ObjectID) []*primitive.ObjectID {
	s, _ := sites.Get(siteID)
	return s.Slots
}

func sameOccupant(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
