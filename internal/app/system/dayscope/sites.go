// internal/app/system/dayscope/sites.go
package dayscope

import (
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SiteRegistry holds the day's sites ordered by start time. Like
// WorkerRegistry it relies on the enclosing Scope for locking.
type SiteRegistry struct {
	list []*models.Site
	byID map[primitive.ObjectID]int
}

func newSiteRegistry(sites []models.Site) (*SiteRegistry, error) {
	r := &SiteRegistry{
		list: make([]*models.Site, 0, len(sites)),
		byID: make(map[primitive.ObjectID]int, len(sites)),
	}
	seen := make(map[primitive.ObjectID]struct{}, len(sites))
	for _, s := range sites {
		if s.ID.IsZero() {
			return nil, fmt.Errorf("site %q has no id", s.Name)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %s", s.ID.Hex())
		}
		seen[s.ID] = struct{}{}
		c := s.Clone()
		r.list = append(r.list, &c)
	}
	sort.SliceStable(r.list, func(i, j int) bool {
		a, b := r.list[i], r.list[j]
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		return a.Name < b.Name
	})
	for i, s := range r.list {
		r.byID[s.ID] = i
	}
	return r, nil
}

// Len returns the number of sites.
func (r *SiteRegistry) Len() int { return len(r.list) }

// Get returns a copy of the site with the given id.
func (r *SiteRegistry) Get(id primitive.ObjectID) (models.Site, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.Site{}, false
	}
	return r.list[i].Clone(), true
}

// List returns copies of all sites in start-time order.
func (r *SiteRegistry) List() []models.Site {
	out := make([]models.Site, len(r.list))
	for i, s := range r.list {
		out[i] = s.Clone()
	}
	return out
}

// Slot returns the occupant of an active slot, or nil when it is empty.
func (r *SiteRegistry) Slot(siteID primitive.ObjectID, slot int) (*primitive.ObjectID, error) {
	i, ok := r.byID[siteID]
	if !ok {
		return nil, ErrUnknownSite
	}
	s := r.list[i]
	if !s.Active(slot) {
		return nil, ErrSlotRange
	}
	if w := s.Slots[slot]; w != nil {
		id := *w
		return &id, nil
	}
	return nil, nil
}

// SetSlot writes the cell without any invariant checks beyond the active range.
// Callers enforce exclusivity.
func (r *SiteRegistry) SetSlot(siteID primitive.ObjectID, slot int, workerID *primitive.ObjectID) error {
	i, ok := r.byID[siteID]
	if !ok {
		return ErrUnknownSite
	}
	s := r.list[i]
	if !s.Active(slot) {
		return ErrSlotRange
	}
	if workerID == nil {
		s.Slots[slot] = nil
	} else {
		id := *workerID
		s.Slots[slot] = &id
	}
	now := time.Now().UTC()
	s.UpdatedAt = &now
	return nil
}

// Occupied calls fn for every filled active cell, in site order then slot order.
func (r *SiteRegistry) Occupied(fn func(siteID primitive.ObjectID, slot int, workerID primitive.ObjectID)) {
	for _, s := range r.list {
		for i, w := range s.Slots {
			if w != nil && s.Active(i) {
				fn(s.ID, i, *w)
			}
		}
	}
}
