// internal/domain/models/site.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxSlots is the display capacity of every site. Only the first
// RequiredSlots entries are assignable.
const MaxSlots = 4

// AssignmentStatus summarizes how many of a site's active slots are filled.
type AssignmentStatus string

const (
	Unassigned AssignmentStatus = "unassigned"
	Partial    AssignmentStatus = "partial"
	Complete   AssignmentStatus = "complete"
)

// Site is a time-boxed work site for one day.
//
// It models a document in the `sites` collection. Slots always has MaxSlots
// entries once loaded; a nil entry is an empty slot.
type Site struct {
	ID               primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Date             string                `bson:"date" json:"date"` // YYYY-MM-DD
	StartsAt         time.Time             `bson:"starts_at" json:"starts_at"`
	Name             string                `bson:"name" json:"name"`
	CounterpartyName string                `bson:"counterparty_name" json:"counterparty_name"`
	Address          string                `bson:"address" json:"address"`
	RequiredSlots    int                   `bson:"required_slots" json:"required_slots"`
	Notes            string                `bson:"notes,omitempty" json:"notes,omitempty"`
	Slots            []*primitive.ObjectID `bson:"slots" json:"slots"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Active reports whether slot index i can hold a worker.
func (s Site) Active(i int) bool {
	return i >= 0 && i < s.RequiredSlots && i < MaxSlots
}

// Holds reports whether the worker occupies any active slot of the site.
func (s Site) Holds(workerID primitive.ObjectID) bool {
	for i, w := range s.Slots {
		if s.Active(i) && w != nil && *w == workerID {
			return true
		}
	}
	return false
}

// Clone returns a copy whose Slots can be mutated independently.
func (s Site) Clone() Site {
	out := s
	out.Slots = make([]*primitive.ObjectID, len(s.Slots))
	for i, w := range s.Slots {
		if w != nil {
			id := *w
			out.Slots[i] = &id
		}
	}
	return out
}
