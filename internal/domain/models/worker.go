// internal/domain/models/worker.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkerStatus is the dispatch state of a worker for one day.
type WorkerStatus string

const (
	WorkerUnsent  WorkerStatus = "unsent"
	WorkerSending WorkerStatus = "sending" // claimed by an in-flight dispatch; never persisted
	WorkerSent    WorkerStatus = "sent"
	WorkerError   WorkerStatus = "error"
)

// Dispatchable reports whether a bulk send should pick up a worker in this status.
func (s WorkerStatus) Dispatchable() bool {
	return s == WorkerUnsent || s == WorkerError
}

// Valid reports whether s is one of the known statuses.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerUnsent, WorkerSending, WorkerSent, WorkerError:
		return true
	}
	return false
}

// Worker is one entry in a day's roster.
//
// It models a document in the `day_workers` collection. A worker document is
// scoped to a single date; the same person working on two dates has two
// documents.
type Worker struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Date      string             `bson:"date" json:"date"` // YYYY-MM-DD
	Order     int                `bson:"order" json:"order"`
	Name      string             `bson:"name" json:"name"`
	NameCI    string             `bson:"name_ci" json:"-"` // folded for lookup by name
	Contact   string             `bson:"contact" json:"contact"`
	Status    WorkerStatus       `bson:"status" json:"status"`
	LastError string             `bson:"last_error,omitempty" json:"last_error,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
