// internal/app/system/assignment/errors.go
package assignment

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidSlot is returned for slot indexes at or beyond a site's
	// required slot count. Disabled slots are never mutable.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrDuplicateAssignment is returned when the worker already holds a
	// slot elsewhere in the day. Re-query EligibleFor and choose again.
	ErrDuplicateAssignment = errors.New("worker is already assigned elsewhere")
)

// DuplicateError names the cell that already holds the worker.
type DuplicateError struct {
	WorkerID primitive.ObjectID
	SiteID   primitive.ObjectID
	Slot     int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("worker %s already holds site %s slot %d", e.WorkerID.Hex(), e.SiteID.Hex(), e.Slot)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateAssignment }
