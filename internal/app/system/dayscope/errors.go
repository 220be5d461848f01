// internal/app/system/dayscope/errors.go
package dayscope

import "errors"

var (
	// ErrUnknownWorker is returned when a worker id is not in the day's roster.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrUnknownSite is returned when a site id is not scheduled for the day.
	ErrUnknownSite = errors.New("unknown site")
	// ErrInvalidDate is returned for day keys that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")
	// ErrSlotRange is returned by SiteRegistry.SetSlot for an index outside the active range.
	ErrSlotRange = errors.New("slot index out of active range")
	// ErrBusy is returned when a scope cannot be replaced because a dispatch is in flight.
	ErrBusy = errors.New("day has deliveries in flight")
	// ErrRetired is returned by Scope.Update after the scope was reloaded or evicted.
	ErrRetired = errors.New("day was reloaded; fetch it again")
)
