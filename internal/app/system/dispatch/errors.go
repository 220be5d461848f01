// internal/app/system/dispatch/errors.go
package dispatch

import "errors"

var (
	// ErrNotConfirmed is returned by DispatchAll without a valid confirmation
	// token from Preview. Bulk dispatch is never triggered implicitly.
	ErrNotConfirmed = errors.New("dispatch not confirmed")
	// ErrNothingToSend is returned when no worker is unsent or in error.
	ErrNothingToSend = errors.New("no workers to notify")
	// ErrAlreadySent is returned by DispatchOne for a sent worker unless forced.
	ErrAlreadySent = errors.New("worker already notified")
	// ErrInFlight is returned by DispatchOne when the worker is being notified.
	ErrInFlight = errors.New("delivery already in progress")
	// ErrDeliveryFailure wraps the notifier's reason when a delivery fails or times out.
	ErrDeliveryFailure = errors.New("delivery failed")
)
