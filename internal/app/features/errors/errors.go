// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/sitecrew/internal/app/system/assignment"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/dispatch"
	"go.uber.org/zap"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Site    string `json:"conflict_site_id,omitempty"`
	Slot    *int   `json:"conflict_slot,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, Body{Error: "bad_request", Message: msg})
}

type mapping struct {
	target error
	status int
	code   string
}

// Order matters: DuplicateError is matched through errors.As before this table.
var known = []mapping{
	{dayscope.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{assignment.ErrInvalidSlot, http.StatusUnprocessableEntity, "invalid_slot"},
	{dayscope.ErrSlotRange, http.StatusUnprocessableEntity, "invalid_slot"},
	{dayscope.ErrUnknownWorker, http.StatusNotFound, "unknown_worker"},
	{dayscope.ErrUnknownSite, http.StatusNotFound, "unknown_site"},
	{assignment.ErrDuplicateAssignment, http.StatusConflict, "duplicate_assignment"},
	{dispatch.ErrNotConfirmed, http.StatusPreconditionRequired, "not_confirmed"},
	{dispatch.ErrNothingToSend, http.StatusConflict, "nothing_to_send"},
	{dispatch.ErrInFlight, http.StatusConflict, "in_flight"},
	{dispatch.ErrAlreadySent, http.StatusConflict, "already_sent"},
	{dispatch.ErrDeliveryFailure, http.StatusBadGateway, "delivery_failure"},
	{dayscope.ErrBusy, http.StatusConflict, "busy"},
	{dayscope.ErrRetired, http.StatusConflict, "reloaded"},
}

// Classify maps a domain error to an HTTP status and a stable error code.
// ok is false for errors that are not part of the domain taxonomy.
func Classify(err error) (status int, code string, ok bool) {
	for _, m := range known {
		if stderrors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, "internal", false
}

// ErrorLogger writes domain errors as JSON and logs everything else as a
// server error.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Write responds to err. Domain errors become 4xx (or 502 for delivery
// failures) with their message; anything else is logged with msg and
// answered with a generic 500.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code, ok := Classify(err)
	if !ok {
		e.log.Error(msg,
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		WriteJSON(w, status, Body{Error: code, Message: msg})
		return
	}

	body := Body{Error: code, Message: err.Error()}
	var dup *assignment.DuplicateError
	if stderrors.As(err, &dup) {
		slot := dup.Slot
		body.Site = dup.SiteID.Hex()
		body.Slot = &slot
	}
	WriteJSON(w, status, body)
}
