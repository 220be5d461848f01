// internal/app/features/dispatch/handler.go
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/auditlog"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	dispatchsys "github.com/dalemusser/sitecrew/internal/app/system/dispatch"
	"github.com/dalemusser/sitecrew/internal/app/system/limits"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Controller is the part of dispatch.Controller the handlers drive.
type Controller interface {
	Preview(scope *dayscope.Scope) (dispatchsys.Plan, error)
	DispatchAll(ctx context.Context, scope *dayscope.Scope, token string) (models.SendLog, error)
	DispatchOne(ctx context.Context, scope *dayscope.Scope, workerID primitive.ObjectID, opts dispatchsys.SingleOptions) (models.Worker, error)
}

// Handler serves the notification endpoints of a day.
type Handler struct {
	Days   *dayscope.Manager
	Ctrl   Controller
	Audit  *auditlog.Logger
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs a dispatch Handler. audit may be nil.
func NewHandler(days *dayscope.Manager, ctrl Controller, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Days: days, Ctrl: ctrl, Audit: audit, Log: logger, ErrLog: errLog}
}

// decodeOptional decodes a JSON body into v. An empty body leaves v unchanged.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	uierrors.BadRequest(w, "malformed JSON body")
	return false
}

// HandlePreview handles POST /days/{date}/dispatch/preview. It lists the
// workers a bulk send would notify and returns the token that confirms it.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "dispatch preview")
	defer cancel()

	sc, err := h.Days.Get(ctx, chi.URLParam(r, "date"))
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	plan, err := h.Ctrl.Preview(sc)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to preview dispatch", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, plan)
}

type dispatchAllRequest struct {
	ConfirmToken string `json:"confirm_token"`
}

// HandleDispatchAll handles POST /days/{date}/dispatch. The body must carry
// the confirm_token issued by the preview. Per-worker failures are reported
// in the returned send log, not as an HTTP error.
//
// The batch is detached from the client connection so a disconnect cannot
// leave workers stuck in sending.
func (h *Handler) HandleDispatchAll(w http.ResponseWriter, r *http.Request) {
	var req dispatchAllRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := timeouts.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Batch(), h.Log, "dispatch all")
	defer cancel()

	sc, err := h.Days.Get(ctx, chi.URLParam(r, "date"))
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	entry, err := h.Ctrl.DispatchAll(ctx, sc, req.ConfirmToken)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to dispatch", err)
		return
	}
	h.Audit.DispatchBatch(ctx, r, entry)
	uierrors.WriteJSON(w, http.StatusOK, entry)
}

type dispatchOneRequest struct {
	Force bool `json:"force"`
}

type dispatchOneResponse struct {
	Worker models.Worker `json:"worker"`
	Error  string        `json:"error,omitempty"`
}

// HandleDispatchOne handles POST /days/{date}/workers/{workerID}/dispatch.
// A failed delivery answers 502 with the worker, now in error, in the body.
func (h *Handler) HandleDispatchOne(w http.ResponseWriter, r *http.Request) {
	workerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "workerID"))
	if err != nil {
		uierrors.BadRequest(w, "invalid worker id")
		return
	}
	var req dispatchOneRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := timeouts.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Long(), h.Log, "dispatch one")
	defer cancel()

	sc, err := h.Days.Get(ctx, chi.URLParam(r, "date"))
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	worker, err := h.Ctrl.DispatchOne(ctx, sc, workerID, dispatchsys.SingleOptions{Force: req.Force})
	switch {
	case err == nil:
		h.Audit.DispatchSingle(ctx, r, sc.Date, workerID, req.Force, "")
		uierrors.WriteJSON(w, http.StatusOK, dispatchOneResponse{Worker: worker})
	case errors.Is(err, dispatchsys.ErrDeliveryFailure):
		h.Audit.DispatchSingle(ctx, r, sc.Date, workerID, req.Force, err.Error())
		uierrors.WriteJSON(w, http.StatusBadGateway, dispatchOneResponse{Worker: worker, Error: err.Error()})
	default:
		h.ErrLog.Write(w, r, "failed to dispatch worker", err)
	}
}
