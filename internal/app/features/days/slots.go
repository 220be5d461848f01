// internal/app/features/days/slots.go
package days

import (
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/assignment"
	"github.com/dalemusser/sitecrew/internal/app/system/limits"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeEligible handles GET /days/{date}/sites/{siteID}/slots/{slot}/eligible.
// The list is computed from the current state on every request.
func (h *Handler) ServeEligible(w http.ResponseWriter, r *http.Request) {
	siteID, ok := siteParam(r)
	if !ok {
		uierrors.BadRequest(w, "invalid site id")
		return
	}
	slot, ok := slotParam(r)
	if !ok {
		uierrors.BadRequest(w, "invalid slot")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load day")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	eligible, err := assignment.New(sc).EligibleFor(siteID, slot)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to compute eligible workers", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"site_id": siteID.Hex(),
		"slot":    slot,
		"workers": eligible,
	})
}

type setSlotRequest struct {
	WorkerID *string `json:"worker_id"`
}

type setSlotResponse struct {
	SiteID   string                  `json:"site_id"`
	Slot     int                     `json:"slot"`
	WorkerID *string                 `json:"worker_id"`
	Changed  bool                    `json:"changed"`
	Status   models.AssignmentStatus `json:"status"`
}

// HandleSetSlot handles PUT /days/{date}/sites/{siteID}/slots/{slot} with
// body {"worker_id": "<hex>"} or {"worker_id": null} to clear.
//
// The store write happens under the day's write lock, so writes land in the
// order they were applied. If it fails the cell is put back.
func (h *Handler) HandleSetSlot(w http.ResponseWriter, r *http.Request) {
	siteID, ok := siteParam(r)
	if !ok {
		uierrors.BadRequest(w, "invalid site id")
		return
	}
	slot, ok := slotParam(r)
	if !ok {
		uierrors.BadRequest(w, "invalid slot")
		return
	}

	var req setSlotRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)).Decode(&req); err != nil {
		uierrors.BadRequest(w, "body must be {\"worker_id\": \"<id>\" | null}")
		return
	}
	var workerID *primitive.ObjectID
	if req.WorkerID != nil && *req.WorkerID != "" {
		id, err := primitive.ObjectIDFromHex(*req.WorkerID)
		if err != nil {
			uierrors.BadRequest(w, "invalid worker id")
			return
		}
		workerID = &id
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "set slot")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	eng := assignment.New(sc)

	persist := func(ch assignment.Change) error {
		return h.Sites.SetSlot(ctx, siteID, slot, ch.Current)
	}
	ch, err := eng.Commit(siteID, slot, workerID, persist)
	if err != nil {
		h.Metrics.SlotMutation("rejected")
		if _, _, known := uierrors.Classify(err); known {
			h.Audit.SlotRejected(ctx, r, sc.Date, siteID, slot, workerID, err.Error())
			h.ErrLog.Write(w, r, "failed to set slot", err)
			return
		}
		h.ErrLog.Write(w, r, "failed to save slot", err)
		return
	}

	if ch.Changed {
		h.Metrics.SlotMutation("changed")
		h.Audit.SlotChanged(ctx, r, sc.Date, siteID, slot, ch.Previous, ch.Current)
	} else {
		h.Metrics.SlotMutation("noop")
	}

	st, _ := eng.Status(siteID)
	resp := setSlotResponse{SiteID: siteID.Hex(), Slot: slot, Changed: ch.Changed, Status: st}
	if ch.Current != nil {
		hex := ch.Current.Hex()
		resp.WorkerID = &hex
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}
