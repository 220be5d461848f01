// internal/app/features/days/board.go
package days

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/assignment"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
)

// ServeBoard handles GET /days/{date}/board.
func (h *Handler) ServeBoard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load day")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, assignment.New(sc).Board())
}

// ServeWorkers handles GET /days/{date}/workers: the roster with dispatch status.
func (h *Handler) ServeWorkers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load day")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	var list []models.Worker
	_ = sc.View(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		list = workers.List()
		return nil
	})
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"date": sc.Date, "workers": list})
}

// ServeWorkerSites handles GET /days/{date}/workers/sites?name=...
// It lists the sites where the named worker holds a slot, by start time.
func (h *Handler) ServeWorkerSites(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		uierrors.BadRequest(w, "name is required")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load day")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	sites, err := assignment.New(sc).WorkerAssignedSites(name)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to look up worker sites", err)
		return
	}
	if sites == nil {
		sites = []models.Site{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"name": name, "sites": sites})
}

// ServeSiteStatus handles GET /days/{date}/sites/{siteID}/status.
func (h *Handler) ServeSiteStatus(w http.ResponseWriter, r *http.Request) {
	siteID, ok := siteParam(r)
	if !ok {
		uierrors.BadRequest(w, "invalid site id")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load day")
	defer cancel()

	sc, err := h.scope(ctx, r)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	st, err := assignment.New(sc).Status(siteID)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to read site status", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"site_id": siteID.Hex(), "status": st})
}
