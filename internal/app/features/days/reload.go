// internal/app/features/days/reload.go
package days

import (
	"net/http"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// HandleReload handles POST /days/{date}/reload. The cached day is dropped
// and loaded again from the store; it is refused while deliveries for the
// day are in flight.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "reload day")
	defer cancel()

	sc, err := h.Days.Reload(ctx, chi.URLParam(r, "date"))
	if err != nil {
		h.ErrLog.Write(w, r, "failed to reload day", err)
		return
	}

	var nWorkers, nSites int
	_ = sc.View(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		nWorkers, nSites = workers.Len(), sites.Len()
		return nil
	})
	h.Audit.DayReloaded(ctx, r, sc.Date, nWorkers, nSites)

	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"date":    sc.Date,
		"workers": nWorkers,
		"sites":   nSites,
		"repairs": len(sc.Repairs()),
	})
}
