// internal/app/features/days/routes.go
package days

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted at /days. Each extra function is handed
// the per-date subrouter so other features can add endpoints under a day.
func Routes(h *Handler, extra ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Route("/{date}", func(dr chi.Router) {
		dr.Get("/board", h.ServeBoard)
		dr.Get("/workers", h.ServeWorkers)
		dr.Get("/workers/sites", h.ServeWorkerSites)
		dr.Get("/sites/{siteID}/status", h.ServeSiteStatus)
		dr.Get("/sites/{siteID}/slots/{slot}/eligible", h.ServeEligible)
		dr.Put("/sites/{siteID}/slots/{slot}", h.HandleSetSlot)
		dr.Post("/reload", h.HandleReload)
		dr.Post("/import/roster", h.HandleRosterImport)

		for _, mount := range extra {
			mount(dr)
		}
	})

	return r
}
