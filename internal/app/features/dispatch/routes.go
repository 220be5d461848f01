// internal/app/features/dispatch/routes.go
package dispatch

import "github.com/go-chi/chi/v5"

// MountRoutes adds the dispatch endpoints to the per-date router of the
// days feature.
func MountRoutes(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/dispatch/preview", h.HandlePreview)
		r.Post("/dispatch", h.HandleDispatchAll)
		r.Post("/workers/{workerID}/dispatch", h.HandleDispatchOne)
	}
}
