// internal/app/features/days/roster.go
package days

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/csvutil"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxErrorsShown = 10

// HandleRosterImport handles POST /days/{date}/import/roster. The body is a
// CSV roster (name,contact) either as a multipart "file" field or as a raw
// text/csv body. The day's roster is replaced as a whole.
//
// Workers whose folded name matches an existing roster entry keep their ID
// and dispatch status, unless their contact changed, in which case they
// return to unsent. Slots held by workers no longer on the roster are
// cleared in the same unit of work. The day is held exclusively from the
// roster snapshot until the store write finishes, and the import is refused
// while deliveries are in flight.
func (h *Handler) HandleRosterImport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := dayscope.ValidateDate(date); err != nil {
		h.ErrLog.Write(w, r, "invalid date", err)
		return
	}

	body, source, ok := rosterBody(w, r)
	if !ok {
		return
	}
	defer body.Close()

	parsed, err := csvutil.ParseRosterCSV(body)
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}
	if parsed.HasErrors() {
		uierrors.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "invalid_roster",
			"message": parsed.Summary(maxErrorsShown),
		})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "roster import")
	defer cancel()

	sc, err := h.Days.Get(ctx, date)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to load day", err)
		return
	}
	var (
		saved   []models.Worker
		removed map[primitive.ObjectID]bool
	)
	err = sc.Replace(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		var next []models.Worker
		next, removed = mergeRoster(workers.List(), parsed.Rows)
		return h.RunTx(ctx, func(ctx context.Context) error {
			var err error
			if saved, err = h.Roster.ReplaceDay(ctx, date, next); err != nil {
				return err
			}
			if len(removed) == 0 {
				return nil
			}
			sites, err := h.Sites.ListByDate(ctx, date)
			if err != nil {
				return err
			}
			for _, s := range sites {
				slots, changed := clearRemoved(s.Slots, removed)
				if !changed {
					continue
				}
				if err := h.Sites.SetSlots(ctx, s.ID, slots); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if errors.Is(err, dayscope.ErrBusy) || errors.Is(err, dayscope.ErrRetired) {
		h.ErrLog.Write(w, r, "roster import refused", err)
		return
	}

	// The old scope is retired either way; load the day from the store.
	if _, rerr := h.Days.Reload(ctx, date); rerr != nil {
		h.Log.Error("failed to reload day after roster import",
			zap.Error(rerr),
			zap.String("date", date))
		if err == nil {
			h.ErrLog.Write(w, r, "roster saved but reload failed", rerr)
			return
		}
	}
	if err != nil {
		h.ErrLog.Write(w, r, "failed to save roster", err)
		return
	}
	h.Audit.RosterImported(ctx, r, date, source, len(saved))

	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"workers": len(saved),
		"removed": len(removed),
	})
}

// rosterBody returns the CSV payload of r and a label for where it came from.
func rosterBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, "body", true
	}
	if err := r.ParseMultipartForm(csvutil.MaxUploadSize); err != nil {
		uierrors.BadRequest(w, "upload too large or malformed")
		return nil, "", false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		uierrors.BadRequest(w, "missing file field")
		return nil, "", false
	}
	name := hdr.Filename
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		f.Close()
		uierrors.BadRequest(w, "file must be a .csv")
		return nil, "", false
	}
	return f, name, true
}

// mergeRoster builds the new roster in file order. It returns the workers to
// store and the IDs of current workers that are no longer present.
func mergeRoster(current []models.Worker, rows []csvutil.RosterRow) ([]models.Worker, map[primitive.ObjectID]bool) {
	byName := make(map[string]models.Worker, len(current))
	for _, w := range current {
		byName[text.Fold(w.Name)] = w
	}

	kept := make(map[primitive.ObjectID]bool, len(rows))
	next := make([]models.Worker, 0, len(rows))
	for _, row := range rows {
		w, ok := byName[text.Fold(row.Name)]
		if !ok {
			next = append(next, models.Worker{Name: row.Name, Contact: row.Contact, Status: models.WorkerUnsent})
			continue
		}
		if w.Contact != row.Contact {
			w.Status = models.WorkerUnsent
			w.LastError = ""
		}
		w.Name = row.Name
		w.Contact = row.Contact
		kept[w.ID] = true
		next = append(next, w)
	}

	removed := make(map[primitive.ObjectID]bool)
	for _, w := range current {
		if !kept[w.ID] {
			removed[w.ID] = true
		}
	}
	return next, removed
}

func clearRemoved(slots []*primitive.ObjectID, removed map[primitive.ObjectID]bool) ([]*primitive.ObjectID, bool) {
	out := make([]*primitive.ObjectID, len(slots))
	changed := false
	for i, id := range slots {
		if id != nil && removed[*id] {
			changed = true
			continue
		}
		out[i] = id
	}
	return out, changed
}
