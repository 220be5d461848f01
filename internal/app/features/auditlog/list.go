// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/paging"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ServeList handles GET /audit, newest first. Filters: date, category,
// event_type, worker_id, start_date and end_date (YYYY-MM-DD, UTC), start.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))

	if date != "" {
		if err := dayscope.ValidateDate(date); err != nil {
			h.ErrLog.Write(w, r, "invalid date", err)
			return
		}
	}
	if category != "" && eventTypesForCategory(category) == nil {
		uierrors.BadRequest(w, "unknown category")
		return
	}
	if eventType != "" && !validEventType(category, eventType) {
		uierrors.BadRequest(w, "unknown event type")
		return
	}

	filter := audit.QueryFilter{
		Date:      date,
		Category:  category,
		EventType: eventType,
	}
	if s := strings.TrimSpace(q.Get("worker_id")); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			uierrors.BadRequest(w, "invalid worker id")
			return
		}
		filter.WorkerID = &id
	}
	if startDate != "" {
		if t, err := time.Parse(dayscope.DateLayout, startDate); err == nil {
			filter.StartTime = &t
		}
	}
	if endDate != "" {
		if t, err := time.Parse(dayscope.DateLayout, endDate); err == nil {
			// End of day
			endOfDay := t.Add(24*time.Hour - time.Second)
			filter.EndTime = &endOfDay
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to count audit events", err)
		return
	}

	start := paging.ParseStart(r)
	filter.Offset = paging.Offset(start)
	filter.Limit = paging.LimitPlusOne()
	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to query audit events", err)
		return
	}
	hasNext := paging.TrimPage(&events)

	// Batch resolve worker names, one roster read per date.
	names := make(map[primitive.ObjectID]string)
	if h.Roster != nil {
		dates := make(map[string]struct{})
		for _, e := range events {
			if e.WorkerID != nil && e.Date != "" {
				dates[e.Date] = struct{}{}
			}
		}
		for d := range dates {
			workers, err := h.Roster.ListByDate(ctx, d)
			if err != nil {
				h.Log.Warn("failed to fetch worker names for audit log", zap.Error(err), zap.String("date", d))
				continue
			}
			for _, wk := range workers {
				names[wk.ID] = wk.Name
			}
		}
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Date:          e.Date,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.SiteID != nil {
			item.SiteID = e.SiteID.Hex()
		}
		if e.WorkerID != nil {
			item.WorkerID = e.WorkerID.Hex()
			item.WorkerName = names[*e.WorkerID]
		}
		items = append(items, item)
	}

	uierrors.WriteJSON(w, http.StatusOK, listData{
		Items:     items,
		Date:      date,
		Category:  category,
		EventType: eventType,
		Total:     total,
		HasNext:   hasNext,
		Range:     paging.ComputeRange(start, len(items)),
	})
}

// ServeEventTypes handles GET /audit/event-types.
func (h *Handler) ServeEventTypes(w http.ResponseWriter, r *http.Request) {
	uierrors.WriteJSON(w, http.StatusOK, allCategories())
}
