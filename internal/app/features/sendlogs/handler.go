// internal/app/features/sendlogs/handler.go
package sendlogs

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	sendlogstore "github.com/dalemusser/sitecrew/internal/app/store/sendlogs"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/paging"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Store is the read side of the send log.
type Store interface {
	List(ctx context.Context, filter sendlogstore.QueryFilter) ([]models.SendLog, error)
	Count(ctx context.Context, filter sendlogstore.QueryFilter) (int64, error)
}

// Handler serves the send log.
type Handler struct {
	Store  Store
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(store Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger, ErrLog: errLog}
}

// Routes mounts the send log under /send-logs. It is read-only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	return r
}

type listResponse struct {
	Entries []models.SendLog `json:"entries"`
	Total   int64            `json:"total"`
	HasNext bool             `json:"has_next"`
	paging.Range
}

// ServeList handles GET /send-logs?date=&kind=&start=, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sendlogstore.QueryFilter{
		Date: strings.TrimSpace(q.Get("date")),
		Kind: strings.TrimSpace(q.Get("kind")),
	}
	if filter.Date != "" {
		if err := dayscope.ValidateDate(filter.Date); err != nil {
			h.ErrLog.Write(w, r, "invalid date", err)
			return
		}
	}
	switch filter.Kind {
	case "", models.SendLogBatch, models.SendLogSingle:
	default:
		uierrors.BadRequest(w, "kind must be batch or single")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "send log list")
	defer cancel()

	total, err := h.Store.Count(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to count send logs", err)
		return
	}

	start := paging.ParseStart(r)
	filter.Offset = paging.Offset(start)
	filter.Limit = paging.LimitPlusOne()
	entries, err := h.Store.List(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "failed to list send logs", err)
		return
	}
	hasNext := paging.TrimPage(&entries)
	if entries == nil {
		entries = []models.SendLog{}
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Entries: entries,
		Total:   total,
		HasNext: hasNext,
		Range:   paging.ComputeRange(start, len(entries)),
	})
}
