// internal/app/features/days/handler.go
package days

import (
	"context"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/auditlog"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/metrics"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SiteStore persists slot changes and is read during roster imports.
type SiteStore interface {
	ListByDate(ctx context.Context, date string) ([]models.Site, error)
	SetSlot(ctx context.Context, id primitive.ObjectID, slot int, workerID *primitive.ObjectID) error
	SetSlots(ctx context.Context, id primitive.ObjectID, slots []*primitive.ObjectID) error
}

// RosterStore reads and replaces a day's roster.
type RosterStore interface {
	ListByDate(ctx context.Context, date string) ([]models.Worker, error)
	ReplaceDay(ctx context.Context, date string, workers []models.Worker) ([]models.Worker, error)
}

// TxRunner runs fn as one unit of work; see txn.Run.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Handler serves the assignment board of a day.
type Handler struct {
	Days    *dayscope.Manager
	Sites   SiteStore
	Roster  RosterStore
	RunTx   TxRunner
	Audit   *auditlog.Logger
	Metrics *metrics.Metrics
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs a days Handler. audit and m may be nil.
func NewHandler(days *dayscope.Manager, sites SiteStore, roster RosterStore, runTx TxRunner,
	audit *auditlog.Logger, m *metrics.Metrics, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if runTx == nil {
		runTx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Handler{
		Days:    days,
		Sites:   sites,
		Roster:  roster,
		RunTx:   runTx,
		Audit:   audit,
		Metrics: m,
		Log:     logger,
		ErrLog:  errLog,
	}
}

// scope loads the day named by the {date} URL parameter.
func (h *Handler) scope(ctx context.Context, r *http.Request) (*dayscope.Scope, error) {
	return h.Days.Get(ctx, chi.URLParam(r, "date"))
}

func siteParam(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "siteID"))
	return id, err == nil
}

func slotParam(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "slot"))
	return n, err == nil
}
