// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.uber.org/zap"
)

// Store is the read side of the audit event store.
type Store interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Roster resolves worker names for the events of a date.
type Roster interface {
	ListByDate(ctx context.Context, date string) ([]models.Worker, error)
}

type Handler struct {
	Store  Store
	Roster Roster
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs an Audit Log feature handler. roster may be nil, in
// which case worker IDs are shown unresolved.
func NewHandler(store Store, roster Roster, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Roster: roster,
		Log:    logger,
		ErrLog: errLog,
	}
}
