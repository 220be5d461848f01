// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/sitecrew/internal/app/features/auditlog"
	daysfeature "github.com/dalemusser/sitecrew/internal/app/features/days"
	dispatchfeature "github.com/dalemusser/sitecrew/internal/app/features/dispatch"
	errorsfeature "github.com/dalemusser/sitecrew/internal/app/features/errors"
	healthfeature "github.com/dalemusser/sitecrew/internal/app/features/health"
	sendlogsfeature "github.com/dalemusser/sitecrew/internal/app/features/sendlogs"
	"github.com/dalemusser/sitecrew/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The components built by Startup are
// mounted as JSON feature routers: the day board and its dispatch endpoints
// under /days, the send log, the audit log, health and metrics.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	s := current()
	if s == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}
	db := deps.SiteCrewMongoDatabase

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.SiteCrewMongoClient, s.Days, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if s.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	}

	// Day board, slot edits, roster import and dispatch
	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return txn.Run(ctx, db, logger, fn)
	}
	daysHandler := daysfeature.NewHandler(s.Days, s.Sites, s.Workers, runTx, s.AuditLog, s.Metrics, errLog, logger)
	dispatchHandler := dispatchfeature.NewHandler(s.Days, s.Dispatch, s.AuditLog, errLog, logger)
	r.Mount("/days", daysfeature.Routes(daysHandler, dispatchfeature.MountRoutes(dispatchHandler)))

	// Append-only send log
	sendLogsHandler := sendlogsfeature.NewHandler(s.SendLogs, errLog, logger)
	r.Mount("/send-logs", sendlogsfeature.Routes(sendLogsHandler))

	// Audit events
	auditHandler := auditlogfeature.NewHandler(s.Audit, s.Workers, errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler))

	return r, nil
}
