// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/app/store/sendlogs"
	sitestore "github.com/dalemusser/sitecrew/internal/app/store/sites"
	workerstore "github.com/dalemusser/sitecrew/internal/app/store/workers"
	"github.com/dalemusser/sitecrew/internal/app/system/auditlog"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/dispatch"
	"github.com/dalemusser/sitecrew/internal/app/system/mailer"
	"github.com/dalemusser/sitecrew/internal/app/system/metrics"
	"github.com/dalemusser/sitecrew/internal/app/system/notify"
	"github.com/dalemusser/sitecrew/internal/app/system/tasks"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Notifier kinds accepted by the notifier key.
const (
	notifierMail = "mail"
	notifierLog  = "log"
)

// services holds the long-lived components built by Startup and used by
// BuildHandler and Shutdown.
type services struct {
	Workers  *workerstore.Store
	Sites    *sitestore.Store
	SendLogs *sendlogs.Store
	Audit    *audit.Store

	Days      *dayscope.Manager
	Dispatch  *dispatch.Controller
	AuditLog  *auditlog.Logger
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Scheduler *tasks.Scheduler
}

var (
	svcMu sync.Mutex
	svc   *services
)

func current() *services {
	svcMu.Lock()
	defer svcMu.Unlock()
	return svc
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It applies
// timeouts, builds the stores, the notifier, the day-scope manager and the
// dispatch controller, and starts the background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("count", n))
	}
	// TIMEOUT_* env vars tune the generic timeouts; the notifier deadline
	// comes from notify_timeout only.
	timeouts.Configure(timeouts.Config{Notify: appCfg.NotifyTimeout})

	s, err := buildServices(appCfg, deps, logger)
	if err != nil {
		return err
	}
	s.Scheduler.Start()

	svcMu.Lock()
	svc = s
	svcMu.Unlock()

	logger.Info("sitecrew started",
		zap.String("notifier", appCfg.Notifier),
		zap.Int("dispatch_concurrency", appCfg.DispatchConcurrency),
		zap.Duration("notify_timeout", timeouts.Notify()),
		zap.Duration("scope_idle_ttl", appCfg.ScopeIdleTTL))
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.SiteCrewMongoDatabase
	s := &services{
		Workers:  workerstore.New(db),
		Sites:    sitestore.New(db),
		SendLogs: sendlogs.New(db),
		Audit:    audit.New(db),
	}

	if appCfg.MetricsEnabled {
		s.Registry = prometheus.NewRegistry()
		s.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.Metrics = metrics.New(s.Registry, "sitecrew")
	}

	n, err := buildNotifier(appCfg, logger)
	if err != nil {
		return nil, err
	}

	s.AuditLog = auditlog.New(s.Audit, logger, auditlog.Config{
		Assignment: appCfg.AuditLogAssignment,
		Dispatch:   appCfg.AuditLogDispatch,
	})
	s.Days = dayscope.NewManager(s.Workers, s.Sites, logger)
	s.Dispatch = dispatch.New(n, s.SendLogs, dispatch.Config{
		NotifyTimeout: timeouts.Notify(),
		Concurrency:   appCfg.DispatchConcurrency,
		ConfirmTTL:    appCfg.DispatchConfirmTTL,
		LogSingle:     appCfg.DispatchLogSingle,
	}, logger,
		dispatch.WithStatusStore(s.Workers),
		dispatch.WithMetrics(s.Metrics),
	)
	s.Scheduler = tasks.NewScheduler(logger,
		tasks.ScopeEvictionJob(s.Days, s.Metrics, logger, appCfg.ScopeIdleTTL),
	)
	return s, nil
}

// buildNotifier returns the Notifier selected by appCfg.Notifier.
func buildNotifier(appCfg AppConfig, logger *zap.Logger) (notify.Notifier, error) {
	switch appCfg.Notifier {
	case notifierLog, "":
		return notify.NewLogNotifier(logger), nil
	case notifierMail:
		loc := time.UTC
		if appCfg.MailTimezone != "" {
			l, err := time.LoadLocation(appCfg.MailTimezone)
			if err != nil {
				return nil, fmt.Errorf("mail_timezone: %w", err)
			}
			loc = l
		}
		m := mailer.New(mailer.Config{
			Host:     appCfg.MailSMTPHost,
			Port:     appCfg.MailSMTPPort,
			User:     appCfg.MailSMTPUser,
			Pass:     appCfg.MailSMTPPass,
			From:     appCfg.MailFrom,
			FromName: appCfg.MailFromName,
		}, logger)
		return notify.NewMailNotifier(m, notify.MailSettings{
			Subject:  appCfg.MailSubject,
			Header:   appCfg.MailHeader,
			Footer:   appCfg.MailFooter,
			Location: loc,
		}), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", appCfg.Notifier)
	}
}
