// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for SiteCrew.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, notifier, etc.
//   - Environment variables: SITECREW_MONGO_URI, SITECREW_NOTIFIER, etc.
//   - Command-line flags: --mongo_uri, --notifier, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "sitecrew", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},

	// Notification
	{Name: "notifier", Default: "log", Desc: "How workers are notified: 'mail' or 'log'"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "dispatch@sitecrew.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "SiteCrew", Desc: "From display name"},
	{Name: "mail_subject", Default: "Your site assignments", Desc: "Subject of assignment emails"},
	{Name: "mail_header", Default: "Here are your assignments for the day.", Desc: "Text above the site list"},
	{Name: "mail_footer", Default: "", Desc: "Text below the site list"},
	{Name: "mail_timezone", Default: "", Desc: "IANA time zone for site start times in emails (blank: UTC)"},

	// Dispatch
	{Name: "notify_timeout", Default: "15s", Desc: "Per-worker notifier deadline (e.g., 15s, 1m)"},
	{Name: "dispatch_concurrency", Default: 4, Desc: "Notifier calls in flight during a bulk send"},
	{Name: "dispatch_confirm_ttl", Default: "5m", Desc: "Lifetime of a bulk send confirmation token"},
	{Name: "dispatch_log_single", Default: true, Desc: "Record single sends in the send log"},

	// Day scopes
	{Name: "scope_idle_ttl", Default: "2h", Desc: "Evict a loaded day after this much idle time"},

	// Audit logging settings
	{Name: "audit_log_assignment", Default: "all", Desc: "Assignment event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_dispatch", Default: "all", Desc: "Dispatch event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Metrics
	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics on /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, SITECREW_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "SITECREW", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		Notifier: appValues.String("notifier"),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),
		MailSubject:  appValues.String("mail_subject"),
		MailHeader:   appValues.String("mail_header"),
		MailFooter:   appValues.String("mail_footer"),
		MailTimezone: appValues.String("mail_timezone"),

		// Dispatch
		NotifyTimeout:       appValues.Duration("notify_timeout", 15*time.Second),
		DispatchConcurrency: appValues.Int("dispatch_concurrency"),
		DispatchConfirmTTL:  appValues.Duration("dispatch_confirm_ttl", 5*time.Minute),
		DispatchLogSingle:   appValues.Bool("dispatch_log_single"),

		ScopeIdleTTL: appValues.Duration("scope_idle_ttl", 2*time.Hour),

		// Audit logging
		AuditLogAssignment: appValues.String("audit_log_assignment"),
		AuditLogDispatch:   appValues.String("audit_log_dispatch"),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI format is checked here to catch configuration errors
// early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	switch appCfg.Notifier {
	case notifierLog:
	case notifierMail:
		if appCfg.MailSMTPHost == "" || appCfg.MailSMTPPort <= 0 {
			return fmt.Errorf("notifier=mail requires mail_smtp_host and mail_smtp_port")
		}
		if appCfg.MailFrom == "" {
			return fmt.Errorf("notifier=mail requires mail_from")
		}
	default:
		return fmt.Errorf("notifier must be %q or %q, got %q", notifierMail, notifierLog, appCfg.Notifier)
	}
	if appCfg.MailTimezone != "" {
		if _, err := time.LoadLocation(appCfg.MailTimezone); err != nil {
			return fmt.Errorf("invalid mail_timezone: %w", err)
		}
	}

	if appCfg.DispatchConcurrency <= 0 {
		return fmt.Errorf("dispatch_concurrency must be positive, got %d", appCfg.DispatchConcurrency)
	}
	if appCfg.NotifyTimeout <= 0 || appCfg.DispatchConfirmTTL <= 0 || appCfg.ScopeIdleTTL <= 0 {
		return fmt.Errorf("notify_timeout, dispatch_confirm_ttl and scope_idle_ttl must be positive")
	}

	for name, v := range map[string]string{
		"audit_log_assignment": appCfg.AuditLogAssignment,
		"audit_log_dispatch":   appCfg.AuditLogDispatch,
	} {
		switch v {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be all, db, log or off, got %q", name, v)
		}
	}

	return nil
}
