// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries everything specific to SiteCrew: the Mongo connection,
// how workers are notified, dispatch tuning and audit destinations.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in the driver pool

	// Notifier selection: "mail" sends SMTP email, "log" only logs (development)
	Notifier string

	// Email/SMTP configuration (used when Notifier is "mail")
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address
	MailFromName string // From display name
	MailSubject  string // Subject line of assignment emails
	MailHeader   string // Text placed above the site list
	MailFooter   string // Text placed below the site list
	MailTimezone string // IANA zone site start times are shown in (blank keeps UTC)

	// Dispatch
	NotifyTimeout       time.Duration // Per-worker notifier deadline
	DispatchConcurrency int           // Notifier calls in flight per batch
	DispatchConfirmTTL  time.Duration // Lifetime of a preview confirmation token
	DispatchLogSingle   bool          // Append a send log entry for single sends

	// Day scopes
	ScopeIdleTTL time.Duration // Idle time after which a loaded day is evicted

	// Audit logging destinations: all, db, log or off
	AuditLogAssignment string
	AuditLogDispatch   string

	// Expose Prometheus metrics on /metrics
	MetricsEnabled bool
}
