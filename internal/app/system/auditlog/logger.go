// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Assignment controls logging for slot changes, reloads and roster imports.
	Assignment string
	// Dispatch controls logging for bulk and single sends.
	Dispatch string
}

// Store is the part of audit.Store the logger writes to.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB (via audit.Store) and structured
// logs (via zap) according to Config.
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.String("date", event.Date),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.SiteID != nil {
		fields = append(fields, zap.String("site_id", event.SiteID.Hex()))
	}
	if event.WorkerID != nil {
		fields = append(fields, zap.String("worker_id", event.WorkerID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil logger is a no-op so handlers and tests can omit it.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAssignment:
		setting = l.config.Assignment
	case audit.CategoryDispatch:
		setting = l.config.Dispatch
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Assignment Events ---

// SlotChanged logs an applied SetSlot. current nil means the slot was cleared.
func (l *Logger) SlotChanged(ctx context.Context, r *http.Request, date string, siteID primitive.ObjectID, slot int, previous, current *primitive.ObjectID) {
	eventType := audit.EventSlotAssigned
	workerID := current
	if current == nil {
		eventType = audit.EventSlotCleared
		workerID = previous
	}
	details := map[string]string{"slot": strconv.Itoa(slot)}
	if previous != nil && current != nil {
		details["replaced_worker_id"] = previous.Hex()
	}
	l.Log(ctx, audit.Event{
		Date:      date,
		Category:  audit.CategoryAssignment,
		EventType: eventType,
		SiteID:    &siteID,
		WorkerID:  workerID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details:   details,
	})
}

// SlotRejected logs a SetSlot that failed validation.
func (l *Logger) SlotRejected(ctx context.Context, r *http.Request, date string, siteID primitive.ObjectID, slot int, workerID *primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Date:          date,
		Category:      audit.CategoryAssignment,
		EventType:     audit.EventSlotAssigned,
		SiteID:        &siteID,
		WorkerID:      workerID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"slot": strconv.Itoa(slot)},
	})
}

// DayReloaded logs a reload of a day-scope from the store.
func (l *Logger) DayReloaded(ctx context.Context, r *http.Request, date string, workers, sites int) {
	l.Log(ctx, audit.Event{
		Date:      date,
		Category:  audit.CategoryAssignment,
		EventType: audit.EventDayReloaded,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details: map[string]string{
			"workers": strconv.Itoa(workers),
			"sites":   strconv.Itoa(sites),
		},
	})
}

// RosterImported logs a roster replacement.
func (l *Logger) RosterImported(ctx context.Context, r *http.Request, date, source string, workers int) {
	l.Log(ctx, audit.Event{
		Date:      date,
		Category:  audit.CategoryAssignment,
		EventType: audit.EventRosterImport,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details: map[string]string{
			"source":  source,
			"workers": strconv.Itoa(workers),
		},
	})
}

// --- Dispatch Events ---

// DispatchBatch logs a completed bulk send.
func (l *Logger) DispatchBatch(ctx context.Context, r *http.Request, entry models.SendLog) {
	l.Log(ctx, audit.Event{
		Date:      entry.Date,
		Category:  audit.CategoryDispatch,
		EventType: audit.EventDispatchBatch,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   entry.ErrorCount == 0,
		Details: map[string]string{
			"total":   strconv.Itoa(entry.TotalRecipients),
			"success": strconv.Itoa(entry.SuccessCount),
			"errors":  strconv.Itoa(entry.ErrorCount),
		},
	})
}

// DispatchSingle logs a single-worker send. reason is empty on success.
func (l *Logger) DispatchSingle(ctx context.Context, r *http.Request, date string, workerID primitive.ObjectID, forced bool, reason string) {
	l.Log(ctx, audit.Event{
		Date:          date,
		Category:      audit.CategoryDispatch,
		EventType:     audit.EventDispatchSingle,
		WorkerID:      &workerID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       reason == "",
		FailureReason: reason,
		Details:       map[string]string{"forced": strconv.FormatBool(forced)},
	})
}
