// internal/app/system/dispatch/controller.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/system/assignment"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/app/system/metrics"
	"github.com/dalemusser/sitecrew/internal/app/system/notify"
	"github.com/dalemusser/sitecrew/internal/app/system/timeouts"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SendLogAppender appends audit entries. It never updates or deletes.
type SendLogAppender interface {
	Append(ctx context.Context, entry models.SendLog) (models.SendLog, error)
}

// StatusStore persists concluded worker statuses.
type StatusStore interface {
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.WorkerStatus, lastErr string) error
}

// Config tunes the controller. Zero values fall back to defaults.
type Config struct {
	NotifyTimeout time.Duration // per-worker notifier deadline
	Concurrency   int           // notifier calls in flight per batch
	ConfirmTTL    time.Duration // lifetime of a Preview token
	LogSingle     bool          // append a SendLog for DispatchOne
}

// Defaults.
const (
	DefaultNotifyTimeout = 15 * time.Second
	DefaultConcurrency   = 4
	DefaultConfirmTTL    = 5 * time.Minute
)

// Controller drives the worker status machine
//
//	unsent|error --claim--> sending --ok--> sent
//	                               \--fail--> error
//
// for any day-scope. One Controller serves every date.
type Controller struct {
	notifier notify.Notifier
	logs     SendLogAppender
	statuses StatusStore
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	tokens map[string]pendingConfirm
}

type pendingConfirm struct {
	date    string
	expires time.Time
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithStatusStore persists each concluded status.
func WithStatusStore(s StatusStore) Option { return func(c *Controller) { c.statuses = s } }

// WithMetrics records deliveries and batches.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// New creates a Controller.
func New(n notify.Notifier, logs SendLogAppender, cfg Config, logger *zap.Logger, opts ...Option) *Controller {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ConfirmTTL <= 0 {
		cfg.ConfirmTTL = DefaultConfirmTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		notifier: n,
		logs:     logs,
		log:      logger,
		cfg:      cfg,
		now:      time.Now,
		tokens:   make(map[string]pendingConfirm),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Plan is what a confirmed DispatchAll would notify right now.
type Plan struct {
	Date       string          `json:"date"`
	Token      string          `json:"confirm_token"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Recipients []models.Worker `json:"recipients"`
}

// Preview lists the workers a bulk send would pick up and issues a one-time
// confirmation token for DispatchAll. It returns ErrNothingToSend, and no
// token, when nobody is eligible.
func (c *Controller) Preview(scope *dayscope.Scope) (Plan, error) {
	plan := Plan{Date: scope.Date}
	_ = scope.View(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		for _, w := range workers.List() {
			if w.Status.Dispatchable() {
				plan.Recipients = append(plan.Recipients, w)
			}
		}
		return nil
	})
	if len(plan.Recipients) == 0 {
		return plan, ErrNothingToSend
	}

	now := c.now()
	plan.Token = uuid.NewString()
	plan.ExpiresAt = now.Add(c.cfg.ConfirmTTL)

	c.mu.Lock()
	for tok, p := range c.tokens {
		if now.After(p.expires) {
			delete(c.tokens, tok)
		}
	}
	c.tokens[plan.Token] = pendingConfirm{date: scope.Date, expires: plan.ExpiresAt}
	c.mu.Unlock()
	return plan, nil
}

func (c *Controller) consume(token, date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.tokens[token]
	if !ok {
		return false
	}
	delete(c.tokens, token)
	return p.date == date && !c.now().After(p.expires)
}

type target struct {
	worker models.Worker
	sites  []models.Site
}

type outcome struct {
	err     error
	timeout bool
}

// DispatchAll notifies every unsent or failed worker of the day and appends
// one batch SendLog. token must come from Preview for the same date and is
// consumed when the workers are claimed; a retired scope leaves it unspent.
//
// Workers are claimed under the scope lock before any delivery starts, so a
// concurrent call sees nothing to send for them. Delivery failures and
// timeouts mark the worker as error and do not stop the batch.
func (c *Controller) DispatchAll(ctx context.Context, scope *dayscope.Scope, token string) (models.SendLog, error) {
	entry := models.SendLog{Date: scope.Date, Kind: models.SendLogBatch}

	if token == "" {
		c.metrics.Batch("unconfirmed")
		return entry, ErrNotConfirmed
	}

	// The token is spent inside the claim so a retired scope leaves it usable.
	var targets []target
	err := scope.Update(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		if !c.consume(token, scope.Date) {
			return ErrNotConfirmed
		}
		for _, w := range workers.List() {
			if !w.Status.Dispatchable() {
				continue
			}
			if err := workers.SetStatus(w.ID, models.WorkerSending, ""); err != nil {
				return err
			}
			targets = append(targets, target{worker: w, sites: assignment.SitesHeldBy(sites, w.ID)})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotConfirmed) {
			c.metrics.Batch("unconfirmed")
		}
		return entry, err
	}
	if len(targets) == 0 {
		c.metrics.Batch("empty")
		entry.Timestamp = c.now().UTC()
		return entry, ErrNothingToSend
	}

	var (
		mu     sync.Mutex
		g      errgroup.Group
		okN    int
		failN  int
		failed []string
	)
	g.SetLimit(c.cfg.Concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			out := c.attempt(ctx, t)
			c.conclude(ctx, scope, t.worker, out)
			mu.Lock()
			if out.err == nil {
				okN++
			} else {
				failN++
				failed = append(failed, t.worker.Name)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	entry.Timestamp = c.now().UTC()
	entry.TotalRecipients = len(targets)
	entry.SuccessCount = okN
	entry.ErrorCount = failN
	c.metrics.Batch(models.SendLogBatch)

	c.log.Info("dispatch batch complete",
		zap.String("date", scope.Date),
		zap.Int("total", entry.TotalRecipients),
		zap.Int("sent", entry.SuccessCount),
		zap.Int("errors", entry.ErrorCount),
		zap.Strings("failed", failed))

	return c.appendLog(ctx, entry)
}

// SingleOptions tunes DispatchOne.
type SingleOptions struct {
	Force bool // resend a worker that is already sent
}

// DispatchOne notifies one worker, applying the same transitions as a bulk
// send. A failed delivery returns the updated worker together with an error
// wrapping ErrDeliveryFailure.
func (c *Controller) DispatchOne(ctx context.Context, scope *dayscope.Scope, workerID primitive.ObjectID, opts SingleOptions) (models.Worker, error) {
	var t target
	err := scope.Update(func(workers *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		w, ok := workers.Get(workerID)
		if !ok {
			return dayscope.ErrUnknownWorker
		}
		switch {
		case w.Status == models.WorkerSending:
			return ErrInFlight
		case w.Status == models.WorkerSent && !opts.Force:
			return ErrAlreadySent
		}
		if err := workers.SetStatus(w.ID, models.WorkerSending, ""); err != nil {
			return err
		}
		t = target{worker: w, sites: assignment.SitesHeldBy(sites, w.ID)}
		return nil
	})
	if err != nil {
		return models.Worker{}, err
	}

	out := c.attempt(ctx, t)
	c.conclude(ctx, scope, t.worker, out)
	c.metrics.Batch(models.SendLogSingle)

	if c.cfg.LogSingle {
		entry := models.SendLog{
			Date:            scope.Date,
			Kind:            models.SendLogSingle,
			Timestamp:       c.now().UTC(),
			TotalRecipients: 1,
			WorkerID:        &workerID,
		}
		if out.err == nil {
			entry.SuccessCount = 1
		} else {
			entry.ErrorCount = 1
		}
		if _, err := c.appendLog(ctx, entry); err != nil {
			c.log.Error("failed to append single send log", zap.Error(err), zap.String("worker_id", workerID.Hex()))
		}
	}

	var updated models.Worker
	_ = scope.View(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		updated, _ = workers.Get(workerID)
		return nil
	})
	if out.err != nil {
		return updated, out.err
	}
	return updated, nil
}

// attempt calls the notifier under the per-worker deadline. It returns when
// the deadline passes even if the notifier ignores its context.
func (c *Controller) attempt(ctx context.Context, t target) outcome {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.NotifyTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		done <- c.notifier.Send(cctx, t.worker, t.sites)
	}()

	var out outcome
	select {
	case err := <-done:
		if err != nil {
			out.timeout = errors.Is(err, context.DeadlineExceeded)
			out.err = fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
		}
	case <-cctx.Done():
		out.timeout = errors.Is(cctx.Err(), context.DeadlineExceeded)
		if out.timeout {
			out.err = fmt.Errorf("%w: timed out after %s", ErrDeliveryFailure, c.cfg.NotifyTimeout)
		} else {
			out.err = fmt.Errorf("%w: %v", ErrDeliveryFailure, cctx.Err())
		}
	}

	label := "sent"
	switch {
	case out.timeout:
		label = "timeout"
	case out.err != nil:
		label = "error"
	}
	c.metrics.Delivery(label, time.Since(start))
	return out
}

// conclude moves a claimed worker to sent or error and persists the result.
func (c *Controller) conclude(ctx context.Context, scope *dayscope.Scope, w models.Worker, out outcome) {
	status, reason := models.WorkerSent, ""
	if out.err != nil {
		status, reason = models.WorkerError, out.err.Error()
		c.log.Warn("delivery failed",
			zap.String("date", scope.Date),
			zap.String("worker_id", w.ID.Hex()),
			zap.String("worker", w.Name),
			zap.Bool("timeout", out.timeout),
			zap.Error(out.err))
	}

	// The store is written first so the claim, which blocks Reload and
	// Replace, is held until the outcome is durable.
	if c.statuses != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
		if err := c.statuses.SetStatus(pctx, w.ID, status, reason); err != nil {
			c.log.Error("failed to persist worker status",
				zap.Error(err),
				zap.String("worker_id", w.ID.Hex()),
				zap.String("status", string(status)))
		}
		cancel()
	}

	// Claimed workers block retirement, so the scope is still live here.
	if err := scope.Update(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		return workers.SetStatus(w.ID, status, reason)
	}); err != nil {
		c.log.Error("failed to record worker status", zap.Error(err), zap.String("worker_id", w.ID.Hex()))
	}
}

func (c *Controller) appendLog(ctx context.Context, entry models.SendLog) (models.SendLog, error) {
	if c.logs == nil {
		return entry, nil
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()
	saved, err := c.logs.Append(actx, entry)
	if err != nil {
		return entry, fmt.Errorf("record send log: %w", err)
	}
	return saved, nil
}
