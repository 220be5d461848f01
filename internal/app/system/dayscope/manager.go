// internal/app/system/dayscope/manager.go
package dayscope

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.uber.org/zap"
)

// WorkerSource loads the roster for a date in registry order.
type WorkerSource interface {
	ListByDate(ctx context.Context, date string) ([]models.Worker, error)
}

// SiteSource loads the sites scheduled for a date.
type SiteSource interface {
	ListByDate(ctx context.Context, date string) ([]models.Site, error)
}

// Manager owns one Scope per date. Scopes are loaded on first use and kept
// in memory until evicted or reloaded.
type Manager struct {
	workers WorkerSource
	sites   SiteSource
	log     *zap.Logger

	mu     sync.Mutex
	scopes map[string]*entry
}

type entry struct {
	ready chan struct{}
	scope *Scope
	err   error
}

// NewManager creates a Manager backed by the given sources.
func NewManager(workers WorkerSource, sites SiteSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		workers: workers,
		sites:   sites,
		log:     logger,
		scopes:  make(map[string]*entry),
	}
}

// Get returns the scope for date, loading it if needed. Concurrent callers
// for the same date share one load.
func (m *Manager) Get(ctx context.Context, date string) (*Scope, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e, ok := m.scopes[date]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		m.scopes[date] = e
		m.mu.Unlock()

		e.scope, e.err = m.load(ctx, date)
		if e.err != nil {
			m.mu.Lock()
			if m.scopes[date] == e {
				delete(m.scopes, date)
			}
			m.mu.Unlock()
		}
		close(e.ready)
	} else {
		m.mu.Unlock()
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.scope, nil
}

func (m *Manager) load(ctx context.Context, date string) (*Scope, error) {
	workers, err := m.workers.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load workers for %s: %w", date, err)
	}
	sites, err := m.sites.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load sites for %s: %w", date, err)
	}
	sc, err := NewScope(date, workers, sites)
	if err != nil {
		return nil, fmt.Errorf("build day %s: %w", date, err)
	}
	for _, rp := range sc.Repairs() {
		m.log.Warn("cleared invalid slot on load",
			zap.String("date", date),
			zap.String("site_id", rp.SiteID.Hex()),
			zap.Int("slot", rp.Slot),
			zap.String("worker_id", rp.WorkerID.Hex()),
			zap.String("reason", rp.Reason))
	}
	m.log.Info("day loaded",
		zap.String("date", date),
		zap.Int("workers", len(workers)),
		zap.Int("sites", len(sites)))
	return sc, nil
}

// Reload discards the cached scope for date and loads it again. It refuses
// while the current scope has deliveries in flight.
func (m *Manager) Reload(ctx context.Context, date string) (*Scope, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if err := m.drop(date); err != nil {
		return nil, err
	}
	return m.Get(ctx, date)
}

func (m *Manager) drop(date string) error {
	m.mu.Lock()
	e, ok := m.scopes[date]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-e.ready
	if e.scope != nil {
		if err := e.scope.retire(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.scopes[date] == e {
		delete(m.scopes, date)
	}
	m.mu.Unlock()
	return nil
}

// Evict drops scopes that have not been used within idle and have nothing in
// flight. It returns the number of scopes dropped.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	var stale []string
	for date, e := range m.scopes {
		select {
		case <-e.ready:
		default:
			continue // still loading
		}
		if e.scope != nil && e.scope.LastUsed().Before(cutoff) {
			stale = append(stale, date)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, date := range stale {
		if err := m.drop(date); err == nil {
			n++
		}
	}
	return n
}

// Loaded returns the dates currently held in memory.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.scopes))
	for date := range m.scopes {
		out = append(out, date)
	}
	return out
}
