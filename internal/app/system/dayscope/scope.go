// internal/app/system/dayscope/scope.go
package dayscope

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/sitecrew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repair describes a slot that NewScope cleared because the loaded data
// violated a day-scope invariant.
type Repair struct {
	SiteID   primitive.ObjectID
	Slot     int
	WorkerID primitive.ObjectID
	Reason   string
}

// Repair reasons.
const (
	RepairDangling  = "worker not in roster"
	RepairDuplicate = "worker already holds another slot"
)

// Scope is the unit of consistency for one date: the roster, the sites and
// the lock that serializes every read-then-write against them.
type Scope struct {
	Date string

	mu      sync.RWMutex
	workers *WorkerRegistry
	sites   *SiteRegistry
	repairs []Repair
	retired bool

	lastUsed atomic.Int64
}

// NewScope builds a scope from loaded records. Sites are normalized to
// MaxSlots cells with RequiredSlots clamped to 1..MaxSlots; disabled cells are
// cleared. Cells that reference unknown workers, or a worker already seated
// in an earlier cell, are cleared and reported by Repairs.
func NewScope(date string, workers []models.Worker, sites []models.Site) (*Scope, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	wr, err := newWorkerRegistry(workers)
	if err != nil {
		return nil, err
	}

	normalized := make([]models.Site, len(sites))
	for i, s := range sites {
		normalized[i] = normalizeSite(s)
	}
	sr, err := newSiteRegistry(normalized)
	if err != nil {
		return nil, err
	}

	sc := &Scope{Date: date, workers: wr, sites: sr}

	seated := make(map[primitive.ObjectID]struct{})
	var clear []Repair
	sr.Occupied(func(siteID primitive.ObjectID, slot int, workerID primitive.ObjectID) {
		switch {
		case !wr.Has(workerID):
			clear = append(clear, Repair{SiteID: siteID, Slot: slot, WorkerID: workerID, Reason: RepairDangling})
		default:
			if _, dup := seated[workerID]; dup {
				clear = append(clear, Repair{SiteID: siteID, Slot: slot, WorkerID: workerID, Reason: RepairDuplicate})
				return
			}
			seated[workerID] = struct{}{}
		}
	})
	for _, rp := range clear {
		_ = sr.SetSlot(rp.SiteID, rp.Slot, nil)
	}
	sc.repairs = clear
	sc.touch()
	return sc, nil
}

func normalizeSite(s models.Site) models.Site {
	if s.RequiredSlots < 1 {
		s.RequiredSlots = 1
	}
	if s.RequiredSlots > models.MaxSlots {
		s.RequiredSlots = models.MaxSlots
	}
	slots := make([]*primitive.ObjectID, models.MaxSlots)
	for i := 0; i < s.RequiredSlots && i < len(s.Slots); i++ {
		if w := s.Slots[i]; w != nil && !w.IsZero() {
			id := *w
			slots[i] = &id
		}
	}
	s.Slots = slots
	return s
}

// View runs fn holding the read lock.
func (s *Scope) View(fn func(workers *WorkerRegistry, sites *SiteRegistry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.touch()
	return fn(s.workers, s.sites)
}

// Update runs fn holding the write lock. Everything fn checks and then
// changes happens in one critical section. A scope that has been replaced
// by its Manager rejects updates with ErrRetired.
func (s *Scope) Update(fn func(workers *WorkerRegistry, sites *SiteRegistry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return ErrRetired
	}
	s.touch()
	return fn(s.workers, s.sites)
}

// Replace retires the scope and runs fn holding the write lock. It fails
// with ErrBusy while deliveries are in flight. fn sees the live roster and
// sites, and no Update can start on the scope afterwards, so whatever fn
// writes to the store cannot be overtaken by this scope. The caller loads the
// day again through its Manager once fn returns, whether or not fn failed.
func (s *Scope) Replace(fn func(workers *WorkerRegistry, sites *SiteRegistry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return ErrRetired
	}
	if s.workers.InFlight() > 0 {
		return ErrBusy
	}
	s.retired = true
	s.touch()
	return fn(s.workers, s.sites)
}

// retire marks the scope read-only unless a dispatch still holds claims.
func (s *Scope) retire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers.InFlight() > 0 {
		return ErrBusy
	}
	s.retired = true
	return nil
}

// Repairs returns the cells cleared while building the scope.
func (s *Scope) Repairs() []Repair {
	out := make([]Repair, len(s.repairs))
	copy(out, s.repairs)
	return out
}

// LastUsed returns the time of the most recent View or Update.
func (s *Scope) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Scope) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// ValidateDate checks that date is a calendar day in YYYY-MM-DD form.
func ValidateDate(date string) error {
	t, err := time.Parse(DateLayout, date)
	if err != nil || t.Format(DateLayout) != date {
		return ErrInvalidDate
	}
	return nil
}

// DateLayout is the time layout of day keys.
const DateLayout = "2006-01-02"
