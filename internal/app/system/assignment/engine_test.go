package assignment_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/sitecrew/internal/app/system/assignment"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/sitecrew/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testDate = "2026-03-02"

type day struct {
	scope   *dayscope.Scope
	eng     *assignment.Engine
	workers []models.Worker
	sites   []models.Site
}

func newDay(t *testing.T) day {
	t.Helper()
	workers, sites := testutil.ScenarioDay(testDate)
	scope, err := dayscope.NewScope(testDate, workers, sites)
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}
	return day{scope: scope, eng: assignment.New(scope), workers: workers, sites: sites}
}

func contains(ws []models.Worker, id primitive.ObjectID) bool {
	for _, w := range ws {
		if w.ID == id {
			return true
		}
	}
	return false
}

func TestScenario(t *testing.T) {
	d := newDay(t)
	nagata := d.workers[0]
	site1, site2 := d.sites[0], d.sites[1]

	if _, err := d.eng.SetSlot(site1.ID, 0, &nagata.ID); err != nil {
		t.Fatalf("SetSlot: %v", err)
	}

	for slot := 0; slot < 4; slot++ {
		eligible, err := d.eng.EligibleFor(site2.ID, slot)
		if err != nil {
			t.Fatalf("EligibleFor(site-2, %d): %v", slot, err)
		}
		if contains(eligible, nagata.ID) {
			t.Errorf("EligibleFor(site-2, %d) includes 長田", slot)
		}
		if len(eligible) != 4 {
			t.Errorf("EligibleFor(site-2, %d) = %d workers, want 4", slot, len(eligible))
		}
	}

	own, err := d.eng.EligibleFor(site1.ID, 0)
	if err != nil {
		t.Fatalf("EligibleFor(site-1, 0): %v", err)
	}
	if !contains(own, nagata.ID) {
		t.Error("EligibleFor(site-1, 0) must keep the current occupant")
	}

	if st, _ := d.eng.Status(site1.ID); st != models.Partial {
		t.Errorf("Status(site-1) = %s, want partial", st)
	}

	for slot := 1; slot < 4; slot++ {
		w := d.workers[slot]
		if _, err := d.eng.SetSlot(site1.ID, slot, &w.ID); err != nil {
			t.Fatalf("SetSlot(site-1, %d): %v", slot, err)
		}
	}
	if st, _ := d.eng.Status(site1.ID); st != models.Complete {
		t.Errorf("Status(site-1) = %s, want complete", st)
	}
	if st, _ := d.eng.Status(site2.ID); st != models.Unassigned {
		t.Errorf("Status(site-2) = %s, want unassigned", st)
	}
}

func TestSetSlot_RejectsDoubleBooking(t *testing.T) {
	d := newDay(t)
	w := d.workers[1]

	if _, err := d.eng.SetSlot(d.sites[0].ID, 0, &w.ID); err != nil {
		t.Fatalf("first SetSlot: %v", err)
	}

	_, err := d.eng.SetSlot(d.sites[1].ID, 2, &w.ID)
	if !errors.Is(err, assignment.ErrDuplicateAssignment) {
		t.Fatalf("error = %v, want ErrDuplicateAssignment", err)
	}
	var dup *assignment.DuplicateError
	if !errors.As(err, &dup) || dup.SiteID != d.sites[0].ID || dup.Slot != 0 {
		t.Errorf("DuplicateError = %+v, want site-1 slot 0", dup)
	}

	// Same site, different slot is also a double booking.
	if _, err := d.eng.SetSlot(d.sites[0].ID, 1, &w.ID); !errors.Is(err, assignment.ErrDuplicateAssignment) {
		t.Errorf("same-site error = %v, want ErrDuplicateAssignment", err)
	}

	occ := d.eng.Occupancy()
	if len(occ[w.ID]) != 1 {
		t.Errorf("worker occupies %d cells, want 1", len(occ[w.ID]))
	}
}

func TestSetSlot_DisabledSlot(t *testing.T) {
	d := newDay(t)
	site3 := d.sites[2] // requires 3, slot 3 disabled
	w := d.workers[0]

	if _, err := d.eng.SetSlot(site3.ID, 3, &w.ID); !errors.Is(err, assignment.ErrInvalidSlot) {
		t.Errorf("disabled slot error = %v, want ErrInvalidSlot", err)
	}
	if _, err := d.eng.SetSlot(site3.ID, 3, nil); !errors.Is(err, assignment.ErrInvalidSlot) {
		t.Errorf("clearing disabled slot error = %v, want ErrInvalidSlot", err)
	}
	for _, slot := range []int{-1, 4, 9} {
		if _, err := d.eng.SetSlot(site3.ID, slot, &w.ID); !errors.Is(err, assignment.ErrInvalidSlot) {
			t.Errorf("slot %d error = %v, want ErrInvalidSlot", slot, err)
		}
	}
	if _, err := d.eng.EligibleFor(site3.ID, 3); !errors.Is(err, assignment.ErrInvalidSlot) {
		t.Errorf("EligibleFor(disabled) error = %v, want ErrInvalidSlot", err)
	}
}

func TestSetSlot_UnknownReferences(t *testing.T) {
	d := newDay(t)
	ghost := primitive.NewObjectID()

	if _, err := d.eng.SetSlot(d.sites[0].ID, 0, &ghost); !errors.Is(err, dayscope.ErrUnknownWorker) {
		t.Errorf("unknown worker error = %v", err)
	}
	if _, err := d.eng.SetSlot(primitive.NewObjectID(), 0, nil); !errors.Is(err, dayscope.ErrUnknownSite) {
		t.Errorf("unknown site error = %v", err)
	}
}

func TestSetSlot_IdempotentAndClear(t *testing.T) {
	d := newDay(t)
	site := d.sites[0]
	w := d.workers[2]

	ch, err := d.eng.SetSlot(site.ID, 1, &w.ID)
	if err != nil || !ch.Changed || ch.Previous != nil {
		t.Fatalf("first SetSlot = %+v, %v", ch, err)
	}

	again, err := d.eng.SetSlot(site.ID, 1, &w.ID)
	if err != nil {
		t.Fatalf("repeat SetSlot: %v", err)
	}
	if again.Changed {
		t.Error("repeat SetSlot reported a change")
	}

	cleared, err := d.eng.SetSlot(site.ID, 1, nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !cleared.Changed || cleared.Previous == nil || *cleared.Previous != w.ID || cleared.Slots[1] != nil {
		t.Errorf("clear = %+v", cleared)
	}
	if _, err := d.eng.SetSlot(site.ID, 1, nil); err != nil {
		t.Errorf("clearing empty slot: %v", err)
	}

	// A cleared worker becomes eligible elsewhere.
	eligible, _ := d.eng.EligibleFor(d.sites[1].ID, 0)
	if !contains(eligible, w.ID) {
		t.Error("cleared worker missing from eligibility")
	}
}

func TestSetSlot_ReplaceOccupant(t *testing.T) {
	d := newDay(t)
	site := d.sites[1]
	a, b := d.workers[0], d.workers[1]

	if _, err := d.eng.SetSlot(site.ID, 0, &a.ID); err != nil {
		t.Fatal(err)
	}
	ch, err := d.eng.SetSlot(site.ID, 0, &b.ID)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if ch.Previous == nil || *ch.Previous != a.ID {
		t.Errorf("previous = %v, want %s", ch.Previous, a.ID.Hex())
	}
	if occ := d.eng.Occupancy(); len(occ[a.ID]) != 0 {
		t.Error("replaced worker still seated")
	}
}

func TestCommit_PersistSeesAppliedChange(t *testing.T) {
	d := newDay(t)
	site := d.sites[0]
	w := d.workers[0]

	var calls int
	ch, err := d.eng.Commit(site.ID, 0, &w.ID, func(ch assignment.Change) error {
		calls++
		if ch.Current == nil || *ch.Current != w.ID || ch.Slots[0] == nil {
			t.Errorf("persist got %+v", ch)
		}
		return nil
	})
	if err != nil || !ch.Changed {
		t.Fatalf("Commit = %+v, %v", ch, err)
	}

	// A no-op never reaches storage.
	if _, err := d.eng.Commit(site.ID, 0, &w.ID, func(assignment.Change) error {
		calls++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("persist calls = %d, want 1", calls)
	}
}

func TestCommit_PersistFailureRevertsCell(t *testing.T) {
	d := newDay(t)
	site := d.sites[0]
	a, b := d.workers[0], d.workers[1]

	if _, err := d.eng.SetSlot(site.ID, 0, &a.ID); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("write failed")
	ch, err := d.eng.Commit(site.ID, 0, &b.ID, func(assignment.Change) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped write failure", err)
	}
	if ch.Changed || ch.Current == nil || *ch.Current != a.ID {
		t.Errorf("change after failure = %+v", ch)
	}

	occ := d.eng.Occupancy()
	if len(occ[a.ID]) != 1 || len(occ[b.ID]) != 0 {
		t.Errorf("occupancy after failed persist = %v", occ)
	}
}

func TestWorkerAssignedSites(t *testing.T) {
	d := newDay(t)
	w := d.workers[3]

	sites, err := d.eng.WorkerAssignedSites(w.Name)
	if err != nil || len(sites) != 0 {
		t.Fatalf("unassigned worker sites = %v, %v", sites, err)
	}

	if _, err := d.eng.SetSlot(d.sites[2].ID, 2, &w.ID); err != nil {
		t.Fatal(err)
	}
	sites, err = d.eng.WorkerAssignedSites("tanaka")
	if err != nil {
		t.Fatalf("WorkerAssignedSites: %v", err)
	}
	if len(sites) != 1 || sites[0].ID != d.sites[2].ID {
		t.Errorf("sites = %+v, want site-3", sites)
	}

	if _, err := d.eng.WorkerAssignedSites("nobody"); !errors.Is(err, dayscope.ErrUnknownWorker) {
		t.Errorf("unknown name error = %v", err)
	}
}

func TestSetSlot_ConcurrentSameWorker(t *testing.T) {
	d := newDay(t)
	w := d.workers[4]

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, s := range d.sites {
		for slot := 0; slot < s.RequiredSlots; slot++ {
			wg.Add(1)
			go func(siteID primitive.ObjectID, slot int) {
				defer wg.Done()
				if _, err := d.eng.SetSlot(siteID, slot, &w.ID); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(s.ID, slot)
		}
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful placements = %d, want 1", wins)
	}
	if occ := d.eng.Occupancy(); len(occ[w.ID]) != 1 {
		t.Errorf("worker occupies %d cells, want 1", len(occ[w.ID]))
	}
}

func TestBoard(t *testing.T) {
	d := newDay(t)
	w := d.workers[0]
	_, _ = d.eng.SetSlot(d.sites[2].ID, 1, &w.ID)

	b := d.eng.Board()
	if b.Date != testDate || len(b.Sites) != 3 || len(b.Workers) != 5 {
		t.Fatalf("board = %+v", b)
	}
	site3 := b.Sites[2]
	if site3.Status != models.Partial {
		t.Errorf("site-3 status = %s, want partial", site3.Status)
	}
	if !site3.Cells[3].Disabled || site3.Cells[2].Disabled {
		t.Errorf("site-3 cells = %+v, want only slot 3 disabled", site3.Cells)
	}
	if site3.Cells[1].WorkerName != "長田" {
		t.Errorf("site-3 slot 1 = %q, want 長田", site3.Cells[1].WorkerName)
	}
}
