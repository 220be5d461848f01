package days_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/features/days"
	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	dispatchsys "github.com/dalemusser/sitecrew/internal/app/system/dispatch"
	"github.com/dalemusser/sitecrew/internal/app/system/notify"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/sitecrew/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testDate = "2026-03-02"

type env struct {
	router  chi.Router
	days    *dayscope.Manager
	workers []models.Worker
	sites   []models.Site
	wStore  *testutil.MemWorkers
	sStore  *testutil.MemSites
}

func newEnv(t *testing.T) *env {
	t.Helper()
	workers, sites := testutil.ScenarioDay(testDate)
	e := &env{
		workers: workers,
		sites:   sites,
		wStore:  testutil.NewMemWorkers(workers...),
		sStore:  testutil.NewMemSites(sites...),
	}
	logger := zap.NewNop()
	e.days = dayscope.NewManager(e.wStore, e.sStore, logger)
	h := days.NewHandler(e.days, e.sStore, e.wStore, nil, nil, nil, uierrors.NewErrorLogger(logger), logger)
	e.router = days.Routes(h)
	return e
}

func (e *env) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func slotURL(site primitive.ObjectID, slot string) string {
	return "/" + testDate + "/sites/" + site.Hex() + "/slots/" + slot
}

func assign(id primitive.ObjectID) map[string]any {
	return map[string]any{"worker_id": id.Hex()}
}

var clearSlot = map[string]any{"worker_id": nil}

func TestBoard(t *testing.T) {
	e := newEnv(t)

	rec := e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/board"))
	rec.AssertStatus(t, http.StatusOK)

	var board struct {
		Date  string `json:"date"`
		Sites []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"sites"`
		Workers []models.Worker `json:"workers"`
	}
	rec.DecodeJSON(t, &board)
	if board.Date != testDate || len(board.Sites) != 3 || len(board.Workers) != 5 {
		t.Fatalf("board = %+v", board)
	}
	if board.Sites[0].Name != "site-1" || board.Sites[0].Status != string(models.Unassigned) {
		t.Errorf("first site = %+v", board.Sites[0])
	}
}

func TestBoard_InvalidDate(t *testing.T) {
	e := newEnv(t)

	rec := e.do(testutil.NewRequest(http.MethodGet, "/2026-02-30/board"))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "invalid_date")
}

func TestSetSlot_AssignAndPersist(t *testing.T) {
	e := newEnv(t)
	site, w := e.sites[0], e.workers[0]

	rec := e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, "0"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Changed  bool   `json:"changed"`
		WorkerID string `json:"worker_id"`
		Status   string `json:"status"`
	}
	rec.DecodeJSON(t, &resp)
	if !resp.Changed || resp.WorkerID != w.ID.Hex() || resp.Status != string(models.Partial) {
		t.Errorf("response = %+v", resp)
	}

	stored, _ := e.sStore.Get(site.ID)
	if stored.Slots[0] == nil || *stored.Slots[0] != w.ID {
		t.Errorf("stored slots = %v, want worker in slot 0", stored.Slots)
	}
}

func TestSetSlot_SameValueIsNoop(t *testing.T) {
	e := newEnv(t)
	site, w := e.sites[0], e.workers[1]

	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, "1"), assign(w.ID))).AssertStatus(t, http.StatusOK)

	rec := e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, "1"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"changed":false`)

	rec = e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, "2"), clearSlot))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"changed":false`)
}

func TestSetSlot_Duplicate(t *testing.T) {
	e := newEnv(t)
	w := e.workers[0]

	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[0].ID, "0"), assign(w.ID))).AssertStatus(t, http.StatusOK)

	rec := e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[1].ID, "2"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusConflict)

	var body uierrors.Body
	rec.DecodeJSON(t, &body)
	if body.Error != "duplicate_assignment" || body.Site != e.sites[0].ID.Hex() || body.Slot == nil || *body.Slot != 0 {
		t.Errorf("body = %+v", body)
	}

	stored, _ := e.sStore.Get(e.sites[1].ID)
	if stored.Slots[2] != nil {
		t.Errorf("rejected assignment was persisted: %v", stored.Slots)
	}
}

func TestSetSlot_Rejections(t *testing.T) {
	e := newEnv(t)
	w := e.workers[0]

	tests := []struct {
		name   string
		url    string
		body   any
		status int
		code   string
	}{
		{"disabled slot", slotURL(e.sites[2].ID, "3"), assign(w.ID), http.StatusUnprocessableEntity, "invalid_slot"},
		{"out of range", slotURL(e.sites[0].ID, "4"), assign(w.ID), http.StatusUnprocessableEntity, "invalid_slot"},
		{"negative", slotURL(e.sites[0].ID, "-1"), assign(w.ID), http.StatusUnprocessableEntity, "invalid_slot"},
		{"unknown worker", slotURL(e.sites[0].ID, "0"), assign(primitive.NewObjectID()), http.StatusNotFound, "unknown_worker"},
		{"unknown site", slotURL(primitive.NewObjectID(), "0"), assign(w.ID), http.StatusNotFound, "unknown_site"},
		{"bad worker id", slotURL(e.sites[0].ID, "0"), map[string]any{"worker_id": "nope"}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(testutil.NewJSONRequest(http.MethodPut, tt.url, tt.body))
			rec.AssertStatus(t, tt.status)
			rec.AssertContains(t, tt.code)
		})
	}
}

func TestSetSlot_PersistFailureRestores(t *testing.T) {
	e := newEnv(t)
	site, w := e.sites[0], e.workers[2]
	e.sStore.FailWrites = errors.New("disk full")

	rec := e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, "0"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}

	// The worker must be seatable again since the change was rolled back.
	e.sStore.FailWrites = nil
	rec = e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[1].ID, "0"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusOK)
}

func TestEligible(t *testing.T) {
	e := newEnv(t)
	seated := e.workers[1]
	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[0].ID, "0"), assign(seated.ID))).AssertStatus(t, http.StatusOK)

	var resp struct {
		Workers []models.Worker `json:"workers"`
	}

	rec := e.do(testutil.NewRequest(http.MethodGet, slotURL(e.sites[1].ID, "0")+"/eligible"))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &resp)
	if len(resp.Workers) != 4 {
		t.Fatalf("eligible = %d, want 4", len(resp.Workers))
	}
	for _, w := range resp.Workers {
		if w.ID == seated.ID {
			t.Errorf("seated worker listed as eligible elsewhere")
		}
	}

	// The occupant stays eligible for its own slot.
	rec = e.do(testutil.NewRequest(http.MethodGet, slotURL(e.sites[0].ID, "0")+"/eligible"))
	rec.DecodeJSON(t, &resp)
	if len(resp.Workers) != 5 {
		t.Errorf("eligible for occupied slot = %d, want 5", len(resp.Workers))
	}

	rec = e.do(testutil.NewRequest(http.MethodGet, slotURL(e.sites[2].ID, "3")+"/eligible"))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}

func TestSiteStatus(t *testing.T) {
	e := newEnv(t)
	site := e.sites[2]
	url := "/" + testDate + "/sites/" + site.ID.Hex() + "/status"

	e.do(testutil.NewRequest(http.MethodGet, url)).AssertContains(t, string(models.Unassigned))

	for i := 0; i < 3; i++ {
		e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(site.ID, strconv.Itoa(i)), assign(e.workers[i].ID))).
			AssertStatus(t, http.StatusOK)
	}
	rec := e.do(testutil.NewRequest(http.MethodGet, url))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, string(models.Complete))
}

func TestWorkerSites(t *testing.T) {
	e := newEnv(t)
	w := e.workers[0] // 長田

	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[1].ID, "0"), assign(w.ID))).AssertStatus(t, http.StatusOK)

	rec := e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/workers/sites?name=%E9%95%B7%E7%94%B0"))
	rec.AssertStatus(t, http.StatusOK)
	var resp struct {
		Sites []models.Site `json:"sites"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Sites) != 1 || resp.Sites[0].ID != e.sites[1].ID {
		t.Errorf("sites = %+v", resp.Sites)
	}

	e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/workers/sites?name=Nobody")).AssertStatus(t, http.StatusNotFound)
	e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/workers/sites")).AssertStatus(t, http.StatusBadRequest)
}

func TestReload_PicksUpStoreChanges(t *testing.T) {
	e := newEnv(t)
	site, w := e.sites[0], e.workers[3]

	e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/board")).AssertStatus(t, http.StatusOK)
	if err := e.sStore.SetSlot(context.Background(), site.ID, 0, &w.ID); err != nil {
		t.Fatal(err)
	}

	rec := e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/reload"))
	rec.AssertStatus(t, http.StatusOK)

	// After reload the worker is seated, so seating them elsewhere conflicts.
	rec = e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[1].ID, "0"), assign(w.ID)))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestReload_BusyWhileSending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sc, err := e.days.Get(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	_ = sc.Update(func(workers *dayscope.WorkerRegistry, _ *dayscope.SiteRegistry) error {
		return workers.SetStatus(e.workers[0].ID, models.WorkerSending, "")
	})

	rec := e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/reload"))
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "busy")

	e.do(csvRequest("Sato,s@example.com\n")).AssertStatus(t, http.StatusConflict)
}

func csvRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/"+testDate+"/import/roster", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	return req
}

func TestRosterImport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	nagata, sato, suzuki := e.workers[0], e.workers[1], e.workers[2]

	// Seat Suzuki, who will be dropped, and Sato, who stays.
	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[0].ID, "0"), assign(suzuki.ID))).AssertStatus(t, http.StatusOK)
	e.do(testutil.NewJSONRequest(http.MethodPut, slotURL(e.sites[0].ID, "1"), assign(sato.ID))).AssertStatus(t, http.StatusOK)
	_ = e.wStore.SetStatus(ctx, sato.ID, models.WorkerSent, "")
	_ = e.wStore.SetStatus(ctx, nagata.ID, models.WorkerSent, "")
	if _, err := e.days.Reload(ctx, testDate); err != nil {
		t.Fatal(err)
	}

	csv := "name,contact\n" +
		"SATO," + sato.Contact + "\n" +
		"長田,new-address@example.com\n" +
		"Kimura,kimura@example.com\n"
	rec := e.do(csvRequest(csv))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"removed":3`)

	list, _ := e.wStore.ListByDate(ctx, testDate)
	if len(list) != 3 {
		t.Fatalf("roster = %d workers, want 3", len(list))
	}
	if list[0].ID != sato.ID || list[0].Status != models.WorkerSent {
		t.Errorf("Sato should keep ID and sent status: %+v", list[0])
	}
	if list[1].ID != nagata.ID || list[1].Status != models.WorkerUnsent {
		t.Errorf("contact change should reset status: %+v", list[1])
	}
	if list[2].Name != "Kimura" || list[2].ID.IsZero() {
		t.Errorf("new worker = %+v", list[2])
	}

	stored, _ := e.sStore.Get(e.sites[0].ID)
	if stored.Slots[0] != nil {
		t.Errorf("removed worker still seated: %v", stored.Slots)
	}
	if stored.Slots[1] == nil || *stored.Slots[1] != sato.ID {
		t.Errorf("kept worker lost seat: %v", stored.Slots)
	}

	// The cached day was reloaded with the new roster.
	rec = e.do(testutil.NewRequest(http.MethodGet, "/"+testDate+"/workers"))
	rec.AssertContains(t, "Kimura")
}

func TestRosterImport_InvalidRows(t *testing.T) {
	e := newEnv(t)

	rec := e.do(csvRequest("Sato,a@example.com\nsato,b@example.com\n"))
	rec.AssertStatus(t, http.StatusUnprocessableEntity)
	rec.AssertContains(t, "invalid_roster")

	list, _ := e.wStore.ListByDate(context.Background(), testDate)
	if len(list) != 5 {
		t.Errorf("roster changed after rejected import: %d workers", len(list))
	}
}

func TestRosterImport_StoreFailure(t *testing.T) {
	e := newEnv(t)
	e.wStore.FailReplace = errors.New("write conflict")

	rec := e.do(csvRequest("Sato,a@example.com\n"))
	rec.AssertStatus(t, http.StatusInternalServerError)
}

func TestSetSlot_StoreWritesFollowApplyOrder(t *testing.T) {
	e := newEnv(t)
	w := e.workers[0]
	site1, site2 := e.sites[0], e.sites[1]

	entered := make(chan struct{})
	release := make(chan struct{})
	var gated atomic.Bool
	e.sStore.BeforeWrite = func() {
		if gated.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}
	put := func(url string, body any) <-chan int {
		done := make(chan int, 1)
		go func() { done <- e.do(testutil.NewJSONRequest(http.MethodPut, url, body)).Code }()
		return done
	}

	first := put(slotURL(site1.ID, "0"), assign(w.ID))
	<-entered
	clearReq := put(slotURL(site1.ID, "0"), clearSlot)
	moveReq := put(slotURL(site2.ID, "0"), assign(w.ID))

	select {
	case code := <-clearReq:
		t.Fatalf("clear finished with %d while an earlier write was pending", code)
	case code := <-moveReq:
		t.Fatalf("move finished with %d while an earlier write was pending", code)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if code := <-first; code != http.StatusOK {
		t.Fatalf("first assign = %d", code)
	}
	if code := <-clearReq; code != http.StatusOK {
		t.Fatalf("clear = %d", code)
	}
	if code := <-moveReq; code != http.StatusOK && code != http.StatusConflict {
		t.Fatalf("move = %d", code)
	}

	// The store holds exactly what memory holds, and the worker at most once.
	sc, err := e.days.Get(context.Background(), testDate)
	if err != nil {
		t.Fatal(err)
	}
	var live []models.Site
	_ = sc.View(func(_ *dayscope.WorkerRegistry, sites *dayscope.SiteRegistry) error {
		live = sites.List()
		return nil
	})
	seats := 0
	for _, s := range live {
		stored, _ := e.sStore.Get(s.ID)
		for i := range s.Slots {
			if !sameID(s.Slots[i], stored.Slots[i]) {
				t.Errorf("site %s slot %d: memory %v, store %v", s.Name, i, s.Slots[i], stored.Slots[i])
			}
			if stored.Slots[i] != nil && *stored.Slots[i] == w.ID {
				seats++
			}
		}
	}
	if seats > 1 {
		t.Errorf("worker stored in %d cells", seats)
	}
}

func sameID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestRosterImport_HoldsDayAgainstDispatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var mu sync.Mutex
	sends := map[string]int{}
	n := notify.Func(func(_ context.Context, w models.Worker, _ []models.Site) error {
		mu.Lock()
		defer mu.Unlock()
		sends[w.Name]++
		return nil
	})
	ctrl := dispatchsys.New(n, nil, dispatchsys.Config{}, zap.NewNop(), dispatchsys.WithStatusStore(e.wStore))

	old, err := e.days.Get(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := ctrl.Preview(old)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	e.wStore.BeforeReplace = func() {
		close(entered)
		<-release
	}

	var csv strings.Builder
	for _, w := range e.workers {
		csv.WriteString(w.Name + "," + w.Contact + "\n")
	}
	imported := make(chan int, 1)
	go func() { imported <- e.do(csvRequest(csv.String())).Code }()
	<-entered

	dispatched := make(chan error, 1)
	go func() {
		_, err := ctrl.DispatchAll(ctx, old, plan.Token)
		dispatched <- err
	}()
	select {
	case err := <-dispatched:
		t.Fatalf("dispatch finished during roster import: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if code := <-imported; code != http.StatusOK {
		t.Fatalf("import = %d", code)
	}
	if err := <-dispatched; !errors.Is(err, dayscope.ErrRetired) {
		t.Fatalf("dispatch on replaced day = %v, want ErrRetired", err)
	}

	// The reloaded day sends everyone exactly once, with the same token.
	fresh, err := e.days.Get(ctx, testDate)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := ctrl.DispatchAll(ctx, fresh, plan.Token)
	if err != nil {
		t.Fatalf("DispatchAll after import: %v", err)
	}
	if entry.TotalRecipients != len(e.workers) {
		t.Errorf("recipients = %d, want %d", entry.TotalRecipients, len(e.workers))
	}
	if _, err := ctrl.Preview(fresh); !errors.Is(err, dispatchsys.ErrNothingToSend) {
		t.Errorf("second preview = %v, want ErrNothingToSend", err)
	}
	for name, c := range sends {
		if c != 1 {
			t.Errorf("%s notified %d times", name, c)
		}
	}
}
