package auditlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/sitecrew/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testDate = "2026-03-02"

type listBody struct {
	Items []struct {
		EventType  string `json:"event_type"`
		WorkerID   string `json:"worker_id"`
		WorkerName string `json:"worker_name"`
		Success    bool   `json:"success"`
	} `json:"items"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
}

func newTestRouter(t *testing.T) (http.Handler, *audit.Store, *testutil.MemWorkers) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := audit.New(db)
	workers, _ := testutil.ScenarioDay(testDate)
	roster := testutil.NewMemWorkers(workers...)
	h := auditlog.NewHandler(store, roster, uierrors.NewErrorLogger(logger), logger)
	return auditlog.Routes(h), store, roster
}

func TestServeList_ResolvesWorkerNames(t *testing.T) {
	router, store, roster := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	list, _ := roster.ListByDate(ctx, testDate)
	sato := list[1]
	site := primitive.NewObjectID()

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{Timestamp: base, Date: testDate, Category: audit.CategoryAssignment, EventType: audit.EventSlotAssigned, SiteID: &site, WorkerID: &sato.ID, Success: true},
		{Timestamp: base.Add(time.Minute), Date: testDate, Category: audit.CategoryDispatch, EventType: audit.EventDispatchBatch, Success: true},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?date="+testDate, nil))
	rec.AssertStatus(t, http.StatusOK)

	var body listBody
	rec.DecodeJSON(t, &body)
	if body.Total != 2 || len(body.Items) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.Items[0].EventType != audit.EventDispatchBatch {
		t.Errorf("first item = %+v, want newest first", body.Items[0])
	}
	if body.Items[1].WorkerName != "Sato" || body.Items[1].WorkerID != sato.ID.Hex() {
		t.Errorf("assignment item = %+v", body.Items[1])
	}
}

func TestServeList_Filters(t *testing.T) {
	router, store, _ := newTestRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i, et := range []string{audit.EventSlotAssigned, audit.EventSlotCleared, audit.EventDispatchSingle} {
		cat := audit.CategoryAssignment
		if et == audit.EventDispatchSingle {
			cat = audit.CategoryDispatch
		}
		_ = store.Log(ctx, audit.Event{Timestamp: time.Now().Add(time.Duration(i) * time.Second), Date: testDate, Category: cat, EventType: et, Success: true})
	}

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?category=assignment&event_type=slot_cleared", nil))
	var body listBody
	rec.DecodeJSON(t, &body)
	if body.Total != 1 || body.Items[0].EventType != audit.EventSlotCleared {
		t.Errorf("filtered body = %+v", body)
	}

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?category=dispatch", nil))
	rec.DecodeJSON(t, &body)
	if body.Total != 1 {
		t.Errorf("dispatch total = %d, want 1", body.Total)
	}
}

func TestServeList_RejectsUnknownFilters(t *testing.T) {
	logger := zap.NewNop()
	router := auditlog.Routes(auditlog.NewHandler(nil, nil, uierrors.NewErrorLogger(logger), logger))

	for _, url := range []string{
		"/?category=auth",
		"/?category=dispatch&event_type=slot_assigned",
		"/?worker_id=zzz",
		"/?date=2026-13-01",
	} {
		rec := testutil.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		rec.AssertStatus(t, http.StatusBadRequest)
	}
}

func TestServeEventTypes(t *testing.T) {
	logger := zap.NewNop()
	router := auditlog.Routes(auditlog.NewHandler(nil, nil, uierrors.NewErrorLogger(logger), logger))

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/event-types", nil))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, audit.EventRosterImport)
	rec.AssertContains(t, audit.EventDispatchSingle)
}
