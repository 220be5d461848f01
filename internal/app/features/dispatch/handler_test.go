package dispatch_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/dalemusser/sitecrew/internal/app/features/days"
	"github.com/dalemusser/sitecrew/internal/app/features/dispatch"
	uierrors "github.com/dalemusser/sitecrew/internal/app/features/errors"
	"github.com/dalemusser/sitecrew/internal/app/system/dayscope"
	dispatchsys "github.com/dalemusser/sitecrew/internal/app/system/dispatch"
	"github.com/dalemusser/sitecrew/internal/app/system/notify"
	"github.com/dalemusser/sitecrew/internal/domain/models"
	"github.com/dalemusser/sitecrew/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const testDate = "2026-03-02"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memLogs struct {
	mu      sync.Mutex
	entries []models.SendLog
}

func (m *memLogs) Append(_ context.Context, e models.SendLog) (models.SendLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = primitive.NewObjectID()
	m.entries = append(m.entries, e)
	return e, nil
}

type env struct {
	router  chi.Router
	workers []models.Worker
	store   *testutil.MemWorkers
	logs    *memLogs

	mu      sync.Mutex
	failing map[string]bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	workers, sites := testutil.ScenarioDay(testDate)
	e := &env{
		workers: workers,
		store:   testutil.NewMemWorkers(workers...),
		logs:    &memLogs{},
		failing: map[string]bool{},
	}
	logger := zap.NewNop()
	siteStore := testutil.NewMemSites(sites...)
	mgr := dayscope.NewManager(e.store, siteStore, logger)

	n := notify.Func(func(_ context.Context, w models.Worker, _ []models.Site) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.failing[w.Name] {
			return errors.New("mailbox unavailable")
		}
		return nil
	})
	ctrl := dispatchsys.New(n, e.logs, dispatchsys.Config{LogSingle: true}, logger, dispatchsys.WithStatusStore(e.store))

	errLog := uierrors.NewErrorLogger(logger)
	dh := dispatch.NewHandler(mgr, ctrl, nil, errLog, logger)
	dayH := days.NewHandler(mgr, siteStore, e.store, nil, nil, nil, errLog, logger)
	e.router = days.Routes(dayH, dispatch.MountRoutes(dh))
	return e
}

func (e *env) fail(name string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failing[name] = on
}

func (e *env) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) preview(t *testing.T) dispatchsys.Plan {
	t.Helper()
	rec := e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/dispatch/preview"))
	rec.AssertStatus(t, http.StatusOK)
	var plan dispatchsys.Plan
	rec.DecodeJSON(t, &plan)
	return plan
}

func (e *env) dispatchAll(token string) *testutil.ResponseRecorder {
	return e.do(testutil.NewJSONRequest(http.MethodPost, "/"+testDate+"/dispatch", map[string]string{"confirm_token": token}))
}

func (e *env) dispatchOne(id primitive.ObjectID, force bool) *testutil.ResponseRecorder {
	return e.do(testutil.NewJSONRequest(http.MethodPost, "/"+testDate+"/workers/"+id.Hex()+"/dispatch", map[string]bool{"force": force}))
}

func TestDispatchAll_RequiresConfirmation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/dispatch"))
	rec.AssertStatus(t, http.StatusPreconditionRequired)
	rec.AssertContains(t, "not_confirmed")

	e.dispatchAll("made-up").AssertStatus(t, http.StatusPreconditionRequired)

	if len(e.logs.entries) != 0 {
		t.Errorf("unconfirmed dispatch wrote %d send logs", len(e.logs.entries))
	}
}

func TestDispatchAll_PreviewThenSend(t *testing.T) {
	e := newEnv(t)
	e.fail("Tanaka", true)

	plan := e.preview(t)
	if len(plan.Recipients) != 5 || plan.Token == "" {
		t.Fatalf("plan = %+v", plan)
	}

	rec := e.dispatchAll(plan.Token)
	rec.AssertStatus(t, http.StatusOK)
	var entry models.SendLog
	rec.DecodeJSON(t, &entry)
	if entry.Kind != models.SendLogBatch || entry.TotalRecipients != 5 || entry.SuccessCount != 4 || entry.ErrorCount != 1 {
		t.Errorf("send log = %+v", entry)
	}

	stored, _ := e.store.Get(e.workers[3].ID)
	if stored.Status != models.WorkerError || stored.LastError == "" {
		t.Errorf("failed worker = %+v", stored)
	}

	// The token is single use.
	e.dispatchAll(plan.Token).AssertStatus(t, http.StatusPreconditionRequired)

	// Only the failed worker is picked up by the next preview.
	e.fail("Tanaka", false)
	plan = e.preview(t)
	if len(plan.Recipients) != 1 || plan.Recipients[0].Name != "Tanaka" {
		t.Fatalf("retry plan = %+v", plan.Recipients)
	}
	e.dispatchAll(plan.Token).AssertStatus(t, http.StatusOK)

	rec = e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/dispatch/preview"))
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "nothing_to_send")
}

func TestDispatchOne(t *testing.T) {
	e := newEnv(t)
	sato := e.workers[1]

	rec := e.dispatchOne(sato.ID, false)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"status":"sent"`)

	e.dispatchOne(sato.ID, false).AssertStatus(t, http.StatusConflict)
	e.dispatchOne(sato.ID, true).AssertStatus(t, http.StatusOK)

	if len(e.logs.entries) != 2 || e.logs.entries[0].Kind != models.SendLogSingle {
		t.Errorf("send logs = %+v", e.logs.entries)
	}
}

func TestDispatchOne_DeliveryFailure(t *testing.T) {
	e := newEnv(t)
	ito := e.workers[4]
	e.fail("Ito", true)

	rec := e.dispatchOne(ito.ID, false)
	rec.AssertStatus(t, http.StatusBadGateway)

	var resp struct {
		Worker models.Worker `json:"worker"`
		Error  string        `json:"error"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.Worker.Status != models.WorkerError || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}

	// A worker in error can be retried without force.
	e.fail("Ito", false)
	e.dispatchOne(ito.ID, false).AssertStatus(t, http.StatusOK)
}

func TestDispatchOne_BadRequests(t *testing.T) {
	e := newEnv(t)

	e.dispatchOne(primitive.NewObjectID(), false).AssertStatus(t, http.StatusNotFound)
	e.do(testutil.NewRequest(http.MethodPost, "/"+testDate+"/workers/xyz/dispatch")).AssertStatus(t, http.StatusBadRequest)
	e.do(testutil.NewRequest(http.MethodPost, "/not-a-date/workers/"+e.workers[0].ID.Hex()+"/dispatch")).AssertStatus(t, http.StatusBadRequest)
}
