package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/backend/memory"
	"finboard/internal/core"
	"finboard/internal/credential"
	"finboard/internal/refresh"
)

const connectionsJSON = `[{
	"id": "c1",
	"status": "connected",
	"created_at": "2024-01-10",
	"connection_data": {"transactions": [
		{"id": "u1", "type": "credit", "amount": 500, "description": "Salary", "date": "2024-01-05"},
		{"id": "u2", "type": "credit", "amount": 300, "description": "Freelance", "date": "2024-01-15"},
		{"id": "u3", "type": "debit", "amount": 12.5, "description": "Uber ride", "date": "2024-01-16"}
	]}
}]`

const manualJSON = `[
	{"id": 1, "type": "expense", "amount": "40", "description": "Grocery run", "transaction_date": "2024-01-20"},
	{"id": 2, "type": "expense", "amount": "7.5", "description": "Lunch", "transaction_date": "2024-02-02"}
]`

type fakeHistory struct {
	runs []core.RefreshRun
	err  error
}

func (f fakeHistory) ListRefreshRuns(_ context.Context, limit int) ([]core.RefreshRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type testEnv struct {
	srv     *Server
	ctrl    *refresh.Controller
	manager *credential.Manager
}

func newTestEnv(t *testing.T, history History) *testEnv {
	t.Helper()
	var conns, manual []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(connectionsJSON), &conns))
	require.NoError(t, json.Unmarshal([]byte(manualJSON), &manual))

	manager := credential.NewManager(credential.NewMemoryStore(), nil)
	ctrl := refresh.New(memory.New(conns, manual), manager, manager.Bus(), refresh.DefaultConfig())
	require.NoError(t, ctrl.Activate(context.Background()))

	srv := NewServer(":0", Deps{
		Dashboard: ctrl,
		Session:   manager,
		History:   history,
		Now:       func() time.Time { return time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = ctrl.Deactivate(context.Background())
	})
	return &testEnv{srv: srv, ctrl: ctrl, manager: manager}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/session", `{"token":"tok"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Eventually(t, func() bool {
		return e.ctrl.Snapshot().State == refresh.StateReady
	}, 2*time.Second, 5*time.Millisecond)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/.env", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	health := decode[healthResponse](t, rr)
	assert.Equal(t, "ok", health.Status)
	assert.EqualValues(t, 2, health.Requests.Total)
	assert.EqualValues(t, 1, health.Requests.Suspicious)
	assert.Zero(t, health.Requests.ServerErrors)
	assert.Zero(t, health.Requests.RateLimited)

	rr = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, env.ctrl.Deactivate(context.Background()))
	rr = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestTransactionsWithoutCredential(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[transactionsResponse](t, rr)
	assert.Equal(t, refresh.StateIdle, resp.State)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Transactions)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodGet, "/api/transactions?kind=income", "")
	require.Equal(t, http.StatusOK, rr.Code)
	income := decode[transactionsResponse](t, rr)
	require.Equal(t, 1, income.Count, "salary predates the cutoff")
	assert.Equal(t, "Freelance", income.Transactions[0].Description)

	rr = env.do(t, http.MethodGet, "/api/transactions", "")
	all := decode[transactionsResponse](t, rr)
	require.Equal(t, 4, all.Count)
	for i := 1; i < len(all.Transactions); i++ {
		assert.False(t, all.Transactions[i].Date.After(all.Transactions[i-1].Date.Time))
	}

	rr = env.do(t, http.MethodGet, "/api/status", "")
	status := decode[statusResponse](t, rr)
	assert.Equal(t, refresh.StateReady, status.State)
	assert.True(t, status.Credential)
	assert.Equal(t, counts{All: 4, Income: 1, Expense: 3}, status.Counts)
	assert.Equal(t, 30, status.IntervalSeconds)
	require.NotNil(t, status.Cutoff)
	assert.Equal(t, "2024-01-10", status.Cutoff.String())

	rr = env.do(t, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/transactions", "")
	cleared := decode[transactionsResponse](t, rr)
	assert.Equal(t, refresh.StateIdle, cleared.State)
	assert.Equal(t, 0, cleared.Count)
}

func TestSetSessionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{`{"token":"  "}`, `{"token":1}`, `not json`} {
		rr := env.do(t, http.MethodPost, "/api/session", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.NotEmpty(t, decode[errorBody](t, rr).Error)
	}
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)

	rr := env.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	jan := decode[core.MonthSummary](t, rr)
	assert.Equal(t, 2024, jan.Year)
	assert.Equal(t, 1, jan.Month)
	assert.Equal(t, "300", jan.Income.String())
	assert.Equal(t, "52.5", jan.Expense.String())
	assert.Equal(t, "247.5", jan.Net.String())
	require.Len(t, jan.ByCategory, 2)
	assert.Equal(t, "Food", jan.ByCategory[0].Name)
	assert.Equal(t, "Transport", jan.ByCategory[1].Name)

	rr = env.do(t, http.MethodGet, "/api/summary?year=2024&month=all", "")
	year := decode[core.MonthSummary](t, rr)
	assert.Equal(t, "60", year.Expense.String())
	assert.Equal(t, 2, env.srv.summaryCache.Size())

	rr = env.do(t, http.MethodGet, "/api/summary?month=42", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRefreshAndExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t)
	before := env.ctrl.Snapshot().Version

	rr := env.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[statusResponse](t, rr)
	assert.Equal(t, refresh.StateReady, status.State)
	assert.Greater(t, status.Version, before)

	rr = env.do(t, http.MethodPost, "/api/export", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	require.NoError(t, env.ctrl.Deactivate(context.Background()))
	rr = env.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRefreshHistory(t *testing.T) {
	runs := []core.RefreshRun{{ID: 2, Outcome: core.OutcomeSuccess}, {ID: 1, Outcome: core.OutcomeError}}

	env := newTestEnv(t, fakeHistory{runs: runs})
	rr := env.do(t, http.MethodGet, "/api/refreshes?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[map[string][]core.RefreshRun](t, rr)
	require.Len(t, got["runs"], 1)
	assert.EqualValues(t, 2, got["runs"][0].ID)

	rr = env.do(t, http.MethodGet, "/api/refreshes?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env = newTestEnv(t, fakeHistory{err: errors.New("disk gone")})
	rr = env.do(t, http.MethodGet, "/api/refreshes", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	env = newTestEnv(t, nil)
	rr = env.do(t, http.MethodGet, "/api/refreshes", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestMethodNotAllowedAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPut, "/api/session", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

type limitRecorder struct {
	mu    sync.Mutex
	limit int
}

func (l *limitRecorder) ListRefreshRuns(_ context.Context, limit int) ([]core.RefreshRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	return nil, nil
}

func TestRefreshesDefaultLimitMatchesStorage(t *testing.T) {
	rec := &limitRecorder{}
	env := newTestEnv(t, rec)

	rr := env.do(t, http.MethodGet, "/api/refreshes", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 50, rec.limit)
}

func TestTrustedProxiesFromDeps(t *testing.T) {
	srv := NewServer(":0", Deps{TrustedProxies: []string{"203.0.113.0/24", "not-a-cidr"}})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.5:4321"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", srv.detector.ExtractClientIP(req))

	req.RemoteAddr = "192.0.2.10:4321"
	assert.Equal(t, "192.0.2.10", srv.detector.ExtractClientIP(req))
}
