package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/credential"
	"finboard/internal/log"
	"finboard/internal/middleware/trace"
	"finboard/internal/refresh"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type transactionsResponse struct {
	Kind         string             `json:"kind"`
	State        refresh.State      `json:"state"`
	Count        int                `json:"count"`
	Transactions []core.Transaction `json:"transactions"`
}

type statusResponse struct {
	State           refresh.State `json:"state"`
	Loading         bool          `json:"loading"`
	Error           string        `json:"error,omitempty"`
	LastRefresh     *time.Time    `json:"last_refresh,omitempty"`
	Cutoff          *core.Date    `json:"cutoff,omitempty"`
	Version         uint64        `json:"version"`
	Counts          counts        `json:"counts"`
	IntervalSeconds int           `json:"interval_seconds"`
	Credential      bool          `json:"credential"`
}

type counts struct {
	All     int `json:"all"`
	Income  int `json:"income"`
	Expense int `json:"expense"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Uptime   string         `json:"uptime"`
	Requests requestMetrics `json:"requests"`
}

type requestMetrics struct {
	Total              int64 `json:"total"`
	ServerErrors       int64 `json:"server_errors"`
	LastResponseMicros int64 `json:"last_response_us"`
	Suspicious         int64 `json:"suspicious"`
	RateLimited        int64 `json:"rate_limited"`
	TrackedClients     int   `json:"tracked_clients"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	ErrorResponse(status, msg, trace.GetRequestID(r.Context())).Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	traced := s.tracer.GetMetrics()
	NewJSONResponse().Body(healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Requests: requestMetrics{
			Total:              traced.TotalRequests,
			ServerErrors:       traced.ServerErrors,
			LastResponseMicros: traced.LastResponseTime,
			Suspicious:         s.detector.GetMetrics().SuspiciousRequests,
			RateLimited:        s.limiter.Rejected(),
			TrackedClients:     s.limiter.ActiveClients(),
		},
	}).Write(w)
}

// handleReady reports ready once the refresh controller is running.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.dashboard == nil || !s.dashboard.IsActive() {
		NewJSONResponse().Status(http.StatusServiceUnavailable).
			Body(map[string]string{"status": "not_ready"}).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(r.URL.Query())
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.dashboard.Snapshot()
	var txs []core.Transaction
	switch kind {
	case string(core.KindIncome):
		txs = snap.Views.Income
	case string(core.KindExpense):
		txs = snap.Views.Expense
	default:
		txs = snap.Views.All
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	NewJSONResponse().
		Header("ETag", fmt.Sprintf(`"v%d"`, snap.Version)).
		Body(transactionsResponse{Kind: kind, State: snap.State, Count: len(txs), Transactions: txs}).
		Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.dashboard.Snapshot()
	key := fmt.Sprintf("v%d:%04d-%02d", snap.Version, params.Year, params.Month)
	summary, ok := s.summaryCache.Get(key)
	if !ok {
		summary = aggregate.Summarize(snap.Views, params.Year, params.Month)
		s.summaryCache.Set(key, summary)
	}

	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) status(r *http.Request, snap refresh.Snapshot) statusResponse {
	resp := statusResponse{
		State:   snap.State,
		Loading: snap.Loading(),
		Error:   snap.Error,
		Cutoff:  snap.Cutoff,
		Version: snap.Version,
		Counts: counts{
			All:     len(snap.Views.All),
			Income:  len(snap.Views.Income),
			Expense: len(snap.Views.Expense),
		},
		IntervalSeconds: int(s.dashboard.Interval().Seconds()),
	}
	if !snap.LastRefresh.IsZero() {
		t := snap.LastRefresh
		resp.LastRefresh = &t
	}
	if token, err := s.session.Token(r.Context()); err == nil {
		resp.Credential = credential.ValidAt(token, s.now())
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.status(r, s.dashboard.Snapshot())).Write(w)
}

func (s *Server) handleSetSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.session.SetToken(r.Context(), req.Token); err != nil {
		if errors.Is(err, credential.ErrEmptyToken) {
			s.fail(w, r, http.StatusBadRequest, "token is required")
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to store token",
			log.FieldOperation, log.OpSetToken, log.FieldError, err)
		s.fail(w, r, http.StatusInternalServerError, "could not store token")
		return
	}

	NewJSONResponse().Status(http.StatusAccepted).Body(s.status(r, s.dashboard.Snapshot())).Write(w)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearToken(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to clear token",
			log.FieldOperation, log.OpClear, log.FieldError, err)
		s.fail(w, r, http.StatusInternalServerError, "could not clear token")
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleRefresh runs a non-silent pass. Failures are reported through the
// returned state, never as an HTTP error.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard.Refresh(r.Context())
	if errors.Is(err, refresh.ErrInactive) {
		s.fail(w, r, http.StatusServiceUnavailable, "refresh controller is not running")
		return
	}
	NewJSONResponse().Body(s.status(r, snap)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	err := s.dashboard.Export(r.Context())
	switch {
	case err == nil:
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	case errors.Is(err, refresh.ErrNoExporter):
		s.fail(w, r, http.StatusNotImplemented, "spreadsheet export is not configured")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
		s.fail(w, r, http.StatusBadGateway, "export failed")
	}
}

func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, r, http.StatusNotImplemented, "refresh history is not recorded")
		return
	}
	limit, err := ParseLimit(r.URL.Query(), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.history.ListRefreshRuns(r.Context(), limit)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list refresh history", log.FieldError, err)
		s.fail(w, r, http.StatusInternalServerError, "could not load refresh history")
		return
	}
	if runs == nil {
		runs = []core.RefreshRun{}
	}
	NewJSONResponse().Body(map[string]any{"runs": runs}).Write(w)
}
