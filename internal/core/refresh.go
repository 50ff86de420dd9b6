package core

import "time"

// Refresh outcomes as recorded in the refresh history.
const (
	OutcomeSuccess     = "success"
	OutcomeAuthFailure = "auth_failure"
	OutcomeError       = "error"
	OutcomeDiscarded   = "discarded"
)

// RefreshRun describes one completed refresh pass.
type RefreshRun struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Trigger      string    `json:"trigger"`
	Silent       bool      `json:"silent"`
	Outcome      string    `json:"outcome"`
	IncomeCount  int       `json:"income_count"`
	ExpenseCount int       `json:"expense_count"`
	Error        string    `json:"error,omitempty"`
}
