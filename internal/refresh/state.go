package refresh

import (
	"time"

	"finboard/internal/core"
)

// State is the controller's externally visible phase.
type State string

const (
	// StateIdle means no valid credential is present, or nothing has been
	// loaded for the current credential yet.
	StateIdle             State = "idle"
	StateLoading          State = "loading"
	StateReady            State = "ready"
	StateError            State = "error"
	StateSilentRefreshing State = "silent_refreshing"
)

func (s State) transient() bool {
	return s == StateLoading || s == StateSilentRefreshing
}

// Snapshot is an immutable view of the controller. Views are replaced
// wholesale; Version increases every time they are.
type Snapshot struct {
	State       State
	Views       core.Views
	Error       string
	LastRefresh time.Time
	Cutoff      *core.Date
	Version     uint64
}

// Loading reports whether a user-visible load is in progress.
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}

// settle picks the state to fall back to when a pass that began from prev
// ends without publishing anything.
func settle(prev State, cur Snapshot) State {
	if !prev.transient() {
		return prev
	}
	if !cur.LastRefresh.IsZero() {
		return StateReady
	}
	return StateIdle
}
