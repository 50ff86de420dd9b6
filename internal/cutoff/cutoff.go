// Package cutoff suppresses historical records that predate the user's
// earliest active connection.
package cutoff

import "finboard/internal/core"

// Cutoff is the earliest creation day among connected sources. The zero
// value is unset and lets every record through.
type Cutoff struct {
	day core.Date
	set bool
}

// Compute returns the minimum created_at among connections whose status is
// exactly "connected" and whose created_at parses. The result is truncated
// to the calendar day, since normalized records carry dates only.
func Compute(conns []core.Connection) Cutoff {
	var c Cutoff
	for _, conn := range conns {
		if conn.Status != core.StatusConnected {
			continue
		}
		day, ok := core.ParseDate(conn.CreatedAt.String())
		if !ok {
			continue
		}
		if !c.set || day.Before(c.day.Time) {
			c = Cutoff{day: day, set: true}
		}
	}
	return c
}

// At builds a cutoff on a given day.
func At(day core.Date) Cutoff {
	return Cutoff{day: day, set: true}
}

// Date returns the cutoff day and whether one is set.
func (c Cutoff) Date() (core.Date, bool) {
	return c.day, c.set
}

// Passes reports whether d is on or after the cutoff. Unset cutoffs pass everything.
func (c Cutoff) Passes(d core.Date) bool {
	if !c.set {
		return true
	}
	return d.OnOrAfter(c.day)
}

// Filter returns the records that pass, preserving order. The input is not modified.
func (c Cutoff) Filter(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if c.Passes(t.Date) {
			out = append(out, t)
		}
	}
	return out
}
