// Package normalize turns heterogeneous backend records into core.Transaction
// values: connection sync payloads (UPI "transactions", cash "entries") and
// manually entered transactions.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finboard/internal/categorize"
	"finboard/internal/core"
)

const manualSource = "Manual"

// Normalizer converts raw records. Now supplies the fallback date and the
// timestamp used for synthesized IDs; it defaults to time.Now.
type Normalizer struct {
	Now func() time.Time
}

// Normalize is a convenience wrapper around Normalizer with a fixed clock.
func Normalize(ctx context.Context, conns []core.Connection, manual []core.ManualTransaction, now time.Time) []core.Transaction {
	n := Normalizer{Now: func() time.Time { return now }}
	return n.Normalize(ctx, conns, manual)
}

// Normalize returns every usable record in input order: connection payloads
// first, then manual transactions. Records whose synthesized ID was already
// produced in this pass are dropped.
func (n Normalizer) Normalize(ctx context.Context, conns []core.Connection, manual []core.ManualTransaction) []core.Transaction {
	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}
	p := pass{now: now, seen: make(map[string]struct{})}

	for i, c := range conns {
		for _, payload := range ResolvePayloads(c.Data) {
			p.connection(ctx, i, c, payload)
		}
	}
	for i, m := range manual {
		p.manual(i, m)
	}
	return p.out
}

type pass struct {
	now  time.Time
	seen map[string]struct{}
	out  []core.Transaction
}

func (p *pass) add(t core.Transaction) {
	if _, dup := p.seen[t.ID]; dup {
		return
	}
	p.seen[t.ID] = struct{}{}
	p.out = append(p.out, t)
}

func (p *pass) connection(ctx context.Context, index int, c core.Connection, payload Payload) {
	connID := c.ID.String()
	if connID == "" {
		connID = fmt.Sprintf("conn%d", index)
	}
	source := strings.TrimSpace(c.Name)
	if source == "" {
		source = strings.TrimSpace(c.Type)
	}

	for i, elem := range payload.Entries {
		var (
			t  core.Transaction
			ok bool
		)
		switch payload.Kind {
		case PayloadUPI:
			t, ok = p.upi(elem, connID, i)
		case PayloadCash:
			t, ok = p.cash(elem, connID, i)
		}
		if !ok {
			slog.DebugContext(ctx, "Skipping connection entry",
				"connection_id", connID,
				"payload", payload.Kind.String(),
				"index", i)
			continue
		}
		t.Source = source
		p.add(t)
	}
}

func (p *pass) upi(elem json.RawMessage, connID string, index int) (core.Transaction, bool) {
	var e core.UpiEntry
	if !decodeObject(elem, &e) {
		return core.Transaction{}, false
	}

	t := core.Transaction{
		ID:          p.id("upi:"+connID, e.ID.String(), index),
		Description: strings.TrimSpace(e.Description),
		Amount:      e.Amount.NonNegative(),
		Date:        p.resolveDate(e.Timestamp.String(), e.Date.String()),
	}
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "credit":
		t.Kind = core.KindIncome
		t.Category = categorize.Income
		if t.Description == "" {
			t.Description = "UPI credit"
		}
	case "debit":
		t.Kind = core.KindExpense
		t.Category = categorize.Classify(t.Description)
		if t.Description == "" {
			t.Description = "UPI debit"
		}
	default:
		return core.Transaction{}, false
	}
	return t, true
}

func (p *pass) cash(elem json.RawMessage, connID string, index int) (core.Transaction, bool) {
	var e core.CashEntry
	if !decodeObject(elem, &e) {
		return core.Transaction{}, false
	}

	t := core.Transaction{
		ID:          p.id("cash:"+connID, e.ID.String(), index),
		Kind:        core.KindIncome,
		Description: strings.TrimSpace(e.Description),
		Amount:      e.Amount.NonNegative(),
		Date:        p.resolveDate(e.Date.String()),
		Category:    strings.TrimSpace(e.Category),
	}
	if t.Category == "" {
		t.Category = categorize.Income
	}
	if t.Description == "" {
		t.Description = "Cash income"
	}
	return t, true
}

func (p *pass) manual(index int, m core.ManualTransaction) {
	t := core.Transaction{
		ID:          p.id("manual", m.ID.String(), index),
		Description: strings.TrimSpace(m.Description),
		Amount:      m.Amount.NonNegative(),
		Date:        p.resolveDate(m.TransactionDate.String()),
		Category:    strings.TrimSpace(m.Category),
		Source:      strings.TrimSpace(m.Source),
	}
	if t.Source == "" {
		t.Source = manualSource
	}

	switch strings.ToLower(strings.TrimSpace(m.Type)) {
	case "income":
		t.Kind = core.KindIncome
		if t.Category == "" {
			t.Category = categorize.Income
		}
	case "expense":
		t.Kind = core.KindExpense
		if t.Category == "" {
			t.Category = categorize.Classify(t.Description)
		}
	default:
		return
	}
	if t.Description == "" {
		t.Description = string(t.Kind)
	}
	p.add(t)
}

// id prefers the record's own identifier. Without one it falls back to the
// pass timestamp plus the element index, unique within a single pass only.
func (p *pass) id(prefix, own string, index int) string {
	if own != "" {
		return prefix + ":" + own
	}
	return fmt.Sprintf("%s:%d:%d", prefix, p.now.UnixMilli(), index)
}

// resolveDate returns the first candidate that parses, else today.
func (p *pass) resolveDate(candidates ...string) core.Date {
	for _, c := range candidates {
		if d, ok := core.ParseDate(c); ok {
			return d
		}
	}
	return core.DateOf(p.now)
}
