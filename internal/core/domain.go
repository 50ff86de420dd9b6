package core

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const dateLayout = "2006-01-02"

type (
	Kind string

	// Date is a calendar day in UTC. Its JSON form is "YYYY-MM-DD".
	Date struct {
		time.Time
	}

	// Transaction is the normalized record shared by every view.
	// Values are never mutated after normalization.
	Transaction struct {
		ID          string          `json:"id"`
		Kind        Kind            `json:"kind"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		Source      string          `json:"source,omitempty"`
	}

	// Views holds the three published collections, each sorted by date descending.
	Views struct {
		All     []Transaction `json:"all"`
		Income  []Transaction `json:"income"`
		Expense []Transaction `json:"expense"`
	}
)

var ErrInvalidDate = errors.New("invalid date")

// Len returns the number of transactions across both kinds.
func (v Views) Len() int {
	return len(v.All)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar day containing t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// OnOrAfter reports whether d is the same day as o or later.
func (d Date) OnOrAfter(o Date) bool {
	return !d.Before(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseDate(s)
	if !ok {
		return ErrInvalidDate
	}
	*d = parsed
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dateLayout,
}

// ParseTimestamp accepts RFC 3339 timestamps, naive date-times, bare dates
// and unix epochs (seconds or milliseconds).
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		// Anything past year 5138 in seconds is treated as milliseconds.
		if n < 1e11 {
			return time.Unix(int64(n), 0).UTC(), true
		}
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Time{}, false
}

// ParseDate is ParseTimestamp truncated to the calendar day.
func ParseDate(s string) (Date, bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return Date{}, false
	}
	return DateOf(t), true
}
