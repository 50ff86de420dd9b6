package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StatusConnected marks a connection whose creation date participates in the cutoff.
const StatusConnected = "connected"

type (
	// Connection is a linked data source as returned by the backend.
	// Data is left raw; the normalizer resolves its shape.
	Connection struct {
		ID        FlexString      `json:"id"`
		Name      string          `json:"name"`
		Type      string          `json:"type"`
		Status    string          `json:"status"`
		CreatedAt FlexString      `json:"created_at"`
		LastSync  FlexString      `json:"last_sync"`
		Data      json.RawMessage `json:"connection_data,omitempty"`
	}

	UpiEntry struct {
		ID          FlexString `json:"id"`
		Type        string     `json:"type"`
		Description string     `json:"description"`
		Amount      Amount     `json:"amount"`
		Timestamp   FlexString `json:"timestamp"`
		Date        FlexString `json:"date"`
	}

	CashEntry struct {
		ID          FlexString `json:"id"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
		Amount      Amount     `json:"amount"`
		Date        FlexString `json:"date"`
	}

	// ManualTransaction is a record the user entered directly.
	ManualTransaction struct {
		ID              FlexString `json:"id"`
		Type            string     `json:"type"`
		Amount          Amount     `json:"amount"`
		Description     string     `json:"description"`
		Category        string     `json:"category"`
		Source          string     `json:"source"`
		TransactionDate FlexString `json:"transaction_date"`
	}
)

// FlexString accepts a JSON string, number or boolean and keeps its text.
// null decodes to the empty string; objects and arrays are rejected.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("unexpected JSON value %.16s", b)
	default:
		*f = FlexString(b)
	}
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Amount is a lenient money value. Missing or unparseable input decodes to
// zero rather than failing the enclosing record.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var raw FlexString
	if err := raw.UnmarshalJSON(b); err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	v, ok := ParseAmount(raw.String())
	if !ok {
		v = decimal.Zero
	}
	a.Decimal = v
	return nil
}

// NonNegative returns the magnitude of the amount.
func (a Amount) NonNegative() decimal.Decimal {
	return a.Abs()
}
