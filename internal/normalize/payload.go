package normalize

import (
	"bytes"
	"encoding/json"
)

// MaxEntriesPerPayload caps how many elements of one payload array are read.
// The cap is applied in payload order; no sort precedes it.
const MaxEntriesPerPayload = 100

// PayloadKind tags the shape of a connection's sync payload.
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota
	// PayloadUPI carries a "transactions" array of credit/debit entries.
	PayloadUPI
	// PayloadCash carries an "entries" array of income entries.
	PayloadCash
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadUPI:
		return "upi"
	case PayloadCash:
		return "cash"
	default:
		return "absent"
	}
}

// Payload is one resolved array of a connection's sync data, already capped.
type Payload struct {
	Kind    PayloadKind
	Entries []json.RawMessage
}

type rawConnectionData struct {
	Transactions json.RawMessage `json:"transactions"`
	Entries      json.RawMessage `json:"entries"`
}

// ResolvePayloads inspects connection_data once and returns its non-empty
// payloads, at most one per kind. Missing, null or malformed data yields nil.
// A payload encoded as a JSON string holding an object is unwrapped first.
func ResolvePayloads(data json.RawMessage) []Payload {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	var raw rawConnectionData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var out []Payload
	if entries := capped(raw.Transactions); len(entries) > 0 {
		out = append(out, Payload{Kind: PayloadUPI, Entries: entries})
	}
	if entries := capped(raw.Entries); len(entries) > 0 {
		out = append(out, Payload{Kind: PayloadCash, Entries: entries})
	}
	return out
}

func capped(arr json.RawMessage) []json.RawMessage {
	arr = bytes.TrimSpace(arr)
	if len(arr) == 0 || arr[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(arr, &elems); err != nil {
		return nil
	}
	if len(elems) > MaxEntriesPerPayload {
		elems = elems[:MaxEntriesPerPayload]
	}
	return elems
}
