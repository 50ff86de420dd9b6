package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-01-05", NewDate(2024, 1, 5), true},
		{"2024-01-05T23:10:00Z", NewDate(2024, 1, 5), true},
		{"2024-01-05T23:10:00+05:30", NewDate(2024, 1, 5), true},
		{"2024-01-05 08:00:00", NewDate(2024, 1, 5), true},
		{"1704412800", NewDate(2024, 1, 5), true},
		{"1704412800000", NewDate(2024, 1, 5), true},
		{"yesterday", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.True(t, tc.want.Equal(got.Time), "input %q: got %s", tc.in, got)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 3, 9))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09"`), &d))
	assert.Equal(t, "2024-03-09", d.String())
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestDateOnOrAfter(t *testing.T) {
	cutoff := NewDate(2024, 1, 10)
	assert.True(t, NewDate(2024, 1, 10).OnOrAfter(cutoff))
	assert.True(t, NewDate(2024, 1, 11).OnOrAfter(cutoff))
	assert.False(t, NewDate(2024, 1, 9).OnOrAfter(cutoff))
	assert.Equal(t, "2024-01-10", DateOf(time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)).String())
}

func TestRawDecodingIsLenient(t *testing.T) {
	var e UpiEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42, "type": "debit", "amount": "1,250.75", "timestamp": null}`), &e))
	assert.Equal(t, "42", e.ID.String())
	assert.Equal(t, "1250.75", e.Amount.String())
	assert.Equal(t, "", e.Timestamp.String())

	var bad UpiEntry
	require.NoError(t, json.Unmarshal([]byte(`{"type": "credit", "amount": {"value": 3}}`), &bad))
	assert.True(t, bad.Amount.IsZero())

	var m ManualTransaction
	require.NoError(t, json.Unmarshal([]byte(`{"id": "t1", "type": "expense", "amount": -40, "transaction_date": "2024-02-01"}`), &m))
	assert.Equal(t, "40", m.Amount.NonNegative().String())

	var obj UpiEntry
	assert.Error(t, json.Unmarshal([]byte(`{"id": {"nested": true}}`), &obj))
}
