package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/categorize"
	"finboard/internal/core"
)

var fixedNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func conn(t *testing.T, js string) core.Connection {
	t.Helper()
	var c core.Connection
	require.NoError(t, json.Unmarshal([]byte(js), &c))
	return c
}

func TestNormalize_NoConnectionData(t *testing.T) {
	conns := []core.Connection{
		conn(t, `{"id": 1, "name": "Bank", "status": "connected"}`),
		conn(t, `{"id": 2, "name": "Bank", "connection_data": null}`),
		conn(t, `{"id": 3, "name": "Bank", "connection_data": {"transactions": []}}`),
		conn(t, `{"id": 4, "name": "Bank", "connection_data": {"entries": "nope"}}`),
		conn(t, `{"id": 5, "name": "Bank", "connection_data": 17}`),
	}
	var got []core.Transaction
	assert.NotPanics(t, func() {
		got = Normalize(context.Background(), conns, nil, fixedNow)
	})
	assert.Empty(t, got)
}

func TestNormalize_UPIEntries(t *testing.T) {
	c := conn(t, `{
		"id": "c1", "name": "HDFC UPI", "status": "connected",
		"connection_data": {"transactions": [
			{"id": "a", "type": "credit", "amount": 500, "description": "Salary", "timestamp": "2024-01-15T10:00:00Z", "date": "2023-12-01"},
			{"id": "b", "type": "debit", "amount": "-120.50", "description": "Swiggy dinner", "date": "2024-01-16"},
			{"id": "c", "type": "refund", "amount": 10},
			"garbage",
			{"id": "d", "type": "debit", "amount": "n/a"}
		]}
	}`)
	got := Normalize(context.Background(), []core.Connection{c}, nil, fixedNow)
	require.Len(t, got, 3)

	assert.Equal(t, "upi:c1:a", got[0].ID)
	assert.Equal(t, core.KindIncome, got[0].Kind)
	assert.Equal(t, "2024-01-15", got[0].Date.String(), "timestamp wins over date")
	assert.Equal(t, categorize.Income, got[0].Category)
	assert.Equal(t, "HDFC UPI", got[0].Source)

	assert.Equal(t, core.KindExpense, got[1].Kind)
	assert.Equal(t, "120.5", got[1].Amount.String())
	assert.Equal(t, categorize.Food, got[1].Category)

	assert.Equal(t, "0", got[2].Amount.String(), "unparseable amount defaults to zero")
	assert.Equal(t, "2024-02-01", got[2].Date.String(), "missing dates fall back to now")
	assert.Equal(t, "UPI debit", got[2].Description)
	assert.Equal(t, categorize.Other, got[2].Category)
}

func TestNormalize_CashEntries(t *testing.T) {
	c := conn(t, `{
		"id": 9, "name": "Cash log",
		"connection_data": {"entries": [
			{"id": 1, "description": "Tutoring", "category": "Side income", "amount": 300, "date": "2024-01-20"},
			{"description": "Gift", "amount": "50"}
		]}
	}`)
	got := Normalize(context.Background(), []core.Connection{c}, nil, fixedNow)
	require.Len(t, got, 2)
	for _, tx := range got {
		assert.Equal(t, core.KindIncome, tx.Kind)
	}
	assert.Equal(t, "Side income", got[0].Category)
	assert.Equal(t, categorize.Income, got[1].Category)
	assert.Equal(t, fmt.Sprintf("cash:9:%d:1", fixedNow.UnixMilli()), got[1].ID)
}

func TestNormalize_CapsEachPayloadAt100(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"id": "big", "connection_data": {"transactions": [`)
	for i := 0; i < 150; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id": "t%d", "type": "credit", "amount": %d, "date": "2024-01-01"}`, i, i)
	}
	b.WriteString(`], "entries": [{"id": "e1", "amount": 1}]}}`)

	got := Normalize(context.Background(), []core.Connection{conn(t, b.String())}, nil, fixedNow)
	require.Len(t, got, 101)
	assert.Equal(t, "upi:big:t0", got[0].ID)
	assert.Equal(t, "upi:big:t99", got[99].ID, "the first 100 in payload order are kept")
	assert.Equal(t, "cash:big:e1", got[100].ID)
}

func TestNormalize_Manual(t *testing.T) {
	var manual []core.ManualTransaction
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "type": "income", "amount": 1000, "transaction_date": "2024-01-03"},
		{"id": 2, "type": "expense", "amount": 45, "description": "Uber to office", "transaction_date": "2024-01-04"},
		{"id": 3, "type": "expense", "amount": 45, "description": "Uber", "category": "Work", "source": "Card", "transaction_date": "2024-01-04"},
		{"id": 4, "type": "transfer", "amount": 99, "transaction_date": "2024-01-04"},
		{"id": 2, "type": "expense", "amount": 45, "description": "duplicate id", "transaction_date": "2024-01-04"}
	]`), &manual))

	got := Normalize(context.Background(), nil, manual, fixedNow)
	require.Len(t, got, 3)
	assert.Equal(t, categorize.Income, got[0].Category)
	assert.Equal(t, "Manual", got[0].Source)
	assert.Equal(t, categorize.Transport, got[1].Category)
	assert.Equal(t, "Work", got[2].Category)
	assert.Equal(t, "Card", got[2].Source)
}

func TestNormalize_MalformedConnectionDoesNotAbortSiblings(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`[1,2,3]`),
		json.RawMessage(`{"id": {"bad": true}}`),
		json.RawMessage(`{"id": "ok", "connection_data": "{\"transactions\": [{\"type\": \"credit\", \"amount\": 5}]}"}`),
	}
	conns := DecodeConnections(context.Background(), raw)
	require.Len(t, conns, 1)

	got := Normalize(context.Background(), conns, nil, fixedNow)
	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0].Amount.String())
}

func TestDecodeManualSkipsNonObjects(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`null`),
		json.RawMessage(`"text"`),
		json.RawMessage(`{"id": 1, "type": "income", "amount": 1}`),
	}
	assert.Len(t, DecodeManual(context.Background(), raw), 1)
}

func TestResolvePayloads(t *testing.T) {
	assert.Nil(t, ResolvePayloads(nil))
	assert.Nil(t, ResolvePayloads(json.RawMessage(`{}`)))

	got := ResolvePayloads(json.RawMessage(`{"entries": [{"amount": 1}], "transactions": [{"type": "debit"}]}`))
	require.Len(t, got, 2)
	assert.Equal(t, PayloadUPI, got[0].Kind)
	assert.Equal(t, PayloadCash, got[1].Kind)
	assert.Equal(t, "cash", got[1].Kind.String())
}
