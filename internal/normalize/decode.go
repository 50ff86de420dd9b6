package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"finboard/internal/core"
)

// DecodeConnections decodes each element independently. Elements that are
// not JSON objects or fail to decode are skipped.
func DecodeConnections(ctx context.Context, raw []json.RawMessage) []core.Connection {
	out := make([]core.Connection, 0, len(raw))
	for i, elem := range raw {
		var c core.Connection
		if !decodeObject(elem, &c) {
			slog.DebugContext(ctx, "Skipping malformed connection", "index", i)
			continue
		}
		out = append(out, c)
	}
	return out
}

// DecodeManual decodes manual transactions, skipping malformed elements.
func DecodeManual(ctx context.Context, raw []json.RawMessage) []core.ManualTransaction {
	out := make([]core.ManualTransaction, 0, len(raw))
	for i, elem := range raw {
		var m core.ManualTransaction
		if !decodeObject(elem, &m) {
			slog.DebugContext(ctx, "Skipping malformed manual transaction", "index", i)
			continue
		}
		out = append(out, m)
	}
	return out
}

func decodeObject(elem json.RawMessage, v any) bool {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 || elem[0] != '{' {
		return false
	}
	return json.Unmarshal(elem, v) == nil
}
