package refresh

import (
	"context"
	"encoding/json"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/cutoff"
	"finboard/internal/normalize"
)

// Project runs decode, normalize, cutoff and aggregate over the raw lists
// of one pass. Malformed records are skipped.
func Project(ctx context.Context, n normalize.Normalizer, rawConns, rawManual []json.RawMessage) (core.Views, cutoff.Cutoff) {
	conns := normalize.DecodeConnections(ctx, rawConns)
	manual := normalize.DecodeManual(ctx, rawManual)

	txs := n.Normalize(ctx, conns, manual)
	cut := cutoff.Compute(conns)
	return aggregate.Aggregate(cut.Filter(txs)), cut
}
