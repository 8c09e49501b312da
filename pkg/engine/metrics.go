package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments come from the global meter provider. Without an SDK installed
// they are no-ops.
type instruments struct {
	entries  metric.Int64Counter
	dropped  metric.Int64Counter
	bypassed metric.Int64Counter
	reloads  metric.Int64Counter
	errors   metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     instruments
)

func meters() *instruments {
	instOnce.Do(func() {
		meter := otel.Meter("keywordgate/engine")
		inst.entries, _ = meter.Int64Counter("keywordgate_entries_total")
		inst.dropped, _ = meter.Int64Counter("keywordgate_entries_dropped_total")
		inst.bypassed, _ = meter.Int64Counter("keywordgate_bypass_total")
		inst.reloads, _ = meter.Int64Counter("keywordgate_keyword_reloads_total")
		inst.errors, _ = meter.Int64Counter("keywordgate_process_errors_total")
	})
	return &inst
}

func recordKeywordReload(processor string) {
	meters().reloads.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("processor", processor)))
}
