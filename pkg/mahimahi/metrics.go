// Export counters recorded through the OTel Metrics API
// Counts delivery opportunities emitted and bandwidth segments consumed
package mahimahi

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "netem-trace/mahimahi"

// Metrics records counters for every export.
type Metrics struct {
	opportunities metric.Int64Counter
	segments      metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	opportunities, err := meter.Int64Counter("netemtrace.mahimahi.opportunities",
		metric.WithDescription("Number of delivery opportunities written to mahimahi traces"),
	)
	if err != nil {
		return nil, err
	}

	segments, err := meter.Int64Counter("netemtrace.mahimahi.segments",
		metric.WithDescription("Number of bandwidth segments consumed while exporting"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		opportunities: opportunities,
		segments:      segments,
	}, nil
}

func (m *Metrics) record(ctx context.Context, opportunities, segments int64) {
	m.opportunities.Add(ctx, opportunities)
	m.segments.Add(ctx, segments)
}
