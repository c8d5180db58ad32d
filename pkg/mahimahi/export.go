// Conversion of bandwidth traces into mahimahi delivery-opportunity timestamps
// Credit is accumulated exactly in bit-nanoseconds and spent one 1500-byte quantum at a time
package mahimahi

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"go.uber.org/zap"

	"github.com/andrewh/netem-trace/pkg/model"
	"github.com/andrewh/netem-trace/pkg/unit"
)

const (
	// QuantumBytes is the packet size one delivery opportunity represents.
	QuantumBytes = 1500
	// QuantumBits is QuantumBytes in bits.
	QuantumBits = QuantumBytes * 8
	// Bin is the timestamp resolution.
	Bin = time.Millisecond
)

// quantumCredit is the credit, in bit/s times nanoseconds, that buys one
// opportunity: one quantum per bin is exactly QuantumBits kbit/s.
const quantumCredit = QuantumBits * 1000 * uint64(Bin)

// QuantumRate is the bandwidth that yields exactly one opportunity per bin.
var QuantumRate = unit.Kbps(QuantumBits)

// Exporter renders bandwidth traces as mahimahi timestamp sequences.
// Logger and Metrics are optional.
type Exporter struct {
	Logger  *zap.Logger
	Metrics *Metrics
}

// Export pulls segments from trace until it ends or the bin timestamp passes
// total, and returns one timestamp per delivery opportunity. Timestamps are
// in milliseconds and name the end of the bin in which the opportunity
// completed, so the first bin is 1.
//
// Fractional credit carries over between segments. Export stops early with
// the timestamps produced so far if ctx is cancelled or if trace reports that
// one of its children failed to build.
func (e *Exporter) Export(ctx context.Context, trace model.BwTrace, total time.Duration) ([]uint64, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Bins are one millisecond wide.
	limit := unit.Millis(total)
	var (
		out       []uint64
		timestamp uint64 = 1
		credit    uint64
		binLeft   = Bin
		segments  int64
	)

	for timestamp <= limit {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		bw, d, ok := trace.NextBw()
		if !ok {
			break
		}
		segments++

		for timestamp <= limit && d > 0 {
			slice := min(binLeft, d)
			binLeft -= slice
			d -= slice

			var n uint64
			n, credit = spend(credit, bw, slice)
			for range n {
				out = append(out, timestamp)
			}

			if binLeft == 0 {
				binLeft = Bin
				timestamp++
			}
		}
	}

	if e.Metrics != nil {
		e.Metrics.record(ctx, int64(len(out)), segments)
	}
	logger.Debug("exported mahimahi trace",
		zap.Int("opportunities", len(out)),
		zap.Int64("segments", segments),
		zap.Duration("total", total),
	)

	if f, ok := trace.(interface{ Err() error }); ok {
		if err := f.Err(); err != nil {
			return out, fmt.Errorf("export stopped early: %w", err)
		}
	}
	return out, nil
}

// spend adds bw sustained for d to credit and returns how many whole quanta
// the credit now covers together with the remainder.
func spend(credit uint64, bw unit.Bandwidth, d time.Duration) (uint64, uint64) {
	hi, lo := bits.Mul64(bw.Bps(), uint64(d))
	lo, carry := bits.Add64(lo, credit, 0)
	hi += carry
	return bits.Div64(hi, lo, quantumCredit)
}

// Export renders trace with a default Exporter.
func Export(trace model.BwTrace, total time.Duration) ([]uint64, error) {
	var e Exporter
	return e.Export(context.Background(), trace, total)
}
