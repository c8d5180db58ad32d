// Reconstruction of a repeated bandwidth pattern from mahimahi timestamps
// The inverse of Export for traces without zero timestamps
package mahimahi

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andrewh/netem-trace/pkg/model"
	"github.com/andrewh/netem-trace/pkg/unit"
)

var (
	// ErrNotMonotonic is returned when a timestamp is smaller than the one before it.
	ErrNotMonotonic = errors.New("timestamps must be monotonically nondecreasing")
	// ErrZeroDuration is returned when a trace has no nonzero timestamp.
	ErrZeroDuration = errors.New("trace must last for a nonzero amount of time")
)

// Load converts a mahimahi trace into a repeated pattern of static bandwidth
// segments played count times (zero repeats forever). A timestamp seen k times
// becomes k quanta delivered within that millisecond, and gaps become
// zero-bandwidth segments. Adjacent segments with equal bandwidth are merged.
//
// Zero timestamps carry no position in the cycle; their quanta are added to
// the final millisecond, so only traces without them load exactly.
func Load(trace []uint64, count int) (*model.RepeatedBwPatternConfig, error) {
	var (
		pattern []*model.StaticBwConfig
		zeros   uint64
		last    uint64
		same    uint64
	)

	push := func(bw unit.Bandwidth, ms uint64) {
		d := millis(ms)
		if n := len(pattern); n > 0 && *pattern[n-1].Bw == bw {
			*pattern[n-1].Duration = unit.SaturatingAdd(*pattern[n-1].Duration, d)
			return
		}
		pattern = append(pattern, model.NewStaticBwConfig().WithBw(bw).WithDuration(d))
	}

	for i, ts := range trace {
		switch {
		case ts == 0:
			zeros++
		case ts < last:
			return nil, fmt.Errorf("%w: trace[%d] = %d follows %d", ErrNotMonotonic, i, ts, last)
		case ts == last:
			same++
		default:
			if last > 0 {
				push(QuantumRate.MulInt(same), 1)
			}
			if gap := ts - last; gap > 1 {
				push(0, gap-1)
			}
			last, same = ts, 1
		}
	}
	if same == 0 {
		return nil, ErrZeroDuration
	}
	push(QuantumRate.MulInt(same+zeros), 1)

	cfgs := make([]model.BwConfig, len(pattern))
	for i, cfg := range pattern {
		cfgs[i] = cfg
	}
	return model.NewRepeatedBwPatternConfig().WithPattern(cfgs...).WithCount(count), nil
}

// millis converts a millisecond count to a duration, saturating on overflow.
func millis(ms uint64) time.Duration {
	if ms > uint64(math.MaxInt64/int64(Bin)) {
		return math.MaxInt64
	}
	return time.Duration(ms) * Bin
}
