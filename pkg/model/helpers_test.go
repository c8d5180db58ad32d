// Shared helpers for draining generators in tests
package model

import (
	"time"

	"github.com/andrewh/netem-trace/pkg/unit"
)

type bwSegment struct {
	Bw       unit.Bandwidth
	Duration time.Duration
}

// drainBw pulls at most limit segments and reports whether the trace ended.
func drainBw(t BwTrace, limit int) ([]bwSegment, bool) {
	var out []bwSegment
	for range limit {
		bw, d, ok := t.NextBw()
		if !ok {
			return out, true
		}
		out = append(out, bwSegment{Bw: bw, Duration: d})
	}
	return out, false
}

func totalDuration(segs []bwSegment) time.Duration {
	var total time.Duration
	for _, s := range segs {
		total += s.Duration
	}
	return total
}

func drainPerPacket(t DelayPerPacketTrace, limit int) ([]time.Duration, bool) {
	var out []time.Duration
	for range limit {
		d, ok := t.NextDelay()
		if !ok {
			return out, true
		}
		out = append(out, d)
	}
	return out, false
}

func seg(bw unit.Bandwidth, d time.Duration) bwSegment {
	return bwSegment{Bw: bw, Duration: d}
}
