// Property-based tests for export/load duality using pgregory.net/rapid
package mahimahi

import (
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/andrewh/netem-trace/pkg/model"
	"github.com/andrewh/netem-trace/pkg/unit"
)

// genTrace draws a nondecreasing trace of nonzero timestamps.
func genTrace(t *rapid.T) []uint64 {
	steps := rapid.SliceOfN(rapid.Uint64Range(0, 4), 1, 60).Draw(t, "steps")
	trace := make([]uint64, len(steps))
	ts := rapid.Uint64Range(1, 5).Draw(t, "first")
	for i, step := range steps {
		if i > 0 {
			ts += step
		}
		trace[i] = ts
	}
	return trace
}

func TestPropertyLoadThenExport(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		trace := genTrace(t)
		count := rapid.IntRange(0, 3).Draw(t, "count")

		cfg, err := Load(trace, count)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		gen, err := cfg.Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		last := trace[len(trace)-1]
		got, err := Export(gen, time.Duration(last)*time.Millisecond)
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if !slices.Equal(got, trace) {
			t.Fatalf("export(load(%v)) = %v", trace, got)
		}
	})
}

func TestPropertyExportThenLoad(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		// Whole quanta per whole millisecond survive the round trip exactly. The
		// final segment is nonzero so the exported trace ends at total.
		n := rapid.IntRange(1, 8).Draw(t, "segments")
		pattern := make([]model.BwConfig, n)
		var total time.Duration
		for i := range pattern {
			quanta := rapid.Uint64Range(0, 4).Draw(t, "quanta")
			d := time.Duration(rapid.IntRange(1, 5).Draw(t, "ms")) * time.Millisecond
			pattern[i] = model.NewStaticBwConfig().WithBw(QuantumRate.MulInt(quanta)).WithDuration(d)
			total += d
		}
		final := rapid.Uint64Range(1, 4).Draw(t, "final")
		pattern = append(pattern, model.NewStaticBwConfig().WithBw(QuantumRate.MulInt(final)).WithDuration(time.Millisecond))
		total += time.Millisecond

		first, err := model.NewRepeatedBwPatternConfig().WithPattern(pattern...).WithCount(1).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		trace, err := Export(first, total)
		if err != nil {
			t.Fatalf("export: %v", err)
		}

		cfg, err := Load(trace, 1)
		if err != nil {
			t.Fatalf("load %v: %v", trace, err)
		}
		second, err := cfg.Build()
		if err != nil {
			t.Fatalf("build loaded: %v", err)
		}
		again, err := Export(second, total)
		if err != nil {
			t.Fatalf("export loaded: %v", err)
		}
		if !slices.Equal(trace, again) {
			t.Fatalf("round trip changed trace:\n%v\n%v", trace, again)
		}
	})
}

func TestPropertyExportRate(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		bw := unit.Kbps(rapid.Uint64Range(0, 200_000).Draw(t, "kbps"))
		msTotal := rapid.Uint64Range(0, 200).Draw(t, "ms")
		total := time.Duration(msTotal) * time.Millisecond

		trace, err := model.NewStaticBwConfig().WithBw(bw).WithDuration(time.Hour).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		got, err := Export(trace, total)
		if err != nil {
			t.Fatalf("export: %v", err)
		}

		want := bw.Bps() * msTotal / (QuantumBits * 1000)
		if uint64(len(got)) != want {
			t.Fatalf("%s over %s gave %d opportunities, want %d", bw, total, len(got), want)
		}
		if !slices.IsSorted(got) {
			t.Fatalf("timestamps not sorted: %v", got)
		}
		if len(got) > 0 && (got[0] < 1 || got[len(got)-1] > msTotal) {
			t.Fatalf("timestamps %v outside [1, %d]", got, msTotal)
		}
	})
}
