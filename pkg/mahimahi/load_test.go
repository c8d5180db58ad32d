// Tests for loading mahimahi traces and for export/load interoperability
package mahimahi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewh/netem-trace/pkg/model"
	"github.com/andrewh/netem-trace/pkg/unit"
)

type segment struct {
	Bw       unit.Bandwidth
	Duration time.Duration
}

func next(t *testing.T, trace model.BwTrace, n int) []segment {
	t.Helper()
	var out []segment
	for range n {
		bw, d, ok := trace.NextBw()
		if !ok {
			break
		}
		out = append(out, segment{Bw: bw, Duration: d})
	}
	return out
}

func ms(n time.Duration) time.Duration { return n * time.Millisecond }

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load([]uint64{0, 2, 4, 3}, 0)
	require.ErrorIs(t, err, ErrNotMonotonic)
	assert.Contains(t, err.Error(), "trace[3] = 3 follows 4")

	_, err = Load([]uint64{0, 0, 0}, 0)
	require.ErrorIs(t, err, ErrZeroDuration)

	_, err = Load(nil, 1)
	require.ErrorIs(t, err, ErrZeroDuration)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load([]uint64{1, 1, 5, 6}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Count)
	assert.Equal(t, []segment{
		{unit.Mbps(24), ms(1)},
		{0, ms(3)},
		{unit.Mbps(12), ms(2)},
		{unit.Mbps(24), ms(1)},
	}, next(t, build(t, cfg), 4))
}

func TestLoadFoldsLeadingZeros(t *testing.T) {
	t.Parallel()

	cfg, err := Load([]uint64{0, 0, 2, 2, 3, 3, 6, 6}, 0)
	require.NoError(t, err)
	assert.Equal(t, []segment{
		{0, ms(1)},
		{unit.Mbps(24), ms(2)},
		{0, ms(2)},
		{unit.Mbps(48), ms(1)},
		{0, ms(1)},
		{unit.Mbps(24), ms(2)},
	}, next(t, build(t, cfg), 6))

	got, err := Export(build(t, cfg), ms(12))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2, 3, 3, 6, 6, 6, 6, 8, 8, 9, 9, 12, 12, 12, 12}, got)
}

func nestedLoaded(t *testing.T) model.BwConfig {
	t.Helper()
	first, err := Load([]uint64{1, 1, 2, 2, 3, 3}, 1)
	require.NoError(t, err)
	second, err := Load([]uint64{1, 2}, 2)
	require.NoError(t, err)
	return model.NewRepeatedBwPatternConfig().WithPattern(first, second).WithCount(2)
}

func TestLoadNested(t *testing.T) {
	t.Parallel()

	trace := build(t, nestedLoaded(t))
	assert.Equal(t, []segment{
		{unit.Mbps(24), ms(3)},
		{unit.Mbps(12), ms(2)},
		{unit.Mbps(12), ms(2)},
		{unit.Mbps(24), ms(3)},
		{unit.Mbps(12), ms(2)},
		{unit.Mbps(12), ms(2)},
	}, next(t, trace, 10))
	_, _, ok := trace.NextBw()
	assert.False(t, ok)

	got, err := Export(build(t, nestedLoaded(t)), forever)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1, 2, 2, 3, 3, 4, 5, 6, 7, 8, 8, 9, 9, 10, 10, 11, 12, 13, 14}, got)
}

func TestLoadThenExportReproducesTrace(t *testing.T) {
	t.Parallel()

	for _, trace := range [][]uint64{
		{1, 1, 5, 6},
		{2, 2, 3, 3, 4, 4, 5, 5, 8, 9},
		{7},
		{1, 1, 1, 1, 1, 1, 1, 1},
	} {
		cfg, err := Load(trace, 0)
		require.NoError(t, err)
		got, err := Export(build(t, cfg), ms(time.Duration(trace[len(trace)-1])))
		require.NoError(t, err)
		assert.Equal(t, trace, got)
	}
}

func TestLoadedConfigSerialises(t *testing.T) {
	t.Parallel()

	cfg, err := Load([]uint64{1, 1, 5, 6}, 2)
	require.NoError(t, err)
	data, err := model.NewCodec(model.Human).Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t,
		`{"RepeatedBwPatternConfig":{"pattern":[{"StaticBwConfig":{"bw":"24Mbps","duration":"1ms"}},{"StaticBwConfig":{"bw":"0bps","duration":"3ms"}},{"StaticBwConfig":{"bw":"12Mbps","duration":"2ms"}}],"count":2}}`,
		string(data))
}
