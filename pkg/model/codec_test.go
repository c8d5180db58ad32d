// Tests for the tagged configuration codec and tag registries
// Documents are checked byte-for-byte under both scalar encodings
package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewh/netem-trace/pkg/unit"
)

func TestCodecDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding Encoding
		cfg      Config
		want     string
		decode   func(*Codec, []byte) (Config, error)
	}{
		{
			name:     "repeated bandwidth structured",
			encoding: Structured,
			cfg: NewRepeatedBwPatternConfig().
				WithPattern(staticBw(12, time.Second), staticBw(24, time.Second)).
				WithCount(2),
			want: `{"RepeatedBwPatternConfig":{"pattern":[{"StaticBwConfig":{"bw":{"gbps":0,"bps":12000000},"duration":{"secs":1,"nanos":0}}},{"StaticBwConfig":{"bw":{"gbps":0,"bps":24000000},"duration":{"secs":1,"nanos":0}}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
		{
			name:     "repeated bandwidth human",
			encoding: Human,
			cfg: NewRepeatedBwPatternConfig().
				WithPattern(staticBw(12, time.Second), staticBw(24, time.Second)).
				WithCount(2),
			want:   `{"RepeatedBwPatternConfig":{"pattern":[{"StaticBwConfig":{"bw":"12Mbps","duration":"1s"}},{"StaticBwConfig":{"bw":"24Mbps","duration":"1s"}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
		{
			name:     "repeated delay structured",
			encoding: Structured,
			cfg: NewRepeatedDelayPatternConfig().
				WithPattern(
					NewStaticDelayConfig().WithDelay(10*time.Millisecond).WithDuration(time.Second),
					NewStaticDelayConfig().WithDelay(20*time.Millisecond).WithDuration(time.Second),
				).
				WithCount(2),
			want:   `{"RepeatedDelayPatternConfig":{"pattern":[{"StaticDelayConfig":{"delay":{"secs":0,"nanos":10000000},"duration":{"secs":1,"nanos":0}}},{"StaticDelayConfig":{"delay":{"secs":0,"nanos":20000000},"duration":{"secs":1,"nanos":0}}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalDelay(b) },
		},
		{
			name:     "repeated delay human",
			encoding: Human,
			cfg: NewRepeatedDelayPatternConfig().
				WithPattern(
					NewStaticDelayConfig().WithDelay(10*time.Millisecond).WithDuration(time.Second),
					NewStaticDelayConfig().WithDelay(20*time.Millisecond).WithDuration(time.Second),
				).
				WithCount(2),
			want:   `{"RepeatedDelayPatternConfig":{"pattern":[{"StaticDelayConfig":{"delay":"10ms","duration":"1s"}},{"StaticDelayConfig":{"delay":"20ms","duration":"1s"}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalDelay(b) },
		},
		{
			name:     "repeated loss structured",
			encoding: Structured,
			cfg: NewRepeatedLossPatternConfig().
				WithPattern(
					NewStaticLossConfig().WithLoss(0.1, 0.2).WithDuration(time.Second),
					NewStaticLossConfig().WithLoss(0.2, 0.4).WithDuration(time.Second),
				).
				WithCount(2),
			want:   `{"RepeatedLossPatternConfig":{"pattern":[{"StaticLossConfig":{"loss":[0.1,0.2],"duration":{"secs":1,"nanos":0}}},{"StaticLossConfig":{"loss":[0.2,0.4],"duration":{"secs":1,"nanos":0}}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalLoss(b) },
		},
		{
			name:     "repeated duplicate human",
			encoding: Human,
			cfg: NewRepeatedDuplicatePatternConfig().
				WithPattern(
					NewStaticDuplicateConfig().WithDuplicate(0.1, 0.2).WithDuration(time.Second),
					NewStaticDuplicateConfig().WithDuplicate(0.2, 0.4).WithDuration(time.Second),
				).
				WithCount(2),
			want:   `{"RepeatedDuplicatePatternConfig":{"pattern":[{"StaticDuplicateConfig":{"duplicate":[0.1,0.2],"duration":"1s"}},{"StaticDuplicateConfig":{"duplicate":[0.2,0.4],"duration":"1s"}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalDuplicate(b) },
		},
		{
			name:     "repeated per-packet delay human",
			encoding: Human,
			cfg: NewRepeatedDelayPerPacketPatternConfig().
				WithPattern(
					NewStaticDelayPerPacketConfig().WithDelay(10*time.Millisecond).WithCount(1),
					NewStaticDelayPerPacketConfig().WithDelay(20*time.Millisecond).WithCount(1),
				).
				WithCount(2),
			want:   `{"RepeatedDelayPerPacketPatternConfig":{"pattern":[{"StaticDelayPerPacketConfig":{"delay":"10ms","count":1}},{"StaticDelayPerPacketConfig":{"delay":"20ms","count":1}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalDelayPerPacket(b) },
		},
		{
			name:     "repeated per-packet delay structured",
			encoding: Structured,
			cfg: NewRepeatedDelayPerPacketPatternConfig().
				WithPattern(
					NewStaticDelayPerPacketConfig().WithDelay(10*time.Millisecond).WithCount(1),
					NewStaticDelayPerPacketConfig().WithDelay(20*time.Millisecond).WithCount(1),
				).
				WithCount(2),
			want:   `{"RepeatedDelayPerPacketPatternConfig":{"pattern":[{"StaticDelayPerPacketConfig":{"delay":{"secs":0,"nanos":10000000},"count":1}},{"StaticDelayPerPacketConfig":{"delay":{"secs":0,"nanos":20000000},"count":1}}],"count":2}}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalDelayPerPacket(b) },
		},
		{
			name:     "sparse normalized bandwidth",
			encoding: Human,
			cfg:      NewNormalizedBwConfig().WithMean(unit.Mbps(12)).WithStdDev(unit.Mbps(1)).WithSeed(7),
			want:     `{"NormalizedBwConfig":{"mean":"12Mbps","std_dev":"1Mbps","seed":7}}`,
			decode:   func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
		{
			name:     "empty static bandwidth",
			encoding: Structured,
			cfg:      NewStaticBwConfig(),
			want:     `{"StaticBwConfig":{}}`,
			decode:   func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
		{
			name:     "empty repeated pattern",
			encoding: Structured,
			cfg:      NewRepeatedBwPatternConfig(),
			want:     `{"RepeatedBwPatternConfig":{"pattern":[],"count":0}}`,
			decode:   func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
		{
			name:     "trace replay",
			encoding: Human,
			cfg: NewTraceBwConfig().WithPattern(
				TraceGroup{Duration: time.Millisecond, Bandwidths: []unit.Bandwidth{unit.Kbps(1500), unit.Mbps(2)}},
				TraceGroup{Duration: 2500 * time.Microsecond, Bandwidths: []unit.Bandwidth{0}},
			),
			want:   `{"TraceBwConfig":[[1,[1.5,2]],[2.5,[0]]]}`,
			decode: func(c *Codec, b []byte) (Config, error) { return c.UnmarshalBw(b) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			codec := NewCodec(tt.encoding)

			got, err := codec.Marshal(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))

			decoded, err := tt.decode(codec, []byte(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Tag(), decoded.Tag())

			again, err := codec.Marshal(decoded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(again))
		})
	}
}

func TestCodecDecodedConfigBuilds(t *testing.T) {
	t.Parallel()

	codec := NewCodec(Structured)
	cfg, err := codec.UnmarshalBw([]byte(`{"RepeatedBwPatternConfig":{"pattern":[{"StaticBwConfig":{"bw":{"gbps":0,"bps":12000000},"duration":{"secs":1,"nanos":0}}},{"StaticBwConfig":{"bw":{"gbps":0,"bps":24000000},"duration":{"secs":1,"nanos":0}}}],"count":2}}`))
	require.NoError(t, err)

	trace, err := cfg.Build()
	require.NoError(t, err)
	segs, done := drainBw(trace, 10)
	require.True(t, done)
	assert.Equal(t, []bwSegment{
		seg(unit.Mbps(12), time.Second),
		seg(unit.Mbps(24), time.Second),
		seg(unit.Mbps(12), time.Second),
		seg(unit.Mbps(24), time.Second),
	}, segs)
}

func TestCodecAbsentAndNullFieldsTakeDefaults(t *testing.T) {
	t.Parallel()

	codec := NewCodec(Human)
	for _, doc := range []string{
		`{"StaticBwConfig":{}}`,
		`{"StaticBwConfig":{"bw":null,"duration":null}}`,
	} {
		cfg, err := codec.UnmarshalBw([]byte(doc))
		require.NoError(t, err, doc)
		static, ok := cfg.(*StaticBwConfig)
		require.True(t, ok)
		assert.Nil(t, static.Bw)
		assert.Nil(t, static.Duration)

		trace, err := cfg.Build()
		require.NoError(t, err)
		segs, _ := drainBw(trace, 2)
		assert.Equal(t, []bwSegment{seg(unit.Mbps(12), time.Second)}, segs)
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding Encoding
		doc      string
		wantErr  []string
		unknown  bool
	}{
		{
			name:    "unknown tag",
			doc:     `{"WobblyBwConfig":{}}`,
			wantErr: []string{`"WobblyBwConfig"`, "StaticBwConfig", `{"WobblyBwConfig":{}}`},
			unknown: true,
		},
		{
			name:    "nested unknown tag",
			doc:     `{"RepeatedBwPatternConfig":{"pattern":[{"Nope":{}}],"count":1}}`,
			wantErr: []string{"pattern[0]", `"Nope"`},
			unknown: true,
		},
		{
			name:    "unknown field",
			doc:     `{"StaticBwConfig":{"bandwidth":{"gbps":0,"bps":1}}}`,
			wantErr: []string{`unknown field "bandwidth"`},
		},
		{
			name:    "two tags",
			doc:     `{"StaticBwConfig":{},"SawtoothBwConfig":{}}`,
			wantErr: []string{"exactly one type tag"},
		},
		{
			name:    "not an object",
			doc:     `[1,2,3]`,
			wantErr: []string{"[1,2,3]"},
		},
		{
			name:     "human string under structured encoding",
			encoding: Structured,
			doc:      `{"StaticBwConfig":{"bw":"12Mbps"}}`,
			wantErr:  []string{`field "bw" ("12Mbps")`},
		},
		{
			name:     "structured value under human encoding",
			encoding: Human,
			doc:      `{"StaticBwConfig":{"duration":{"secs":1,"nanos":0}}}`,
			wantErr:  []string{`field "duration"`, `{"secs":1,"nanos":0}`},
		},
		{
			name:     "unparseable unit string",
			encoding: Human,
			doc:      `{"StaticBwConfig":{"bw":"12 parsecs"}}`,
			wantErr:  []string{`"12 parsecs"`},
		},
		{
			name:    "structured bandwidth with extra key",
			doc:     `{"StaticBwConfig":{"bw":{"gbps":0,"bps":1,"mbps":3}}}`,
			wantErr: []string{`field "bw"`, "mbps"},
		},
		{
			name:    "out of range nanos",
			doc:     `{"StaticDelayConfig":{"delay":{"secs":0,"nanos":1000000000}}}`,
			wantErr: []string{`field "delay"`},
		},
		{
			name:    "malformed trace replay",
			doc:     `{"TraceBwConfig":{"pattern":[]}}`,
			wantErr: []string{"duration_ms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			codec := NewCodec(tt.encoding)
			var err error
			if strings.Contains(tt.doc, "Delay") {
				_, err = codec.UnmarshalDelay([]byte(tt.doc))
			} else {
				_, err = codec.UnmarshalBw([]byte(tt.doc))
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
			if tt.unknown {
				assert.ErrorIs(t, err, ErrUnknownTag)
			}
		})
	}
}

func TestCodecErrorSnippetIsBounded(t *testing.T) {
	t.Parallel()

	truncated := `{"StaticBwConfig":{"bw":[` + strings.Repeat("1,", 250)
	_, err := NewCodec(Structured).UnmarshalBw([]byte(truncated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 300)
}

func TestCodecTraceBwRounding(t *testing.T) {
	t.Parallel()

	cfg, err := NewCodec(Structured).UnmarshalBw([]byte(`{"TraceBwConfig":[[0.5,[0.0000015,12]],[1,[]]]}`))
	require.NoError(t, err)
	trace, ok := cfg.(*TraceBwConfig)
	require.True(t, ok)
	require.Len(t, trace.Pattern, 2)
	assert.Equal(t, 500*time.Microsecond, trace.Pattern[0].Duration)
	assert.Equal(t, []unit.Bandwidth{unit.Bps(2), unit.Mbps(12)}, trace.Pattern[0].Bandwidths)

	gen, err := cfg.Build()
	require.NoError(t, err)
	segs, done := drainBw(gen, 10)
	assert.True(t, done)
	assert.Len(t, segs, 2)
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{in: "structured", want: Structured},
		{in: "", want: Structured},
		{in: " Human ", want: Human},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[BwConfig]("bandwidth")
	require.NoError(t, reg.Register(func() BwConfig { return brokenBwConfig{} }))
	require.NoError(t, reg.Register(func() BwConfig { return NewStaticBwConfig() }))

	err := reg.Register(func() BwConfig { return NewStaticBwConfig() })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Equal(t, []string{"StaticBwConfig", "brokenBwConfig"}, reg.Tags())
	assert.Equal(t, "bandwidth", reg.Kind())

	cfg, err := Decode(NewCodec(Structured), reg, []byte(`{"brokenBwConfig":{}}`))
	require.NoError(t, err)
	_, err = cfg.Build()
	require.ErrorIs(t, err, errBrokenBuild)

	_, err = reg.New("SawtoothBwConfig")
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestBuiltinRegistries(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"LogNormalizedBwConfig",
		"NormalizedBwConfig",
		"RepeatedBwPatternConfig",
		"SawtoothBwConfig",
		"StaticBwConfig",
		"TraceBwConfig",
	}, BwConfigs.Tags())
	assert.Equal(t, []string{"NormalizedDelayConfig", "RepeatedDelayPatternConfig", "StaticDelayConfig"}, DelayConfigs.Tags())
	assert.Equal(t, []string{"RepeatedLossPatternConfig", "StaticLossConfig"}, LossConfigs.Tags())
	assert.Equal(t, []string{"RepeatedDuplicatePatternConfig", "StaticDuplicateConfig"}, DuplicateConfigs.Tags())
	assert.Equal(t, []string{
		"LogNormalizedDelayPerPacketConfig",
		"NormalizedDelayPerPacketConfig",
		"RepeatedDelayPerPacketPatternConfig",
		"StaticDelayPerPacketConfig",
	}, DelayPerPacketConfigs.Tags())

	// Every factory must produce a configuration whose tag matches its key.
	for _, tag := range BwConfigs.Tags() {
		cfg, err := BwConfigs.New(tag)
		require.NoError(t, err)
		assert.Equal(t, tag, cfg.Tag())
	}
}
