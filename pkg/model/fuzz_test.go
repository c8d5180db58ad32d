// Fuzz targets for the configuration codec
// Run with: go test -fuzz=FuzzDecodeBw ./pkg/model/ -fuzztime=30s
package model

import (
	"testing"

	"pgregory.net/rapid"
)

// FuzzDecodeBw feeds arbitrary documents to the bandwidth decoder. Decoding
// may fail but must not panic, and anything it accepts must re-encode to a
// document that decodes to the same bytes again.
func FuzzDecodeBw(f *testing.F) {
	for _, seed := range []string{
		`{"StaticBwConfig":{"bw":"12Mbps","duration":"1s"}}`,
		`{"TraceBwConfig":[[1,[1.5,2]]]}`,
		`{"RepeatedBwPatternConfig":{"pattern":[{"StaticBwConfig":{}}],"count":0}}`,
		`{"NormalizedBwConfig":{"mean":{"gbps":0,"bps":12000000},"seed":7}}`,
	} {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, enc := range []Encoding{Structured, Human} {
			codec := NewCodec(enc)
			cfg, err := codec.UnmarshalBw(data)
			if err != nil {
				continue
			}
			out, err := codec.Marshal(cfg)
			if err != nil {
				t.Fatalf("marshal accepted document %s: %v", data, err)
			}
			again, err := codec.UnmarshalBw(out)
			if err != nil {
				t.Fatalf("decode re-encoded %s: %v", out, err)
			}
			second, err := codec.Marshal(again)
			if err != nil {
				t.Fatalf("re-marshal: %v", err)
			}
			if string(second) != string(out) {
				t.Fatalf("encoding not stable:\n%s\n%s", out, second)
			}
		}
	})
}

// FuzzBuildGenerated builds randomly generated bandwidth configurations and
// checks that every segment they produce is non-empty.
func FuzzBuildGenerated(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(func(t *rapid.T) {
		cfg := genSteppedBwConfig(t, genMillis(t, "duration", 0, 5000), genMillis(t, "step", 1, 500))
		trace, err := cfg.Build()
		if err != nil {
			t.Fatalf("build %s: %v", cfg.Tag(), err)
		}
		for {
			_, d, ok := trace.NextBw()
			if !ok {
				break
			}
			if d <= 0 {
				t.Fatalf("%s produced a segment of %s", cfg.Tag(), d)
			}
		}
	}))
}
