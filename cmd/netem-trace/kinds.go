// Signal kinds accepted by the --kind flag
// Each kind loads its own registry and samples its generator for previews
package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/andrewh/netem-trace/pkg/model"
	"github.com/andrewh/netem-trace/pkg/unit"
)

var kindNames = []string{"bw", "delay", "loss", "duplicate", "delay-per-packet"}

func validateKind(kind string) error {
	if slices.Contains(kindNames, kind) {
		return nil
	}
	return fmt.Errorf("unknown kind %q, supported: %s", kind, strings.Join(kindNames, ", "))
}

// loadKind decodes the configuration at path with the registry for kind.
func loadKind(kind, path string, codec *model.Codec) (model.Config, error) {
	switch kind {
	case "bw":
		return model.LoadConfig(path, codec, model.BwConfigs)
	case "delay":
		return model.LoadConfig(path, codec, model.DelayConfigs)
	case "loss":
		return model.LoadConfig(path, codec, model.LossConfigs)
	case "duplicate":
		return model.LoadConfig(path, codec, model.DuplicateConfigs)
	case "delay-per-packet":
		return model.LoadConfig(path, codec, model.DelayPerPacketConfigs)
	default:
		return nil, validateKind(kind)
	}
}

// sample is one segment (or one packet) drawn from a generator.
type sample struct {
	Start    time.Duration
	Duration time.Duration
	Value    float64 // plotted value, in the unit named by signalPreview.Unit
	Label    string
}

// signalPreview holds the first segments of a generator.
type signalPreview struct {
	Kind      string
	Unit      string
	PerPacket bool
	Samples   []sample
	Truncated bool // drawing stopped at the limit, not at exhaustion
}

// End reports where the last sample ends: elapsed time for segmented kinds
// and the packet count for per-packet kinds.
func (p *signalPreview) End() float64 {
	if len(p.Samples) == 0 {
		return 0
	}
	if p.PerPacket {
		return float64(len(p.Samples))
	}
	last := p.Samples[len(p.Samples)-1]
	return float64(last.Start) + float64(last.Duration)
}

func (p *signalPreview) add(v float64, label string, d time.Duration) {
	var start time.Duration
	if n := len(p.Samples); n > 0 {
		start = unit.SaturatingAdd(p.Samples[n-1].Start, p.Samples[n-1].Duration)
	}
	p.Samples = append(p.Samples, sample{Start: start, Duration: d, Value: v, Label: label})
}

// samplePreview builds cfg and draws up to limit segments from it.
func samplePreview(cfg model.Config, limit int) (*signalPreview, error) {
	switch c := cfg.(type) {
	case model.BwConfig:
		trace, err := c.Build()
		if err != nil {
			return nil, err
		}
		p := &signalPreview{Kind: "bandwidth", Unit: "Mbps"}
		p.Truncated = drain(limit, func() bool {
			bw, d, ok := trace.NextBw()
			if ok {
				p.add(bw.Mbps(), bw.String(), d)
			}
			return ok
		})
		return p, traceErr(trace)

	case model.DelayConfig:
		trace, err := c.Build()
		if err != nil {
			return nil, err
		}
		p := &signalPreview{Kind: "delay", Unit: "ms"}
		p.Truncated = drain(limit, func() bool {
			delay, d, ok := trace.NextDelay()
			if ok {
				p.add(millis(delay), delay.String(), d)
			}
			return ok
		})
		return p, traceErr(trace)

	case model.LossConfig:
		trace, err := c.Build()
		if err != nil {
			return nil, err
		}
		p := &signalPreview{Kind: "loss", Unit: "probability"}
		p.Truncated = drain(limit, func() bool {
			loss, d, ok := trace.NextLoss()
			if ok {
				p.add(first(loss), formatPattern(loss), d)
			}
			return ok
		})
		return p, traceErr(trace)

	case model.DuplicateConfig:
		trace, err := c.Build()
		if err != nil {
			return nil, err
		}
		p := &signalPreview{Kind: "duplicate", Unit: "probability"}
		p.Truncated = drain(limit, func() bool {
			dup, d, ok := trace.NextDuplicate()
			if ok {
				p.add(first(dup), formatPattern(dup), d)
			}
			return ok
		})
		return p, traceErr(trace)

	case model.DelayPerPacketConfig:
		trace, err := c.Build()
		if err != nil {
			return nil, err
		}
		p := &signalPreview{Kind: "delay", Unit: "ms", PerPacket: true}
		p.Truncated = drain(limit, func() bool {
			delay, ok := trace.NextDelay()
			if ok {
				p.add(millis(delay), delay.String(), 0)
			}
			return ok
		})
		return p, traceErr(trace)

	default:
		return nil, fmt.Errorf("%s has no generator", cfg.Tag())
	}
}

// drain calls next until it reports exhaustion or limit samples were taken.
// It returns true if it stopped because of the limit.
func drain(limit int, next func() bool) bool {
	for range limit {
		if !next() {
			return false
		}
	}
	return limit > 0
}

func traceErr(trace any) error {
	if f, ok := trace.(interface{ Err() error }); ok {
		return f.Err()
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func first(pattern []float64) float64 {
	if len(pattern) == 0 {
		return 0
	}
	return pattern[0]
}

func formatPattern(pattern []float64) string {
	parts := make([]string, len(pattern))
	for i, p := range pattern {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
