// Replay of measured bandwidth logs stored as (duration, [bandwidth...]) groups
// Serialised compactly as [[duration_ms, [mbps, ...]], ...]
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/andrewh/netem-trace/pkg/unit"
)

// TraceGroup is a run of bandwidth samples that each last Duration.
type TraceGroup struct {
	Duration   time.Duration
	Bandwidths []unit.Bandwidth
}

// TraceBw replays trace groups sample by sample.
type TraceBw struct {
	groups []TraceGroup
	outer  int
	inner  int
}

func (t *TraceBw) NextBw() (unit.Bandwidth, time.Duration, bool) {
	if t.outer >= len(t.groups) {
		return 0, 0, false
	}
	g := t.groups[t.outer]
	bw := g.Bandwidths[t.inner]
	t.inner++
	if t.inner >= len(g.Bandwidths) {
		t.inner = 0
		t.outer++
	}
	return bw, g.Duration, true
}

// TraceBwConfig configures a TraceBw. Groups without samples or with a zero
// duration are dropped when building.
type TraceBwConfig struct {
	Pattern []TraceGroup
}

func NewTraceBwConfig() *TraceBwConfig { return &TraceBwConfig{} }

// WithPattern appends groups to the pattern.
func (c *TraceBwConfig) WithPattern(groups ...TraceGroup) *TraceBwConfig {
	c.Pattern = append(c.Pattern, groups...)
	return c
}

func (c *TraceBwConfig) Tag() string { return "TraceBwConfig" }

func (c *TraceBwConfig) Validate() error {
	for i, g := range c.Pattern {
		if g.Duration < 0 {
			return invalidf("pattern[%d] duration must not be negative, got %s", i, g.Duration)
		}
	}
	return nil
}

// Describe exposes the pattern as a single field. The codec writes TraceBwConfig
// through MarshalJSON instead, so the document body is the bare group list.
func (c *TraceBwConfig) Describe(f *Fields) {
	f.Value("pattern", c, c.Pattern == nil)
}

func (c *TraceBwConfig) Build() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	groups := make([]TraceGroup, 0, len(c.Pattern))
	for _, g := range c.Pattern {
		if g.Duration == 0 || len(g.Bandwidths) == 0 {
			continue
		}
		groups = append(groups, TraceGroup{Duration: g.Duration, Bandwidths: slices.Clone(g.Bandwidths)})
	}
	return &TraceBw{groups: groups}, nil
}

// MarshalJSON writes [[duration_ms, [mbps, ...]], ...].
func (c *TraceBwConfig) MarshalJSON() ([]byte, error) {
	out := make([][2]any, 0, len(c.Pattern))
	for _, g := range c.Pattern {
		mbps := make([]float64, len(g.Bandwidths))
		for i, bw := range g.Bandwidths {
			mbps[i] = bw.Mbps()
		}
		out = append(out, [2]any{float64(g.Duration) / float64(time.Millisecond), mbps})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (c *TraceBwConfig) UnmarshalJSON(data []byte) error {
	var raw [][2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected [[duration_ms, [mbps, ...]], ...]: %w", err)
	}

	pattern := make([]TraceGroup, 0, len(raw))
	for i, entry := range raw {
		var ms float64
		if err := json.Unmarshal(entry[0], &ms); err != nil {
			return fmt.Errorf("pattern[%d] duration: %w", i, err)
		}
		if math.IsNaN(ms) || ms < 0 || ms*float64(time.Millisecond) >= math.MaxInt64 {
			return fmt.Errorf("pattern[%d] duration %g ms is out of range", i, ms)
		}
		var mbps []float64
		if err := json.Unmarshal(entry[1], &mbps); err != nil {
			return fmt.Errorf("pattern[%d] bandwidths: %w", i, err)
		}
		g := TraceGroup{
			Duration:   time.Duration(math.Round(ms * float64(time.Millisecond))),
			Bandwidths: make([]unit.Bandwidth, len(mbps)),
		}
		for j, v := range mbps {
			if math.IsNaN(v) || v < 0 {
				return fmt.Errorf("pattern[%d] bandwidth %g Mbps must not be negative", i, v)
			}
			g.Bandwidths[j] = unit.FromBpsFloat(math.Round(v * 1e6))
		}
		pattern = append(pattern, g)
	}
	if len(pattern) == 0 {
		pattern = nil
	}
	c.Pattern = pattern
	return nil
}
