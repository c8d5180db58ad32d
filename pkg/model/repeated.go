// Repeated-pattern combinator shared by every signal kind
// Children are built lazily from their configurations and driven to exhaustion in order
package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/andrewh/netem-trace/pkg/unit"
)

// cycler sequences child generators built from pattern, count times over (zero
// means forever). A child is built only when reached and is dropped once it
// reports exhaustion.
//
// A cycle in which no child produced anything ends the cycler, otherwise a
// forever pattern of empty children would never return.
type cycler[C Config, T any] struct {
	pattern []C
	count   int
	build   func(C) (T, error)

	cycle    int
	index    int
	live     T
	hasLive  bool
	produced bool
	done     bool
	err      error
}

func newCycler[C Config, T any](pattern []C, count int, build func(C) (T, error)) cycler[C, T] {
	return cycler[C, T]{pattern: slices.Clone(pattern), count: count, build: build}
}

// next pulls from the live child until pull reports a segment or the pattern is
// exhausted.
func (c *cycler[C, T]) next(pull func(T) bool) bool {
	for {
		if c.done || len(c.pattern) == 0 || (c.count != 0 && c.cycle >= c.count) {
			c.done = true
			return false
		}

		if !c.hasLive {
			child, err := c.build(c.pattern[c.index])
			if err != nil {
				c.err = fmt.Errorf("build pattern[%d] (%s): %w", c.index, c.pattern[c.index].Tag(), err)
				c.done = true
				return false
			}
			c.live, c.hasLive = child, true
		}

		if pull(c.live) {
			c.produced = true
			return true
		}

		// A nested pattern that stopped on a failed build ends this one too.
		if f, ok := any(c.live).(interface{ Err() error }); ok {
			if err := f.Err(); err != nil {
				c.err = fmt.Errorf("pattern[%d] (%s): %w", c.index, c.pattern[c.index].Tag(), err)
				c.done = true
				return false
			}
		}

		var zero T
		c.live, c.hasLive = zero, false
		c.index++
		if c.index >= len(c.pattern) {
			c.index = 0
			c.cycle++
			if !c.produced {
				c.done = true
				return false
			}
			c.produced = false
		}
	}
}

func validatePattern[C Config](pattern []C, count int) error {
	if err := checkCount(count); err != nil {
		return err
	}
	for i, cfg := range pattern {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("pattern[%d] (%s): %w", i, cfg.Tag(), err)
		}
	}
	return nil
}

// RepeatedBwPattern plays its pattern of bandwidth traces count times.
type RepeatedBwPattern struct {
	cycler[BwConfig, BwTrace]
}

func (r *RepeatedBwPattern) NextBw() (unit.Bandwidth, time.Duration, bool) {
	var bw unit.Bandwidth
	var d time.Duration
	ok := r.next(func(t BwTrace) bool {
		var ok bool
		bw, d, ok = t.NextBw()
		return ok
	})
	return bw, d, ok
}

// Err reports why the pattern stopped early, if a child failed to build.
func (r *RepeatedBwPattern) Err() error { return r.err }

// RepeatedBwPatternConfig configures a RepeatedBwPattern. Count 0 repeats forever.
type RepeatedBwPatternConfig struct {
	Pattern []BwConfig
	Count   int
}

func NewRepeatedBwPatternConfig() *RepeatedBwPatternConfig { return &RepeatedBwPatternConfig{} }

// WithPattern appends configurations to the pattern.
func (c *RepeatedBwPatternConfig) WithPattern(cfgs ...BwConfig) *RepeatedBwPatternConfig {
	c.Pattern = append(c.Pattern, cfgs...)
	return c
}

func (c *RepeatedBwPatternConfig) WithCount(n int) *RepeatedBwPatternConfig {
	c.Count = n
	return c
}

func (c *RepeatedBwPatternConfig) Tag() string { return "RepeatedBwPatternConfig" }

func (c *RepeatedBwPatternConfig) Validate() error { return validatePattern(c.Pattern, c.Count) }

func (c *RepeatedBwPatternConfig) Describe(f *Fields) {
	PatternField(f, BwConfigs, "pattern", &c.Pattern)
	f.Int("count", &c.Count)
}

func (c *RepeatedBwPatternConfig) Build() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &RepeatedBwPattern{newCycler(c.Pattern, c.Count, BwConfig.Build)}, nil
}

// RepeatedDelayPattern plays its pattern of delay traces count times.
type RepeatedDelayPattern struct {
	cycler[DelayConfig, DelayTrace]
}

func (r *RepeatedDelayPattern) NextDelay() (time.Duration, time.Duration, bool) {
	var delay, d time.Duration
	ok := r.next(func(t DelayTrace) bool {
		var ok bool
		delay, d, ok = t.NextDelay()
		return ok
	})
	return delay, d, ok
}

func (r *RepeatedDelayPattern) Err() error { return r.err }

// RepeatedDelayPatternConfig configures a RepeatedDelayPattern. Count 0 repeats forever.
type RepeatedDelayPatternConfig struct {
	Pattern []DelayConfig
	Count   int
}

func NewRepeatedDelayPatternConfig() *RepeatedDelayPatternConfig {
	return &RepeatedDelayPatternConfig{}
}

func (c *RepeatedDelayPatternConfig) WithPattern(cfgs ...DelayConfig) *RepeatedDelayPatternConfig {
	c.Pattern = append(c.Pattern, cfgs...)
	return c
}

func (c *RepeatedDelayPatternConfig) WithCount(n int) *RepeatedDelayPatternConfig {
	c.Count = n
	return c
}

func (c *RepeatedDelayPatternConfig) Tag() string { return "RepeatedDelayPatternConfig" }

func (c *RepeatedDelayPatternConfig) Validate() error { return validatePattern(c.Pattern, c.Count) }

func (c *RepeatedDelayPatternConfig) Describe(f *Fields) {
	PatternField(f, DelayConfigs, "pattern", &c.Pattern)
	f.Int("count", &c.Count)
}

func (c *RepeatedDelayPatternConfig) Build() (DelayTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &RepeatedDelayPattern{newCycler(c.Pattern, c.Count, DelayConfig.Build)}, nil
}

// RepeatedLossPattern plays its pattern of loss traces count times.
type RepeatedLossPattern struct {
	cycler[LossConfig, LossTrace]
}

func (r *RepeatedLossPattern) NextLoss() (LossPattern, time.Duration, bool) {
	var loss LossPattern
	var d time.Duration
	ok := r.next(func(t LossTrace) bool {
		var ok bool
		loss, d, ok = t.NextLoss()
		return ok
	})
	return loss, d, ok
}

func (r *RepeatedLossPattern) Err() error { return r.err }

// RepeatedLossPatternConfig configures a RepeatedLossPattern. Count 0 repeats forever.
type RepeatedLossPatternConfig struct {
	Pattern []LossConfig
	Count   int
}

func NewRepeatedLossPatternConfig() *RepeatedLossPatternConfig { return &RepeatedLossPatternConfig{} }

func (c *RepeatedLossPatternConfig) WithPattern(cfgs ...LossConfig) *RepeatedLossPatternConfig {
	c.Pattern = append(c.Pattern, cfgs...)
	return c
}

func (c *RepeatedLossPatternConfig) WithCount(n int) *RepeatedLossPatternConfig {
	c.Count = n
	return c
}

func (c *RepeatedLossPatternConfig) Tag() string { return "RepeatedLossPatternConfig" }

func (c *RepeatedLossPatternConfig) Validate() error { return validatePattern(c.Pattern, c.Count) }

func (c *RepeatedLossPatternConfig) Describe(f *Fields) {
	PatternField(f, LossConfigs, "pattern", &c.Pattern)
	f.Int("count", &c.Count)
}

func (c *RepeatedLossPatternConfig) Build() (LossTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &RepeatedLossPattern{newCycler(c.Pattern, c.Count, LossConfig.Build)}, nil
}

// RepeatedDuplicatePattern plays its pattern of duplication traces count times.
type RepeatedDuplicatePattern struct {
	cycler[DuplicateConfig, DuplicateTrace]
}

func (r *RepeatedDuplicatePattern) NextDuplicate() (DuplicatePattern, time.Duration, bool) {
	var dup DuplicatePattern
	var d time.Duration
	ok := r.next(func(t DuplicateTrace) bool {
		var ok bool
		dup, d, ok = t.NextDuplicate()
		return ok
	})
	return dup, d, ok
}

func (r *RepeatedDuplicatePattern) Err() error { return r.err }

// RepeatedDuplicatePatternConfig configures a RepeatedDuplicatePattern. Count 0 repeats forever.
type RepeatedDuplicatePatternConfig struct {
	Pattern []DuplicateConfig
	Count   int
}

func NewRepeatedDuplicatePatternConfig() *RepeatedDuplicatePatternConfig {
	return &RepeatedDuplicatePatternConfig{}
}

func (c *RepeatedDuplicatePatternConfig) WithPattern(cfgs ...DuplicateConfig) *RepeatedDuplicatePatternConfig {
	c.Pattern = append(c.Pattern, cfgs...)
	return c
}

func (c *RepeatedDuplicatePatternConfig) WithCount(n int) *RepeatedDuplicatePatternConfig {
	c.Count = n
	return c
}

func (c *RepeatedDuplicatePatternConfig) Tag() string { return "RepeatedDuplicatePatternConfig" }

func (c *RepeatedDuplicatePatternConfig) Validate() error {
	return validatePattern(c.Pattern, c.Count)
}

func (c *RepeatedDuplicatePatternConfig) Describe(f *Fields) {
	PatternField(f, DuplicateConfigs, "pattern", &c.Pattern)
	f.Int("count", &c.Count)
}

func (c *RepeatedDuplicatePatternConfig) Build() (DuplicateTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &RepeatedDuplicatePattern{newCycler(c.Pattern, c.Count, DuplicateConfig.Build)}, nil
}

// RepeatedDelayPerPacketPattern plays its pattern of per-packet delay traces count times.
type RepeatedDelayPerPacketPattern struct {
	cycler[DelayPerPacketConfig, DelayPerPacketTrace]
}

func (r *RepeatedDelayPerPacketPattern) NextDelay() (time.Duration, bool) {
	var delay time.Duration
	ok := r.next(func(t DelayPerPacketTrace) bool {
		var ok bool
		delay, ok = t.NextDelay()
		return ok
	})
	return delay, ok
}

func (r *RepeatedDelayPerPacketPattern) Err() error { return r.err }

// RepeatedDelayPerPacketPatternConfig configures a RepeatedDelayPerPacketPattern.
// Count 0 repeats forever.
type RepeatedDelayPerPacketPatternConfig struct {
	Pattern []DelayPerPacketConfig
	Count   int
}

func NewRepeatedDelayPerPacketPatternConfig() *RepeatedDelayPerPacketPatternConfig {
	return &RepeatedDelayPerPacketPatternConfig{}
}

func (c *RepeatedDelayPerPacketPatternConfig) WithPattern(cfgs ...DelayPerPacketConfig) *RepeatedDelayPerPacketPatternConfig {
	c.Pattern = append(c.Pattern, cfgs...)
	return c
}

func (c *RepeatedDelayPerPacketPatternConfig) WithCount(n int) *RepeatedDelayPerPacketPatternConfig {
	c.Count = n
	return c
}

func (c *RepeatedDelayPerPacketPatternConfig) Tag() string {
	return "RepeatedDelayPerPacketPatternConfig"
}

func (c *RepeatedDelayPerPacketPatternConfig) Validate() error {
	return validatePattern(c.Pattern, c.Count)
}

func (c *RepeatedDelayPerPacketPatternConfig) Describe(f *Fields) {
	PatternField(f, DelayPerPacketConfigs, "pattern", &c.Pattern)
	f.Int("count", &c.Count)
}

func (c *RepeatedDelayPerPacketPatternConfig) Build() (DelayPerPacketTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &RepeatedDelayPerPacketPattern{newCycler(c.Pattern, c.Count, DelayPerPacketConfig.Build)}, nil
}
