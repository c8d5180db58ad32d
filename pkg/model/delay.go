// Delay trace generators: static and normally distributed one-way delay
package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

const defaultDelay = 10 * time.Millisecond

// StaticDelay emits one segment with a fixed delay.
type StaticDelay struct {
	delay    time.Duration
	duration time.Duration
	done     bool
}

func (s *StaticDelay) NextDelay() (time.Duration, time.Duration, bool) {
	if s.done || s.duration <= 0 {
		s.done = true
		return 0, 0, false
	}
	s.done = true
	return s.delay, s.duration, true
}

// StaticDelayConfig configures a StaticDelay. Defaults: 10ms for 1s.
type StaticDelayConfig struct {
	Delay    *time.Duration
	Duration *time.Duration
}

func NewStaticDelayConfig() *StaticDelayConfig { return &StaticDelayConfig{} }

func (c *StaticDelayConfig) WithDelay(d time.Duration) *StaticDelayConfig {
	c.Delay = &d
	return c
}

func (c *StaticDelayConfig) WithDuration(d time.Duration) *StaticDelayConfig {
	c.Duration = &d
	return c
}

func (c *StaticDelayConfig) Tag() string { return "StaticDelayConfig" }

func (c *StaticDelayConfig) Validate() error {
	return firstError(
		checkDuration("delay", c.Delay),
		checkDuration("duration", c.Duration),
	)
}

func (c *StaticDelayConfig) Describe(f *Fields) {
	f.Duration("delay", &c.Delay)
	f.Duration("duration", &c.Duration)
}

func (c *StaticDelayConfig) Build() (DelayTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &StaticDelay{
		delay:    valueOr(c.Delay, defaultDelay),
		duration: valueOr(c.Duration, defaultTraceDuration),
	}, nil
}

// NormalizedDelay emits step-sized segments with a delay sampled in seconds
// from a normal distribution, saturated at zero and clamped to optional bounds.
type NormalizedDelay struct {
	dist      sampler
	lower     *time.Duration
	upper     *time.Duration
	remaining time.Duration
	step      time.Duration
}

func (n *NormalizedDelay) NextDelay() (time.Duration, time.Duration, bool) {
	if n.remaining <= 0 {
		return 0, 0, false
	}
	delay := clampDelay(secondsToDuration(n.dist.Rand()), n.lower, n.upper)
	d := min(n.step, n.remaining)
	n.remaining -= d
	return delay, d, true
}

// NormalizedDelayConfig configures a NormalizedDelay.
// Defaults: mean 10ms, std_dev 0, 1s in 1ms steps, seed 42, no bounds.
type NormalizedDelayConfig struct {
	Mean       *time.Duration
	StdDev     *time.Duration
	UpperBound *time.Duration
	LowerBound *time.Duration
	Duration   *time.Duration
	Step       *time.Duration
	Seed       *uint64
	Truncated  *bool

	source SourceFunc
}

func NewNormalizedDelayConfig() *NormalizedDelayConfig { return &NormalizedDelayConfig{} }

func (c *NormalizedDelayConfig) WithMean(d time.Duration) *NormalizedDelayConfig {
	c.Mean = &d
	return c
}

func (c *NormalizedDelayConfig) WithStdDev(d time.Duration) *NormalizedDelayConfig {
	c.StdDev = &d
	return c
}

func (c *NormalizedDelayConfig) WithUpperBound(d time.Duration) *NormalizedDelayConfig {
	c.UpperBound = &d
	return c
}

func (c *NormalizedDelayConfig) WithLowerBound(d time.Duration) *NormalizedDelayConfig {
	c.LowerBound = &d
	return c
}

func (c *NormalizedDelayConfig) WithDuration(d time.Duration) *NormalizedDelayConfig {
	c.Duration = &d
	return c
}

func (c *NormalizedDelayConfig) WithStep(d time.Duration) *NormalizedDelayConfig {
	c.Step = &d
	return c
}

func (c *NormalizedDelayConfig) WithSeed(seed uint64) *NormalizedDelayConfig {
	c.Seed = &seed
	return c
}

func (c *NormalizedDelayConfig) WithTruncated(truncated bool) *NormalizedDelayConfig {
	c.Truncated = &truncated
	return c
}

func (c *NormalizedDelayConfig) WithSource(fn SourceFunc) *NormalizedDelayConfig {
	c.source = fn
	return c
}

func (c *NormalizedDelayConfig) Tag() string { return "NormalizedDelayConfig" }

func (c *NormalizedDelayConfig) Validate() error {
	return firstError(
		checkDuration("mean", c.Mean),
		checkDuration("std_dev", c.StdDev),
		checkDuration("upper_bound", c.UpperBound),
		checkDuration("lower_bound", c.LowerBound),
		checkDuration("duration", c.Duration),
		checkStep(c.Step),
		checkOrdered("lower_bound", c.LowerBound, "upper_bound", c.UpperBound),
	)
}

func (c *NormalizedDelayConfig) Describe(f *Fields) {
	f.Duration("mean", &c.Mean)
	f.Duration("std_dev", &c.StdDev)
	f.Duration("upper_bound", &c.UpperBound)
	f.Duration("lower_bound", &c.LowerBound)
	f.Duration("duration", &c.Duration)
	f.Duration("step", &c.Step)
	f.Uint64("seed", &c.Seed)
	f.Bool("truncated", &c.Truncated)
}

func (c *NormalizedDelayConfig) Build() (DelayTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mean := valueOr(c.Mean, defaultDelay).Seconds()
	if valueOr(c.Truncated, false) {
		mean = truncatedCentre(mean, valueOr(c.StdDev, 0), c.LowerBound, c.UpperBound)
	}
	return &NormalizedDelay{
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: valueOr(c.StdDev, 0).Seconds(),
			Src:   newSource(c.source, c.Seed),
		},
		lower:     clonePtr(c.LowerBound),
		upper:     clonePtr(c.UpperBound),
		remaining: valueOr(c.Duration, defaultTraceDuration),
		step:      valueOr(c.Step, defaultStep),
	}, nil
}

// BuildTruncated is Build with Truncated forced on.
func (c *NormalizedDelayConfig) BuildTruncated() (DelayTrace, error) {
	cfg := *c
	cfg.Truncated = ptr(true)
	return cfg.Build()
}

// truncatedCentre recentres a delay distribution, in seconds, so that its mean
// after clamping to [lower, upper] equals mean. A missing lower bound means zero.
func truncatedCentre(mean float64, stdDev time.Duration, lower, upper *time.Duration) float64 {
	if mean == 0 {
		return mean
	}
	sigma := stdDev.Seconds() / mean
	lo := valueOr(lower, 0).Seconds() / mean
	var hi *float64
	if upper != nil {
		hi = ptr(upper.Seconds() / mean)
	}
	return mean * SolveTruncated(1, sigma, &lo, hi)
}

func clampDelay(d time.Duration, lower, upper *time.Duration) time.Duration {
	if lower != nil && d < *lower {
		d = *lower
	}
	if upper != nil && d > *upper {
		d = *upper
	}
	return d
}

// secondsToDuration converts a sample in seconds, saturating at zero and the
// largest representable duration.
func secondsToDuration(s float64) time.Duration {
	ns := s * float64(time.Second)
	switch {
	case math.IsNaN(ns) || ns <= 0:
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	default:
		return time.Duration(ns)
	}
}
