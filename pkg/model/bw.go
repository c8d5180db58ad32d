// Bandwidth trace generators: static, normal, log-normal and sawtooth
// Stochastic variants sample in bits per second and clamp rather than resample
package model

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andrewh/netem-trace/pkg/unit"
)

const (
	defaultStaticBw    = 12 * 1_000_000 // bps
	defaultMeanBw      = 12 * 1_000_000 // bps
	defaultSawtoothTop = 12 * 1_000_000 // bps

	defaultTraceDuration = time.Second
	defaultStep          = time.Millisecond

	defaultSawtoothInterval  = time.Second
	defaultSawtoothDutyRatio = 0.5
)

// StaticBw emits one segment with a fixed bandwidth.
type StaticBw struct {
	bw       unit.Bandwidth
	duration time.Duration
	done     bool
}

func (s *StaticBw) NextBw() (unit.Bandwidth, time.Duration, bool) {
	if s.done || s.duration <= 0 {
		s.done = true
		return 0, 0, false
	}
	s.done = true
	return s.bw, s.duration, true
}

// StaticBwConfig configures a StaticBw. Defaults: 12Mbps for 1s.
type StaticBwConfig struct {
	Bw       *unit.Bandwidth
	Duration *time.Duration
}

func NewStaticBwConfig() *StaticBwConfig { return &StaticBwConfig{} }

func (c *StaticBwConfig) WithBw(bw unit.Bandwidth) *StaticBwConfig {
	c.Bw = &bw
	return c
}

func (c *StaticBwConfig) WithDuration(d time.Duration) *StaticBwConfig {
	c.Duration = &d
	return c
}

func (c *StaticBwConfig) Tag() string { return "StaticBwConfig" }

func (c *StaticBwConfig) Validate() error {
	return checkDuration("duration", c.Duration)
}

func (c *StaticBwConfig) Describe(f *Fields) {
	f.Bandwidth("bw", &c.Bw)
	f.Duration("duration", &c.Duration)
}

func (c *StaticBwConfig) Build() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &StaticBw{
		bw:       valueOr(c.Bw, unit.Bps(defaultStaticBw)),
		duration: valueOr(c.Duration, defaultTraceDuration),
	}, nil
}

type sampler interface {
	Rand() float64
}

type constantSampler float64

func (c constantSampler) Rand() float64 { return float64(c) }

// NormalizedBw emits step-sized segments whose bandwidth is sampled
// independently for every segment, saturated at zero and clamped to optional
// bounds.
type NormalizedBw struct {
	dist      sampler
	lower     *unit.Bandwidth
	upper     *unit.Bandwidth
	remaining time.Duration
	step      time.Duration
}

func (n *NormalizedBw) NextBw() (unit.Bandwidth, time.Duration, bool) {
	if n.remaining <= 0 {
		return 0, 0, false
	}
	bw := clampBw(unit.FromBpsFloat(n.dist.Rand()), n.lower, n.upper)
	d := min(n.step, n.remaining)
	n.remaining -= d
	return bw, d, true
}

func clampBw(bw unit.Bandwidth, lower, upper *unit.Bandwidth) unit.Bandwidth {
	if lower != nil && bw < *lower {
		bw = *lower
	}
	if upper != nil && bw > *upper {
		bw = *upper
	}
	return bw
}

// NormalizedBwConfig configures a NormalizedBw drawing from N(mean, std_dev²).
// Defaults: mean 12Mbps, std_dev 0, 1s in 1ms steps, seed 42, no bounds.
//
// When Truncated is set, Build recentres the distribution so that the mean of
// the clamped samples matches Mean; see BuildTruncated.
type NormalizedBwConfig struct {
	Mean       *unit.Bandwidth
	StdDev     *unit.Bandwidth
	UpperBound *unit.Bandwidth
	LowerBound *unit.Bandwidth
	Duration   *time.Duration
	Step       *time.Duration
	Seed       *uint64
	Truncated  *bool

	source SourceFunc
}

func NewNormalizedBwConfig() *NormalizedBwConfig { return &NormalizedBwConfig{} }

func (c *NormalizedBwConfig) WithMean(bw unit.Bandwidth) *NormalizedBwConfig {
	c.Mean = &bw
	return c
}

func (c *NormalizedBwConfig) WithStdDev(bw unit.Bandwidth) *NormalizedBwConfig {
	c.StdDev = &bw
	return c
}

func (c *NormalizedBwConfig) WithUpperBound(bw unit.Bandwidth) *NormalizedBwConfig {
	c.UpperBound = &bw
	return c
}

func (c *NormalizedBwConfig) WithLowerBound(bw unit.Bandwidth) *NormalizedBwConfig {
	c.LowerBound = &bw
	return c
}

func (c *NormalizedBwConfig) WithDuration(d time.Duration) *NormalizedBwConfig {
	c.Duration = &d
	return c
}

func (c *NormalizedBwConfig) WithStep(d time.Duration) *NormalizedBwConfig {
	c.Step = &d
	return c
}

func (c *NormalizedBwConfig) WithSeed(seed uint64) *NormalizedBwConfig {
	c.Seed = &seed
	return c
}

func (c *NormalizedBwConfig) WithTruncated(truncated bool) *NormalizedBwConfig {
	c.Truncated = &truncated
	return c
}

// WithSource replaces the default PCG source. The source is not serialised.
func (c *NormalizedBwConfig) WithSource(fn SourceFunc) *NormalizedBwConfig {
	c.source = fn
	return c
}

func (c *NormalizedBwConfig) Tag() string { return "NormalizedBwConfig" }

func (c *NormalizedBwConfig) Validate() error {
	return firstError(
		checkDuration("duration", c.Duration),
		checkStep(c.Step),
		checkOrdered("lower_bound", c.LowerBound, "upper_bound", c.UpperBound),
	)
}

func (c *NormalizedBwConfig) Describe(f *Fields) {
	f.Bandwidth("mean", &c.Mean)
	f.Bandwidth("std_dev", &c.StdDev)
	f.Bandwidth("upper_bound", &c.UpperBound)
	f.Bandwidth("lower_bound", &c.LowerBound)
	f.Duration("duration", &c.Duration)
	f.Duration("step", &c.Step)
	f.Uint64("seed", &c.Seed)
	f.Bool("truncated", &c.Truncated)
}

func (c *NormalizedBwConfig) Build() (BwTrace, error) {
	if valueOr(c.Truncated, false) {
		return c.BuildTruncated()
	}
	return c.build(float64(valueOr(c.Mean, unit.Bps(defaultMeanBw))))
}

// BuildTruncated builds a NormalizedBw whose centre is shifted so that the
// expected value after clamping to [lower_bound, upper_bound] equals Mean. A
// zero mean is built unchanged.
func (c *NormalizedBwConfig) BuildTruncated() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mean := float64(valueOr(c.Mean, unit.Bps(defaultMeanBw)))
	if mean == 0 {
		return c.build(mean)
	}
	sigma := float64(valueOr(c.StdDev, 0)) / mean
	lower := float64(valueOr(c.LowerBound, 0)) / mean
	var upper *float64
	if c.UpperBound != nil {
		upper = ptr(float64(*c.UpperBound) / mean)
	}
	return c.build(mean * SolveTruncated(1, sigma, &lower, upper))
}

func (c *NormalizedBwConfig) build(mean float64) (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &NormalizedBw{
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: float64(valueOr(c.StdDev, 0)),
			Src:   newSource(c.source, c.Seed),
		},
		lower:     clonePtr(c.LowerBound),
		upper:     clonePtr(c.UpperBound),
		remaining: valueOr(c.Duration, defaultTraceDuration),
		step:      valueOr(c.Step, defaultStep),
	}, nil
}

// LogNormalizedBwConfig configures a NormalizedBw whose samples follow a
// log-normal distribution with the given mean and standard deviation. Defaults
// match NormalizedBwConfig; the mean must be positive.
type LogNormalizedBwConfig struct {
	Mean       *unit.Bandwidth
	StdDev     *unit.Bandwidth
	UpperBound *unit.Bandwidth
	LowerBound *unit.Bandwidth
	Duration   *time.Duration
	Step       *time.Duration
	Seed       *uint64

	source SourceFunc
}

func NewLogNormalizedBwConfig() *LogNormalizedBwConfig { return &LogNormalizedBwConfig{} }

func (c *LogNormalizedBwConfig) WithMean(bw unit.Bandwidth) *LogNormalizedBwConfig {
	c.Mean = &bw
	return c
}

func (c *LogNormalizedBwConfig) WithStdDev(bw unit.Bandwidth) *LogNormalizedBwConfig {
	c.StdDev = &bw
	return c
}

func (c *LogNormalizedBwConfig) WithUpperBound(bw unit.Bandwidth) *LogNormalizedBwConfig {
	c.UpperBound = &bw
	return c
}

func (c *LogNormalizedBwConfig) WithLowerBound(bw unit.Bandwidth) *LogNormalizedBwConfig {
	c.LowerBound = &bw
	return c
}

func (c *LogNormalizedBwConfig) WithDuration(d time.Duration) *LogNormalizedBwConfig {
	c.Duration = &d
	return c
}

func (c *LogNormalizedBwConfig) WithStep(d time.Duration) *LogNormalizedBwConfig {
	c.Step = &d
	return c
}

func (c *LogNormalizedBwConfig) WithSeed(seed uint64) *LogNormalizedBwConfig {
	c.Seed = &seed
	return c
}

func (c *LogNormalizedBwConfig) WithSource(fn SourceFunc) *LogNormalizedBwConfig {
	c.source = fn
	return c
}

func (c *LogNormalizedBwConfig) Tag() string { return "LogNormalizedBwConfig" }

func (c *LogNormalizedBwConfig) Validate() error {
	if c.Mean != nil && *c.Mean == 0 {
		return invalidf("mean of a log-normal distribution must be positive")
	}
	return firstError(
		checkDuration("duration", c.Duration),
		checkStep(c.Step),
		checkOrdered("lower_bound", c.LowerBound, "upper_bound", c.UpperBound),
	)
}

func (c *LogNormalizedBwConfig) Describe(f *Fields) {
	f.Bandwidth("mean", &c.Mean)
	f.Bandwidth("std_dev", &c.StdDev)
	f.Bandwidth("upper_bound", &c.UpperBound)
	f.Bandwidth("lower_bound", &c.LowerBound)
	f.Duration("duration", &c.Duration)
	f.Duration("step", &c.Step)
	f.Uint64("seed", &c.Seed)
}

func (c *LogNormalizedBwConfig) Build() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &NormalizedBw{
		dist: logNormal(
			float64(valueOr(c.Mean, unit.Bps(defaultMeanBw))),
			float64(valueOr(c.StdDev, 0)),
			newSource(c.source, c.Seed),
		),
		lower:     clonePtr(c.LowerBound),
		upper:     clonePtr(c.UpperBound),
		remaining: valueOr(c.Duration, defaultTraceDuration),
		step:      valueOr(c.Step, defaultStep),
	}, nil
}

// logNormal converts the mean and standard deviation of the log-normal variable
// into the parameters of the underlying normal distribution.
func logNormal(mean, stdDev float64, src rand.Source) sampler {
	if stdDev == 0 {
		return constantSampler(mean)
	}
	sigma := math.Sqrt(math.Log(1 + stdDev*stdDev/(mean*mean)))
	return distuv.LogNormal{
		Mu:    math.Log(mean) - sigma*sigma/2,
		Sigma: sigma,
		Src:   src,
	}
}

// SawtoothBw follows a rising then falling ramp between bottom and top that
// repeats every interval, with optional Gaussian noise on top.
type SawtoothBw struct {
	bottom, top float64
	interval    time.Duration
	changePoint time.Duration
	current     time.Duration
	remaining   time.Duration
	step        time.Duration
	noise       sampler
	upperNoise  *float64
	lowerNoise  *float64
}

func (s *SawtoothBw) NextBw() (unit.Bandwidth, time.Duration, bool) {
	if s.remaining <= 0 {
		return 0, 0, false
	}

	var base float64
	if s.current < s.changePoint {
		base = s.bottom + (s.top-s.bottom)*float64(s.current)/float64(s.changePoint)
	} else {
		base = s.top - (s.top-s.bottom)*float64(s.current-s.changePoint)/float64(s.interval-s.changePoint)
	}

	offset := s.noise.Rand()
	if s.upperNoise != nil {
		offset = min(offset, *s.upperNoise)
	}
	if s.lowerNoise != nil {
		offset = max(offset, -*s.lowerNoise)
	}

	d := min(s.step, s.remaining)
	s.remaining -= d
	s.current = (s.current + d) % s.interval
	return unit.FromBpsFloat(max(base+offset, 0)), d, true
}

// SawtoothBwConfig configures a SawtoothBw. The ramp rises over the first
// duty_ratio of each interval and falls over the rest.
// Defaults: bottom 0, top 12Mbps, interval 1s, duty_ratio 0.5, 1s in 1ms steps,
// no noise, seed 42.
type SawtoothBwConfig struct {
	Bottom          *unit.Bandwidth
	Top             *unit.Bandwidth
	Interval        *time.Duration
	DutyRatio       *float64
	Duration        *time.Duration
	Step            *time.Duration
	Seed            *uint64
	StdDev          *unit.Bandwidth
	UpperNoiseBound *unit.Bandwidth
	LowerNoiseBound *unit.Bandwidth

	source SourceFunc
}

func NewSawtoothBwConfig() *SawtoothBwConfig { return &SawtoothBwConfig{} }

func (c *SawtoothBwConfig) WithBottom(bw unit.Bandwidth) *SawtoothBwConfig {
	c.Bottom = &bw
	return c
}

func (c *SawtoothBwConfig) WithTop(bw unit.Bandwidth) *SawtoothBwConfig {
	c.Top = &bw
	return c
}

func (c *SawtoothBwConfig) WithInterval(d time.Duration) *SawtoothBwConfig {
	c.Interval = &d
	return c
}

func (c *SawtoothBwConfig) WithDutyRatio(r float64) *SawtoothBwConfig {
	c.DutyRatio = &r
	return c
}

func (c *SawtoothBwConfig) WithDuration(d time.Duration) *SawtoothBwConfig {
	c.Duration = &d
	return c
}

func (c *SawtoothBwConfig) WithStep(d time.Duration) *SawtoothBwConfig {
	c.Step = &d
	return c
}

func (c *SawtoothBwConfig) WithSeed(seed uint64) *SawtoothBwConfig {
	c.Seed = &seed
	return c
}

func (c *SawtoothBwConfig) WithStdDev(bw unit.Bandwidth) *SawtoothBwConfig {
	c.StdDev = &bw
	return c
}

func (c *SawtoothBwConfig) WithUpperNoiseBound(bw unit.Bandwidth) *SawtoothBwConfig {
	c.UpperNoiseBound = &bw
	return c
}

func (c *SawtoothBwConfig) WithLowerNoiseBound(bw unit.Bandwidth) *SawtoothBwConfig {
	c.LowerNoiseBound = &bw
	return c
}

func (c *SawtoothBwConfig) WithSource(fn SourceFunc) *SawtoothBwConfig {
	c.source = fn
	return c
}

func (c *SawtoothBwConfig) Tag() string { return "SawtoothBwConfig" }

func (c *SawtoothBwConfig) Validate() error {
	bottom := valueOr(c.Bottom, 0)
	top := valueOr(c.Top, unit.Bps(defaultSawtoothTop))
	if bottom > top {
		return invalidf("bottom (%s) must not exceed top (%s)", bottom, top)
	}
	if interval := valueOr(c.Interval, defaultSawtoothInterval); interval <= 0 {
		return invalidf("interval must be positive, got %s", interval)
	}
	if duty := valueOr(c.DutyRatio, defaultSawtoothDutyRatio); math.IsNaN(duty) || duty <= 0 || duty > 1 {
		return invalidf("duty_ratio must be within (0, 1], got %g", duty)
	}
	return firstError(
		checkDuration("duration", c.Duration),
		checkStep(c.Step),
	)
}

func (c *SawtoothBwConfig) Describe(f *Fields) {
	f.Bandwidth("bottom", &c.Bottom)
	f.Bandwidth("top", &c.Top)
	f.Duration("interval", &c.Interval)
	f.Float("duty_ratio", &c.DutyRatio)
	f.Duration("duration", &c.Duration)
	f.Duration("step", &c.Step)
	f.Uint64("seed", &c.Seed)
	f.Bandwidth("std_dev", &c.StdDev)
	f.Bandwidth("upper_noise_bound", &c.UpperNoiseBound)
	f.Bandwidth("lower_noise_bound", &c.LowerNoiseBound)
}

func (c *SawtoothBwConfig) Build() (BwTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	interval := valueOr(c.Interval, defaultSawtoothInterval)
	s := &SawtoothBw{
		bottom:      float64(valueOr(c.Bottom, 0)),
		top:         float64(valueOr(c.Top, unit.Bps(defaultSawtoothTop))),
		interval:    interval,
		changePoint: time.Duration(float64(interval) * valueOr(c.DutyRatio, defaultSawtoothDutyRatio)),
		remaining:   valueOr(c.Duration, defaultTraceDuration),
		step:        valueOr(c.Step, defaultStep),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: float64(valueOr(c.StdDev, 0)),
			Src:   newSource(c.source, c.Seed),
		},
	}
	if c.UpperNoiseBound != nil {
		s.upperNoise = ptr(float64(*c.UpperNoiseBound))
	}
	if c.LowerNoiseBound != nil {
		s.lowerNoise = ptr(float64(*c.LowerNoiseBound))
	}
	return s, nil
}
