// Per-packet delay generators: one delay value per packet instead of per time segment
// A count of zero means the generator never runs out
package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// packetCounter tracks how many packets a count-bounded generator has served.
type packetCounter struct {
	count   int
	current int
}

func (p *packetCounter) take() bool {
	if p.count != 0 && p.current >= p.count {
		return false
	}
	p.current++
	return true
}

// StaticDelayPerPacket returns the same delay for count packets.
type StaticDelayPerPacket struct {
	delay time.Duration
	packetCounter
}

func (s *StaticDelayPerPacket) NextDelay() (time.Duration, bool) {
	if !s.take() {
		return 0, false
	}
	return s.delay, true
}

// StaticDelayPerPacketConfig configures a StaticDelayPerPacket.
// Defaults: 10ms, count 0.
type StaticDelayPerPacketConfig struct {
	Delay *time.Duration
	Count int
}

func NewStaticDelayPerPacketConfig() *StaticDelayPerPacketConfig {
	return &StaticDelayPerPacketConfig{}
}

func (c *StaticDelayPerPacketConfig) WithDelay(d time.Duration) *StaticDelayPerPacketConfig {
	c.Delay = &d
	return c
}

func (c *StaticDelayPerPacketConfig) WithCount(n int) *StaticDelayPerPacketConfig {
	c.Count = n
	return c
}

func (c *StaticDelayPerPacketConfig) Tag() string { return "StaticDelayPerPacketConfig" }

func (c *StaticDelayPerPacketConfig) Validate() error {
	return firstError(
		checkDuration("delay", c.Delay),
		checkCount(c.Count),
	)
}

func (c *StaticDelayPerPacketConfig) Describe(f *Fields) {
	f.Duration("delay", &c.Delay)
	f.Int("count", &c.Count)
}

func (c *StaticDelayPerPacketConfig) Build() (DelayPerPacketTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &StaticDelayPerPacket{
		delay:         valueOr(c.Delay, defaultDelay),
		packetCounter: packetCounter{count: c.Count},
	}, nil
}

// NormalizedDelayPerPacket samples a delay in seconds for every packet,
// saturated at zero and clamped to [lower_bound, upper_bound].
type NormalizedDelayPerPacket struct {
	dist  sampler
	lower time.Duration
	upper *time.Duration
	packetCounter
}

func (n *NormalizedDelayPerPacket) NextDelay() (time.Duration, bool) {
	if !n.take() {
		return 0, false
	}
	return clampDelay(secondsToDuration(n.dist.Rand()), &n.lower, n.upper), true
}

// NormalizedDelayPerPacketConfig configures a NormalizedDelayPerPacket.
// Defaults: mean 10ms, std_dev 0, lower_bound 0, no upper bound, count 0, seed 42.
type NormalizedDelayPerPacketConfig struct {
	Mean       *time.Duration
	StdDev     *time.Duration
	UpperBound *time.Duration
	LowerBound *time.Duration
	Count      int
	Seed       *uint64
	Truncated  *bool

	source SourceFunc
}

func NewNormalizedDelayPerPacketConfig() *NormalizedDelayPerPacketConfig {
	return &NormalizedDelayPerPacketConfig{}
}

func (c *NormalizedDelayPerPacketConfig) WithMean(d time.Duration) *NormalizedDelayPerPacketConfig {
	c.Mean = &d
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithStdDev(d time.Duration) *NormalizedDelayPerPacketConfig {
	c.StdDev = &d
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithUpperBound(d time.Duration) *NormalizedDelayPerPacketConfig {
	c.UpperBound = &d
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithLowerBound(d time.Duration) *NormalizedDelayPerPacketConfig {
	c.LowerBound = &d
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithCount(n int) *NormalizedDelayPerPacketConfig {
	c.Count = n
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithSeed(seed uint64) *NormalizedDelayPerPacketConfig {
	c.Seed = &seed
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithTruncated(truncated bool) *NormalizedDelayPerPacketConfig {
	c.Truncated = &truncated
	return c
}

func (c *NormalizedDelayPerPacketConfig) WithSource(fn SourceFunc) *NormalizedDelayPerPacketConfig {
	c.source = fn
	return c
}

func (c *NormalizedDelayPerPacketConfig) Tag() string { return "NormalizedDelayPerPacketConfig" }

func (c *NormalizedDelayPerPacketConfig) Validate() error {
	return firstError(
		checkDuration("mean", c.Mean),
		checkDuration("std_dev", c.StdDev),
		checkDuration("upper_bound", c.UpperBound),
		checkDuration("lower_bound", c.LowerBound),
		checkOrdered("lower_bound", c.LowerBound, "upper_bound", c.UpperBound),
		checkCount(c.Count),
	)
}

func (c *NormalizedDelayPerPacketConfig) Describe(f *Fields) {
	f.Duration("mean", &c.Mean)
	f.Duration("std_dev", &c.StdDev)
	f.Duration("upper_bound", &c.UpperBound)
	f.Duration("lower_bound", &c.LowerBound)
	f.Int("count", &c.Count)
	f.Uint64("seed", &c.Seed)
	f.Bool("truncated", &c.Truncated)
}

func (c *NormalizedDelayPerPacketConfig) Build() (DelayPerPacketTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mean := valueOr(c.Mean, defaultDelay).Seconds()
	if valueOr(c.Truncated, false) {
		mean = truncatedCentre(mean, valueOr(c.StdDev, 0), c.LowerBound, c.UpperBound)
	}
	return &NormalizedDelayPerPacket{
		dist: distuv.Normal{
			Mu:    mean,
			Sigma: valueOr(c.StdDev, 0).Seconds(),
			Src:   newSource(c.source, c.Seed),
		},
		lower:         valueOr(c.LowerBound, 0),
		upper:         clonePtr(c.UpperBound),
		packetCounter: packetCounter{count: c.Count},
	}, nil
}

// BuildTruncated is Build with Truncated forced on.
func (c *NormalizedDelayPerPacketConfig) BuildTruncated() (DelayPerPacketTrace, error) {
	cfg := *c
	cfg.Truncated = ptr(true)
	return cfg.Build()
}

// LogNormalizedDelayPerPacketConfig configures a NormalizedDelayPerPacket whose
// samples follow a log-normal distribution with the given mean and standard
// deviation. Defaults match NormalizedDelayPerPacketConfig; the mean must be positive.
type LogNormalizedDelayPerPacketConfig struct {
	Mean       *time.Duration
	StdDev     *time.Duration
	UpperBound *time.Duration
	LowerBound *time.Duration
	Count      int
	Seed       *uint64

	source SourceFunc
}

func NewLogNormalizedDelayPerPacketConfig() *LogNormalizedDelayPerPacketConfig {
	return &LogNormalizedDelayPerPacketConfig{}
}

func (c *LogNormalizedDelayPerPacketConfig) WithMean(d time.Duration) *LogNormalizedDelayPerPacketConfig {
	c.Mean = &d
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithStdDev(d time.Duration) *LogNormalizedDelayPerPacketConfig {
	c.StdDev = &d
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithUpperBound(d time.Duration) *LogNormalizedDelayPerPacketConfig {
	c.UpperBound = &d
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithLowerBound(d time.Duration) *LogNormalizedDelayPerPacketConfig {
	c.LowerBound = &d
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithCount(n int) *LogNormalizedDelayPerPacketConfig {
	c.Count = n
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithSeed(seed uint64) *LogNormalizedDelayPerPacketConfig {
	c.Seed = &seed
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) WithSource(fn SourceFunc) *LogNormalizedDelayPerPacketConfig {
	c.source = fn
	return c
}

func (c *LogNormalizedDelayPerPacketConfig) Tag() string { return "LogNormalizedDelayPerPacketConfig" }

func (c *LogNormalizedDelayPerPacketConfig) Validate() error {
	if c.Mean != nil && *c.Mean <= 0 {
		return invalidf("mean of a log-normal distribution must be positive, got %s", *c.Mean)
	}
	return firstError(
		checkDuration("std_dev", c.StdDev),
		checkDuration("upper_bound", c.UpperBound),
		checkDuration("lower_bound", c.LowerBound),
		checkOrdered("lower_bound", c.LowerBound, "upper_bound", c.UpperBound),
		checkCount(c.Count),
	)
}

func (c *LogNormalizedDelayPerPacketConfig) Describe(f *Fields) {
	f.Duration("mean", &c.Mean)
	f.Duration("std_dev", &c.StdDev)
	f.Duration("upper_bound", &c.UpperBound)
	f.Duration("lower_bound", &c.LowerBound)
	f.Int("count", &c.Count)
	f.Uint64("seed", &c.Seed)
}

func (c *LogNormalizedDelayPerPacketConfig) Build() (DelayPerPacketTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &NormalizedDelayPerPacket{
		dist: logNormal(
			valueOr(c.Mean, defaultDelay).Seconds(),
			valueOr(c.StdDev, 0).Seconds(),
			newSource(c.source, c.Seed),
		),
		lower:         valueOr(c.LowerBound, 0),
		upper:         clonePtr(c.UpperBound),
		packetCounter: packetCounter{count: c.Count},
	}, nil
}

// Forever wraps cfg in a repeated pattern that never terminates. A repeated
// pattern is returned as a copy with its count reset to zero.
func Forever(cfg DelayPerPacketConfig) *RepeatedDelayPerPacketPatternConfig {
	if r, ok := cfg.(*RepeatedDelayPerPacketPatternConfig); ok {
		out := *r
		out.Count = 0
		return &out
	}
	return NewRepeatedDelayPerPacketPatternConfig().WithPattern(cfg).WithCount(0)
}

// MeanDelay reports the arithmetic mean of the first n delays of t, stopping early if
// t runs out. It returns zero when t yields nothing.
func MeanDelay(t DelayPerPacketTrace, n int) time.Duration {
	var sum float64
	var count int
	for count < n {
		d, ok := t.NextDelay()
		if !ok {
			break
		}
		sum += float64(d)
		count++
	}
	if count == 0 {
		return 0
	}
	return time.Duration(math.Round(sum / float64(count)))
}
