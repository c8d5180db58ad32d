// Loss and duplication pattern generators
// Both hold a fixed probability list for the configured duration
package model

import (
	"slices"
	"time"
)

var (
	defaultLossPattern      = LossPattern{0.1, 0.2}
	defaultDuplicatePattern = DuplicatePattern{0.1, 0.2}
)

// StaticLoss emits one segment with a fixed loss pattern.
type StaticLoss struct {
	loss     LossPattern
	duration time.Duration
	done     bool
}

func (s *StaticLoss) NextLoss() (LossPattern, time.Duration, bool) {
	if s.done || s.duration <= 0 {
		s.done = true
		return nil, 0, false
	}
	s.done = true
	return slices.Clone(s.loss), s.duration, true
}

// StaticLossConfig configures a StaticLoss. Defaults: [0.1, 0.2] for 1s.
type StaticLossConfig struct {
	Loss     LossPattern
	Duration *time.Duration
}

func NewStaticLossConfig() *StaticLossConfig { return &StaticLossConfig{} }

func (c *StaticLossConfig) WithLoss(loss ...float64) *StaticLossConfig {
	c.Loss = slices.Clone(LossPattern(loss))
	return c
}

func (c *StaticLossConfig) WithDuration(d time.Duration) *StaticLossConfig {
	c.Duration = &d
	return c
}

func (c *StaticLossConfig) Tag() string { return "StaticLossConfig" }

func (c *StaticLossConfig) Validate() error {
	return firstError(
		checkProbabilities("loss", c.Loss),
		checkDuration("duration", c.Duration),
	)
}

func (c *StaticLossConfig) Describe(f *Fields) {
	f.Floats("loss", (*[]float64)(&c.Loss))
	f.Duration("duration", &c.Duration)
}

func (c *StaticLossConfig) Build() (LossTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	loss := defaultLossPattern
	if c.Loss != nil {
		loss = c.Loss
	}
	return &StaticLoss{
		loss:     slices.Clone(loss),
		duration: valueOr(c.Duration, defaultTraceDuration),
	}, nil
}

// StaticDuplicate emits one segment with a fixed duplication pattern.
type StaticDuplicate struct {
	duplicate DuplicatePattern
	duration  time.Duration
	done      bool
}

func (s *StaticDuplicate) NextDuplicate() (DuplicatePattern, time.Duration, bool) {
	if s.done || s.duration <= 0 {
		s.done = true
		return nil, 0, false
	}
	s.done = true
	return slices.Clone(s.duplicate), s.duration, true
}

// StaticDuplicateConfig configures a StaticDuplicate. Defaults: [0.1, 0.2] for 1s.
type StaticDuplicateConfig struct {
	Duplicate DuplicatePattern
	Duration  *time.Duration
}

func NewStaticDuplicateConfig() *StaticDuplicateConfig { return &StaticDuplicateConfig{} }

func (c *StaticDuplicateConfig) WithDuplicate(dup ...float64) *StaticDuplicateConfig {
	c.Duplicate = slices.Clone(DuplicatePattern(dup))
	return c
}

func (c *StaticDuplicateConfig) WithDuration(d time.Duration) *StaticDuplicateConfig {
	c.Duration = &d
	return c
}

func (c *StaticDuplicateConfig) Tag() string { return "StaticDuplicateConfig" }

func (c *StaticDuplicateConfig) Validate() error {
	return firstError(
		checkProbabilities("duplicate", c.Duplicate),
		checkDuration("duration", c.Duration),
	)
}

func (c *StaticDuplicateConfig) Describe(f *Fields) {
	f.Floats("duplicate", (*[]float64)(&c.Duplicate))
	f.Duration("duration", &c.Duration)
}

func (c *StaticDuplicateConfig) Build() (DuplicateTrace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dup := defaultDuplicatePattern
	if c.Duplicate != nil {
		dup = c.Duplicate
	}
	return &StaticDuplicate{
		duplicate: slices.Clone(dup),
		duration:  valueOr(c.Duration, defaultTraceDuration),
	}, nil
}
