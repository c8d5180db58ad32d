// Structured numeric forms of quantities and duration helpers
// Bandwidth as {"gbps":0,"bps":12000000}, durations as {"secs":1,"nanos":0}
package unit

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StructuredBandwidth splits a bandwidth into whole gigabits and the sub-gigabit remainder.
type StructuredBandwidth struct {
	Gbps uint64 `json:"gbps"`
	Bps  uint32 `json:"bps"`
}

// Structured returns the structured form of b.
func (b Bandwidth) Structured() StructuredBandwidth {
	return StructuredBandwidth{
		Gbps: uint64(b) / bpsPerGbps,
		Bps:  uint32(uint64(b) % bpsPerGbps),
	}
}

// Bandwidth converts the structured form back, saturating on overflow.
func (s StructuredBandwidth) Bandwidth() Bandwidth {
	return Gbps(s.Gbps).Add(Bandwidth(s.Bps))
}

// StructuredDuration splits a duration into whole seconds and sub-second nanoseconds.
type StructuredDuration struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// NewStructuredDuration returns the structured form of d, which must not be negative.
func NewStructuredDuration(d time.Duration) StructuredDuration {
	if d < 0 {
		d = 0
	}
	return StructuredDuration{
		Secs:  uint64(d / time.Second),
		Nanos: uint32(d % time.Second),
	}
}

// Duration converts the structured form back.
func (s StructuredDuration) Duration() (time.Duration, error) {
	if s.Nanos >= uint32(time.Second) {
		return 0, fmt.Errorf("nanos must be below 1e9, got %d", s.Nanos)
	}
	if s.Secs > uint64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("duration of %d seconds overflows", s.Secs)
	}
	d := time.Duration(s.Secs) * time.Second
	if d > math.MaxInt64-time.Duration(s.Nanos) {
		return 0, fmt.Errorf("duration of %d seconds overflows", s.Secs)
	}
	return d + time.Duration(s.Nanos), nil
}

// ParseDuration parses a human-readable duration like "1s" or "250ms".
// Negative durations are rejected.
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %q", s)
	}
	return d, nil
}

// FormatDuration is the inverse of ParseDuration.
func FormatDuration(d time.Duration) string {
	return d.String()
}

// Millis returns the number of whole milliseconds in d, clamping negatives to zero.
func Millis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}

// SaturatingAdd returns a+b, clamping at the largest representable duration.
func SaturatingAdd(a, b time.Duration) time.Duration {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
