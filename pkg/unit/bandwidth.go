// Bandwidth quantity with bits-per-second semantics and saturating arithmetic
// Parses and formats human-readable rates like "12Mbps", "1.5Gbps", "800kbps"
package unit

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Bandwidth is a link rate in bits per second.
type Bandwidth uint64

const (
	bpsPerKbps = 1_000
	bpsPerMbps = 1_000_000
	bpsPerGbps = 1_000_000_000
	bpsPerTbps = 1_000_000_000_000
)

// MaxBandwidth is the saturation point of all Bandwidth arithmetic.
const MaxBandwidth = Bandwidth(math.MaxUint64)

// Bps returns a bandwidth of n bits per second.
func Bps(n uint64) Bandwidth { return Bandwidth(n) }

// Kbps returns a bandwidth of n kilobits per second.
func Kbps(n uint64) Bandwidth { return Bandwidth(n).MulInt(bpsPerKbps) }

// Mbps returns a bandwidth of n megabits per second.
func Mbps(n uint64) Bandwidth { return Bandwidth(n).MulInt(bpsPerMbps) }

// Gbps returns a bandwidth of n gigabits per second.
func Gbps(n uint64) Bandwidth { return Bandwidth(n).MulInt(bpsPerGbps) }

// FromBpsFloat converts a floating point rate, saturating at zero and MaxBandwidth.
// Fractional bits are truncated.
func FromBpsFloat(f float64) Bandwidth {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint64:
		return MaxBandwidth
	default:
		return Bandwidth(f)
	}
}

// Bps returns the rate in bits per second.
func (b Bandwidth) Bps() uint64 { return uint64(b) }

// Float64 returns the rate in bits per second as a float.
func (b Bandwidth) Float64() float64 { return float64(b) }

// Mbps returns the rate in megabits per second.
func (b Bandwidth) Mbps() float64 { return float64(b) / bpsPerMbps }

// Add returns b+o, saturating at MaxBandwidth.
func (b Bandwidth) Add(o Bandwidth) Bandwidth {
	sum, carry := bits.Add64(uint64(b), uint64(o), 0)
	if carry != 0 {
		return MaxBandwidth
	}
	return Bandwidth(sum)
}

// MulInt returns b*n, saturating at MaxBandwidth.
func (b Bandwidth) MulInt(n uint64) Bandwidth {
	hi, lo := bits.Mul64(uint64(b), n)
	if hi != 0 {
		return MaxBandwidth
	}
	return Bandwidth(lo)
}

// String formats the bandwidth with the largest unit that represents it exactly.
func (b Bandwidth) String() string {
	v := uint64(b)
	switch {
	case v == 0:
		return "0bps"
	case v%bpsPerTbps == 0:
		return strconv.FormatUint(v/bpsPerTbps, 10) + "Tbps"
	case v%bpsPerGbps == 0:
		return strconv.FormatUint(v/bpsPerGbps, 10) + "Gbps"
	case v%bpsPerMbps == 0:
		return strconv.FormatUint(v/bpsPerMbps, 10) + "Mbps"
	case v%bpsPerKbps == 0:
		return strconv.FormatUint(v/bpsPerKbps, 10) + "kbps"
	default:
		return strconv.FormatUint(v, 10) + "bps"
	}
}

// ParseBandwidth parses a rate string like "12Mbps", "1.5 Gbps" or "800kbps".
// Unit prefixes are case-insensitive (k, M, G, T); the "bps" suffix is required.
func ParseBandwidth(s string) (Bandwidth, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bandwidth cannot be empty")
	}

	lower := strings.ToLower(s)
	numPart, ok := strings.CutSuffix(lower, "bps")
	if !ok {
		return 0, fmt.Errorf("invalid bandwidth %q (expected e.g. '12Mbps')", s)
	}
	numPart = strings.TrimSpace(numPart)

	scale, numPart := parseRatePrefix(numPart)
	numPart = strings.TrimSpace(numPart)
	if numPart == "" {
		return 0, fmt.Errorf("invalid bandwidth %q: missing value", s)
	}

	if n, err := strconv.ParseUint(numPart, 10, 64); err == nil {
		hi, lo := bits.Mul64(n, scale)
		if hi != 0 {
			return 0, fmt.Errorf("bandwidth %q overflows", s)
		}
		return Bandwidth(lo), nil
	}

	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth value %q: %w", numPart, err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("bandwidth must be a finite non-negative value, got %q", s)
	}
	v := math.Round(f * float64(scale))
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("bandwidth %q overflows", s)
	}
	return Bandwidth(v), nil
}

func parseRatePrefix(numPart string) (uint64, string) {
	if numPart == "" {
		return 1, numPart
	}
	switch numPart[len(numPart)-1] {
	case 'k':
		return bpsPerKbps, numPart[:len(numPart)-1]
	case 'm':
		return bpsPerMbps, numPart[:len(numPart)-1]
	case 'g':
		return bpsPerGbps, numPart[:len(numPart)-1]
	case 't':
		return bpsPerTbps, numPart[:len(numPart)-1]
	default:
		return 1, numPart
	}
}
