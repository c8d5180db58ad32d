// Shared construction-time checks for trace configurations
// Also holds the small pointer helpers used when substituting defaults
package model

import (
	"fmt"
	"math"
	"time"
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func checkDuration(name string, d *time.Duration) error {
	if d != nil && *d < 0 {
		return invalidf("%s must not be negative, got %s", name, *d)
	}
	return nil
}

func checkStep(step *time.Duration) error {
	if step != nil && *step <= 0 {
		return invalidf("step must be positive, got %s", *step)
	}
	return nil
}

func checkCount(count int) error {
	if count < 0 {
		return invalidf("count must not be negative, got %d", count)
	}
	return nil
}

func checkProbabilities(name string, ps []float64) error {
	for i, p := range ps {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return invalidf("%s[%d] must be within [0, 1], got %g", name, i, p)
		}
	}
	return nil
}

func checkOrdered[T ~int64 | ~uint64](lowerName string, lower *T, upperName string, upper *T) error {
	if lower != nil && upper != nil && *lower > *upper {
		return invalidf("%s (%v) must not exceed %s (%v)", lowerName, *lower, upperName, *upper)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
