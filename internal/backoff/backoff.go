// Package backoff computes poll intervals for watching a running build.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy names an interval growth strategy.
type Policy string

const (
	PolicyFixed       Policy = "fixed"
	PolicyLinear      Policy = "linear"
	PolicyExponential Policy = "exponential"
	// PolicyFullJitter spreads exponential intervals uniformly over
	// [0, delay] to avoid synchronized polling.
	PolicyFullJitter Policy = "exp_full_jitter"
)

// Interval returns the delay before poll number attempt (attempt >= 0).
// Invalid base or max values are clamped to sane defaults.
func Interval(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	switch policy {
	case PolicyFixed:
		return minDur(base, max)
	case PolicyLinear:
		n := attempt
		if n < 1 {
			n = 1
		}
		return minDur(base*time.Duration(n), max)
	case PolicyExponential:
		return minDur(scale(base, attempt), max)
	default: // full jitter
		d := minDur(scale(base, attempt), max)
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	}
}

func scale(base time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt))
	if f > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f)
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
