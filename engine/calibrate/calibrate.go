// Package calibrate maps raw fused relevance scores to bounded, monotonic
// display scores. Calibration is presentation-only: it never reorders and
// never influences ranking.
package calibrate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Method selects the calibration curve.
type Method string

const (
	// ExpSquash min-max normalizes and applies an exponential saturation curve.
	ExpSquash Method = "exp_squash"
	// PctlCeiling normalizes against a percentile ceiling instead of the true
	// maximum, so a single top score does not automatically saturate.
	PctlCeiling Method = "pctl_ceiling"
)

// ErrUnknownMethod reports a Config.Method outside the supported set. This is
// a programmer error: callers should treat it as fatal, not retryable.
var ErrUnknownMethod = errors.New("calibrate: unknown method")

// neutralScore is assigned to every element of a flat distribution, where
// relative relevance carries no information.
const neutralScore = 0.5

// Config holds calibration parameters.
type Config struct {
	Method Method
	// Eps guards denominators and defines the flatness threshold.
	Eps float64
	// MaxCap is the output ceiling; must stay below 1.0 so the UI never
	// shows certainty.
	MaxCap float64
	// Alpha is the exp_squash decay strength.
	Alpha float64
	// Percentile is the pctl_ceiling ceiling quantile in [0,100]. Unused by
	// exp_squash.
	Percentile float64
}

// DefaultConfig returns the parameters used by the search pipeline.
func DefaultConfig() Config {
	return Config{
		Method:     ExpSquash,
		Eps:        1e-9,
		MaxCap:     0.97,
		Alpha:      3.0,
		Percentile: 95,
	}
}

// Calibrate maps scores to display scores, index-aligned with the input.
// Numeric edge cases (empty, flat, negative, extreme magnitude) follow defined
// policy and never fail; only an unrecognized method is an error.
func Calibrate(scores []float64, cfg Config) ([]float64, error) {
	switch cfg.Method {
	case ExpSquash, PctlCeiling:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
	}

	if len(scores) == 0 {
		return []float64{}, nil
	}

	lo, hi := minMax(scores)
	if hi-lo < cfg.Eps {
		flat := math.Min(cfg.MaxCap, neutralScore)
		out := make([]float64, len(scores))
		for i := range out {
			out[i] = flat
		}
		return out, nil
	}

	switch cfg.Method {
	case ExpSquash:
		return expSquash(scores, lo, hi, cfg), nil
	default:
		return pctlCeiling(scores, lo, cfg), nil
	}
}

// expSquash: min-max normalize with an epsilon-guarded denominator, then
// y = 1 - exp(-alpha*x), clamped to [0, MaxCap].
func expSquash(scores []float64, lo, hi float64, cfg Config) []float64 {
	denom := hi - lo + cfg.Eps
	out := make([]float64, len(scores))
	for i, s := range scores {
		x := (s - lo) / denom
		out[i] = clamp(1-math.Exp(-cfg.Alpha*x), cfg.MaxCap)
	}
	return out
}

// pctlCeiling: normalize against [min, ceiling] where the ceiling is the
// requested percentile of the raw distribution (floored at min+eps), clamping
// above-ceiling scores to 1.0, then capping at MaxCap.
func pctlCeiling(scores []float64, lo float64, cfg Config) []float64 {
	ceiling := math.Max(percentile(scores, cfg.Percentile), lo+cfg.Eps)
	out := make([]float64, len(scores))
	for i, s := range scores {
		x := (s - lo) / (ceiling - lo)
		if x > 1 {
			x = 1
		}
		out[i] = clamp(x, cfg.MaxCap)
	}
	return out
}

// percentile computes the p-th percentile using linear interpolation between
// order statistics (interpolated-rank method).
func percentile(scores []float64, p float64) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func minMax(scores []float64) (lo, hi float64) {
	lo, hi = scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
