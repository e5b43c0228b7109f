// Package scoring provides the weighted multi-factor aggregation primitive
// shared by the fraud, capacity, and pricing analyzers.
package scoring

import (
	"fmt"
	"math"

	"github.com/attendly/attendly/internal/common/errors"
)

// Level represents the categorical classification of an aggregate score
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// String returns the string representation of Level
func (l Level) String() string {
	return string(l)
}

// Level boundaries on the 0-100 scale. A score of exactly 30 is still low,
// exactly 60 still medium, exactly 80 still high.
const (
	lowUpperBound    = 30.0
	mediumUpperBound = 60.0
	highUpperBound   = 80.0
)

// Factor is a named, weighted boolean signal. Triggered factors contribute
// their full weight to the aggregate; untriggered factors contribute nothing
// but still count toward the weight total.
type Factor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"` // [0,1]
	Description string  `json:"description"`
	Triggered   bool    `json:"triggered"`
}

// ContinuousFactor is a named, weighted continuous signal with an impact in
// [0,1]. Positive indicates the factor argues in favor of the recommendation
// under evaluation (used by the capacity optimizer's confidence estimate).
type ContinuousFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"` // [0,1]
	Description string  `json:"description"`
	Impact      float64 `json:"impact"` // [0,1]
	Positive    bool    `json:"is_positive"`
}

// Validate checks the factor's weight invariant
func (f Factor) Validate() error {
	if f.Weight < 0 || f.Weight > 1 {
		return errors.InvariantViolation(
			fmt.Sprintf("factor %q weight %.4f outside [0,1]", f.Name, f.Weight))
	}
	return nil
}

// Validate checks the factor's weight and impact invariants
func (f ContinuousFactor) Validate() error {
	if f.Weight < 0 || f.Weight > 1 {
		return errors.InvariantViolation(
			fmt.Sprintf("factor %q weight %.4f outside [0,1]", f.Name, f.Weight))
	}
	if f.Impact < 0 || f.Impact > 1 {
		return errors.InvariantViolation(
			fmt.Sprintf("factor %q impact %.4f outside [0,1]", f.Name, f.Impact))
	}
	return nil
}

// Score aggregates boolean factors into a 0-100 score:
//
//	score = (sum of triggered weights) / max(total weight, 1) * 100
//
// The divisor floor of 1 makes an all-zero-weight factor list score 0 instead
// of dividing by zero. The result is clamped to [0,100]. Adding a triggered
// factor with positive weight never decreases the score.
func Score(factors []Factor) (float64, error) {
	var triggered, total float64
	for _, f := range factors {
		if err := f.Validate(); err != nil {
			return 0, err
		}
		total += f.Weight
		if f.Triggered {
			triggered += f.Weight
		}
	}
	return clamp(triggered / math.Max(total, 1) * 100), nil
}

// ScoreContinuous aggregates continuous factors, substituting each factor's
// impact for the boolean indicator.
func ScoreContinuous(factors []ContinuousFactor) (float64, error) {
	var weighted, total float64
	for _, f := range factors {
		if err := f.Validate(); err != nil {
			return 0, err
		}
		total += f.Weight
		weighted += f.Weight * f.Impact
	}
	return clamp(weighted / math.Max(total, 1) * 100), nil
}

// Classify converts a numeric score to its categorical level
func Classify(score float64) Level {
	switch {
	case score <= lowUpperBound:
		return LevelLow
	case score <= mediumUpperBound:
		return LevelMedium
	case score <= highUpperBound:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// PositiveFraction returns the weighted fraction of factors marked positive,
// in [0,1]. Zero total weight yields 0.
func PositiveFraction(factors []ContinuousFactor) float64 {
	var positive, total float64
	for _, f := range factors {
		total += f.Weight
		if f.Positive {
			positive += f.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return positive / total
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
