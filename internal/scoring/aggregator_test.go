package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/internal/common/errors"
)

func TestScore_Range(t *testing.T) {
	cases := []struct {
		name    string
		factors []Factor
	}{
		{"empty", nil},
		{"all triggered", []Factor{
			{Name: "a", Weight: 1.0, Triggered: true},
			{Name: "b", Weight: 1.0, Triggered: true},
			{Name: "c", Weight: 1.0, Triggered: true},
		}},
		{"none triggered", []Factor{
			{Name: "a", Weight: 0.5},
			{Name: "b", Weight: 0.5},
		}},
		{"mixed", []Factor{
			{Name: "a", Weight: 0.3, Triggered: true},
			{Name: "b", Weight: 0.7},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, err := Score(tc.factors)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	factors := []Factor{
		{Name: "a", Weight: 0.4, Triggered: true},
		{Name: "b", Weight: 0.6},
	}
	before, err := Score(factors)
	require.NoError(t, err)

	// Adding a triggered factor with positive weight never lowers the score
	after, err := Score(append(factors, Factor{Name: "c", Weight: 0.5, Triggered: true}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before)
}

func TestScore_ZeroWeightFloor(t *testing.T) {
	// Total weight below 1 is floored at 1 in the divisor, so an all-zero
	// list scores 0 rather than dividing by zero.
	score, err := Score([]Factor{{Name: "a", Weight: 0, Triggered: true}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScore_DivisorFloor(t *testing.T) {
	// A single triggered factor with weight 0.8 and no other weight scores
	// 0.8/max(0.8,1)*100 = 80.
	score, err := Score([]Factor{{Name: "amount_anomaly", Weight: 0.8, Triggered: true}})
	require.NoError(t, err)
	assert.InDelta(t, 80.0, score, 1e-9)
}

func TestScore_WeightInvariant(t *testing.T) {
	_, err := Score([]Factor{{Name: "bad", Weight: 1.5, Triggered: true}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvariantViolation))

	_, err = Score([]Factor{{Name: "bad", Weight: -0.1}})
	require.Error(t, err)
}

func TestScoreContinuous(t *testing.T) {
	factors := []ContinuousFactor{
		{Name: "weather", Weight: 0.5, Impact: 0.4},
		{Name: "season", Weight: 0.5, Impact: 0.8},
	}
	score, err := ScoreContinuous(factors)
	require.NoError(t, err)
	// (0.5*0.4 + 0.5*0.8) / 1.0 * 100 = 60
	assert.InDelta(t, 60.0, score, 1e-9)
}

func TestScoreContinuous_ImpactInvariant(t *testing.T) {
	_, err := ScoreContinuous([]ContinuousFactor{{Name: "bad", Weight: 0.5, Impact: 1.2}})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvariantViolation))
}

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Level
	}{
		{0, LevelLow},
		{30, LevelLow},
		{31, LevelMedium},
		{60, LevelMedium},
		{61, LevelHigh},
		{80, LevelHigh},
		{81, LevelCritical},
		{100, LevelCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.score), "score %.0f", tc.score)
	}
}

func TestPositiveFraction(t *testing.T) {
	factors := []ContinuousFactor{
		{Name: "a", Weight: 0.6, Positive: true},
		{Name: "b", Weight: 0.4},
	}
	assert.InDelta(t, 0.6, PositiveFraction(factors), 1e-9)
	assert.Equal(t, 0.0, PositiveFraction(nil))
}
