package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrowatch/riverdash/internal/entities"
)

var testThresholds = entities.Thresholds{
	Attention: 2.5,
	Caution:   5.1,
	Warning:   6.0,
	Danger:    6.5,
}

func makeSeries(start time.Time, step time.Duration, levels ...float64) []entities.Record {
	var series []entities.Record
	for i, level := range levels {
		ts := start.Add(time.Duration(i) * step)
		series = append(series, entities.Record{
			StationID:  "1018683",
			Level:      level,
			ObservedAt: ts,
			Timestamp:  ts.UnixMilli(),
			Source:     entities.SourcePrimary,
		})
	}
	return series
}

func TestClassifyTiers(t *testing.T) {
	assert.Equal(t, entities.RiskNormal, Classify(1.0, testThresholds))
	assert.Equal(t, entities.RiskNormal, Classify(3.0, testThresholds)) // attention is informational
	assert.Equal(t, entities.RiskCaution, Classify(5.5, testThresholds))
	assert.Equal(t, entities.RiskWarning, Classify(6.2, testThresholds))
	assert.Equal(t, entities.RiskDanger, Classify(7.0, testThresholds))
}

func TestClassifyThresholdIsInclusive(t *testing.T) {
	assert.Equal(t, entities.RiskCaution, Classify(5.1, testThresholds))
	assert.Equal(t, entities.RiskWarning, Classify(6.0, testThresholds))
	assert.Equal(t, entities.RiskDanger, Classify(6.5, testThresholds))
}

func TestClassifyMonotone(t *testing.T) {
	previous := 0
	for level := 0.0; level <= 8.0; level += 0.1 {
		tier := Classify(level, testThresholds).Rank()
		assert.GreaterOrEqual(t, tier, previous, "classification regressed at level %.1f", level)
		previous = tier
	}
}

func TestChangeRateLinearRise(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 0, 0, 0, entities.KST)
	series := makeSeries(start, 30*time.Minute, 1.0, 1.2, 1.4)
	assert.InDelta(t, 0.4, ChangeRate(series), 0.0001)
}

func TestChangeRateIgnoresPointsOutsideWindow(t *testing.T) {
	start := time.Date(2026, 8, 31, 6, 0, 0, 0, entities.KST)
	// First point is 6h old; only the last two (30min apart) are in window.
	series := makeSeries(start, 0, 9.0)
	late := time.Date(2026, 8, 31, 12, 0, 0, 0, entities.KST)
	series = append(series, makeSeries(late, 30*time.Minute, 1.0, 1.25)...)
	assert.InDelta(t, 0.5, ChangeRate(series), 0.0001)
}

func TestChangeRateTooFewPoints(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 0, 0, 0, entities.KST)
	assert.Zero(t, ChangeRate(nil))
	assert.Zero(t, ChangeRate(makeSeries(start, time.Minute, 3.0)))
}

func TestScoreBoundsAndMonotonicity(t *testing.T) {
	prev := -1.0
	for level := 0.0; level <= 10.0; level += 0.5 {
		s := Score(level, 0, testThresholds)
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 100.0)
		assert.GreaterOrEqual(t, s, prev, "score decreased at level %.1f", level)
		prev = s
	}

	prev = -1.0
	for rate := 0.0; rate <= 1.0; rate += 0.05 {
		s := Score(5.0, rate, testThresholds)
		require.LessOrEqual(t, s, 100.0)
		assert.GreaterOrEqual(t, s, prev, "score decreased at rate %.2f", rate)
		prev = s
	}
}

func TestScoreTerms(t *testing.T) {
	// Level at danger with no rise: exactly the 70-point level term.
	assert.InDelta(t, 70.0, Score(testThresholds.Danger, 0, testThresholds), 0.0001)
	// Rising at 0.5 m/h adds the full 30-point rise term.
	assert.InDelta(t, 100.0, Score(testThresholds.Danger, 0.5, testThresholds), 0.0001)
	// Falling contributes nothing.
	assert.InDelta(t, 70.0, Score(testThresholds.Danger, -2.0, testThresholds), 0.0001)
}

func TestTrendDirections(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 0, 0, 0, entities.KST)

	dir, mag := Trend(makeSeries(start, 20*time.Minute, 1.0, 1.1, 1.3))
	assert.Equal(t, TrendRising, dir)
	assert.InDelta(t, 0.3, mag, 0.0001)

	dir, _ = Trend(makeSeries(start, 20*time.Minute, 1.3, 1.1, 1.0))
	assert.Equal(t, TrendFalling, dir)

	// A ±0.05m wobble stays stable.
	dir, _ = Trend(makeSeries(start, 20*time.Minute, 1.00, 1.02, 1.04))
	assert.Equal(t, TrendStable, dir)
}

func TestAssessComposes(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 0, 0, 0, entities.KST)
	series := makeSeries(start, 30*time.Minute, 5.0, 5.3, 5.6)

	a := Assess(series, testThresholds)
	assert.Equal(t, entities.RiskCaution, a.Level)
	assert.Equal(t, TrendRising, a.Trend)
	assert.InDelta(t, 0.6, a.ChangeRatePerHour, 0.0001)
	assert.Greater(t, a.Score, 60.0)
	assert.LessOrEqual(t, a.Score, 100.0)
}

func TestAssessEmptySeries(t *testing.T) {
	a := Assess(nil, testThresholds)
	assert.Equal(t, entities.RiskNormal, a.Level)
	assert.Equal(t, TrendStable, a.Trend)
	assert.Zero(t, a.Score)
}
