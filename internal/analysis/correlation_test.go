package analysis

import (
	"testing"

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

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, Pearson(x, x), 1e-9)

	y := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-9)

	inverted := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, Pearson(x, inverted), 1e-9)
}

func TestPearsonSymmetry(t *testing.T) {
	x := []float64{1.2, 3.4, 2.2, 5.6, 4.4}
	y := []float64{0.5, 2.1, 1.8, 3.3, 2.9}
	assert.InDelta(t, Pearson(x, y), Pearson(y, x), 1e-12)
}

func TestPearsonDegenerateInput(t *testing.T) {
	assert.Zero(t, Pearson(nil, nil))
	assert.Zero(t, Pearson([]float64{}, []float64{}))
	assert.Zero(t, Pearson([]float64{1, 2}, []float64{1, 2, 3}))
	// Zero variance must not divide by zero.
	assert.Zero(t, Pearson([]float64{3, 3, 3}, []float64{1, 2, 3}))
}

func TestLaggedCorrelationFindsShift(t *testing.T) {
	// y responds to x one step later.
	x := []float64{0, 10, 0, 5, 0, 8, 0, 3}
	y := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		y[i] = x[i-1]
	}

	lags := LaggedCorrelation(x, y, 3)
	require.Len(t, lags, 4)
	assert.Equal(t, 0, lags[0].Lag)
	assert.InDelta(t, 1.0, lags[1].Correlation, 1e-9)
	assert.Greater(t, lags[1].Correlation, lags[0].Correlation)
}

func TestLinearRegressionFit(t *testing.T) {
	x := []float64{0, 10, 20, 30}
	y := []float64{1.0, 1.5, 2.0, 2.5}

	reg := LinearRegression(x, y)
	assert.InDelta(t, 0.05, reg.Slope, 1e-9)
	assert.InDelta(t, 1.0, reg.Intercept, 1e-9)
	assert.InDelta(t, 3.0, reg.Predict(40), 1e-9)
}

func TestLinearRegressionZeroVariance(t *testing.T) {
	reg := LinearRegression([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.Zero(t, reg.Slope)
	assert.InDelta(t, 2.0, reg.Intercept, 1e-9)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := Analyze([]float64{1, 2}, []float64{1, 2}, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Analyze(nil, nil, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnalyzeFullResult(t *testing.T) {
	rain := []float64{0, 12, 2, 8, 0, 6}
	level := make([]float64, len(rain))
	for i := 1; i < len(rain); i++ {
		level[i] = 1.0 + rain[i-1]*0.05
	}
	level[0] = 1.0

	result, err := Analyze(rain, level, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Samples)
	assert.Equal(t, 1, result.BestLag.Lag)
	assert.InDelta(t, 1.0, result.BestLag.Correlation, 1e-9)
	assert.Len(t, result.Lags, 4)
}

func TestPredictFloodRiskTiers(t *testing.T) {
	reg := Regression{Slope: 0.1, Intercept: 1.0}

	p := PredictFloodRisk(10, reg, testThresholds)
	assert.InDelta(t, 2.0, p.PredictedLevel, 1e-9)
	assert.Equal(t, entities.RiskNormal, p.Level)
	assert.NotEmpty(t, p.Advisory)

	p = PredictFloodRisk(60, reg, testThresholds)
	assert.InDelta(t, 7.0, p.PredictedLevel, 1e-9)
	assert.Equal(t, entities.RiskDanger, p.Level)
	assert.InDelta(t, 70.0, p.Score, 1e-9)
}

func TestPredictFloodRiskClampsNegative(t *testing.T) {
	reg := Regression{Slope: 0.1, Intercept: -5.0}
	p := PredictFloodRisk(1, reg, testThresholds)
	assert.Zero(t, p.PredictedLevel)
	assert.Equal(t, entities.RiskNormal, p.Level)
}
