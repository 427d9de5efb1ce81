// Package analysis relates rainfall series to water-level response with
// plain statistical tools: Pearson correlation, lagged correlation and
// ordinary least squares. Degenerate numeric input yields neutral values
// instead of errors; the one distinguishable failure is ErrInsufficientData,
// because a coefficient computed from two points would be a lie with decimals.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/risk"
)

// MinSamples is the smallest number of time-aligned pairs the engine will
// correlate or regress over.
const MinSamples = 3

// ErrInsufficientData reports fewer than MinSamples matched pairs.
var ErrInsufficientData = errors.New("insufficient data: need at least 3 matched points")

// Pearson computes the product-moment correlation of two equal-length
// series. Empty, mismatched or zero-variance input yields 0.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// LagCorrelation is the correlation observed at one lag offset.
type LagCorrelation struct {
	Lag         int     `json:"lag"`
	Correlation float64 `json:"correlation"`
}

// LaggedCorrelation correlates x[0:n-lag] against y[lag:n] for each lag from
// 0 to maxLag, estimating how long the level takes to respond to rainfall.
func LaggedCorrelation(x, y []float64, maxLag int) []LagCorrelation {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	var out []LagCorrelation
	for lag := 0; lag <= maxLag; lag++ {
		if lag >= n {
			break
		}
		out = append(out, LagCorrelation{
			Lag:         lag,
			Correlation: Pearson(x[:n-lag], y[lag:n]),
		})
	}
	return out
}

// Regression holds an ordinary-least-squares fit.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Predict applies the fit to an input value.
func (r Regression) Predict(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// LinearRegression fits y = slope*x + intercept by least squares. Zero
// variance in x yields a flat fit through the mean of y.
func LinearRegression(x, y []float64) Regression {
	n := len(x)
	if n == 0 || n != len(y) {
		return Regression{}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		cov += dx * (y[i] - meanY)
		varX += dx * dx
	}
	if varX == 0 {
		return Regression{Slope: 0, Intercept: meanY}
	}
	slope := cov / varX
	return Regression{Slope: slope, Intercept: meanY - slope*meanX}
}

// Result is a full rainfall-versus-level analysis.
type Result struct {
	Pearson    float64          `json:"pearson"`
	BestLag    LagCorrelation   `json:"bestLag"`
	Lags       []LagCorrelation `json:"lags"`
	Regression Regression       `json:"regression"`
	Samples    int              `json:"samples"`
}

// Analyze correlates a rainfall series against a level series that have
// already been time-aligned pairwise. Fewer than MinSamples pairs return
// ErrInsufficientData rather than a numerically meaningless coefficient.
func Analyze(rainfall, level []float64, maxLag int) (*Result, error) {
	n := len(rainfall)
	if n != len(level) {
		if len(level) < n {
			n = len(level)
		}
		rainfall = rainfall[:n]
		level = level[:n]
	}
	if n < MinSamples {
		return nil, ErrInsufficientData
	}

	lags := LaggedCorrelation(rainfall, level, maxLag)
	best := LagCorrelation{}
	for _, lc := range lags {
		if math.Abs(lc.Correlation) > math.Abs(best.Correlation) {
			best = lc
		}
	}

	return &Result{
		Pearson:    Pearson(rainfall, level),
		BestLag:    best,
		Lags:       lags,
		Regression: LinearRegression(rainfall, level),
		Samples:    n,
	}, nil
}

// Prediction is the hypothetical outcome of a given rainfall input.
type Prediction struct {
	RainfallMM     float64            `json:"rainfallMm"`
	PredictedLevel float64            `json:"predictedLevel"`
	Level          entities.RiskLevel `json:"level"`
	Score          float64            `json:"score"`
	Advisory       string             `json:"advisory"`
}

// PredictFloodRisk applies a fitted regression to a hypothetical rainfall
// amount and classifies the predicted level against the station thresholds.
func PredictFloodRisk(rainfallMM float64, reg Regression, th entities.Thresholds) Prediction {
	predicted := reg.Predict(rainfallMM)
	if predicted < 0 {
		predicted = 0
	}
	tier := risk.Classify(predicted, th)
	return Prediction{
		RainfallMM:     rainfallMM,
		PredictedLevel: predicted,
		Level:          tier,
		Score:          risk.Score(predicted, 0, th),
		Advisory:       advisoryFor(tier, predicted),
	}
}

func advisoryFor(tier entities.RiskLevel, level float64) string {
	switch tier {
	case entities.RiskDanger:
		return fmt.Sprintf("예상 수위 %.2fm: 홍수 위험 단계입니다. 즉시 하천 주변 접근을 금지하고 대피 안내를 따르세요.", level)
	case entities.RiskWarning:
		return fmt.Sprintf("예상 수위 %.2fm: 경계 단계입니다. 하천 둔치와 지하차도 통제가 예상됩니다.", level)
	case entities.RiskCaution:
		return fmt.Sprintf("예상 수위 %.2fm: 주의 단계입니다. 하천 산책로 이용을 자제하세요.", level)
	default:
		return fmt.Sprintf("예상 수위 %.2fm: 정상 범위입니다.", level)
	}
}
