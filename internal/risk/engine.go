// Package risk derives flood-risk assessments from canonical level records.
// Everything here is a pure function over an already-sorted series; the
// engine never performs I/O and never errors on degenerate input.
package risk

import (
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
)

// changeWindow is the trailing window used for change-rate and trend.
const changeWindow = time.Hour

// stableBand is the level delta below which a trend counts as stable.
const stableBand = 0.05 // meters

// TrendDirection labels the short-term movement of a series.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// Assessment is the derived risk state for one station, recomputed each
// fetch cycle and never persisted.
type Assessment struct {
	Level             entities.RiskLevel `json:"level"`
	Score             float64            `json:"score"`
	ChangeRatePerHour float64            `json:"changeRatePerHour"`
	Trend             TrendDirection     `json:"trend"`
}

// Classify returns the highest tier the level has reached, inclusive of the
// threshold itself. The attention threshold is informational and does not
// produce a tier.
func Classify(level float64, th entities.Thresholds) entities.RiskLevel {
	switch {
	case level >= th.Danger:
		return entities.RiskDanger
	case level >= th.Warning:
		return entities.RiskWarning
	case level >= th.Caution:
		return entities.RiskCaution
	default:
		return entities.RiskNormal
	}
}

// ChangeRate compares the earliest and latest levels within the trailing
// one-hour window of the series, normalized to meters per hour. Fewer than
// two points in the window yield zero.
func ChangeRate(series []entities.Record) float64 {
	first, last, ok := windowEdges(series)
	if !ok {
		return 0
	}
	elapsedHours := float64(last.Timestamp-first.Timestamp) / float64(time.Hour.Milliseconds())
	if elapsedHours <= 0 {
		return 0
	}
	return (last.Level - first.Level) / elapsedHours
}

// Score computes the composite 0-100 risk score: up to 70 points for
// proximity to the danger threshold, up to 30 for a rising level. A falling
// or flat level contributes nothing to the rise term.
func Score(level, changeRate float64, th entities.Thresholds) float64 {
	levelTerm := 0.0
	if th.Danger > 0 {
		levelTerm = level / th.Danger * 70
		if levelTerm > 70 {
			levelTerm = 70
		}
		if levelTerm < 0 {
			levelTerm = 0
		}
	}

	riseTerm := 0.0
	if changeRate > 0 {
		riseTerm = changeRate / 0.5 * 30
		if riseTerm > 30 {
			riseTerm = 30
		}
	}

	score := levelTerm + riseTerm
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Trend labels the level movement over the trailing one-hour window.
func Trend(series []entities.Record) (TrendDirection, float64) {
	first, last, ok := windowEdges(series)
	if !ok {
		return TrendStable, 0
	}
	delta := last.Level - first.Level
	switch {
	case delta > stableBand:
		return TrendRising, delta
	case delta < -stableBand:
		return TrendFalling, -delta
	default:
		return TrendStable, abs(delta)
	}
}

// Assess composes classification, change rate, score and trend for a series
// sorted ascending by timestamp. An empty series assesses as normal.
func Assess(series []entities.Record, th entities.Thresholds) Assessment {
	if len(series) == 0 {
		return Assessment{Level: entities.RiskNormal, Trend: TrendStable}
	}
	latest := series[len(series)-1]
	rate := ChangeRate(series)
	direction, _ := Trend(series)
	return Assessment{
		Level:             Classify(latest.Level, th),
		Score:             Score(latest.Level, rate, th),
		ChangeRatePerHour: rate,
		Trend:             direction,
	}
}

// windowEdges returns the earliest and latest records inside the trailing
// window, anchored at the newest record rather than the wall clock so the
// computation is reproducible.
func windowEdges(series []entities.Record) (first, last entities.Record, ok bool) {
	if len(series) < 2 {
		return entities.Record{}, entities.Record{}, false
	}
	last = series[len(series)-1]
	cutoff := last.Timestamp - changeWindow.Milliseconds()

	idx := -1
	for i, r := range series {
		if r.Timestamp >= cutoff {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(series)-1 {
		return entities.Record{}, entities.Record{}, false
	}
	return series[idx], last, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
