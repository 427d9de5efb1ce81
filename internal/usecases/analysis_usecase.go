package usecases

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/hydrowatch/riverdash/internal/analysis"
	"github.com/hydrowatch/riverdash/internal/config"
	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/integration"
	"github.com/hydrowatch/riverdash/internal/repository"
)

// maxCorrelationLag bounds the lag search, in hours. River response to
// rainfall in an urban basin shows up well within this.
const maxCorrelationLag = 3

// RainfallSource provides the hourly rainfall series for correlation.
type RainfallSource interface {
	FetchHourlyRainfall(ctx context.Context) ([]integration.RainfallPoint, error)
}

// CurrentRainSource provides the default hypothetical rainfall input.
type CurrentRainSource interface {
	CurrentRainfall(ctx context.Context) (float64, error)
}

// CorrelationReport pairs the analysis with the station it describes.
type CorrelationReport struct {
	StationID string           `json:"stationId"`
	Hours     int              `json:"hours"`
	Result    *analysis.Result `json:"result"`
}

// AnalysisUseCase aligns rainfall against persisted level history and runs
// the correlation engine over the matched pairs.
type AnalysisUseCase struct {
	registry *config.Registry
	repo     repository.HistoryRepository
	rainfall RainfallSource
	current  CurrentRainSource
}

// NewAnalysisUseCase creates the analysis use case. current may be nil, in
// which case predictions require an explicit rainfall input.
func NewAnalysisUseCase(registry *config.Registry, repo repository.HistoryRepository, rainfall RainfallSource, current CurrentRainSource) *AnalysisUseCase {
	return &AnalysisUseCase{
		registry: registry,
		repo:     repo,
		rainfall: rainfall,
		current:  current,
	}
}

// Correlate fetches the rainfall series, aligns it hour-by-hour with the
// station's level history over the trailing window, and analyzes the pairs.
// Fewer than three matched hours surface analysis.ErrInsufficientData.
func (uc *AnalysisUseCase) Correlate(ctx context.Context, stationID string, hours int) (*CorrelationReport, error) {
	station, ok := uc.registry.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("unknown station id %q", stationID)
	}
	if hours <= 0 || hours > 24 {
		hours = 24
	}

	levels, err := uc.repo.GetSeries(station.ID, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load level history for %s: %v", station.ID, err)
	}

	rain, err := uc.rainfall.FetchHourlyRainfall(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rainfall series: %v", err)
	}

	rainSeries, levelSeries := alignByHour(rain, levels)
	result, err := analysis.Analyze(rainSeries, levelSeries, maxCorrelationLag)
	if err != nil {
		return nil, err
	}

	log.Printf("Correlation for station %s: r=%.3f over %d matched hours (best lag %dh)",
		station.ID, result.Pearson, result.Samples, result.BestLag.Lag)
	return &CorrelationReport{StationID: station.ID, Hours: hours, Result: result}, nil
}

// Predict regresses the station's recent rainfall/level relationship and
// applies it to a hypothetical rainfall amount. When rainfallMM is nil the
// current observed rainfall is used.
func (uc *AnalysisUseCase) Predict(ctx context.Context, stationID string, rainfallMM *float64) (*analysis.Prediction, error) {
	station, ok := uc.registry.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("unknown station id %q", stationID)
	}

	report, err := uc.Correlate(ctx, stationID, 24)
	if err != nil {
		return nil, err
	}

	mm := 0.0
	if rainfallMM != nil {
		mm = *rainfallMM
	} else {
		if uc.current == nil {
			return nil, fmt.Errorf("no rainfall input given and no current-conditions source configured")
		}
		mm, err = uc.current.CurrentRainfall(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch current rainfall: %v", err)
		}
	}

	prediction := analysis.PredictFloodRisk(mm, report.Result.Regression, station.Thresholds)
	return &prediction, nil
}

// alignByHour buckets both series into clock hours and keeps the hours both
// sides cover, each side reduced to its last reading of the hour. Output
// slices are index-aligned and hour-ordered.
func alignByHour(rain []integration.RainfallPoint, levels []entities.Record) ([]float64, []float64) {
	rainByHour := make(map[int64]float64, len(rain))
	for _, p := range rain {
		rainByHour[p.Time.Truncate(time.Hour).Unix()] = p.MM
	}

	levelByHour := make(map[int64]float64, len(levels))
	for _, rec := range levels {
		levelByHour[rec.ObservedAt.Truncate(time.Hour).Unix()] = rec.Level
	}

	var hoursPresent []int64
	for h := range rainByHour {
		if _, ok := levelByHour[h]; ok {
			hoursPresent = append(hoursPresent, h)
		}
	}
	sort.Slice(hoursPresent, func(i, j int) bool { return hoursPresent[i] < hoursPresent[j] })

	rainOut := make([]float64, 0, len(hoursPresent))
	levelOut := make([]float64, 0, len(hoursPresent))
	for _, h := range hoursPresent {
		rainOut = append(rainOut, rainByHour[h])
		levelOut = append(levelOut, levelByHour[h])
	}
	return rainOut, levelOut
}
