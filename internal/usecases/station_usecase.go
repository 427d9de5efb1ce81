// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/hydrowatch/riverdash/internal/config"
	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/integration"
	"github.com/hydrowatch/riverdash/internal/repository"
	"github.com/hydrowatch/riverdash/internal/risk"
)

// snapshotWindowHours is the series window fetched on each refresh cycle.
const snapshotWindowHours = 3

// refreshConcurrency bounds the station fan-out per cycle.
const refreshConcurrency = 4

// PrimarySource is the official water-level API.
type PrimarySource interface {
	FetchLatest(ctx context.Context, stationID string) ([]entities.Record, error)
	FetchSeries(ctx context.Context, stationID string, windowHours int) ([]entities.Record, error)
}

// FallbackSource is the public-data-portal scraper queried by station name.
type FallbackSource interface {
	FetchByName(ctx context.Context, station entities.Station) ([]entities.Record, error)
}

// BulletinSource is the HTML status-table scraper of last resort.
type BulletinSource interface {
	FetchStation(ctx context.Context, station entities.Station) ([]entities.Record, error)
}

// Notifier receives tier-escalation alerts. Implementations must tolerate
// being called from concurrent refresh goroutines.
type Notifier interface {
	NotifyEscalation(station entities.Station, assessment risk.Assessment, level float64) error
}

// FetchResult is the outcome of one orchestrated fetch.
type FetchResult struct {
	Records []entities.Record `json:"records"`
	Source  entities.Source   `json:"source"`
}

// StationUseCase owns the orchestrated Primary→Fallback→Bulletin fetch and
// the periodic refresh cycle. It is the only place fetch failures are
// recovered; the stages themselves never retry.
type StationUseCase struct {
	registry *config.Registry
	primary  PrimarySource
	fallback FallbackSource
	bulletin BulletinSource
	repo     repository.HistoryRepository
	store    *SnapshotStore
	notifier Notifier
	breaker  *gobreaker.CircuitBreaker

	tierMu    sync.Mutex
	lastTiers map[string]entities.RiskLevel
}

// NewStationUseCase wires the orchestrated fetch. notifier may be nil.
func NewStationUseCase(
	registry *config.Registry,
	primary PrimarySource,
	fallback FallbackSource,
	bulletin BulletinSource,
	repo repository.HistoryRepository,
	store *SnapshotStore,
	notifier Notifier,
) *StationUseCase {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "hrfco-primary",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &StationUseCase{
		registry:  registry,
		primary:   primary,
		fallback:  fallback,
		bulletin:  bulletin,
		repo:      repo,
		store:     store,
		notifier:  notifier,
		breaker:   breaker,
		lastTiers: make(map[string]entities.RiskLevel),
	}
}

// Registry exposes the station table for the API layer.
func (uc *StationUseCase) Registry() *config.Registry { return uc.registry }

// Store exposes the snapshot store for the API layer.
func (uc *StationUseCase) Store() *SnapshotStore { return uc.store }

// GetStationLevel runs the two-stage fallback fetch for one station, with
// the bulletin scrape as a last resort. Primary is always attempted first
// (the fallback is materially slower and should not be paid for otherwise);
// when every stage fails the surfaced error keeps each stage's cause.
func (uc *StationUseCase) GetStationLevel(ctx context.Context, stationID string, windowHours int) (*FetchResult, error) {
	station, ok := uc.registry.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("unknown station id %q", stationID)
	}

	records, primaryErr := uc.fetchPrimary(ctx, stationID, windowHours)
	if primaryErr == nil {
		return &FetchResult{Records: records, Source: entities.SourcePrimary}, nil
	}
	log.Printf("Warning: primary fetch failed for station %s: %v", stationID, primaryErr)

	records, fallbackErr := uc.fallback.FetchByName(ctx, station)
	if fallbackErr == nil {
		return &FetchResult{Records: records, Source: entities.SourceFallback}, nil
	}
	log.Printf("Warning: fallback fetch failed for station %s: %v", stationID, fallbackErr)

	records, bulletinErr := uc.bulletin.FetchStation(ctx, station)
	if bulletinErr == nil {
		return &FetchResult{Records: records, Source: entities.SourceFallback}, nil
	}
	log.Printf("Warning: bulletin fetch failed for station %s: %v", stationID, bulletinErr)

	return nil, &integration.AggregateError{Causes: []error{primaryErr, fallbackErr, bulletinErr}}
}

// fetchPrimary calls the primary source through the circuit breaker. An open
// circuit is reported as a transport failure so the orchestration falls
// through to the fallback without waiting on a known-dead upstream.
func (uc *StationUseCase) fetchPrimary(ctx context.Context, stationID string, windowHours int) ([]entities.Record, error) {
	out, err := uc.breaker.Execute(func() (interface{}, error) {
		if windowHours > 0 {
			return uc.primary.FetchSeries(ctx, stationID, windowHours)
		}
		return uc.primary.FetchLatest(ctx, stationID)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, integration.NewFetchError("primary", integration.KindTransport, err)
		}
		return nil, err
	}
	return out.([]entities.Record), nil
}

// RefreshStation runs one station's fetch-assess-publish-persist sequence
// for the given cycle. Stale cycles lose at the snapshot store.
func (uc *StationUseCase) RefreshStation(ctx context.Context, station entities.Station, cycle uint64) error {
	result, err := uc.GetStationLevel(ctx, station.ID, snapshotWindowHours)
	if err != nil {
		return err
	}

	assessment := risk.Assess(result.Records, station.Thresholds)
	applied := uc.store.Apply(Snapshot{
		Station:    station,
		Records:    result.Records,
		Assessment: assessment,
		Source:     result.Source,
		FetchedAt:  time.Now(),
		Cycle:      cycle,
	})
	if !applied {
		log.Printf("Discarding stale cycle %d result for station %s", cycle, station.ID)
		return nil
	}

	if err := uc.repo.SaveRecords(result.Records); err != nil {
		log.Printf("Warning: failed to persist records for station %s: %v", station.ID, err)
	}

	uc.maybeNotify(station, assessment, result.Records)
	return nil
}

// RefreshAll fans out one refresh cycle across every registered station.
// Stations are independent: one failing does not stop the others, and there
// is no cross-station ordering. An error is returned only when every
// station failed.
func (uc *StationUseCase) RefreshAll(ctx context.Context) error {
	stations := uc.registry.Stations()
	cycle := uc.store.NextCycle()
	log.Printf("Starting refresh cycle %d for %d stations", cycle, len(stations))

	var mu sync.Mutex
	var failures []error

	g := new(errgroup.Group)
	g.SetLimit(refreshConcurrency)
	for _, station := range stations {
		station := station
		g.Go(func() error {
			if err := uc.RefreshStation(ctx, station, cycle); err != nil {
				log.Printf("Refresh failed for station %s: %v", station.ID, err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("station %s: %w", station.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(failures) == len(stations) {
		return fmt.Errorf("refresh cycle %d failed for all %d stations: %v", cycle, len(stations), failures)
	}
	log.Printf("Refresh cycle %d complete: %d/%d stations updated", cycle, len(stations)-len(failures), len(stations))
	return nil
}

// GetSeries returns a station's persisted history over the trailing window.
func (uc *StationUseCase) GetSeries(stationID string, hours int) ([]entities.Record, error) {
	if _, ok := uc.registry.Get(stationID); !ok {
		return nil, fmt.Errorf("unknown station id %q", stationID)
	}
	if hours <= 0 {
		hours = snapshotWindowHours
	}
	if hours > 24 {
		hours = 24
	}
	return uc.repo.GetSeries(stationID, time.Now().Add(-time.Duration(hours)*time.Hour))
}

// maybeNotify dispatches an alert when a station's tier escalates into
// warning or danger, once per escalation.
func (uc *StationUseCase) maybeNotify(station entities.Station, assessment risk.Assessment, records []entities.Record) {
	if uc.notifier == nil || len(records) == 0 {
		return
	}

	uc.tierMu.Lock()
	previous := uc.lastTiers[station.ID]
	uc.lastTiers[station.ID] = assessment.Level
	uc.tierMu.Unlock()

	if assessment.Level.Rank() < entities.RiskWarning.Rank() || assessment.Level.Rank() <= previous.Rank() {
		return
	}

	level := records[len(records)-1].Level
	if err := uc.notifier.NotifyEscalation(station, assessment, level); err != nil {
		log.Printf("Warning: failed to send escalation alert for station %s: %v", station.ID, err)
	}
}
