package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hydrowatch/riverdash/internal/analysis"
	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/integration"
	"github.com/hydrowatch/riverdash/internal/risk"
	"github.com/hydrowatch/riverdash/internal/usecases"
)

// BulletinLister serves the full HTML status table for the bulletin widget.
type BulletinLister interface {
	FetchAll(ctx context.Context) ([]integration.BulletinRow, error)
}

// HTTPServer exposes the dashboard API.
type HTTPServer struct {
	stations *usecases.StationUseCase
	analyses *usecases.AnalysisUseCase
	bulletin BulletinLister
}

// NewHTTPServer creates the dashboard API server.
func NewHTTPServer(stations *usecases.StationUseCase, analyses *usecases.AnalysisUseCase, bulletin BulletinLister) *HTTPServer {
	return &HTTPServer{
		stations: stations,
		analyses: analyses,
		bulletin: bulletin,
	}
}

// Router builds the route table.
func (s *HTTPServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/stations", s.handleListStations).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}", s.handleGetStation).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}/risk", s.handleGetRisk).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}/series", s.handleGetSeries).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}/correlation", s.handleCorrelation).Methods(http.MethodGet)
	r.HandleFunc("/api/stations/{id}/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/bulletin", s.handleBulletin).Methods(http.MethodGet)
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stations.Registry().Stations())
}

// handleGetStation returns the station's current snapshot, fetching on
// demand when no refresh cycle has published one yet.
func (s *HTTPServer) handleGetStation(w http.ResponseWriter, r *http.Request) {
	station, ok := s.stations.Registry().Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown station id")
		return
	}

	snap, ok := s.stations.Store().Get(station.ID)
	if !ok {
		fetched, err := s.fetchOnDemand(r.Context(), station)
		if err != nil {
			writeFetchError(w, err)
			return
		}
		snap = *fetched
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	station, ok := s.stations.Registry().Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown station id")
		return
	}

	snap, ok := s.stations.Store().Get(station.ID)
	if !ok {
		fetched, err := s.fetchOnDemand(r.Context(), station)
		if err != nil {
			writeFetchError(w, err)
			return
		}
		snap = *fetched
	}
	writeJSON(w, http.StatusOK, snap.Assessment)
}

func (s *HTTPServer) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	stationID := mux.Vars(r)["id"]
	if _, ok := s.stations.Registry().Get(stationID); !ok {
		writeError(w, http.StatusNotFound, "unknown station id")
		return
	}

	hours := 0
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	records, err := s.stations.GetSeries(stationID, hours)
	if err != nil {
		log.Printf("Series query failed for station %s: %v", stationID, err)
		writeError(w, http.StatusInternalServerError, "failed to load series")
		return
	}
	if records == nil {
		records = []entities.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *HTTPServer) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	stationID := mux.Vars(r)["id"]
	if _, ok := s.stations.Registry().Get(stationID); !ok {
		writeError(w, http.StatusNotFound, "unknown station id")
		return
	}

	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	report, err := s.analyses.Correlate(r.Context(), stationID, hours)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("Correlation failed for station %s: %v", stationID, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	stationID := mux.Vars(r)["id"]
	if _, ok := s.stations.Registry().Get(stationID); !ok {
		writeError(w, http.StatusNotFound, "unknown station id")
		return
	}

	var body struct {
		Rainfall *float64 `json:"rainfall"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if body.Rainfall != nil && *body.Rainfall < 0 {
		writeError(w, http.StatusBadRequest, "rainfall must be non-negative")
		return
	}

	prediction, err := s.analyses.Predict(r.Context(), stationID, body.Rainfall)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("Prediction failed for station %s: %v", stationID, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

// handleRefresh starts a manual refresh cycle. The cycle runs in the
// background; last-cycle-wins ordering at the snapshot store makes it safe
// against a timer-triggered cycle already in flight.
func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.stations.RefreshAll(ctx); err != nil {
			log.Printf("Manual refresh failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

func (s *HTTPServer) handleBulletin(w http.ResponseWriter, r *http.Request) {
	rows, err := s.bulletin.FetchAll(r.Context())
	if err != nil {
		log.Printf("Bulletin fetch failed: %v", err)
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// fetchOnDemand runs one orchestrated fetch outside the timer cycle and
// publishes the result under a fresh cycle number.
func (s *HTTPServer) fetchOnDemand(ctx context.Context, station entities.Station) (*usecases.Snapshot, error) {
	result, err := s.stations.GetStationLevel(ctx, station.ID, 3)
	if err != nil {
		return nil, err
	}
	snap := usecases.Snapshot{
		Station:    station,
		Records:    result.Records,
		Assessment: risk.Assess(result.Records, station.Thresholds),
		Source:     result.Source,
		FetchedAt:  time.Now(),
		Cycle:      s.stations.Store().NextCycle(),
	}
	s.stations.Store().Apply(snap)
	return &snap, nil
}

// writeFetchError maps fetch failures to responses. An aggregate failure is
// a gateway problem and its message keeps every stage's cause so the
// dashboard can show which upstream broke.
func writeFetchError(w http.ResponseWriter, err error) {
	var agg *integration.AggregateError
	if errors.As(err, &agg) {
		writeError(w, http.StatusBadGateway, agg.Error())
		return
	}
	var fetchErr *integration.FetchError
	if errors.As(err, &fetchErr) {
		writeError(w, http.StatusBadGateway, fetchErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
