package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hydrowatch/riverdash/internal/config"
	"github.com/hydrowatch/riverdash/internal/integration"
	"github.com/hydrowatch/riverdash/internal/repository"
	"github.com/hydrowatch/riverdash/internal/usecases"
)

// Headless poller: fills the level-history database on the refresh schedule
// without serving the dashboard API. Useful when the API runs elsewhere
// against the same database file.
func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting riverdash poller...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		log.Fatalf("Failed to load station registry: %v", err)
	}

	repo, err := repository.NewSQLiteHistoryRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	primary := integration.NewHRFCOClient(cfg.HRFCOBaseURL, cfg.HRFCOServiceKey, cfg.RequestTimeout)
	fallback := integration.NewPortalClient(cfg.PortalBaseURL, cfg.RequestTimeout)
	bulletin := integration.NewBulletinScraper(cfg.BulletinURL, cfg.RequestTimeout)

	store := usecases.NewSnapshotStore()
	stationUC := usecases.NewStationUseCase(registry, primary, fallback, bulletin, repo, store, nil)

	// Run a refresh immediately on startup
	if err := stationUC.RefreshAll(context.Background()); err != nil {
		log.Printf("Initial refresh failed: %v", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.PollSpec, func() {
		if err := stationUC.RefreshAll(context.Background()); err != nil {
			log.Printf("Scheduled refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to set up refresh schedule: %v", err)
	}

	// Keep only the charting window on disk.
	if _, err := c.AddFunc("@hourly", func() {
		if err := repo.Prune(time.Now().Add(-24 * time.Hour)); err != nil {
			log.Printf("History prune failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to set up prune schedule: %v", err)
	}

	log.Printf("Poller scheduled with spec %q", cfg.PollSpec)
	c.Start()

	// Keep the program running
	select {}
}
