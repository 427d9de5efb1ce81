package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/hydrowatch/riverdash/internal/api"
	"github.com/hydrowatch/riverdash/internal/config"
	"github.com/hydrowatch/riverdash/internal/integration"
	"github.com/hydrowatch/riverdash/internal/repository"
	"github.com/hydrowatch/riverdash/internal/usecases"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting riverdash server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		log.Fatalf("Failed to load station registry: %v", err)
	}
	log.Printf("Loaded %d stations from registry", len(registry.Stations()))

	repo, err := repository.NewSQLiteHistoryRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	// Initialize integrations
	primary := integration.NewHRFCOClient(cfg.HRFCOBaseURL, cfg.HRFCOServiceKey, cfg.RequestTimeout)
	fallback := integration.NewPortalClient(cfg.PortalBaseURL, cfg.RequestTimeout)
	bulletin := integration.NewBulletinScraper(cfg.BulletinURL, cfg.RequestTimeout)
	kma := integration.NewKMAClient(cfg.KMABaseURL, cfg.KMAServiceKey, cfg.KMAGridNX, cfg.KMAGridNY, cfg.RequestTimeout)
	owm := integration.NewOWMClient(cfg.OWMBaseURL, cfg.OWMAPIKey, cfg.OWMLat, cfg.OWMLon, cfg.RequestTimeout)

	// Alerting is optional; without a token the use case simply never notifies.
	var notifier usecases.Notifier
	if cfg.TelegramToken != "" {
		tg, err := api.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram notifier: %v", err)
		}
		notifier = tg
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, escalation alerts disabled")
	}

	store := usecases.NewSnapshotStore()
	stationUC := usecases.NewStationUseCase(registry, primary, fallback, bulletin, repo, store, notifier)
	analysisUC := usecases.NewAnalysisUseCase(registry, repo, kma, owm)

	// Run a refresh immediately on startup
	if err := stationUC.RefreshAll(context.Background()); err != nil {
		log.Printf("Initial refresh failed: %v", err)
	}

	// Schedule the polling cycle
	c := cron.New()
	if _, err := c.AddFunc(cfg.PollSpec, func() {
		if err := stationUC.RefreshAll(context.Background()); err != nil {
			log.Printf("Scheduled refresh failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to set up refresh schedule: %v", err)
	}
	c.Start()
	log.Printf("Refresh cycle scheduled with spec %q", cfg.PollSpec)

	server := api.NewHTTPServer(stationUC, analysisUC, bulletin)
	log.Printf("Listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Router()); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
