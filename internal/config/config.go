// Package config loads service configuration and the station registry
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every externally tunable setting. It is built once in main
// and passed into constructors explicitly; nothing reads the environment at
// call time.
type Config struct {
	// Primary HRFCO water-level API
	HRFCOBaseURL    string
	HRFCOServiceKey string

	// Fallback public data portal
	PortalBaseURL string

	// HTML status-table bulletin, last-resort source
	BulletinURL string

	// KMA ultra-short-term observation (rainfall input)
	KMABaseURL    string
	KMAServiceKey string
	KMAGridNX     int
	KMAGridNY     int

	// OpenWeatherMap current conditions
	OWMBaseURL string
	OWMAPIKey  string
	OWMLat     float64
	OWMLon     float64

	// Telegram alerting (disabled when token is empty)
	TelegramToken  string
	TelegramChatID int64

	ListenAddr     string
	DBPath         string
	PollSpec       string // cron spec for the refresh cycle
	RequestTimeout time.Duration
}

// Load reads .env (best effort) and the environment, applying defaults for
// everything but the API keys.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := &Config{
		HRFCOBaseURL:    getEnv("HRFCO_BASE_URL", "https://api.hrfco.go.kr"),
		HRFCOServiceKey: os.Getenv("HRFCO_SERVICE_KEY"),
		PortalBaseURL:   getEnv("PORTAL_BASE_URL", "https://www.water.or.kr"),
		BulletinURL:     getEnv("BULLETIN_URL", "https://www.hrfco.go.kr/sumun/waterlevelList.do"),
		KMABaseURL:      getEnv("KMA_BASE_URL", "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0"),
		KMAServiceKey:   os.Getenv("KMA_SERVICE_KEY"),
		OWMBaseURL:      getEnv("OWM_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		OWMAPIKey:       os.Getenv("OWM_API_KEY"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", ""),
		PollSpec:        getEnv("POLL_SPEC", "@every 5m"),
	}

	cfg.KMAGridNX = getEnvInt("KMA_GRID_NX", 61) // Seoul, Seocho-gu grid
	cfg.KMAGridNY = getEnvInt("KMA_GRID_NY", 125)
	cfg.OWMLat = getEnvFloat("OWM_LAT", 37.5172)
	cfg.OWMLon = getEnvFloat("OWM_LON", 127.0473)

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %v", chatID, err)
		}
		cfg.TelegramChatID = id
	}

	timeoutSec := getEnvInt("REQUEST_TIMEOUT_SEC", 10)
	cfg.RequestTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %g", key, v, fallback)
		return fallback
	}
	return f
}
