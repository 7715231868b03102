package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds everything the process reads from the environment.
type AppConfig struct {
	Port     string
	LogLevel string

	// DataFile is the JSON document backing the user/city store.
	DataFile string

	// OpenMeteoURL overrides the provider endpoint (used by tests).
	OpenMeteoURL string

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout time.Duration

	// RefreshInterval controls both forecast-cache freshness and the
	// background refresh job cadence.
	RefreshInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msgf("no .env file loaded: %v", err)
	}

	cfg := &AppConfig{
		Port:         getenvDefault("PORT", "8080"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		DataFile:     getenvDefault("DATA_FILE", "weather_data.json"),
		OpenMeteoURL: os.Getenv("OPENMETEO_BASE_URL"),
	}

	timeout, err := getenvDuration("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	interval, err := getenvDuration("REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.RefreshInterval = interval

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
