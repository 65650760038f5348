package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the settings shared by the server and the CLI.
type Config struct {
	DBPath        string
	Port          int
	CatalogPath   string  // Optional YAML variable catalog
	LogDir        string  // Rotating log files are written here when set
	MinSample     int     // Minimum sends per arm before a winner is declared
	MinConfidence float64 // Percent confidence a winner must reach
}

// Load reads .env from the working directory when present, then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables")
	}

	port, err := getEnvInt("PATHSPLIT_PORT", 8080)
	if err != nil {
		return nil, err
	}
	minSample, err := getEnvInt("PATHSPLIT_MIN_SAMPLE", 100)
	if err != nil {
		return nil, err
	}
	minConfidence, err := getEnvFloat("PATHSPLIT_MIN_CONFIDENCE", 95)
	if err != nil {
		return nil, err
	}
	if minConfidence < 0 || minConfidence > 100 {
		return nil, fmt.Errorf("PATHSPLIT_MIN_CONFIDENCE must be between 0 and 100, got %v", minConfidence)
	}

	return &Config{
		DBPath:        getEnv("PATHSPLIT_DB_PATH", "./pathsplit.db"),
		Port:          port,
		CatalogPath:   getEnv("PATHSPLIT_CATALOG", ""),
		LogDir:        getEnv("LOGS_FOLDER", ""),
		MinSample:     minSample,
		MinConfidence: minConfidence,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
