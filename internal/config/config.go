// Package config resolves the server configuration from the process
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the server command needs to start.
type Config struct {
	// Port the HTTP listener binds to.
	Port int
	// BaseURL is the externally visible address, used to build task and
	// result links. Defaults to http://localhost:<port>.
	BaseURL string
	// DataDir holds the connector database.
	DataDir string
	// SecretKey protects connector records and handoff payloads at rest.
	SecretKey string
	// RedisURL selects Redis-backed handoff storage; empty keeps handoffs
	// in process memory.
	RedisURL string
	// CORSAllowedOrigins enables CORS for the listed origins.
	CORSAllowedOrigins []string
	// Environment is "production" or anything else for development.
	Environment string
}

// Production reports whether the server runs with production hardening.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Config{
		Port:        3000,
		DataDir:     "./data",
		Environment: "development",
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	cfg.SecretKey = os.Getenv("SECRET_KEY")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.BaseURL = strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	if cfg.Production() && cfg.SecretKey == "" {
		return Config{}, fmt.Errorf("SECRET_KEY is required in production")
	}
	return cfg, nil
}
