package config

import (
	"fmt"
	"os"
	"time"
)

const defaultUIASessionTTL = 5 * time.Minute

// Config holds the application configuration
type Config struct {
	DatabaseURL   string
	Port          string
	JWTSecret     string
	UIASessionTTL time.Duration
	DevMode       bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:          "8080", // default port
		UIASessionTTL: defaultUIASessionTTL,
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	// UIA_SESSION_TTL bounds how long an open interactive-auth session stays
	// resumable (optional, e.g. "10m").
	if ttl := os.Getenv("UIA_SESSION_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid UIA_SESSION_TTL: %w", err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("UIA_SESSION_TTL must be positive")
		}
		cfg.UIASessionTTL = parsed
	}

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"

	return cfg, nil
}
