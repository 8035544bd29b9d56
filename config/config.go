// Package config resolves the server's runtime settings from environment
// variables with sane defaults. The root command layers CLI flags on top and
// loads a .env file first, so precedence is flags > environment > defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the complete server configuration.
type Config struct {
	// Host and Port for the HTTP server carrying /ws, /api, and /mcp.
	Host string
	Port int

	// WSPath is the WebSocket upgrade path.
	WSPath string

	// IdleTimeout is how long a room may go without activity before the
	// sweep evicts it.
	IdleTimeout time.Duration

	// SweepInterval is how often the idle sweep runs.
	SweepInterval time.Duration

	// Debug enables verbose logging with file/line markers.
	Debug bool

	// Ngrok tunnel settings for external access during development.
	NgrokEnabled   bool
	NgrokAuthToken string
	NgrokDomain    string
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Host:          "localhost",
		Port:          5000,
		WSPath:        "/ws",
		IdleTimeout:   30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// FromEnv returns the default configuration overlaid with any environment
// overrides.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("COINKICK_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("COINKICK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("COINKICK_WS_PATH"); v != "" {
		cfg.WSPath = v
	}
	if v := os.Getenv("COINKICK_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.IdleTimeout = d
		}
	}
	if v := os.Getenv("COINKICK_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("COINKICK_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("NGROK_ENABLED"); v == "true" || v == "1" {
		cfg.NgrokEnabled = true
	}
	// Support both naming conventions for the token.
	if v := os.Getenv("NGROK_AUTHTOKEN"); v != "" {
		cfg.NgrokAuthToken = v
	} else if v := os.Getenv("NGROK_AUTH_TOKEN"); v != "" {
		cfg.NgrokAuthToken = v
	}
	if v := os.Getenv("NGROK_DOMAIN"); v != "" {
		cfg.NgrokDomain = v
	}

	return cfg
}
