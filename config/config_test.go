package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Host != "localhost" || cfg.Port != 5000 {
		t.Fatalf("address defaults = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.WSPath != "/ws" {
		t.Fatalf("WSPath = %q", cfg.WSPath)
	}
	if cfg.IdleTimeout != 30*time.Minute || cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("sweep defaults = %v / %v", cfg.IdleTimeout, cfg.SweepInterval)
	}
	if cfg.Debug || cfg.NgrokEnabled {
		t.Fatalf("debug/ngrok on by default: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COINKICK_HOST", "0.0.0.0")
	t.Setenv("COINKICK_PORT", "8080")
	t.Setenv("COINKICK_WS_PATH", "/socket")
	t.Setenv("COINKICK_IDLE_TIMEOUT", "10m")
	t.Setenv("COINKICK_SWEEP_INTERVAL", "1m")
	t.Setenv("COINKICK_DEBUG", "true")

	cfg := FromEnv()
	if cfg.Host != "0.0.0.0" || cfg.Port != 8080 {
		t.Fatalf("address = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.WSPath != "/socket" {
		t.Fatalf("WSPath = %q", cfg.WSPath)
	}
	if cfg.IdleTimeout != 10*time.Minute || cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep = %v / %v", cfg.IdleTimeout, cfg.SweepInterval)
	}
	if !cfg.Debug {
		t.Fatal("Debug not set")
	}
}

func TestFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("COINKICK_PORT", "not-a-port")
	t.Setenv("COINKICK_IDLE_TIMEOUT", "-5m")

	cfg := FromEnv()
	if cfg.Port != 5000 {
		t.Fatalf("Port = %d, want default 5000", cfg.Port)
	}
	if cfg.IdleTimeout != 30*time.Minute {
		t.Fatalf("IdleTimeout = %v, want default 30m", cfg.IdleTimeout)
	}
}

func TestNgrokTokenNamingConventions(t *testing.T) {
	t.Setenv("NGROK_ENABLED", "1")
	t.Setenv("NGROK_AUTH_TOKEN", "from-underscored")

	cfg := FromEnv()
	if !cfg.NgrokEnabled {
		t.Fatal("NgrokEnabled not set")
	}
	if cfg.NgrokAuthToken != "from-underscored" {
		t.Fatalf("NgrokAuthToken = %q", cfg.NgrokAuthToken)
	}

	// The canonical name wins when both are set.
	t.Setenv("NGROK_AUTHTOKEN", "canonical")
	if cfg := FromEnv(); cfg.NgrokAuthToken != "canonical" {
		t.Fatalf("NgrokAuthToken = %q, want canonical", cfg.NgrokAuthToken)
	}
}
