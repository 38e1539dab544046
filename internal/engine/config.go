package engine

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tubeguard/internal/enforce"
	"tubeguard/internal/reconcile"
)

// Config wires the state machines and the loop.
type Config struct {
	Reconcile       reconcile.Config
	Enforce         enforce.Config
	OverlayFallback time.Duration
	QueueSize       int
	Logger          *log.Logger
	Clock           func() time.Time
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		Reconcile:       reconcile.DefaultConfig(),
		Enforce:         enforce.DefaultConfig(),
		OverlayFallback: time.Second,
		QueueSize:       512,
		Logger:          log.Default(),
		Clock:           time.Now,
	}
	envDuration("TUBEGUARD_DEBOUNCE", &cfg.Reconcile.Debounce)
	envDuration("TUBEGUARD_BACKSTOP", &cfg.Reconcile.Backstop)
	envDuration("TUBEGUARD_DISCOVERY_TIMEOUT", &cfg.Reconcile.DiscoveryTimeout)
	envDuration("TUBEGUARD_BURST_INTERVAL", &cfg.Enforce.BurstInterval)
	envDuration("TUBEGUARD_PERSIST_INTERVAL", &cfg.Enforce.PersistInterval)
	envDuration("TUBEGUARD_OVERLAY_INTERVAL", &cfg.OverlayFallback)
	if raw := strings.TrimSpace(os.Getenv("TUBEGUARD_BURST_ATTEMPTS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Enforce.BurstAttempts = n
		}
	}
	return cfg
}

func envDuration(name string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
