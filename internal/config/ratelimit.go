package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures per-client admission control and the optional
// process-wide allocator gate.
type RateLimitConfig struct {
	Enabled bool
	Window  time.Duration // fixed window length
	Max     int           // requests admitted per client per window
	Backend string        // "memory" or "redis"
	Prefix  string        // Redis key prefix

	// AllocatorRPS caps allocation attempts per second across all clients;
	// zero disables the gate.
	AllocatorRPS   float64
	AllocatorBurst int
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Window:         envDur("RATE_LIMIT_WINDOW", time.Minute),
		Max:            envInt("RATE_LIMIT_MAX", 12),
		Backend:        strings.ToLower(envStr("RATE_LIMIT_BACKEND", "memory")),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		AllocatorRPS:   envFloat("ALLOCATOR_RPS", 0),
		AllocatorBurst: envInt("ALLOCATOR_BURST", 0),
	}
	if def.Window < time.Second {
		def.Window = time.Second
	}
	if def.Max < 1 {
		def.Max = 1
	}
	if def.Backend != "redis" {
		def.Backend = "memory"
	}
	if def.AllocatorRPS < 0 {
		def.AllocatorRPS = 0
	}
	if def.AllocatorBurst < 1 {
		def.AllocatorBurst = int(def.AllocatorRPS) + 1
	}
	return def
}

func envDur(k string, d time.Duration) time.Duration {
	v := envStr(k, "")
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
