package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// Config tunes when a breaker trips and how long it stays open. The
// price oracle client derives these from its own configuration so a
// deployment can loosen or tighten the guard per upstream.
type Config struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which the closed-state counters reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MinRequests is the minimum sample size before the ratio applies.
	MinRequests uint32
	// FailureRatio at or above which the breaker trips.
	FailureRatio float64
}

// DefaultConfig suits a rate-limited external HTTP API.
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// New builds a breaker from cfg, filling unset fields from defaults.
func New(name string, cfg Config) *gobreaker.CircuitBreaker {
	defaults := DefaultConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaults.MinRequests
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = defaults.FailureRatio
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
