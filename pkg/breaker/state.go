// Package breaker gates catalog requests behind a circuit breaker so a
// failing catalog service is not hammered by every open listing view.
package breaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Defaults for the catalog gate.
const (
	// DefaultConsecutiveFailures trips the breaker after this many failures in a row.
	DefaultConsecutiveFailures = 5

	// DefaultOpenTimeout is how long the breaker stays open before probing again.
	DefaultOpenTimeout = 30 * time.Second

	// DefaultHalfOpenRequests is the number of probe requests allowed while half-open.
	DefaultHalfOpenRequests = 1
)

// State is the breaker state as seen by callers and metrics.
type State string

const (
	// StateClosed lets every request through.
	StateClosed State = "closed"

	// StateHalfOpen lets a limited number of probe requests through.
	StateHalfOpen State = "half_open"

	// StateOpen rejects every request until the open timeout elapses.
	StateOpen State = "open"
)

// gaugeValue maps a state to the catalog_breaker_state gauge.
func (s State) gaugeValue() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config holds breaker configuration.
type Config struct {
	// Enabled turns the breaker on. A disabled gate passes every call through.
	Enabled bool

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32

	// OpenTimeout is the open period before a half-open probe.
	OpenTimeout time.Duration

	// HalfOpenRequests is the probe budget while half-open.
	HalfOpenRequests uint32

	// Interval clears failure counts while closed (0 keeps them until a success).
	Interval time.Duration
}

// DefaultConfig returns the default catalog breaker configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		ConsecutiveFailures: DefaultConsecutiveFailures,
		OpenTimeout:         DefaultOpenTimeout,
		HalfOpenRequests:    DefaultHalfOpenRequests,
	}
}
