package breaker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Prometheus metrics for the breaker.
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"name"})

	breakerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_breaker_rejections_total",
		Help: "Total number of calls rejected by the circuit breaker",
	}, []string{"name"})
)

// Gate runs calls through a circuit breaker.
type Gate struct {
	name   string
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger zerolog.Logger
}

// NewGate creates a gate. isFailure decides which errors count against the
// breaker; nil counts every error.
func NewGate(name string, cfg Config, isFailure func(error) bool, logger zerolog.Logger) *Gate {
	g := &Gate{name: name, logger: logger}
	if !cfg.Enabled {
		return g
	}

	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = DefaultHalfOpenRequests
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.onStateChange(fromGobreaker(from), fromGobreaker(to))
		},
	}
	if isFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	g.cb = gobreaker.NewCircuitBreaker[struct{}](settings)
	breakerState.WithLabelValues(name).Set(StateClosed.gaugeValue())
	return g
}

// Execute runs fn unless the breaker is open. Rejections return ErrOpen;
// otherwise fn's error is returned unchanged.
func (g *Gate) Execute(fn func() error) error {
	if g.cb == nil {
		return fn()
	}

	_, err := g.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		breakerRejectionsTotal.WithLabelValues(g.name).Inc()
		g.logger.Warn().
			Str("breaker", g.name).
			Str("state", string(g.State())).
			Msg("Catalog request rejected by circuit breaker")
		return ErrOpen
	}
	return err
}

// State returns the current breaker state.
func (g *Gate) State() State {
	if g.cb == nil {
		return StateClosed
	}
	return fromGobreaker(g.cb.State())
}

func (g *Gate) onStateChange(from, to State) {
	breakerState.WithLabelValues(g.name).Set(to.gaugeValue())

	event := g.logger.Info()
	if to == StateOpen {
		event = g.logger.Error()
	}
	event.
		Str("breaker", g.name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Circuit breaker state changed")
}
