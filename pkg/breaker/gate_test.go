package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

func TestGate_Disabled(t *testing.T) {
	g := NewGate("disabled", Config{}, nil, zerolog.Nop())

	for i := 0; i < 20; i++ {
		if err := g.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want errBoom", err)
		}
	}
	if g.State() != StateClosed {
		t.Errorf("State() = %s, want closed", g.State())
	}
}

func TestGate_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := Config{Enabled: true, ConsecutiveFailures: 3, OpenTimeout: time.Hour}
	g := NewGate("trips", cfg, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := g.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d error = %v, want errBoom", i, err)
		}
	}
	if g.State() != StateOpen {
		t.Fatalf("State() = %s, want open", g.State())
	}

	called := false
	err := g.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Execute() error = %v, want ErrOpen", err)
	}
	if called {
		t.Error("open breaker ran the call")
	}
}

func TestGate_SuccessResetsCount(t *testing.T) {
	cfg := Config{Enabled: true, ConsecutiveFailures: 3, OpenTimeout: time.Hour}
	g := NewGate("resets", cfg, nil, zerolog.Nop())

	for i := 0; i < 10; i++ {
		_ = g.Execute(func() error { return errBoom })
		_ = g.Execute(func() error { return errBoom })
		_ = g.Execute(func() error { return nil })
	}
	if g.State() != StateClosed {
		t.Errorf("State() = %s, want closed", g.State())
	}
}

func TestGate_IsFailureFilter(t *testing.T) {
	errParse := errors.New("parse")
	cfg := Config{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Hour}
	g := NewGate("filter", cfg, func(err error) bool { return !errors.Is(err, errParse) }, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if err := g.Execute(func() error { return errParse }); !errors.Is(err, errParse) {
			t.Fatalf("Execute() error = %v, want errParse", err)
		}
	}
	if g.State() != StateClosed {
		t.Errorf("ignored errors tripped the breaker: %s", g.State())
	}
}

func TestGate_HalfOpenRecovers(t *testing.T) {
	cfg := Config{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: 20 * time.Millisecond}
	g := NewGate("recovers", cfg, nil, zerolog.Nop())

	_ = g.Execute(func() error { return errBoom })
	if g.State() != StateOpen {
		t.Fatalf("State() = %s, want open", g.State())
	}

	time.Sleep(40 * time.Millisecond)
	if g.State() != StateHalfOpen {
		t.Fatalf("State() = %s, want half_open", g.State())
	}
	if err := g.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if g.State() != StateClosed {
		t.Errorf("State() = %s, want closed after successful probe", g.State())
	}
}

func TestState_GaugeValue(t *testing.T) {
	tests := []struct {
		state State
		want  float64
	}{
		{StateClosed, 0},
		{StateHalfOpen, 1},
		{StateOpen, 2},
	}
	for _, tt := range tests {
		if got := tt.state.gaugeValue(); got != tt.want {
			t.Errorf("%s.gaugeValue() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled {
		t.Error("default breaker should be enabled")
	}
	if cfg.ConsecutiveFailures != DefaultConsecutiveFailures {
		t.Errorf("ConsecutiveFailures = %d, want %d", cfg.ConsecutiveFailures, DefaultConsecutiveFailures)
	}
}
