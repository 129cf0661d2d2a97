// Package viewport signals when the end of a list comes into view.
//
// A Trigger observes a sentinel, a marker placed after the last rendered
// item, and calls back when it becomes visible. Signals are advisory: the
// receiver decides whether a next page is actually fetched.
package viewport

import (
	"errors"
	"sync"
)

const (
	// DefaultMargin extends the visible band below the viewport so the
	// next page starts loading before the user reaches the end.
	DefaultMargin = 200

	// DefaultSentinelHeight is used for sentinels without a height.
	DefaultSentinelHeight = 1
)

// ErrAlreadyObserving is returned by Observe on a trigger that already has
// an observer.
var ErrAlreadyObserving = errors.New("trigger already observing")

// Sentinel identifies the end-of-list marker.
type Sentinel struct {
	ID     string
	Height float64
}

// Trigger observes a sentinel and calls onNearEnd when it becomes visible.
// Unobserve must be called on teardown.
type Trigger interface {
	Observe(s Sentinel, onNearEnd func()) error
	Unobserve()
}

// observer is the state every trigger shares.
type observer struct {
	mu        sync.Mutex
	sentinel  Sentinel
	onNearEnd func()
}

func (o *observer) observe(s Sentinel, onNearEnd func()) error {
	if onNearEnd == nil {
		return errors.New("onNearEnd callback is required")
	}
	if o.onNearEnd != nil {
		return ErrAlreadyObserving
	}
	if s.Height <= 0 {
		s.Height = DefaultSentinelHeight
	}
	o.sentinel = s
	o.onNearEnd = onNearEnd
	return nil
}

// ManualTrigger fires on demand, e.g. a "load more" command or a test.
type ManualTrigger struct {
	observer
}

// NewManualTrigger creates a manual trigger.
func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{}
}

// Observe implements Trigger.
func (m *ManualTrigger) Observe(s Sentinel, onNearEnd func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observe(s, onNearEnd)
}

// Unobserve implements Trigger.
func (m *ManualTrigger) Unobserve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNearEnd = nil
}

// Signal calls the observer. It reports whether anyone was observing.
func (m *ManualTrigger) Signal() bool {
	m.mu.Lock()
	fn := m.onNearEnd
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}
