// Package debounce collapses bursts of free-text input into a single
// committed value.
//
// Every Input restarts the window. Only after the window elapses with no
// further input is the latest value committed. A commit replaces any pending
// one; inputs are never queued. Input itself never causes network activity,
// only the commit callback does.
package debounce

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultWindow is the quiet period used when New gets a zero window.
const DefaultWindow = 350 * time.Millisecond

// ErrClosed is returned by Input after Close.
var ErrClosed = errors.New("debouncer closed")

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Debouncer) {
		d.logger = logger
	}
}

// Debouncer delays input until it settles.
type Debouncer struct {
	window   time.Duration
	onCommit func(string)
	logger   zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	value   string
	pending bool
	closed  bool
}

// New creates a debouncer that calls onCommit with the settled value. The
// callback runs on the timer goroutine, or on the caller's goroutine for
// Flush.
func New(window time.Duration, onCommit func(string), opts ...Option) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	if onCommit == nil {
		onCommit = func(string) {}
	}
	d := &Debouncer{
		window:   window,
		onCommit: onCommit,
		logger:   log.With().Str("component", "debounce").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the quiet period.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Input records raw as the latest value and restarts the window.
func (d *Debouncer) Input(raw string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.gen++
	d.value = raw
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
	return nil
}

// fire commits if no Input, Cancel, Flush or Close happened since the timer
// for gen was armed. Stop cannot recall a timer whose func already started,
// so the generation check is what drops superseded fires.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending || d.closed {
		d.mu.Unlock()
		return
	}
	value := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.logger.Debug().Str("value", value).Msg("Input committed")
	d.onCommit(value)
}

// Cancel drops a pending commit. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disarm()
}

// Flush commits a pending value immediately, e.g. on an explicit submit. It
// reports whether a value was committed.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.closed || !d.pending {
		d.mu.Unlock()
		return false
	}
	value := d.value
	d.disarm()
	d.mu.Unlock()

	d.logger.Debug().Str("value", value).Msg("Input flushed")
	d.onCommit(value)
	return true
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Close cancels any pending commit and rejects further input. A commit
// callback already running is not waited for.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	d.closed = true
}

// disarm must be called with mu held.
func (d *Debouncer) disarm() bool {
	wasPending := d.pending
	d.gen++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return wasPending
}
