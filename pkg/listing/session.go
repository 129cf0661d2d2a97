// Package listing composes cache, fetch coordination, debounced search and
// viewport triggers into the list session every storefront view uses: give
// it a query and it produces the ordered items, loading and error flags and
// pagination metadata to render.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-feed/pkg/cache"
	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"github.com/Sternrassler/catalog-feed/pkg/debounce"
	"github.com/Sternrassler/catalog-feed/pkg/pagination"
	"github.com/Sternrassler/catalog-feed/pkg/viewport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by session operations after Close.
var ErrClosed = errors.New("list session closed")

// Prometheus metrics for list sessions.
var (
	staleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_stale_responses_total",
		Help: "Fetch responses discarded because the session moved to another key",
	})

	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_session_transitions_total",
		Help: "List session state transitions by target status",
	}, []string{"status"})

	sessionCacheRestoresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_session_cache_restores_total",
		Help: "Session entries served from the cache without a network call",
	})
)

// Config holds per-session settings.
type Config struct {
	// DebounceWindow is the quiet period for free-text search
	DebounceWindow time.Duration

	// Sentinel is the end-of-list marker handed to an observed trigger
	Sentinel viewport.Sentinel
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		DebounceWindow: debounce.DefaultWindow,
		Sentinel:       viewport.Sentinel{ID: "list-end"},
	}
}

// Deps are the collaborators of a session.
type Deps struct {
	// Coordinator fetches pages. Its store and key builder are the ones
	// the session reads cached entries with.
	Coordinator *pagination.Coordinator

	Logger zerolog.Logger
}

type subscriber struct {
	id   int
	fn   func(SessionState)
	last uint64
}

// Session is one list session. All methods are safe for concurrent use.
type Session struct {
	cfg       Config
	coord     *pagination.Coordinator
	store     cache.Store
	keys      cache.KeyBuilder
	logger    zerolog.Logger
	debouncer *debounce.Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     SessionState
	retry     *pagination.Options
	trigger   viewport.Trigger
	subs      []*subscriber
	nextSubID int
	closed    bool

	// deliverMu orders subscriber callbacks; take it before mu.
	deliverMu sync.Mutex
}

// New creates an idle session. Background work (debounced search commits,
// trigger-driven loads) runs under ctx until Close.
func New(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if cfg.Sentinel.ID == "" {
		cfg.Sentinel = DefaultConfig().Sentinel
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:    cfg,
		coord:  deps.Coordinator,
		store:  deps.Coordinator.Store(),
		keys:   deps.Coordinator.Keys(),
		logger: deps.Logger,
		ctx:    sessionCtx,
		cancel: cancel,
		state:  SessionState{Status: StatusIdle},
	}
	s.debouncer = debounce.New(cfg.DebounceWindow, s.onSearchCommitted, debounce.WithLogger(deps.Logger))
	return s, nil
}

// State returns the current snapshot.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers render to receive every state change in order,
// starting with the current state. render runs on the goroutine that caused
// the change and must not call back into the session synchronously.
// The returned function unsubscribes.
func (s *Session) Subscribe(render func(SessionState)) func() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.nextSubID++
	sub := &subscriber{id: s.nextSubID, fn: render}
	s.subs = append(s.subs, sub)
	snap := s.state
	s.mu.Unlock()

	sub.last = snap.Version
	render(snap)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// publish delivers snap to subscribers that have not seen a newer state.
// Must not be called with mu held.
func (s *Session) publish(snap SessionState) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	subs := append([]*subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		if snap.Version <= sub.last {
			continue
		}
		sub.last = snap.Version
		sub.fn(snap)
	}
}

// transitionLocked bumps the version and returns the snapshot to publish.
func (s *Session) transitionLocked(status Status) SessionState {
	s.state.Status = status
	s.state.LoadingInitial = status == StatusLoadingInitial
	s.state.LoadingMore = status == StatusLoadingMore
	s.state.Version++
	sessionTransitionsTotal.WithLabelValues(string(status)).Inc()
	return s.state
}

// SetQuery switches the session to q. When scope, search or sort differ
// from the current query, pending search input is cancelled and the shown
// items are cleared before anything is fetched. A cached entry for the new
// key is restored without a network call; otherwise page 1 is fetched.
// Setting the current query again is a no-op. q.Page is ignored.
func (s *Session) SetQuery(ctx context.Context, q catalog.Query) error {
	return s.setQuery(ctx, q, true)
}

func (s *Session) setQuery(ctx context.Context, q catalog.Query, cancelInput bool) error {
	q = q.WithPage(1)
	if err := q.Validate(); err != nil {
		return err
	}
	key := s.keys.ForQuery(q)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Status != StatusIdle && s.state.Key == key {
		s.mu.Unlock()
		return nil
	}
	if cancelInput {
		s.debouncer.Cancel()
	}
	// From here on, responses for the previous key are stale.
	s.state.Query = q
	s.state.Key = key
	s.state.Items = nil
	s.state.Error = ""
	s.state.Err = nil
	s.state.HasNext = false
	s.state.Total = 0
	s.state.Page = 0
	s.retry = nil
	s.mu.Unlock()

	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		return s.restore(key, entry)
	case !errors.Is(err, cache.ErrCacheMiss):
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching")
	}

	s.mu.Lock()
	if s.state.Key != key || s.closed {
		s.mu.Unlock()
		return nil
	}
	snap := s.transitionLocked(StatusLoadingInitial)
	s.mu.Unlock()
	s.publish(snap)

	return s.fetch(ctx, key, q, pagination.Options{Reset: true})
}

// restore applies a cached entry on session entry.
func (s *Session) restore(key string, entry *cache.Entry) error {
	s.mu.Lock()
	if s.state.Key != key || s.closed {
		s.mu.Unlock()
		return nil
	}
	snap := s.applyLocked(entry)
	s.mu.Unlock()

	sessionCacheRestoresTotal.Inc()
	s.logger.Debug().
		Str("key", key).
		Int("items", len(entry.Items)).
		Int("page", entry.Page).
		Msg("Session restored from cache")
	s.publish(snap)
	return nil
}

// Search feeds raw free-text input through the debouncer. The settled value
// replaces the search of the current query.
func (s *Session) Search(raw string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.debouncer.Input(raw)
}

// SubmitSearch commits pending search input immediately.
func (s *Session) SubmitSearch() bool {
	return s.debouncer.Flush()
}

func (s *Session) onSearchCommitted(value string) {
	s.track(func() {
		s.mu.Lock()
		q := s.state.Query
		s.mu.Unlock()

		q.Search = strings.TrimSpace(value)
		if err := s.setQuery(s.ctx, q, false); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Debug().Err(err).Str("search", q.Search).Msg("Search commit failed")
		}
	})
}

// LoadMore fetches the next page. It is a no-op unless the session is Ready
// with a next page, or in Error after a failed load-more.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	failedAppend := s.state.Status == StatusError && s.retry != nil && !s.retry.Reset
	if !s.state.HasNext || (s.state.Status != StatusReady && !failedAppend) {
		s.mu.Unlock()
		return nil
	}
	key, q := s.state.Key, s.state.Query
	s.state.Error = ""
	s.state.Err = nil
	snap := s.transitionLocked(StatusLoadingMore)
	s.mu.Unlock()
	s.publish(snap)

	return s.fetch(ctx, key, q, pagination.Options{})
}

// Retry re-issues the fetch that put the session into Error. It is a
// no-op in any other state.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state.Status != StatusError || s.retry == nil {
		s.mu.Unlock()
		return nil
	}
	opts := *s.retry
	key, q := s.state.Key, s.state.Query
	s.state.Error = ""
	s.state.Err = nil
	status := StatusLoadingMore
	if opts.Reset {
		status = StatusLoadingInitial
	}
	snap := s.transitionLocked(status)
	s.mu.Unlock()
	s.publish(snap)

	return s.fetch(ctx, key, q, opts)
}

// fetch runs one coordinated fetch for key and applies the outcome unless
// the session moved on to another key meanwhile. When another fetch for the
// key is outstanding (this session's earlier one, or another session of the
// same view) it waits for that fetch and applies what it cached instead.
func (s *Session) fetch(ctx context.Context, key string, q catalog.Query, opts pagination.Options) error {
	res, err := s.coord.Fetch(ctx, q, opts)
	for errors.Is(err, pagination.ErrInFlight) {
		var entry *cache.Entry
		var settled bool
		entry, settled, err = s.awaitOutstanding(ctx, key)
		if settled {
			return nil
		}
		if err != nil {
			break
		}
		if entry != nil {
			res = &pagination.Result{Key: key, Query: q.WithPage(entry.Page), Entry: entry}
			break
		}
		// The outstanding fetch cached nothing; issue our own.
		res, err = s.coord.Fetch(ctx, q, opts)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if current := s.state.Key; current != key {
		s.mu.Unlock()
		staleResponsesTotal.Inc()
		s.logger.Warn().
			Str("key", key).
			Str("current_key", current).
			Msg("Discarding stale response")
		return nil
	}

	var snap SessionState
	switch {
	case err == nil:
		snap = s.applyLocked(res.Entry)
	case errors.Is(err, pagination.ErrExhausted):
		s.state.HasNext = false
		snap = s.transitionLocked(StatusExhausted)
		err = nil
	default:
		s.retry = &opts
		s.state.Error = err.Error()
		s.state.Err = err
		snap = s.transitionLocked(StatusError)
	}
	s.mu.Unlock()

	s.publish(snap)
	return err
}

// awaitOutstanding waits until no fetch for key is in flight and returns
// the entry it left in the store, nil when nothing is cached. settled
// reports that this session no longer waits on key: it was closed, moved to
// another key, or the outstanding fetch already updated its state.
func (s *Session) awaitOutstanding(ctx context.Context, key string) (entry *cache.Entry, settled bool, err error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.logger.Debug().Str("key", key).Msg("Key in flight, waiting for outstanding fetch")
	waitErr := s.coord.Wait(waitCtx, key)

	s.mu.Lock()
	settled = s.closed || s.state.Key != key ||
		(s.state.Status != StatusLoadingInitial && s.state.Status != StatusLoadingMore)
	s.mu.Unlock()
	if settled {
		return nil, true, nil
	}
	if waitErr != nil {
		return nil, false, waitErr
	}

	entry, err = s.store.Get(ctx, key)
	switch {
	case err == nil:
		return entry, false, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed after wait, fetching")
	}
	return nil, false, nil
}

// applyLocked shows entry and moves to Ready or Exhausted.
func (s *Session) applyLocked(entry *cache.Entry) SessionState {
	s.state.Items = entry.Items
	s.state.HasNext = entry.HasNext
	s.state.Total = entry.Total
	s.state.Page = entry.Page
	s.state.Error = ""
	s.state.Err = nil
	s.retry = nil
	if entry.HasNext {
		return s.transitionLocked(StatusReady)
	}
	return s.transitionLocked(StatusExhausted)
}

// Observe wires a viewport trigger: each signal loads the next page in the
// background. Signals while nothing can be loaded are ignored.
func (s *Session) Observe(trigger viewport.Trigger) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.trigger != nil {
		s.mu.Unlock()
		return viewport.ErrAlreadyObserving
	}
	s.trigger = trigger
	s.mu.Unlock()

	err := trigger.Observe(s.cfg.Sentinel, func() {
		s.goTracked(func() {
			if err := s.LoadMore(s.ctx); err != nil && !errors.Is(err, ErrClosed) {
				s.logger.Debug().Err(err).Msg("Triggered load failed")
			}
		})
	})
	if err != nil {
		s.mu.Lock()
		s.trigger = nil
		s.mu.Unlock()
	}
	return err
}

// track runs fn on the calling goroutine unless the session is closed,
// counting it for Close.
func (s *Session) track(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// goTracked runs fn on a new goroutine unless the session is closed.
func (s *Session) goTracked(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Close unobserves the trigger, drops pending search input, cancels
// background fetches and waits for them. It must not be called from a
// subscriber.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	trigger := s.trigger
	s.trigger = nil
	s.mu.Unlock()

	if trigger != nil {
		trigger.Unobserve()
	}
	s.debouncer.Close()
	s.cancel()
	s.wg.Wait()
}
