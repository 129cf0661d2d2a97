package listing

import (
	"context"
	"errors"

	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFeeds bounds first-page loads when a dashboard opens.
const maxConcurrentFeeds = 4

// Dashboard is a set of feed sessions shown side by side. Each feed fails
// independently.
type Dashboard struct {
	order    []string
	sessions map[string]*Session
}

// OpenDashboard opens one DashboardFeed session per feed id and loads their
// first pages concurrently. Fetch failures land in the affected feed's
// state; only invalid queries fail the whole dashboard.
func (e *Engine) OpenDashboard(ctx context.Context, feedIDs []string, sortBy catalog.SortBy) (*Dashboard, error) {
	d := &Dashboard{sessions: make(map[string]*Session, len(feedIDs))}
	for _, id := range feedIDs {
		if _, dup := d.sessions[id]; dup {
			continue
		}
		s, err := e.Open(ctx, DashboardFeed)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.order = append(d.order, id)
		d.sessions[id] = s
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFeeds)
	for _, id := range d.order {
		s := d.sessions[id]
		q := catalog.Query{ScopeID: id, SortBy: sortBy, Page: 1}
		g.Go(func() error {
			err := s.SetQuery(gctx, q)
			if errors.Is(err, catalog.ErrInvalidQuery) {
				return err
			}
			if err != nil {
				e.logger.Warn().Err(err).Str("feed", q.ScopeID).Msg("Dashboard feed failed to load")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Feeds returns the feed ids in the order they were requested.
func (d *Dashboard) Feeds() []string {
	return append([]string(nil), d.order...)
}

// Session returns the session of a feed.
func (d *Dashboard) Session(feedID string) (*Session, bool) {
	s, ok := d.sessions[feedID]
	return s, ok
}

// States snapshots every feed.
func (d *Dashboard) States() map[string]SessionState {
	out := make(map[string]SessionState, len(d.sessions))
	for id, s := range d.sessions {
		out[id] = s.State()
	}
	return out
}

// Close closes every feed session.
func (d *Dashboard) Close() {
	for _, s := range d.sessions {
		s.Close()
	}
}
