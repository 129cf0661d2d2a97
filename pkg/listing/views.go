package listing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Sternrassler/catalog-feed/pkg/cache"
	"github.com/Sternrassler/catalog-feed/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// View is a listing preset: the list resource it pages through and the
// cache namespace that keeps its keys apart from other views.
type View struct {
	Name      string
	Resource  string
	Namespace string
}

// Keys returns the cache key builder of the view.
func (v View) Keys() cache.KeyBuilder {
	return cache.KeyBuilder{Namespace: v.Namespace}
}

// Storefront listing views.
var (
	CategoryProducts = View{
		Name:      "category",
		Resource:  "/categories/{scope}/products",
		Namespace: "categories",
	}

	SearchResults = View{
		Name:      "search",
		Resource:  "/products/search",
		Namespace: "search",
	}

	CollectionProducts = View{
		Name:      "collection",
		Resource:  "/collections/{scope}/products",
		Namespace: "collections",
	}

	DashboardFeed = View{
		Name:      "feed",
		Resource:  "/feeds/{scope}",
		Namespace: "feeds",
	}
)

var views = map[string]View{
	CategoryProducts.Name:   CategoryProducts,
	SearchResults.Name:      SearchResults,
	CollectionProducts.Name: CollectionProducts,
	DashboardFeed.Name:      DashboardFeed,
}

// ViewByName looks up a preset view.
func ViewByName(name string) (View, bool) {
	v, ok := views[name]
	return v, ok
}

// ViewNames returns the preset view names, sorted.
func ViewNames() []string {
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FetcherFactory binds a page fetcher to a list resource template, e.g.
// the catalog client's Lister.
type FetcherFactory func(resource string) pagination.PageFetcher

// Engine opens list sessions over one cache store. Sessions of the same
// view share a coordinator, so the in-flight guard holds across remounts.
type Engine struct {
	newFetcher FetcherFactory
	store      cache.Store
	cfg        Config
	logger     zerolog.Logger

	mu     sync.Mutex
	coords map[string]*pagination.Coordinator
}

// NewEngine creates an engine. cfg is the default for opened sessions.
func NewEngine(newFetcher FetcherFactory, store cache.Store, cfg Config) *Engine {
	if newFetcher == nil {
		panic("fetcher factory cannot be nil")
	}
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Engine{
		newFetcher: newFetcher,
		store:      store,
		cfg:        cfg,
		logger:     log.With().Str("component", "listing").Logger(),
		coords:     make(map[string]*pagination.Coordinator),
	}
}

// Coordinator returns the shared coordinator of view.
func (e *Engine) Coordinator(view View) *pagination.Coordinator {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.coords[view.Name]; ok {
		return c
	}
	logger := e.logger.With().Str("view", view.Name).Logger()
	c := pagination.New(e.newFetcher(view.Resource), e.store, view.Keys(), logger)
	e.coords[view.Name] = c
	return c
}

// Open creates an idle session for view. The caller sets its query.
func (e *Engine) Open(ctx context.Context, view View) (*Session, error) {
	if view.Name == "" || view.Resource == "" {
		return nil, fmt.Errorf("view name and resource are required")
	}
	return New(ctx, e.cfg, Deps{
		Coordinator: e.Coordinator(view),
		Logger:      e.logger.With().Str("view", view.Name).Logger(),
	})
}
