package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-feed/internal/testutil"
	"github.com/Sternrassler/catalog-feed/pkg/breaker"
	"github.com/Sternrassler/catalog-feed/pkg/cache"
	"github.com/Sternrassler/catalog-feed/pkg/catalog"
	"github.com/Sternrassler/catalog-feed/pkg/client"
	"github.com/Sternrassler/catalog-feed/pkg/listing"
	"github.com/Sternrassler/catalog-feed/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const categoryPath = "/categories/C1/products"

var vitaminC1 = catalog.Query{ScopeID: "C1", Search: "vitamin", Page: 1}

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func setupCatalog(t *testing.T) (*testutil.MockCatalog, *client.Client) {
	t.Helper()

	mock := testutil.NewMockCatalog()
	t.Cleanup(mock.Close)
	mock.SetProducts(categoryPath, append(
		testutil.Products("vit", "vitamin", 45),
		testutil.Products("zn", "zinc", 10)...))

	c, err := client.New(client.DefaultConfig(mock.URL(), "catalog-feed-integration/1.0"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return mock, c
}

func newEngine(c *client.Client, store cache.Store) *listing.Engine {
	return listing.NewEngine(func(resource string) pagination.PageFetcher {
		return c.Lister(resource)
	}, store, listing.DefaultConfig())
}

func sessionKeys(t *testing.T, rc *redis.Client, sessionID string) []string {
	t.Helper()
	keys, err := rc.Keys(context.Background(), cache.RedisKeyPrefix+sessionID+":*").Result()
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	return keys
}

// TestFullSessionFlow covers first page, load more, remount from the Redis
// session cache and clearing the session.
func TestFullSessionFlow(t *testing.T) {
	rc, cleanup := setupRedis(t)
	defer cleanup()

	mock, c := setupCatalog(t)
	backend := cache.NewRedisBackend(rc, cache.NewSessionID(), 10*time.Minute)
	store := cache.NewManager(backend)
	engine := newEngine(c, store)
	ctx := context.Background()

	s, err := engine.Open(ctx, listing.CategoryProducts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Log("Page 1: cache miss")
	if err := s.SetQuery(ctx, vitaminC1); err != nil {
		t.Fatalf("SetQuery() error = %v", err)
	}
	if st := s.State(); st.Status != listing.StatusReady || len(st.Items) != 20 || st.Total != 45 {
		t.Fatalf("after page 1: %s with %d/%d items", st.Status, len(st.Items), st.Total)
	}

	t.Log("Page 2: load more")
	if err := s.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if got := len(s.State().Items); got != 40 {
		t.Fatalf("after page 2: %d items, want 40", got)
	}
	s.Close()

	if mock.RequestCount() != 2 {
		t.Errorf("catalog requests = %d, want 2", mock.RequestCount())
	}
	if keys := sessionKeys(t, rc, backend.SessionID()); len(keys) != 1 {
		t.Errorf("session keys = %v, want one entry", keys)
	}

	t.Log("Remount: restored from Redis")
	remount, err := engine.Open(ctx, listing.CategoryProducts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer remount.Close()
	if err := remount.SetQuery(ctx, vitaminC1); err != nil {
		t.Fatalf("SetQuery() error = %v", err)
	}
	if st := remount.State(); len(st.Items) != 40 || st.Page != 2 || st.Status != listing.StatusReady {
		t.Errorf("remount: %s page %d with %d items", st.Status, st.Page, len(st.Items))
	}
	if mock.RequestCount() != 2 {
		t.Errorf("remount hit the catalog: %d requests", mock.RequestCount())
	}

	t.Log("Page 3: exhausts the list")
	if err := remount.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}
	if st := remount.State(); st.Status != listing.StatusExhausted || len(st.Items) != 45 {
		t.Errorf("after page 3: %s with %d items", st.Status, len(st.Items))
	}
	if last, _ := mock.LastRequest(); last.Page != 3 || last.Search != "vitamin" {
		t.Errorf("last request = %+v", last)
	}

	t.Log("End of browsing session")
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if keys := sessionKeys(t, rc, backend.SessionID()); len(keys) != 0 {
		t.Errorf("keys left after Clear: %v", keys)
	}
}

// TestSessionIsolation checks that browsing sessions never share entries.
func TestSessionIsolation(t *testing.T) {
	rc, cleanup := setupRedis(t)
	defer cleanup()

	mock, c := setupCatalog(t)
	ctx := context.Background()

	first := cache.NewManager(cache.NewRedisBackend(rc, "session-a", time.Minute))
	second := cache.NewManager(cache.NewRedisBackend(rc, "session-b", time.Minute))

	for i, store := range []*cache.Manager{first, second} {
		s, err := newEngine(c, store).Open(ctx, listing.CategoryProducts)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := s.SetQuery(ctx, vitaminC1); err != nil {
			t.Fatalf("SetQuery() error = %v", err)
		}
		s.Close()
		if mock.RequestCount() != i+1 {
			t.Errorf("session %d reused another session's cache", i)
		}
	}

	if err := first.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	key := listing.CategoryProducts.Keys().ForQuery(vitaminC1)
	if ok, _ := first.Has(ctx, key); ok {
		t.Error("cleared session still has its entry")
	}
	if ok, _ := second.Has(ctx, key); !ok {
		t.Error("clearing one session removed another session's entry")
	}
}

// TestSessionTTL checks the sliding expiry of session entries.
func TestSessionTTL(t *testing.T) {
	rc, cleanup := setupRedis(t)
	defer cleanup()

	_, c := setupCatalog(t)
	ctx := context.Background()
	backend := cache.NewRedisBackend(rc, cache.NewSessionID(), 2*time.Minute)
	store := cache.NewManager(backend)

	s, err := newEngine(c, store).Open(ctx, listing.CategoryProducts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if err := s.SetQuery(ctx, vitaminC1); err != nil {
		t.Fatalf("SetQuery() error = %v", err)
	}

	keys := sessionKeys(t, rc, backend.SessionID())
	if len(keys) != 1 {
		t.Fatalf("session keys = %v", keys)
	}
	ttl, err := rc.TTL(ctx, keys[0]).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= time.Minute || ttl > 2*time.Minute {
		t.Errorf("TTL = %s, want about 2m", ttl)
	}
}

// TestBreakerOpensOnOutage checks that a failing catalog trips the breaker
// and that open-circuit errors surface in the session state.
func TestBreakerOpensOnOutage(t *testing.T) {
	mock, _ := setupCatalog(t)
	mock.FailWith(categoryPath, 503)

	cfg := client.DefaultConfig(mock.URL(), "catalog-feed-integration/1.0")
	cfg.Breaker = breaker.Config{
		Enabled:             true,
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	s, err := newEngine(c, cache.NewManager(cache.NewMemoryBackend())).Open(ctx, listing.CategoryProducts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.SetQuery(ctx, vitaminC1); err == nil {
		t.Fatal("SetQuery() should fail during the outage")
	}
	for i := 0; i < 2; i++ {
		_ = s.Retry(ctx)
	}
	if c.BreakerState() != breaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", c.BreakerState())
	}

	err = s.Retry(ctx)
	var ce *client.Error
	if !errors.As(err, &ce) || ce.Class != client.ErrorClassCircuitOpen {
		t.Fatalf("Retry() error = %v, want circuit open", err)
	}
	if !errors.Is(err, client.ErrNetwork) {
		t.Error("circuit open should count as a network error")
	}
	if mock.RequestCount() != 3 {
		t.Errorf("catalog requests = %d, want 3", mock.RequestCount())
	}

	st := s.State()
	if st.Status != listing.StatusError || !strings.Contains(st.Error, "unavailable") {
		t.Errorf("state = %s %q", st.Status, st.Error)
	}
}
