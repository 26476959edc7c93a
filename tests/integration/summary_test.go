package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/OU-Studio/summary-access/internal/testutil"
	"github.com/OU-Studio/summary-access/pkg/cache"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

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

func redisTestItems(t *testing.T, docs string) []upstream.Item {
	t.Helper()

	var items []upstream.Item
	if err := json.Unmarshal([]byte(docs), &items); err != nil {
		t.Fatalf("Failed to build test items: %v", err)
	}
	return items
}

func TestRedisStore_SetGetPurge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(redisClient, time.Minute)
	ctx := context.Background()

	keyA := cache.Key{Domain: "tenant-a.com", BasePath: "/blog"}
	keyB := cache.Key{Domain: "tenant-b.com", BasePath: "/blog"}

	items := redisTestItems(t, `[
		{"id": "1", "title": "First", "starred": true},
		{"id": "2", "title": "Second", "starred": false}
	]`)

	if err := store.Set(ctx, keyA, items); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, keyB, items[:1]); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, keyA)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entry.Items) != 2 || entry.Items[0].ID != "1" {
		t.Errorf("Entry = %+v, want the stored items in order", entry.Items)
	}
	if !entry.Items[0].Starred {
		t.Error("Starred flag lost in Redis round trip")
	}

	if err := store.Purge(ctx, "tenant-a.com"); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	if _, err := store.Get(ctx, keyA); err != cache.ErrCacheMiss {
		t.Errorf("tenant-a: error = %v, want ErrCacheMiss after purge", err)
	}
	if _, err := store.Get(ctx, keyB); err != nil {
		t.Errorf("tenant-b entry must survive the purge: %v", err)
	}
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(redisClient, time.Second)
	ctx := context.Background()

	key := cache.Key{Domain: "example.com", BasePath: "/blog"}
	if err := store.Set(ctx, key, redisTestItems(t, `[{"id":"a"}]`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("Fresh Get failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, key); err != cache.ErrCacheMiss {
		t.Errorf("Error = %v, want ErrCacheMiss after TTL expiry", err)
	}
}

func TestRedisStore_RawFieldsSurvive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(redisClient, time.Minute)
	ctx := context.Background()

	key := cache.Key{Domain: "example.com", BasePath: "/blog"}
	items := redisTestItems(t, `[
		{"id": "a", "assetUrl": "https://img.example/a.jpg", "publishOn": 1725148800000}
	]`)

	if err := store.Set(ctx, key, items); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	raw, err := json.Marshal(entry.Items[0])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if fields["assetUrl"] != "https://img.example/a.jpg" {
		t.Errorf("assetUrl lost in Redis round trip: %v", fields)
	}
	if _, ok := fields["publishOn"]; !ok {
		t.Errorf("publishOn lost in Redis round trip: %v", fields)
	}
}

// TestFullAggregationFlow exercises the real upstream client and pager
// against the mock CMS with Redis caching behind the gate.
func TestFullAggregationFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	cms := testutil.NewMockCMS()
	defer cms.Close()

	cms.ServePages("/blog", [][]string{
		{testutil.ItemJSON("a", true), testutil.ItemJSON("b", false)},
		{testutil.ItemJSON("c", true)},
	})

	store := cache.NewRedisStore(redisClient, time.Minute)
	ctx := context.Background()

	client := upstream.New(upstream.DefaultConfig())
	key := cache.Key{Domain: "example.com", BasePath: "/blog"}

	page, err := client.FetchPage(ctx, cms.URL()+"/blog?format=json")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("First page items = %d, want 2", len(page.Items))
	}

	if err := store.Set(ctx, key, page.Items); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entry.Items) != 2 || entry.Items[0].ID != "a" {
		t.Errorf("Cached entry = %+v, want the fetched page items", entry.Items)
	}
}
