package router

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"offline-gateway/internal/cache"
	"offline-gateway/internal/config"
)

// ---- Backend 内存实现 ----

type memoryBackend struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   map[string]map[string]bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]bool),
	}
}

func (backend *memoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	value, found := backend.values[key]
	return value, found, nil
}

func (backend *memoryBackend) Set(ctx context.Context, key string, value []byte) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.values[key] = value
	return nil
}

func (backend *memoryBackend) Del(ctx context.Context, keys ...string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	for _, key := range keys {
		delete(backend.values, key)
		delete(backend.sets, key)
	}
	return nil
}

func (backend *memoryBackend) SAdd(ctx context.Context, key string, members ...string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.sets[key] == nil {
		backend.sets[key] = make(map[string]bool)
	}
	for _, member := range members {
		backend.sets[key][member] = true
	}
	return nil
}

func (backend *memoryBackend) SRem(ctx context.Context, key string, member string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.sets[key], member)
	return nil
}

func (backend *memoryBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	members := make([]string, 0, len(backend.sets[key]))
	for member := range backend.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

// ---- Fetcher Mock ----

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*cache.Response
	failing   map[string]bool
	failAll   bool
	fetched   []string
}

func (fetcher *fakeFetcher) Fetch(ctx context.Context, key string) (*cache.Response, error) {
	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	fetcher.fetched = append(fetcher.fetched, key)

	if fetcher.failAll || fetcher.failing[key] {
		return nil, cache.ErrNetworkFailure
	}

	response, found := fetcher.responses[key]
	if !found {
		return &cache.Response{Status: 404, ContentType: "text/plain", Body: []byte("not found")}, nil
	}
	return response, nil
}

// ---- 测试装配 ----

type testHarness struct {
	router     *Router
	lifecycle  *Lifecycle
	partitions *cache.Partitions
	shell      *cache.Partition
	fetcher    *fakeFetcher
}

func newTestHarness(t *testing.T, fetcher *fakeFetcher) *testHarness {
	t.Helper()

	cacheConfig := config.Cache{
		Epoch:          "v3",
		UpstreamOrigin: "http://upstream.local",
		OfflineURL:     "/offline.html",
		AppShell:       []string{"/", "/index.html", "/offline.html", "/styles/main.css"},
	}
	apiConfig := config.API{
		Hosts:      []string{"api.example.com"},
		PathPrefix: "/api/",
	}

	backend := newMemoryBackend()
	partitions := cache.NewPartitions(backend)

	open := func(logical string) *cache.Partition {
		partition, err := partitions.Open(context.Background(), cacheConfig.PartitionName(logical))
		if err != nil {
			t.Fatalf("open partition failed: %v", err)
		}
		return partition
	}

	shell := open(config.PartitionShell)
	runtime := open(config.PartitionRuntime)
	image := open(config.PartitionImage)

	engine := cache.NewEngine(fetcher)

	return &testHarness{
		router:     New(engine, shell, runtime, image, cacheConfig, apiConfig),
		lifecycle:  NewLifecycle(fetcher, partitions, shell, cacheConfig.AppShell, cacheConfig.AllowedPartitions()),
		partitions: partitions,
		shell:      shell,
		fetcher:    fetcher,
	}
}

// ---- 分类测试 ----

func TestClassifyNavigationWinsOverEverything(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	// 同时命中导航、shell 清单和 API 前缀的请求,导航分支必须先生效
	decision := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/api/",
		Mode:       "navigate",
	})

	if decision.Strategy != StrategyNetworkFirst {
		t.Fatalf("expected network first for navigation, got %s", decision.Strategy)
	}
	if decision.Partition != config.PartitionShell {
		t.Fatalf("expected shell partition, got %s", decision.Partition)
	}
	if !decision.OfflineFallback {
		t.Fatalf("navigation must carry offline fallback")
	}
}

func TestClassifyShellAsset(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	decision := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/styles/main.css",
	})

	if decision.Strategy != StrategyCacheFirst {
		t.Fatalf("expected cache first for shell asset, got %s", decision.Strategy)
	}
	if decision.Partition != config.PartitionShell {
		t.Fatalf("expected shell partition, got %s", decision.Partition)
	}
	if decision.OfflineFallback {
		t.Fatalf("shell asset must not carry offline fallback")
	}
}

func TestClassifyExternalAPIHostCaseInsensitive(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	decision := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: false,
		Host:       "API.Example.COM",
		Path:       "/v1/items",
	})

	if decision.Strategy != StrategyNetworkFirst {
		t.Fatalf("expected network first for API host, got %s", decision.Strategy)
	}
	if decision.Partition != config.PartitionRuntime {
		t.Fatalf("expected runtime partition, got %s", decision.Partition)
	}
}

func TestClassifySameOriginAPIPrefix(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	decision := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/api/items",
	})

	if decision.Strategy != StrategyNetworkFirst {
		t.Fatalf("expected network first for API prefix, got %s", decision.Strategy)
	}
	if decision.Partition != config.PartitionRuntime {
		t.Fatalf("expected runtime partition, got %s", decision.Partition)
	}
}

func TestClassifyImageByHeaderAndExtension(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	byHeader := harness.router.Classify(Request{
		Method:      http.MethodGet,
		SameOrigin:  true,
		Path:        "/media/photo",
		Destination: "image",
	})
	if byHeader.Partition != config.PartitionImage {
		t.Fatalf("expected image partition via header, got %s", byHeader.Partition)
	}
	if byHeader.Strategy != StrategyStaleWhileRevalidate {
		t.Fatalf("expected stale while revalidate for image, got %s", byHeader.Strategy)
	}

	byExtension := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/media/photo.webp",
	})
	if byExtension.Partition != config.PartitionImage {
		t.Fatalf("expected image partition via extension, got %s", byExtension.Partition)
	}
}

func TestClassifyDefaultsToRuntimeStaleWhileRevalidate(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	decision := harness.router.Classify(Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/vendor/lib.js",
	})

	if decision.Strategy != StrategyStaleWhileRevalidate {
		t.Fatalf("expected stale while revalidate, got %s", decision.Strategy)
	}
	if decision.Partition != config.PartitionRuntime {
		t.Fatalf("expected runtime partition, got %s", decision.Partition)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	request := Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/media/photo.png",
	}

	first := harness.router.Classify(request)
	for i := 0; i < 10; i++ {
		if harness.router.Classify(request) != first {
			t.Fatalf("classification changed between identical requests")
		}
	}
}

// ---- 处理测试 ----

func TestHandleRejectsNonGet(t *testing.T) {
	harness := newTestHarness(t, &fakeFetcher{})

	_, err := harness.router.Handle(context.Background(), Request{
		Method:     http.MethodPost,
		SameOrigin: true,
		Path:       "/api/items",
	})
	if err == nil {
		t.Fatalf("expected error for non-GET request")
	}
}

func TestHandleNavigationFallsBackToOfflinePage(t *testing.T) {
	fetcher := &fakeFetcher{failAll: true}
	harness := newTestHarness(t, fetcher)

	offline := &cache.Entry{Status: 200, ContentType: "text/html", Body: []byte("offline page")}
	if err := harness.shell.Put(context.Background(), "/offline.html", offline); err != nil {
		t.Fatalf("seed offline page failed: %v", err)
	}

	response, err := harness.router.Handle(context.Background(), Request{
		Method:     http.MethodGet,
		SameOrigin: true,
		Path:       "/dashboard",
		Mode:       "navigate",
	})
	if err != nil {
		t.Fatalf("expected offline fallback, got error: %v", err)
	}
	if string(response.Body) != "offline page" {
		t.Fatalf("expected offline page body, got %q", string(response.Body))
	}
}

func TestRequestKeyIncludesQueryAndCrossOriginHost(t *testing.T) {
	sameOrigin := requestKey(Request{SameOrigin: true, Path: "/api/items", RawQuery: "page=2"})
	if sameOrigin != "/api/items?page=2" {
		t.Fatalf("unexpected same-origin key: %s", sameOrigin)
	}

	crossOrigin := requestKey(Request{SameOrigin: false, Host: "api.example.com", Path: "/v1/items"})
	if crossOrigin != "https://api.example.com/v1/items" {
		t.Fatalf("unexpected cross-origin key: %s", crossOrigin)
	}
}
