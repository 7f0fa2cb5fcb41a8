package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func fakeEmbeddingServer(t *testing.T, calls *atomic.Int64, vec []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"model": req.Model,
			"data":  []map[string]any{{"embedding": vec, "index": 0}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedAndLRUHit(t *testing.T) {
	var calls atomic.Int64
	srv := fakeEmbeddingServer(t, &calls, []float64{0.1, 0.2, 0.3})
	defer srv.Close()

	svc := NewService(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil, zap.NewNop())

	v, err := svc.Embed(context.Background(), "안녕하세요")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || v[0] != float32(0.1) {
		t.Errorf("unexpected vector %v", v)
	}

	// Second call for the same text must come from the LRU.
	if _, err := svc.Embed(context.Background(), "안녕하세요"); err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewService(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil, zap.NewNop())
	if _, err := svc.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}

	ctx := context.Background()
	key := MakeKey("text-embedding-3-small", "hello")
	vec := []float32{1.5, -2.25, 0}

	cache.Set(ctx, key, vec, time.Minute)
	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != len(vec) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("element %d: got %v want %v", i, got[i], vec[i])
		}
	}

	if _, ok := cache.Get(ctx, "emb:missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestRedisCachePopulatedByService(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}

	var calls atomic.Int64
	srv := fakeEmbeddingServer(t, &calls, []float64{0.5})
	defer srv.Close()

	svc := NewService(Config{BaseURL: srv.URL, APIKey: "sk-test"}, cache, zap.NewNop())
	if _, err := svc.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	// A fresh service sharing the Redis cache should not call upstream.
	svc2 := NewService(Config{BaseURL: srv.URL, APIKey: "sk-test"}, cache, zap.NewNop())
	if _, err := svc2.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed via shared cache: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestLocalLRUEviction(t *testing.T) {
	lru := NewLocalLRU(2)
	ctx := context.Background()

	lru.Set(ctx, "a", []float32{1}, time.Minute)
	lru.Set(ctx, "b", []float32{2}, time.Minute)
	lru.Set(ctx, "c", []float32{3}, time.Minute)

	if _, ok := lru.Get(ctx, "a"); ok {
		t.Error("expected oldest entry evicted")
	}
	if _, ok := lru.Get(ctx, "c"); !ok {
		t.Error("expected newest entry present")
	}
}

func TestEmbedRateLimitSparesCacheHits(t *testing.T) {
	var calls atomic.Int64
	srv := fakeEmbeddingServer(t, &calls, []float64{0.1})
	defer srv.Close()

	svc := NewService(Config{
		BaseURL:           srv.URL,
		APIKey:            "sk-test",
		RequestsPerSecond: 0.001,
		RateBurst:         1,
	}, nil, zap.NewNop())

	if _, err := svc.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// Cached text is served without touching the limiter.
	if _, err := svc.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := svc.Embed(ctx, "other"); err == nil {
		t.Fatal("expected rate limit error for uncached text")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}
