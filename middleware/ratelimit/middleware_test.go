package ratelimit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nominatim-proxy/middleware/ratelimit/infra"
)

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewClientStore(0.02, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	var rejected []string
	h := Middleware(Options{
		Store:               store,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
		OnReject: func(r *http.Request, key string) {
			rejected = append(rejected, key)
		},
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/v1/search?text=x", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-RPS"); got != "0.02" {
		t.Fatalf("expected X-RateLimit-RPS=0.02, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got != "1" {
		t.Fatalf("expected X-RateLimit-Burst=1, got %q", got)
	}

	// 2) segunda deve bloquear (burst=1 e rps bem baixo)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/v1/search?text=x", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	if got := w2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected JSON error body, got Content-Type %q", got)
	}
	var body map[string]string
	if err := json.NewDecoder(w2.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected error body: %v", body)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if len(rejected) != 1 || rejected[0] != "10.0.0.1" {
		t.Fatalf("expected one OnReject call for 10.0.0.1, got %v", rejected)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewClientStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		KeyHeader:  "X-Api-Key",
		RetryAfter: 1 * time.Second,
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem seu próprio limiter)
	for _, key := range []string{"k1", "k2"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.Header.Set("X-Api-Key", key)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", key, w.Code)
		}
	}

	if store.Len() != 2 {
		t.Fatalf("expected 2 cached clients, got %d", store.Len())
	}
}

func TestMiddleware_RetryAfterRoundsUp(t *testing.T) {
	cases := []struct {
		name       string
		retryAfter time.Duration
		want       string
	}{
		// rps=0.5 => próxima ficha em 2s
		{name: "limiter wait wins", retryAfter: 1 * time.Second, want: "2"},
		{name: "configured value wins", retryAfter: 2500 * time.Millisecond, want: "3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			h := Middleware(Options{
				Store:      infra.NewClientStore(0.5, 1),
				RetryAfter: tc.retryAfter,
			})(next)

			r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r1.RemoteAddr = "10.0.0.1:1234"
			w1 := httptest.NewRecorder()
			h.ServeHTTP(w1, r1)
			if w1.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w1.Code)
			}

			r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r2.RemoteAddr = "10.0.0.1:1234"
			w2 := httptest.NewRecorder()
			h.ServeHTTP(w2, r2)
			if w2.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", w2.Code)
			}
			if got := strings.TrimSpace(w2.Header().Get("Retry-After")); got != tc.want {
				t.Fatalf("expected Retry-After=%s, got %q", tc.want, got)
			}
		})
	}
}

func TestMiddleware_NilStoreAllowsEverything(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(Options{})(next)

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/", nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
}
