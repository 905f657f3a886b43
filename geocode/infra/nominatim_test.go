package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"nominatim-proxy/geocode/domain"
)

type noGate struct{ calls int }

func (g *noGate) Acquire(context.Context) (time.Duration, error) {
	g.calls++
	return 0, nil
}

type metricsSpy struct {
	mu        sync.Mutex
	outcomes  []string
	gateWaits int
}

func (m *metricsSpy) ObserveUpstream(endpoint, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, endpoint+":"+outcome)
}

func (m *metricsSpy) ObserveGateWait(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateWaits++
}

func TestClient_SearchSendsPolicyHeaderAndParams(t *testing.T) {
	var gotPath, gotUA string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"place_id": 10, "lat": "44.9", "lon": "-93.2"}]`))
	}))
	defer srv.Close()

	gate := &noGate{}
	spy := &metricsSpy{}
	c := NewClient(srv.URL+"/", gate, WithUpstreamMetrics(spy))

	places, err := c.Search(context.Background(), url.Values{"q": {"lake st"}, "format": {"json"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 1 || places[0].ID() != "10" {
		t.Fatalf("unexpected places: %+v", places)
	}
	if gotPath != "/search" {
		t.Fatalf("expected /search, got %q", gotPath)
	}
	if gotUA != DefaultUserAgent {
		t.Fatalf("expected policy User-Agent, got %q", gotUA)
	}
	if gotQuery.Get("q") != "lake st" || gotQuery.Get("format") != "json" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if gate.calls != 1 {
		t.Fatalf("expected gate to be acquired once, got %d", gate.calls)
	}
	if len(spy.outcomes) != 1 || spy.outcomes[0] != "search:ok" || spy.gateWaits != 1 {
		t.Fatalf("unexpected metrics: %+v", spy)
	}
}

func TestClient_NonSuccessStatusIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &noGate{})
	_, err := c.Search(context.Background(), nil)

	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", upErr.Status)
	}
	if !strings.Contains(upErr.Error(), "Too Many Requests") {
		t.Fatalf("expected upstream body in message, got %q", upErr.Error())
	}
}

func TestClient_MalformedBodyIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &noGate{})
	_, err := c.Search(context.Background(), nil)

	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) || upErr.Err == nil {
		t.Fatalf("expected decode UpstreamError, got %v", err)
	}
}

func TestClient_ReverseEmptyResultIsNotAnError(t *testing.T) {
	for _, body := range []string{``, "  \n", `null`, `[]`, ` [ ] `, `{}`} {
		t.Run(fmt.Sprintf("%q", body), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, &noGate{})
			place, err := c.Reverse(context.Background(), url.Values{"lat": {"1"}, "lon": {"2"}})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if place.HasID() {
				t.Fatalf("expected place without id")
			}
		})
	}
}

func TestClient_ReverseMalformedBodyIsUpstreamError(t *testing.T) {
	cases := map[string]error{
		`[{"place_id": 1}]`: errNotObject,
		`"oops"`:            errNotObject,
		`42`:                errNotObject,
		`[1,`:               nil,
	}

	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, &noGate{})
			_, err := c.Reverse(context.Background(), url.Values{"lat": {"1"}, "lon": {"2"}})

			var upErr *domain.UpstreamError
			if !errors.As(err, &upErr) || upErr.Err == nil {
				t.Fatalf("expected decode UpstreamError, got %v", err)
			}
			if upErr.Status != http.StatusOK {
				t.Fatalf("expected status 200 preserved, got %d", upErr.Status)
			}
			if want != nil && !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
		})
	}
}

func TestClient_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(base, &noGate{})
	_, err := c.Reverse(context.Background(), url.Values{"lat": {"1"}})

	var trErr *domain.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if trErr.Endpoint != EndpointReverse {
		t.Fatalf("expected reverse endpoint, got %q", trErr.Endpoint)
	}
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, &noGate{}, WithTimeout(20*time.Millisecond))
	_, err := c.Search(context.Background(), nil)

	var trErr *domain.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if !trErr.Timeout() {
		t.Fatalf("expected timeout, got %v", trErr.Err)
	}
}

func TestClient_ReverseWithoutPlaceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("expected /reverse, got %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &noGate{})
	p, err := c.Reverse(context.Background(), url.Values{"lat": {"0"}, "lon": {"0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasID() {
		t.Fatalf("expected place without id")
	}
}

func TestClient_GateFailureIsTransportError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := NewIntervalGate(time.Hour)
	_, _ = g.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, g)
	_, err := c.Search(ctx, nil)

	var trErr *domain.TransportError
	if !errors.As(err, &trErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected TransportError wrapping deadline, got %v", err)
	}
	if called {
		t.Fatalf("upstream must not be called when the gate was not acquired")
	}
}

// waitingGate nunca libera a vez: só devolve quando o ctx encerra.
type waitingGate struct{}

func (waitingGate) Acquire(ctx context.Context) (time.Duration, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestClient_GateTimeoutBoundsQueueWait(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	spy := &metricsSpy{}
	c := NewClient(srv.URL, waitingGate{}, WithGateTimeout(20*time.Millisecond), WithUpstreamMetrics(spy))

	start := time.Now()
	_, err := c.Search(context.Background(), nil)

	var trErr *domain.TransportError
	if !errors.As(err, &trErr) || !errors.Is(err, ErrGateTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected TransportError wrapping ErrGateTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("gate wait not bounded, took %s", elapsed)
	}
	if called {
		t.Fatalf("upstream must not be called after a gate timeout")
	}
	if spy.gateWaits != 1 {
		t.Fatalf("expected gate wait to be observed once, got %d", spy.gateWaits)
	}
}

func TestTruncate_KeepsUTF8Valid(t *testing.T) {
	s := strings.Repeat("a", 9) + "ção"
	got := truncate(s, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("a", 9)+"..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatalf("short strings must be kept")
	}
}

func TestClient_ConcurrentSearchesAreSpacedByGate(t *testing.T) {
	const interval = 50 * time.Millisecond

	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, NewIntervalGate(interval))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Search(context.Background(), url.Values{"q": {"x"}}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(arrivals) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", len(arrivals))
	}
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].Before(arrivals[j]) })
	if gap := arrivals[1].Sub(arrivals[0]); gap < interval-5*time.Millisecond {
		t.Fatalf("expected upstream calls at least %s apart, got %s", interval, gap)
	}
}
