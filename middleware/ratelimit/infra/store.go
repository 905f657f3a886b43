package infra

import (
	"context"
	"sync"
	"time"

	"nominatim-proxy/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// ClientStore mantém um token bucket (x/time/rate) por cliente, com limpeza
// periódica das entradas ociosas.
type ClientStore struct {
	mu           sync.Mutex
	entries      map[string]*clientEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type clientEntry struct {
	lim      *bucket
	lastSeen time.Time
}

type StoreOption func(*ClientStore)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *ClientStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *ClientStore) { s.cleanupEvery = d }
}

func NewClientStore(rps float64, burst int, opts ...StoreOption) *ClientStore {
	s := &ClientStore{
		entries:      make(map[string]*clientEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ClientStore) RPS() float64 { return float64(s.rps) }
func (s *ClientStore) Burst() int   { return s.burst }

// Len devolve quantos clientes estão em cache.
func (s *ClientStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get implementa domain.LimiterStore.
func (s *ClientStore) Get(key domain.ClientKey) domain.Limiter {
	now := time.Now()
	k := string(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[k]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := &bucket{lim: rate.NewLimiter(s.rps, s.burst)}
	s.entries[k] = &clientEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *ClientStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa clientes ociosos periodicamente.
// Pare cancelando o contexto.
func (s *ClientStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// bucket adapta *rate.Limiter para domain.Limiter. Uma reserva que precisaria
// esperar é cancelada e a espera vira o Retry-After.
type bucket struct {
	lim *rate.Limiter
}

func (b *bucket) AllowAt(now time.Time) (bool, time.Duration) {
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

var _ domain.LimiterStore = (*ClientStore)(nil)
