package infra

import (
	"context"
	"sync"

	"nominatim-proxy/geocode/domain"
)

// Counters soma desfechos e quantidade de features devolvidas.
type Counters struct {
	Outcomes map[domain.Outcome]int64
	Features int64
}

func (c Counters) add(ev domain.StatsEvent) Counters {
	if c.Outcomes == nil {
		c.Outcomes = make(map[domain.Outcome]int64)
	}
	c.Outcomes[ev.Outcome]++
	c.Features += int64(ev.Features)
	return c
}

func (c Counters) clone() Counters {
	out := Counters{Outcomes: make(map[domain.Outcome]int64, len(c.Outcomes)), Features: c.Features}
	for k, v := range c.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}

// MemoryStatsStore guarda contadores em memória. É o padrão quando o Redis
// não está configurado; não expira nada.
type MemoryStatsStore struct {
	mu    sync.Mutex
	total Counters
	byOp  map[domain.Operation]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byOp: make(map[domain.Operation]Counters)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = s.total.add(ev)
	if ev.Operation != "" {
		s.byOp[ev.Operation] = s.byOp[ev.Operation].add(ev)
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) ByOperation() map[domain.Operation]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Operation]Counters, len(s.byOp))
	for k, v := range s.byOp {
		out[k] = v.clone()
	}
	return out
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)
