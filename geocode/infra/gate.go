package infra

import (
	"context"
	"time"

	"nominatim-proxy/geocode/domain"
)

// DefaultMinInterval é o espaçamento exigido pela política de uso do Nominatim.
const DefaultMinInterval = 1 * time.Second

// IntervalGate garante um intervalo mínimo entre chamadas de saída, somando
// todos os chamadores concorrentes.
//
// A checagem e a atualização do último horário formam uma única região crítica,
// protegida por um semáforo de capacidade 1 para que a espera pela vez respeite
// o ctx do chamador.
type IntervalGate struct {
	sem      chan struct{}
	interval time.Duration
	clock    domain.Clock
	last     time.Time
}

type GateOption func(*IntervalGate)

func WithClock(c domain.Clock) GateOption {
	return func(g *IntervalGate) { g.clock = c }
}

func NewIntervalGate(interval time.Duration, opts ...GateOption) *IntervalGate {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	g := &IntervalGate{
		sem:      make(chan struct{}, 1),
		interval: interval,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *IntervalGate) Interval() time.Duration { return g.interval }

// Acquire implementa domain.Gate. Se o ctx encerrar antes da vez chegar,
// o último horário registrado não muda.
func (g *IntervalGate) Acquire(ctx context.Context) (time.Duration, error) {
	start := g.clock.Now()

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return g.clock.Now().Sub(start), ctx.Err()
	}
	defer func() { <-g.sem }()

	if !g.last.IsZero() {
		if remaining := g.interval - g.clock.Now().Sub(g.last); remaining > 0 {
			select {
			case <-g.clock.After(remaining):
			case <-ctx.Done():
				return g.clock.Now().Sub(start), ctx.Err()
			}
		}
	}

	now := g.clock.Now()
	g.last = now
	return now.Sub(start), nil
}

// Last devolve o horário da última chamada liberada (zero se nenhuma).
func (g *IntervalGate) Last() time.Time {
	g.sem <- struct{}{}
	defer func() { <-g.sem }()
	return g.last
}

var _ domain.Gate = (*IntervalGate)(nil)
