package application

import (
	"context"
	"time"

	"nominatim-proxy/middleware/ratelimit/domain"
)

// DefaultRetryAfter é usado quando o limiter não sabe quanto falta.
const DefaultRetryAfter = 1 * time.Second

// Admission decide se uma requisição entra, sem saber nada de HTTP.
type Admission struct {
	Store      domain.LimiterStore
	Pool       domain.SlotPool
	RetryAfter time.Duration
	// AcquireTimeout <= 0 espera por uma vaga até o ctx cancelar.
	AcquireTimeout time.Duration
	Now            func() time.Time
}

// Decide aplica o limite de taxa do cliente. O Retry-After é o maior entre a
// espera informada pelo limiter e o RetryAfter configurado.
func (a Admission) Decide(key domain.ClientKey) domain.Decision {
	if a.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := a.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	ok, wait := lim.AllowAt(now())
	if ok {
		return domain.Decision{Allowed: true}
	}

	retry := a.RetryAfter
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	if wait > retry {
		retry = wait
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}

// Acquire tenta ocupar uma vaga. Com ok=false nenhuma vaga foi ocupada.
func (a Admission) Acquire(ctx context.Context) (func(), bool) {
	if a.Pool == nil {
		return func() {}, true
	}
	if a.AcquireTimeout <= 0 {
		return a.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	return a.Pool.Acquire(acqCtx)
}
