package ratelimit

import (
	"net/http"
	"time"

	"nominatim-proxy/middleware/ratelimit/application"
	"nominatim-proxy/middleware/ratelimit/domain"
	"nominatim-proxy/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Pool tem precedência sobre Max; útil para expor InUse em métricas.
	Pool           domain.SlotPool
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	OnReject       func(r *http.Request)
}

// ConcurrencyMiddleware limita quantas requisições podem estar em andamento
// (incluindo as que esperam a vez no gate do upstream).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewSlotPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	adm := application.Admission{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := adm.Acquire(r.Context())
			if !ok {
				if opts.OnReject != nil {
					opts.OnReject(r)
				}
				writeError(w, opts.RejectStatus, "too many requests in flight")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
