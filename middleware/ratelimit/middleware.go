package ratelimit

import (
	"net/http"
	"time"

	"nominatim-proxy/middleware/ratelimit/application"
	"nominatim-proxy/middleware/ratelimit/domain"
)

type Options struct {
	Store               domain.LimiterStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	// OnReject é chamado a cada requisição bloqueada (log, métricas, estatísticas).
	OnReject func(r *http.Request, key string)
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// Middleware limita a taxa de requisições por cliente.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = application.DefaultRetryAfter
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	adm := application.Admission{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := adm.Decide(domain.ClientKey(key))
			if !dec.Allowed {
				if opts.OnReject != nil {
					opts.OnReject(r, key)
				}
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				writeError(w, opts.RejectStatus, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
