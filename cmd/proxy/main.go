package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nominatim-proxy/geocode"
	"nominatim-proxy/geocode/application"
	"nominatim-proxy/geocode/domain"
	"nominatim-proxy/geocode/infra"
	"nominatim-proxy/middleware/ratelimit"
	rlinfra "nominatim-proxy/middleware/ratelimit/infra"
	"nominatim-proxy/middleware/requestlog"
	"nominatim-proxy/observability"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	// .env é opcional; variáveis já exportadas têm precedência.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.logLevel, Format: cfg.logFormat})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := observability.NewCollector(reg)
	if err != nil {
		log.Fatalf("metrics error: %v", err)
	}

	stats, closeStats, err := newStatsStore(ctx, cfg)
	if err != nil {
		log.Fatalf("stats error: %v", err)
	}
	defer closeStats()

	a, err := newApp(cfg, logger, collector, stats)
	if err != nil {
		log.Fatalf("setup error: %v", err)
	}
	a.clients.StartJanitor(ctx)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.writeTimeout(),
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("proxy listening",
		slog.String("addr", cfg.listenAddr),
		slog.String("upstream", cfg.nominatimURL),
		slog.Duration("min_interval", cfg.nominatimMinInterval),
		slog.String("viewbox", cfg.nominatimViewbox),
	)
	logger.Info("inbound protection",
		slog.Bool("rate_enabled", cfg.rateEnabled),
		slog.Float64("rps", cfg.rateRPS),
		slog.Int("burst", cfg.rateBurst),
		slog.String("key_header", cfg.rateKeyHeader),
		slog.Bool("trust_xff", cfg.trustXFF),
		slog.Int("concurrency_max", cfg.concurrencyMax),
		slog.Duration("concurrency_timeout", cfg.concurrencyTimeout),
	)
	logger.Info("stats", slog.Bool("redis", cfg.statsEnabled), slog.String("redis_addr", cfg.statsRedisAddr), slog.String("bucket", cfg.statsBucket))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}

	if mem, ok := stats.(*infra.MemoryStatsStore); ok {
		logStats(logger, mem)
	}
}

type app struct {
	handler http.Handler
	clients *rlinfra.ClientStore
	slots   interface{ InUse() int }
}

// newApp monta a cadeia: CORS -> request log -> rotas. As rotas de geocodificação
// passam ainda pelo limite de taxa e pelo limite de concorrência; /health e
// /metrics não.
func newApp(cfg config, logger *slog.Logger, collector *observability.Collector, stats domain.StatsStore) (*app, error) {
	gate := infra.NewIntervalGate(cfg.nominatimMinInterval)
	client := infra.NewClient(cfg.nominatimURL, gate,
		infra.WithUserAgent(cfg.nominatimUserAgent),
		infra.WithTimeout(cfg.nominatimTimeout),
		infra.WithGateTimeout(cfg.nominatimGateTimeout),
		infra.WithUpstreamMetrics(collector),
	)

	svc := application.Service{
		Upstream: client,
		Bias:     application.Bias{Viewbox: cfg.nominatimViewbox, CountryCodes: cfg.nominatimCountryCodes},
		Stats:    stats,
		Metrics:  collector,
		Logger:   logger,
	}
	h := geocode.NewHandler(svc, logger)

	api := http.NewServeMux()
	h.Routes(api)

	recordRejected := func(r *http.Request, outcome domain.Outcome) {
		collector.ObserveRejected(string(outcome))
		if stats == nil {
			return
		}
		ev := domain.StatsEvent{Operation: operationOf(r.URL.Path), Outcome: outcome, At: time.Now()}
		if err := stats.Record(r.Context(), ev); err != nil {
			logger.WarnContext(r.Context(), "stats record failed", slog.String("error", err.Error()))
		}
	}

	slots := rlinfra.NewSlotPool(max(cfg.concurrencyMax, 1))
	if err := collector.TrackInFlight(slots.InUse); err != nil {
		return nil, err
	}

	protected := http.Handler(api)
	if cfg.concurrencyMax > 0 {
		protected = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           slots,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
			OnReject: func(r *http.Request) {
				logger.WarnContext(r.Context(), "concurrency limit reached", slog.String("path", r.URL.Path))
				recordRejected(r, domain.OutcomeRejected)
			},
		})(protected)
	}

	clients := rlinfra.NewClientStore(cfg.rateRPS, cfg.rateBurst)
	keyFn := ratelimit.DefaultKeyFunc(cfg.rateKeyHeader, cfg.trustXFF)
	if cfg.rateEnabled {
		protected = ratelimit.Middleware(ratelimit.Options{
			Store:               clients,
			KeyFn:               keyFn,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
			OnReject: func(r *http.Request, key string) {
				logger.InfoContext(r.Context(), "rate limited", slog.String("client", key), slog.String("path", r.URL.Path))
				recordRejected(r, domain.OutcomeThrottled)
			},
		})(protected)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /health", h.Health)
	root.Handle("GET /metrics", collector.Handler())
	root.Handle("/", protected)

	handler := requestlog.Middleware(requestlog.Options{
		Logger:   logger,
		ClientIP: ratelimit.DefaultKeyFunc("", cfg.trustXFF),
	})(root)
	handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(handler)

	return &app{handler: handler, clients: clients, slots: slots}, nil
}

// newStatsStore usa Redis quando STATS_ENABLED=true; senão, contadores em memória.
func newStatsStore(ctx context.Context, cfg config) (domain.StatsStore, func(), error) {
	if !cfg.statsEnabled {
		return infra.NewMemoryStatsStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.statsRedisAddr,
		Password: cfg.statsRedisPassword,
		DB:       cfg.statsRedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	store := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.statsPrefix),
		infra.WithStatsTTL(cfg.statsTTL),
		infra.WithStatsBucket(cfg.statsBucket),
	)
	return store, func() { _ = rdb.Close() }, nil
}

// operationOf deduz a operação pela rota (com ou sem /v1).
func operationOf(path string) domain.Operation {
	switch strings.TrimPrefix(path, "/v1") {
	case "/search":
		return domain.OpSearch
	case "/autocomplete":
		return domain.OpAutocomplete
	case "/reverse":
		return domain.OpReverse
	default:
		return ""
	}
}

func logStats(logger *slog.Logger, mem *infra.MemoryStatsStore) {
	for op, c := range mem.ByOperation() {
		attrs := []any{slog.String("operation", string(op)), slog.Int64("features", c.Features)}
		for outcome, n := range c.Outcomes {
			attrs = append(attrs, slog.Int64(string(outcome), n))
		}
		logger.Info("stats summary", attrs...)
	}
}
