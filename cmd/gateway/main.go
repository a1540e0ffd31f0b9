package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"quota-gateway/middleware/obs"
	"quota-gateway/middleware/ratelimit"
	"quota-gateway/middleware/ratelimit/application"
	policyconfig "quota-gateway/middleware/ratelimit/config"
	"quota-gateway/middleware/ratelimit/domain"
	"quota-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	boot := obs.SetupLogger("info")

	cfg, err := readConfig()
	if err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}
	logger := obs.SetupLogger(cfg.logLevel)

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid UPSTREAM_URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	policies, err := policyconfig.Load(cfg.policyFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.policyFile).Msg("policy file error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	store, closeStore := buildStore(ctx, cfg, logger)
	defer closeStore()

	stats := domain.MultiStats{infra.NewPrometheusStats(reg)}
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		if err := ping(ctx, rdb); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.rateStatsRedisAddr).Msg("redis stats ping error")
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		))
	}

	failure := application.FailOpen
	if cfg.failClosed {
		failure = application.FailClosed
	}

	h := http.Handler(proxy)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Policies:            policies,
			Store:               store,
			Stats:               stats,
			Decoder:             infra.NewJWTIdentityDecoder(cfg.jwtClaims...),
			TrustXForwardedFor:  cfg.trustXFF,
			KeyPrefix:           cfg.keyPrefix,
			FailurePolicy:       failure,
			Atomic:              cfg.atomic,
			AddRateLimitHeaders: cfg.addHeaders,
			Logger:              logger,
		})(h)
	}
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		Logger:         logger,
	})(h)

	mux := http.NewServeMux()
	mux.Handle(cfg.metricsPath, obs.Handler(reg))
	mux.Handle("/", h)

	skip := map[string]struct{}{cfg.metricsPath: {}}
	root := obs.AccessLog(logger)(metrics.Middleware(skip)(mux))

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.listenAddr).Str("upstream", target.String()).Msg("gateway listening")
	logger.Info().
		Bool("enabled", cfg.rateEnabled).
		Str("store", cfg.storeKind).
		Str("policy_file", cfg.policyFile).
		Int("policies", len(policies.Policies())).
		Str("failure", failure.String()).
		Bool("atomic", cfg.atomic).
		Bool("trust_xff", cfg.trustXFF).
		Msg("quota")
	logger.Info().
		Bool("enabled", cfg.rateStatsEnabled).
		Str("redis_addr", cfg.rateStatsRedisAddr).
		Str("bucket", cfg.rateStatsBucket).
		Dur("ttl", cfg.rateStatsTTL).
		Bool("track_keys", cfg.rateStatsTrackKeys).
		Msg("quota stats")
	logger.Info().Int("max", cfg.concurrencyMax).Dur("acquire_timeout", cfg.concurrencyTimeout).Msg("concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// buildStore escolhe o store de contadores. O retorno de fechamento é sempre
// seguro de chamar.
func buildStore(ctx context.Context, cfg config, logger zerolog.Logger) (domain.CounterStore, func()) {
	if cfg.storeKind == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		if err := ping(ctx, rdb); err != nil {
			// sobe mesmo assim: a política de falha decide o que fazer com as requisições
			logger.Warn().Err(err).Str("addr", cfg.redisAddr).Msg("redis counter store unreachable at startup")
		}
		store := infra.NewRedisStore(rdb, infra.WithStoreTimeout(cfg.storeTimeout))
		return store, func() { _ = store.Close() }
	}

	store := infra.NewMemoryStore()
	store.StartJanitor(ctx)
	return store, func() {}
}

func ping(ctx context.Context, rdb *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(pingCtx).Err()
}
