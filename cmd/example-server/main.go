package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quota-gateway/middleware/obs"
	"quota-gateway/middleware/ratelimit"
	"quota-gateway/middleware/ratelimit/domain"
	"quota-gateway/middleware/ratelimit/infra"
)

func main() {
	logger := obs.SetupLogger(os.Getenv("LOG_LEVEL"))

	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy),
	// com as políticas montadas em código em vez de arquivo.
	policies := domain.NewPolicyTable([]domain.Policy{
		{Kind: domain.KindAnonymous, WindowSeconds: 10, MaxRequests: 2},
		{Kind: domain.KindReferrer, WindowSeconds: 60, MaxRequests: 100},
		{Kind: domain.KindLoggedIn, WindowSeconds: 60, MaxRequests: 30},
	})
	store := infra.NewMemoryStore()
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = ratelimit.Middleware(ratelimit.Options{
		Policies:            policies,
		Store:               store,
		Stats:               stats,
		Decoder:             infra.NewJWTIdentityDecoder(),
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
		Atomic:              true,
		Logger:              logger,
	})(h)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50, Logger: logger})(h)
	h = obs.AccessLog(logger)(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		total := stats.Total()
		logger.Info().Int64("allowed", total.Allowed).Int64("denied", total.Denied).Msg("quota totals")
	}()

	logger.Info().Str("addr", addr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}
