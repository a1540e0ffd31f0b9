package ratelimit

import (
	"net/http"
	"time"

	"quota-gateway/middleware/ratelimit/application"
	"quota-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Options struct {
	// Policies nil = configuração ausente, toda requisição passa.
	Policies *domain.PolicyTable
	Store    domain.CounterStore
	Stats    domain.StatsStore
	Decoder  domain.IdentityDecoder

	ClientIP           ClientIPFunc
	TrustXForwardedFor bool

	KeyPrefix     string
	FailurePolicy application.FailurePolicy
	Atomic        bool

	AddRateLimitHeaders bool
	// WarnEvery limita os avisos de falha do store (0 = 1 aviso a cada 10s).
	WarnEvery time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.ClientIP == nil {
		opts.ClientIP = DefaultClientIP(opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WarnEvery <= 0 {
		opts.WarnEvery = 10 * time.Second
	}

	svc := application.Service{
		Policies:      opts.Policies,
		Store:         opts.Store,
		KeyPrefix:     opts.KeyPrefix,
		Now:           opts.Now,
		FailurePolicy: opts.FailurePolicy,
		Atomic:        opts.Atomic,
		Logger:        opts.Logger,
		WarnSampler:   application.NewWarnSampler(opts.WarnEvery),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := Attributes(r, opts.Decoder, opts.ClientIP)

			// a escrita do contador termina antes do handler seguinte
			dec := svc.Decide(r.Context(), attrs)

			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     dec.Key,
					Kind:    dec.Kind,
					Allowed: dec.Allowed,
					Reason:  dec.Reason,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				}); err != nil {
					hlog.FromRequest(r).Debug().Err(err).Msg("stats record failed")
				}
			}

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w.Header(), dec)
			}

			if !dec.Allowed {
				if dec.Reason == domain.ReasonStoreFailure {
					WriteUnavailable(w, dec)
					return
				}
				hlog.FromRequest(r).Info().
					Str("kind", string(dec.Kind)).
					Int("count", dec.Count).
					Int("max", dec.Policy.MaxRequests).
					Msg("quota exceeded")
				WriteQuotaExceeded(w, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
