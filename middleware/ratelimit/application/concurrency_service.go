package application

import (
	"context"
	"time"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com
// timeout, sem saber nada sobre HTTP. É independente da contagem de cota.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	Logger         zerolog.Logger
}

// Acquire tenta adquirir uma vaga.
//   - AcquireTimeout <= 0: espera até o ctx cancelar.
//   - AcquireTimeout > 0: espera no máximo o timeout.
//
// Retorna (release, ok). Com ok=false nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		s.Logger.Debug().
			Int("in_use", s.Pool.InUse()).
			Dur("timeout", s.AcquireTimeout).
			Msg("no concurrency slot available")
		return nil, false
	}
	return release, true
}
