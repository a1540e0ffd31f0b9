package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultKeyPrefix isola as chaves deste componente no store compartilhado.
const DefaultKeyPrefix = "quota:"

// FailurePolicy define o que acontece quando o store não responde.
type FailurePolicy int

const (
	// FailOpen admite a requisição e registra um aviso (padrão).
	FailOpen FailurePolicy = iota
	// FailClosed bloqueia com ReasonStoreFailure.
	FailClosed
)

func (f FailurePolicy) String() string {
	if f == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// Service é o motor de admissão: classifica, lê o contador, decide e grava.
//
// No modo padrão, ler-avaliar-escrever não é atômico: duas requisições
// simultâneas para a mesma chave podem ler o mesmo Count e ambas serem
// admitidas. Com Atomic=true e um store que implemente
// domain.AtomicCounterStore, a transição roda inteira no store.
type Service struct {
	Policies      *domain.PolicyTable
	Store         domain.CounterStore
	KeyPrefix     string
	Now           func() time.Time
	FailurePolicy FailurePolicy
	Atomic        bool

	Logger zerolog.Logger
	// WarnSampler limita os avisos de falha do store. Nil = loga toda falha.
	WarnSampler *rate.Sometimes
}

// NewWarnSampler devolve um sampler que deixa passar um aviso por intervalo.
func NewWarnSampler(every time.Duration) *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: every}
}

// StoreKey monta a chave do registro no store: <prefixo><kind>:<chave>.
func (s Service) StoreKey(c domain.Classification) string {
	prefix := s.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + string(c.Kind) + ":" + string(c.Key)
}

func (s Service) Decide(ctx context.Context, attrs domain.RequestAttributes) domain.Decision {
	c := Classify(attrs, s.Policies)
	dec := domain.Decision{
		Kind:      c.Kind,
		Key:       c.Key,
		Policy:    c.Policy,
		HasPolicy: c.HasPolicy,
	}

	if !c.HasPolicy || s.Store == nil {
		dec.Allowed = true
		dec.Reason = domain.ReasonNoPolicy
		return dec
	}

	now := s.now()
	key := s.StoreKey(c)

	if s.Atomic {
		if as, ok := s.Store.(domain.AtomicCounterStore); ok {
			return s.decideAtomic(ctx, as, key, c.Policy, now, dec)
		}
	}

	rec, err := s.Store.Load(ctx, key)
	if err != nil {
		return s.storeFailure(dec, "load", key, err)
	}

	next, allowed, reason := domain.NextWindow(rec, c.Policy, now)
	if !allowed {
		return rejected(dec, next, c.Policy, now)
	}

	if err := s.Store.Store(ctx, key, next, c.Policy.Window()); err != nil {
		dec = s.storeFailure(dec, "store", key, err)
		if dec.Allowed {
			fill(&dec, next, c.Policy)
		}
		return dec
	}

	dec.Allowed = true
	dec.Reason = reason
	fill(&dec, next, c.Policy)
	return dec
}

func (s Service) decideAtomic(ctx context.Context, as domain.AtomicCounterStore, key string, p domain.Policy, now time.Time, dec domain.Decision) domain.Decision {
	rec, allowed, err := as.Admit(ctx, key, p, now)
	if err != nil {
		return s.storeFailure(dec, "admit", key, err)
	}
	if !allowed {
		return rejected(dec, rec, p, now)
	}
	dec.Allowed = true
	dec.Reason = domain.ReasonAdmitted
	fill(&dec, rec, p)
	return dec
}

func (s Service) storeFailure(dec domain.Decision, op, key string, err error) domain.Decision {
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
	}

	logIt := func() {
		s.Logger.Warn().
			Err(err).
			Str("op", op).
			Str("key", key).
			Str("kind", string(dec.Kind)).
			Str("policy", s.FailurePolicy.String()).
			Msg("counter store failure")
	}
	if s.WarnSampler != nil {
		s.WarnSampler.Do(logIt)
	} else {
		logIt()
	}

	dec.Reason = domain.ReasonStoreFailure
	dec.Allowed = s.FailurePolicy != FailClosed
	return dec
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func rejected(dec domain.Decision, rec domain.CounterRecord, p domain.Policy, now time.Time) domain.Decision {
	dec.Allowed = false
	dec.Reason = domain.ReasonQuotaExceeded
	fill(&dec, rec, p)
	dec.RetryAfter = domain.RetryAfter(rec, p, now)
	return dec
}

func fill(dec *domain.Decision, rec domain.CounterRecord, p domain.Policy) {
	dec.Count = rec.Count
	dec.WindowStart = rec.WindowStart
	dec.Remaining = p.MaxRequests - rec.Count
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
}
