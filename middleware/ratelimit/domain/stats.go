package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do motor de admissão.
//
// Method/Path são strings genéricas (não dependem de net/http).
//
// Observação: cuidado com cardinalidade ao persistir Key/Path (Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Kind    Kind
	Allowed bool
	Reason  Reason

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// O middleware trata erro como best-effort (não derruba a requisição).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// MultiStats envia o mesmo evento para vários stores; devolve o primeiro erro.
type MultiStats []StatsStore

func (m MultiStats) Record(ctx context.Context, ev StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
