package infra

import (
	"context"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe as decisões como métricas. Os rótulos ficam em
// kind/outcome/reason para manter a cardinalidade baixa (nunca a chave).
type PrometheusStats struct {
	Decisions *prometheus.CounterVec
}

func NewPrometheusStats(reg prometheus.Registerer) *PrometheusStats {
	s := &PrometheusStats{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_gateway_decisions_total",
				Help: "Total admission decisions taken by the quota middleware",
			},
			[]string{"kind", "outcome", "reason"},
		),
	}
	reg.MustRegister(s.Decisions)
	return s
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "rejected"
	if ev.Allowed {
		outcome = "admitted"
	}
	kind := string(ev.Kind)
	if kind == "" {
		kind = "none"
	}
	s.Decisions.WithLabelValues(kind, outcome, string(ev.Reason)).Inc()
	return nil
}
