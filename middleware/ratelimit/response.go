package ratelimit

import (
	"encoding/json"
	"net/http"

	"quota-gateway/middleware/ratelimit/domain"
)

const (
	MessageQuotaExceeded = "quota exceeded"
	MessageUnavailable   = "rate limiter unavailable"
)

// QuotaExceededBody é o corpo JSON das respostas de bloqueio.
type QuotaExceededBody struct {
	Message       string `json:"message"`
	MoreInfos     string `json:"moreInfos,omitempty"`
	RequestorType string `json:"requestorType,omitempty"`
}

// WriteQuotaExceeded responde 429 com o tipo de quem foi bloqueado e, quando
// conhecido, quanto falta para a janela reiniciar.
func WriteQuotaExceeded(w http.ResponseWriter, dec domain.Decision) {
	body := QuotaExceededBody{
		Message:       MessageQuotaExceeded,
		RequestorType: string(dec.Policy.Kind),
	}
	if body.RequestorType == "" {
		body.RequestorType = string(dec.Kind)
	}
	if dec.RetryAfter > 0 {
		secs := formatSeconds(dec.RetryAfter)
		body.MoreInfos = "retry in " + secs + "s"
		w.Header().Set("Retry-After", secs)
	}
	writeJSON(w, http.StatusTooManyRequests, body)
}

// WriteUnavailable responde 503 quando o store falha em modo fail-closed.
func WriteUnavailable(w http.ResponseWriter, dec domain.Decision) {
	writeJSON(w, http.StatusServiceUnavailable, QuotaExceededBody{
		Message:       MessageUnavailable,
		RequestorType: string(dec.Kind),
	})
}

func setRateLimitHeaders(h http.Header, dec domain.Decision) {
	if !dec.HasPolicy {
		return
	}
	h.Set("X-RateLimit-Kind", string(dec.Kind))
	h.Set("X-RateLimit-Limit", formatInt(dec.Policy.MaxRequests))
	if dec.Reason == domain.ReasonStoreFailure {
		return
	}
	h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	if !dec.WindowStart.IsZero() {
		h.Set("X-RateLimit-Reset", formatInt64(dec.WindowStart.Add(dec.Policy.Window()).Unix()))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
