package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"quota-gateway/middleware/ratelimit/domain"
)

const (
	HeaderReferer       = "Referer"
	QueryReferer        = "Referer"
	HeaderAuthorization = "Authorization"

	bearerPrefix = "bearer "
)

// ClientIPFunc devolve o endereço usado na chave anônima.
type ClientIPFunc func(r *http.Request) string

func DefaultClientIP(trustXFF bool) ClientIPFunc {
	return func(r *http.Request) string {
		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
}

// Referrer lê o header Referer; vazio ou ausente cai no parâmetro de query.
func Referrer(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderReferer)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryReferer))
}

// BearerToken extrai o token de "Authorization: Bearer <token>". O prefixo
// não diferencia maiúsculas.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// Attributes monta os atributos observáveis da requisição. Token inválido
// resulta em identidade vazia (a requisição segue como Anonymous/Referrer).
func Attributes(r *http.Request, dec domain.IdentityDecoder, clientIP ClientIPFunc) domain.RequestAttributes {
	attrs := domain.RequestAttributes{
		Path:     r.URL.Path,
		Referrer: Referrer(r),
		Method:   r.Method,
	}
	if clientIP != nil {
		attrs.RemoteAddr = clientIP(r)
	}

	if dec != nil {
		if tok := BearerToken(r); tok != "" {
			if id, err := dec.Identity(tok); err == nil {
				attrs.Identity = id
			}
		}
	}
	return attrs
}
