package domain

// Camada de domínio do controle de cota.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"strings"
	"time"
)

// Kind é o nível de classificação de quem faz a requisição.
type Kind string

const (
	KindAnonymous Kind = "Anonymous"
	KindReferrer  Kind = "Referrer"
	KindLoggedIn  Kind = "LoggedIn"
	KindUnknown   Kind = ""
)

// ParseKind aceita os nomes canônicos e os apelidos usados em arquivos de
// configuração antigos ("Referer", "Logged").
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anonymous", "anon":
		return KindAnonymous
	case "referrer", "referer":
		return KindReferrer
	case "loggedin", "logged", "loggeduser":
		return KindLoggedIn
	default:
		return KindUnknown
	}
}

// Key identifica o sujeito da cota (referer, identidade ou path_ip).
type Key string

// RequestAttributes são os atributos observáveis de uma requisição que
// alimentam o classificador. Identity já vem decodificada (vazia se não houver).
type RequestAttributes struct {
	Path       string
	RemoteAddr string
	Referrer   string
	Identity   string

	// Method é usado só para estatísticas.
	Method string
}

// Classification é o resultado do classificador.
type Classification struct {
	Kind Kind
	Key  Key

	// Policy só é válida quando HasPolicy=true. Sem política, nenhum limite se aplica.
	Policy    Policy
	HasPolicy bool
}

// CounterRecord é o estado de uma chave no store compartilhado.
type CounterRecord struct {
	WindowStart time.Time
	Count       int
}

// Reason explica a decisão do motor de admissão.
type Reason string

const (
	ReasonNoPolicy      Reason = "no_policy"
	ReasonAdmitted      Reason = "admitted"
	ReasonWindowReset   Reason = "window_reset"
	ReasonQuotaExceeded Reason = "quota_exceeded"
	ReasonStoreFailure  Reason = "store_failure"
)

type Decision struct {
	Allowed bool
	Reason  Reason

	Kind      Kind
	Key       Key
	Policy    Policy
	HasPolicy bool

	// Count e WindowStart refletem o contador depois da decisão.
	Count       int
	WindowStart time.Time
	Remaining   int

	// RetryAfter é o tempo até a janela atual expirar (só quando bloqueado).
	RetryAfter time.Duration
}
