package domain

import (
	"context"
	"time"
)

// CounterStore é a capacidade mínima sobre o store compartilhado.
//
// Load devolve (nil, nil) quando a chave não existe ou o registro não pode ser
// decodificado: para o motor isso é o mesmo que "chave nunca vista".
// Erro só para falha de transporte/timeout.
//
// Store sobrescreve sem condição (último a escrever vence) com expiração now+ttl.
type CounterStore interface {
	Load(ctx context.Context, key string) (*CounterRecord, error)
	Store(ctx context.Context, key string, rec CounterRecord, ttl time.Duration) error
}

// AtomicCounterStore é opcional: executa ler-avaliar-escrever num único passo
// atômico, garantindo no máximo MaxRequests admissões por janela.
type AtomicCounterStore interface {
	Admit(ctx context.Context, key string, p Policy, now time.Time) (rec CounterRecord, allowed bool, err error)
}

// IdentityDecoder transforma a credencial bearer em uma identidade.
// Erro significa "sem identidade".
type IdentityDecoder interface {
	Identity(token string) (string, error)
}

// IdentityDecoderFunc adapta uma função a IdentityDecoder.
type IdentityDecoderFunc func(token string) (string, error)

func (f IdentityDecoderFunc) Identity(token string) (string, error) { return f(token) }
