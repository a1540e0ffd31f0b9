package domain

import "context"

// SlotPool representa uma capacidade finita de requisições em voo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. A função de
// release devolvida deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// InUse informa quantas vagas estão ocupadas agora.
	InUse() int
}
