package infra

import (
	"context"

	"quota-gateway/middleware/ratelimit/domain"
)

// SlotPool é um semáforo baseado em channel para limitar requisições em voo.
type SlotPool struct {
	sem chan struct{}
}

var _ domain.SlotPool = (*SlotPool)(nil)

// NewSlotPool cria o semáforo com capacidade max (max > 0).
func NewSlotPool(max int) *SlotPool {
	return &SlotPool{sem: make(chan struct{}, max)}
}

func (p *SlotPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *SlotPool) InUse() int    { return len(p.sem) }
func (p *SlotPool) Capacity() int { return cap(p.sem) }
