package infra

import (
	"context"
	"sync"
	"time"

	"quota-gateway/middleware/ratelimit/domain"
)

// MemoryStore guarda os registros de contador em memória, com expiração por
// chave e limpeza periódica. Serve para uma única instância e para testes; não
// compartilha estado entre réplicas.
//
// Implementa domain.CounterStore e domain.AtomicCounterStore.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memoryEntry struct {
	rec       domain.CounterRecord
	expiresAt time.Time
}

var (
	_ domain.CounterStore       = (*MemoryStore)(nil)
	_ domain.AtomicCounterStore = (*MemoryStore)(nil)
)

type MemoryStoreOption func(*MemoryStore)

// WithClock troca o relógio usado para expiração (testes).
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memoryEntry),
		now:          time.Now,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *MemoryStore) Load(ctx context.Context, key string) (*domain.CounterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(key, s.now())
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Store(ctx context.Context, key string, rec domain.CounterRecord, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

// Admit executa a transição inteira sob o lock do store.
func (s *MemoryStore) Admit(ctx context.Context, key string, p domain.Policy, now time.Time) (domain.CounterRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CounterRecord{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *domain.CounterRecord
	if rec, ok := s.lookup(key, s.now()); ok {
		cur = &rec
	}

	next, allowed, _ := domain.NextWindow(cur, p, now)
	if allowed {
		s.entries[key] = &memoryEntry{rec: next, expiresAt: s.now().Add(p.Window())}
	}
	return next, allowed, nil
}

// Len conta as entradas ainda não removidas (inclui expiradas antes do Cleanup).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lookup precisa do lock. Entrada expirada é removida na leitura.
func (s *MemoryStore) lookup(key string, now time.Time) (domain.CounterRecord, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return domain.CounterRecord{}, false
	}
	if !now.Before(ent.expiresAt) {
		delete(s.entries, key)
		return domain.CounterRecord{}, false
	}
	return ent.rec, true
}

func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove registros expirados
// periodicamente. Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem exigir
// o contrato inteiro.
type DoneContext interface {
	Done() <-chan struct{}
}
