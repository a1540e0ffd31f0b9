package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// Campos do hash que guarda o registro: início da janela (unix ms) e contagem.
const (
	fieldWindowStart = "ws"
	fieldCount       = "n"
)

// admitScript faz ler-avaliar-escrever num único passo no Redis.
// KEYS[1] = chave
// ARGV[1] = agora (unix ms), ARGV[2] = janela (ms), ARGV[3] = máximo
// Retorno: {admitido 0/1, início da janela, contagem}
var admitScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'ws', 'n')
local now = tonumber(ARGV[1])
local win = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local ws = v[1] and tonumber(v[1])
local n = v[2] and tonumber(v[2])
if not ws or not n or now >= ws + win then
	ws = now
	n = 1
elseif n < max then
	n = n + 1
else
	return {0, ws, n}
end
redis.call('HSET', KEYS[1], 'ws', ws, 'n', n)
redis.call('PEXPIRE', KEYS[1], win)
return {1, ws, n}
`)

// RedisStore implementa domain.CounterStore (e AtomicCounterStore) sobre Redis.
//
// Cada registro é um hash {ws, n} com PEXPIRE igual à janela da política,
// renovado a cada escrita.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

var (
	_ domain.CounterStore       = (*RedisStore)(nil)
	_ domain.AtomicCounterStore = (*RedisStore)(nil)
)

type RedisStoreOption func(*RedisStore)

// WithStoreTimeout limita cada chamada ao Redis. 0 = usa só o ctx do chamador.
func WithStoreTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.timeout = d }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:     rdb,
		timeout: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, key string) (*domain.CounterRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vals, err := s.rdb.HMGet(ctx, key, fieldWindowStart, fieldCount).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || isWrongType(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	if len(vals) != 2 {
		return nil, nil
	}

	ws, okWS := parseInt(vals[0])
	n, okN := parseInt(vals[1])
	if !okWS || !okN {
		// registro ausente ou corrompido conta como "nunca visto"
		return nil, nil
	}
	return &domain.CounterRecord{WindowStart: time.UnixMilli(ws), Count: int(n)}, nil
}

func (s *RedisStore) Store(ctx context.Context, key string, rec domain.CounterRecord, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pipe := s.rdb.TxPipeline()
	// DEL garante sobrescrita mesmo se a chave tiver outro tipo
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fieldWindowStart, rec.WindowStart.UnixMilli(), fieldCount, rec.Count)
	pipe.PExpire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: store %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Admit(ctx context.Context, key string, p domain.Policy, now time.Time) (domain.CounterRecord, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := admitScript.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(),
		p.Window().Milliseconds(),
		p.MaxRequests,
	).Result()
	if err != nil {
		return domain.CounterRecord{}, false, fmt.Errorf("%w: admit %s: %w", domain.ErrStoreUnavailable, key, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return domain.CounterRecord{}, false, errors.New("invalid lua response format")
	}
	allowed, _ := parseInt(values[0])
	ws, _ := parseInt(values[1])
	n, _ := parseInt(values[2])

	return domain.CounterRecord{WindowStart: time.UnixMilli(ws), Count: int(n)}, allowed == 1, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isWrongType(err error) bool {
	return strings.HasPrefix(err.Error(), "WRONGTYPE")
}

// parseInt aceita as formas que o go-redis devolve (int64 ou string).
func parseInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case string:
		if i, err := strconv.ParseInt(x, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}
