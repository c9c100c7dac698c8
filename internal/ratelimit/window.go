package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryWindow cuenta hits por clave en una ventana fija que arranca con el primer hit.
// Sirve para una sola instancia; con varias, usar RedisWindow.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Allow consume un hit si quedan; los rechazos no cuentan.
func (m *MemoryWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if !now.Before(e.resetAt) {
			delete(m.entries, k)
		}
	}

	e, ok := m.entries[key]
	if !ok {
		e = &windowEntry{resetAt: now.Add(window)}
		m.entries[key] = e
	}
	if e.count >= limit {
		return false, nil
	}
	e.count++
	return true, nil
}

// Release devuelve un hit consumido (p.ej. la escritura que lo justificaba falló).
// Nunca baja de cero ni reabre una ventana vencida.
func (m *MemoryWindow) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.resetAt) {
		return nil
	}
	if e.count > 0 {
		e.count--
	}
	return nil
}

// RedisWindow es la misma ventana fija sobre INCR + EXPIRE, compartida entre instancias.
type RedisWindow struct {
	client *redis.Client
	prefix string
}

func NewRedisWindow(client *redis.Client) *RedisWindow {
	return &RedisWindow{client: client, prefix: "ratelimit:"}
}

// allowScript incrementa y setea el TTL en el primer hit; si se pasó del límite
// deshace el incremento para que los rechazos no cuenten.
var allowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
  redis.call("DECR", KEYS[1])
  return 0
end
return 1
`)

func (r *RedisWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	ok, err := allowScript.Run(ctx, r.client, []string{r.prefix + key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis allow: %w", err)
	}
	return ok == 1, nil
}

// releaseScript no crea la clave si ya expiró.
var releaseScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
  redis.call("DECR", KEYS[1])
end
return n
`)

func (r *RedisWindow) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis release: %w", err)
	}
	return nil
}
