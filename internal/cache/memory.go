package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory implementa Client sobre go-cache.
type Memory struct {
	prefix string
	c      *gocache.Cache
}

// NewMemory crea un cache en memoria. defaultTTL <= 0 = sin expiración
// por defecto.
func NewMemory(prefix string, defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &Memory{prefix: prefix, c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Memory) key(k string) string { return m.prefix + k }

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

// Incr suma 1 a key creándola con ttl si no existe. Lo usa el rate limiter
// en memoria.
func (m *Memory) Incr(key string, ttl time.Duration) (int64, time.Time) {
	k := m.key(key)
	if err := m.c.Add(k, int64(1), ttl); err == nil {
		return 1, time.Now().Add(ttl)
	}
	n, err := m.c.IncrementInt64(k, 1)
	if err != nil {
		// expiró entre Add e Increment
		m.c.Set(k, int64(1), ttl)
		return 1, time.Now().Add(ttl)
	}
	_, exp, _ := m.c.GetWithExpiration(k)
	return n, exp
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { m.c.Flush(); return nil }
