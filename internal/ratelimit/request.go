// Package ratelimit tiene los dos limitadores del servicio:
// token bucket por viewer para access requests, y ventana fija por clave para shares.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const defaultMaxKeys = 10_000

type RequestConfig struct {
	PerMinute int
	Burst     int
	// MaxKeys acota cuántos viewers se recuerdan; el menos usado se descarta.
	MaxKeys int
}

// RequestLimiter es un token bucket por viewer. Satisface accessgrants.RequestLimiter.
type RequestLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *lru.Cache[string, *rate.Limiter]
	now     func() time.Time
}

// NewRequestLimiter devuelve nil si PerMinute <= 0 (sin límite); Allow sobre nil deja pasar.
func NewRequestLimiter(cfg RequestConfig) (*RequestLimiter, error) {
	if cfg.PerMinute <= 0 {
		return nil, nil
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}

	buckets, err := lru.New[string, *rate.Limiter](cfg.MaxKeys)
	if err != nil {
		return nil, err
	}
	return &RequestLimiter{
		limit:   rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:   cfg.Burst,
		buckets: buckets,
		now:     time.Now,
	}, nil
}

func (l *RequestLimiter) Allow(viewerID string) bool {
	if l == nil {
		return true
	}
	if viewerID == "" {
		viewerID = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(viewerID)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(viewerID, b)
	}
	return b.AllowN(l.now(), 1)
}
