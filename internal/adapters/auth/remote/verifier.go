// Package remote verifica tokens contra un servicio de identidad externo.
// Se activa con AUTH_VERIFY_URL; sin eso el servidor corre en modo dev.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"media-access/internal/platform/httpclient"
	"media-access/internal/ports/auth"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrNotConfigured = errors.New("auth verifier not configured")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUpstream      = errors.New("auth upstream error")
	ErrTokenEmpty    = errors.New("token is empty")
)

type Config struct {
	// VerifyURL recibe POST {"token": "..."} y responde {"user_id", "email", "tenant_id"}.
	VerifyURL string
	APIKey    string

	// APIKeyHeader default "X-Api-Key".
	APIKeyHeader string
	Timeout      time.Duration

	// CacheTTL: cuánto se reusa una verificación ok. 0 = 1m; negativo = sin cache.
	CacheTTL  time.Duration
	CacheSize int
}

// Verifier implementa auth.AuthVerifier.
type Verifier struct {
	verifyURL    string
	apiKey       string
	apiKeyHeader string
	http         *httpclient.Client

	mu    sync.Mutex
	cache *lru.Cache[string, cachedClaims]
	ttl   time.Duration
	now   func() time.Time
}

type cachedClaims struct {
	claims  auth.Claims
	expires time.Time
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.VerifyURL) == "" {
		return nil, ErrNotConfigured
	}
	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}

	v := &Verifier{
		verifyURL:    strings.TrimSpace(cfg.VerifyURL),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: header,
		http:         httpclient.New(timeout),
		ttl:          cfg.CacheTTL,
		now:          time.Now,
	}
	if cfg.CacheTTL > 0 {
		c, err := lru.New[string, cachedClaims](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		v.cache = c
	}
	return v, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	if c, ok := v.cached(token); ok {
		return c, nil
	}

	claims, err := v.verifyRemote(ctx, token)
	if err != nil {
		return auth.Claims{}, err
	}

	if v.cache != nil {
		v.mu.Lock()
		v.cache.Add(token, cachedClaims{claims: claims, expires: v.now().Add(v.ttl)})
		v.mu.Unlock()
	}
	return claims, nil
}

func (v *Verifier) cached(token string) (auth.Claims, bool) {
	if v.cache == nil {
		return auth.Claims{}, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.cache.Get(token)
	if !ok {
		return auth.Claims{}, false
	}
	if !v.now().Before(c.expires) {
		v.cache.Remove(token)
		return auth.Claims{}, false
	}
	return c.claims, true
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (auth.Claims, error) {
	headers := map[string]string{"Authorization": "Bearer " + token}
	if v.apiKey != "" {
		headers[v.apiKeyHeader] = v.apiKey
	}

	var out struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		TenantID string `json:"tenant_id"`
	}
	err := v.http.DoJSON(ctx, http.MethodPost, v.verifyURL, headers, map[string]string{"token": token}, &out)
	switch code := httpclient.StatusCode(err); {
	case err == nil:
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return auth.Claims{}, ErrUnauthorized
	default:
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}
	return auth.Claims{
		UserID:   out.UserID,
		Email:    strings.TrimSpace(out.Email),
		TenantID: strings.TrimSpace(out.TenantID),
	}, nil
}
