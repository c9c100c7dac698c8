// Package client es el SDK del servicio: operaciones sobre requests, grants y
// shares, el resolver de estado (fail closed), el inbox con refresh por realtime
// y la suscripción websocket.
//
// Las mutaciones nunca se reintentan ni actualizan estado local: quien llama
// vuelve a resolver. Las lecturas reintentan fallas transitorias con backoff.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-access/internal/platform/httpclient"
	"media-access/internal/platform/logger"

	backoff "github.com/cenkalti/backoff/v4"
)

type Config struct {
	BaseURL string

	// Token va como Bearer. Sin token, DebugUserID va como X-Debug-User-ID
	// (servidor en modo dev).
	Token       string
	DebugUserID string

	Timeout time.Duration
	Logger  logger.Logger

	// Backoff para lecturas; default exponencial 100ms, máximo 3s en total.
	Backoff func() backoff.BackOff
}

type Client struct {
	http       *httpclient.Client
	baseURL    *url.URL
	headers    map[string]string
	log        logger.Logger
	newBackoff func() backoff.BackOff
}

func New(cfg Config) (*Client, error) {
	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if hc.BaseURL == "" {
		return nil, errors.New("client: base url required")
	}
	base, err := url.Parse(hc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	headers := map[string]string{}
	switch {
	case strings.TrimSpace(cfg.Token) != "":
		headers["Authorization"] = "Bearer " + strings.TrimSpace(cfg.Token)
	case strings.TrimSpace(cfg.DebugUserID) != "":
		headers["X-Debug-User-ID"] = strings.TrimSpace(cfg.DebugUserID)
	}
	hc.DefaultHeaders = headers

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	newBackoff := cfg.Backoff
	if newBackoff == nil {
		newBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 3 * time.Second
			return b
		}
	}

	return &Client{
		http:       hc,
		baseURL:    base,
		headers:    headers,
		log:        log,
		newBackoff: newBackoff,
	}, nil
}

// read hace un GET reintentando solo ErrTransient.
func (c *Client) read(ctx context.Context, op, path string, out any) error {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := classify(op, c.http.DoJSON(ctx, http.MethodGet, path, nil, nil, out))
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.log.Debug("client: transient read failure, retrying", map[string]any{"op": op, "attempt": attempt, "err": err.Error()})
		return err
	}, backoff.WithContext(c.newBackoff(), ctx))
	return unwrapPermanent(err)
}

// write hace una mutación; nunca se reintenta.
func (c *Client) write(ctx context.Context, op, method, path string, in, out any) error {
	return classify(op, c.http.DoJSON(ctx, method, path, nil, in, out))
}

// Si el ctx corta entre intentos backoff devuelve ctx.Err() crudo.
func unwrapPermanent(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return classify("read", err)
}

func escape(id string) string { return url.PathEscape(id) }
