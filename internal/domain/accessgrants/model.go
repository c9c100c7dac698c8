package accessgrants

import (
	"strings"
	"time"
)

// Duration es el vocabulario cerrado de duraciones que un viewer puede pedir
// (o que un owner puede otorgar directamente).
type Duration string

const (
	Duration5m     Duration = "5m"
	Duration1h     Duration = "1h"
	DurationAlways Duration = "always"
)

// ParseDuration valida estrictamente el valor recibido.
func ParseDuration(raw string) (Duration, error) {
	switch d := Duration(strings.TrimSpace(raw)); d {
	case Duration5m, Duration1h, DurationAlways:
		return d, nil
	default:
		return "", ErrInvalidInput
	}
}

// Seconds devuelve la duración en segundos; 0 para "always".
func (d Duration) Seconds() int64 {
	switch d {
	case Duration5m:
		return 300
	case Duration1h:
		return 3600
	default:
		return 0
	}
}

// ExpiresAt calcula el vencimiento a partir de "from". nil = permanente.
func (d Duration) ExpiresAt(from time.Time) *time.Time {
	secs := d.Seconds()
	if secs == 0 {
		return nil
	}
	t := from.Add(time.Duration(secs) * time.Second)
	return &t
}

type Scope string

const (
	ScopePhotos Scope = "photos"
	ScopeVideos Scope = "videos"
	ScopeAll    Scope = "all"
)

// ParseScope acepta vacío como "all" (default útil para requests).
func ParseScope(raw string) (Scope, error) {
	s := Scope(strings.TrimSpace(raw))
	switch s {
	case "":
		return ScopeAll, nil
	case ScopePhotos, ScopeVideos, ScopeAll:
		return s, nil
	default:
		return "", ErrInvalidInput
	}
}

// Covers indica si el scope incluye items de ese kind ("photo" | "video").
func (s Scope) Covers(kind string) bool {
	switch s {
	case ScopeAll:
		return true
	case ScopePhotos:
		return kind == "photo"
	case ScopeVideos:
		return kind == "video"
	default:
		return false
	}
}

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestDenied || s == RequestCancelled
}

// Request es una solicitud de acceso de un viewer a la media privada de un owner.
type Request struct {
	ID string

	RequesterID string // viewer
	OwnerID     string

	Duration Duration
	Scope    Scope
	Message  string
	Status   RequestStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	DecidedAt *time.Time
}

// Grant es el acceso efectivo. No tiene status persistido: activo/expirado/revocado
// se deriva siempre en lectura.
type Grant struct {
	ID string

	ViewerID string // quien ve
	OwnerID  string // quien comparte

	Scope     Scope
	ExpiresAt *time.Time // nil = permanente

	RequestID string // vacío si el owner otorgó directamente

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

type GrantStatus string

const (
	GrantActive  GrantStatus = "active"
	GrantExpired GrantStatus = "expired"
	GrantRevoked GrantStatus = "revoked"
)

// IsActive: revoked_at IS NULL AND (expires_at IS NULL OR expires_at > now).
func (g Grant) IsActive(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

func (g Grant) Status(now time.Time) GrantStatus {
	switch {
	case g.RevokedAt != nil:
		return GrantRevoked
	case g.IsActive(now):
		return GrantActive
	default:
		return GrantExpired
	}
}

// Remaining devuelve el tiempo restante (0 si ya venció). ok=false para permanentes.
func (g Grant) Remaining(now time.Time) (time.Duration, bool) {
	if g.ExpiresAt == nil {
		return 0, false
	}
	d := g.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
