package shares

import (
	"fmt"
	"time"

	"media-access/internal/domain/accessgrants"
)

type Kind string

const (
	KindPrivateAlbum Kind = "private_album"
	KindPortfolio    Kind = "portfolio"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case "":
		return KindPrivateAlbum, nil
	case KindPrivateAlbum, KindPortfolio:
		return k, nil
	default:
		return "", ErrInvalidInput
	}
}

// Topes por share.
const (
	MaxPhotos = 12
	MaxVideos = 3
)

var (
	ErrTooManyPhotos = fmt.Errorf("%w: at most %d photos per share", ErrInvalidInput, MaxPhotos)
	ErrTooManyVideos = fmt.Errorf("%w: at most %d videos per share", ErrInvalidInput, MaxVideos)
	ErrEmptyShare    = fmt.Errorf("%w: a share needs at least one item", ErrInvalidInput)
	ErrDuplicateItem = fmt.Errorf("%w: duplicate media id", ErrInvalidInput)
	ErrTooManyItems  = fmt.Errorf("%w: at most %d items per share", ErrInvalidInput, MaxPhotos+MaxVideos)
)

// CheckCaps valida la selección (ids + kinds en paralelo). La usan el cliente antes
// de llamar a la red y el service antes de escribir.
func CheckCaps(mediaIDs []string, kinds []string) error {
	if len(mediaIDs) == 0 {
		return ErrEmptyShare
	}
	if len(mediaIDs) > MaxPhotos+MaxVideos {
		return ErrTooManyItems
	}
	seen := make(map[string]struct{}, len(mediaIDs))
	for _, id := range mediaIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicateItem
		}
		seen[id] = struct{}{}
	}

	photos, videos := 0, 0
	for _, k := range kinds {
		switch k {
		case "photo":
			photos++
		case "video":
			videos++
		default:
			return ErrInvalidInput
		}
	}
	if photos > MaxPhotos {
		return ErrTooManyPhotos
	}
	if videos > MaxVideos {
		return ErrTooManyVideos
	}
	return nil
}

// Share es un envío directo sender -> target, sin request previo.
type Share struct {
	ID   string
	Kind Kind

	SenderID string
	TargetID string

	Scope     accessgrants.Scope
	Duration  accessgrants.Duration
	ExpiresAt *time.Time // nil = permanente
	Message   string

	CreatedAt time.Time
	RevokedAt *time.Time

	Items []Item
}

type Item struct {
	ShareID  string
	MediaID  string
	Kind     string // photo | video
	Position int
}

// IsActive usa el mismo predicado que los grants.
func (s Share) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

func (s Share) Status(now time.Time) accessgrants.GrantStatus {
	switch {
	case s.RevokedAt != nil:
		return accessgrants.GrantRevoked
	case s.IsActive(now):
		return accessgrants.GrantActive
	default:
		return accessgrants.GrantExpired
	}
}
