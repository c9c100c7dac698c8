package media

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/gallery"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("media not found")
	ErrForbidden    = errors.New("forbidden")
)

const MaxCaptionLength = 280

// AccessResolver es el resolver de accessgrants visto desde media.
type AccessResolver interface {
	Resolve(ctx context.Context, viewerID, ownerID string) (accessgrants.AccessState, error)
}

// ShareAccess responde si un share activo le entregó el item al viewer.
type ShareAccess interface {
	SharedMedia(ctx context.Context, viewerID, mediaID string) (bool, error)
}

type Service struct {
	repo   Repository
	access AccessResolver
	shares ShareAccess
	now    func() time.Time
}

func NewService(repo Repository, access AccessResolver) *Service {
	return &Service{
		repo:   repo,
		access: access,
		now:    time.Now,
	}
}

// UseShares conecta los shares directos después de construir el service (shares
// depende de media para el lookup, así que no puede entrar por NewService).
func (s *Service) UseShares(sa ShareAccess) { s.shares = sa }

type RegisterInput struct {
	Kind    string
	URL     string
	Caption string
	Private bool
}

func (s *Service) Register(ctx context.Context, ownerID string, in RegisterInput) (Item, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Item{}, ErrInvalidInput
	}
	kind, err := ParseKind(strings.TrimSpace(in.Kind))
	if err != nil {
		return Item{}, err
	}
	rawURL := strings.TrimSpace(in.URL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Item{}, ErrInvalidInput
	}
	caption := strings.TrimSpace(in.Caption)
	if len([]rune(caption)) > MaxCaptionLength {
		return Item{}, ErrInvalidInput
	}

	m := Item{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		URL:       rawURL,
		Caption:   caption,
		Private:   in.Private,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateMedia(ctx, m); err != nil {
		return Item{}, err
	}
	return m, nil
}

// ListByOwner: la vista del propio owner (todo, público y privado).
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Item, error) {
	items, err := s.repo.ListMediaByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

// Get aplica el mismo gate que la galería a un item suelto. Si el grant no alcanza,
// un share activo que contenga el item también lo habilita.
func (s *Service) Get(ctx context.Context, viewerID, mediaID string) (Item, error) {
	m, err := s.repo.GetMedia(ctx, strings.TrimSpace(mediaID))
	if err != nil {
		return Item{}, err
	}
	if !m.Private || m.OwnerID == viewerID {
		return m, nil
	}

	state, err := s.access.Resolve(ctx, viewerID, m.OwnerID)
	if err != nil {
		return Item{}, err
	}
	if gallery.Gate(viewerID, m.OwnerID, state).Shows(string(m.Kind)) {
		return m, nil
	}

	if s.shares != nil {
		shared, err := s.shares.SharedMedia(ctx, viewerID, m.ID)
		if err != nil {
			return Item{}, err
		}
		if shared {
			return m, nil
		}
	}
	return Item{}, ErrForbidden
}

type GalleryResult struct {
	View  gallery.View
	Items []Item
}

// Gallery devuelve los items públicos del owner siempre, y los privados solo si
// el gate los habilita para ese viewer.
func (s *Service) Gallery(ctx context.Context, viewerID, ownerID string) (GalleryResult, error) {
	viewerID = strings.TrimSpace(viewerID)
	ownerID = strings.TrimSpace(ownerID)
	if viewerID == "" || ownerID == "" {
		return GalleryResult{}, ErrInvalidInput
	}

	state := accessgrants.NoAccess()
	if viewerID != ownerID {
		var err error
		state, err = s.access.Resolve(ctx, viewerID, ownerID)
		if err != nil {
			return GalleryResult{}, err
		}
	}
	view := gallery.Gate(viewerID, ownerID, state)

	all, err := s.repo.ListMediaByOwner(ctx, ownerID)
	if err != nil {
		return GalleryResult{}, err
	}
	items := make([]Item, 0, len(all))
	for _, m := range all {
		if !m.Private || view.Shows(string(m.Kind)) {
			items = append(items, m)
		}
	}
	sortNewestFirst(items)
	return GalleryResult{View: view, Items: items}, nil
}

func sortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}
