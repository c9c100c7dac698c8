package shares

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/media"
	"media-access/internal/ports/notify"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("share not found")
	ErrRateLimited  = errors.New("rate limited")
)

const (
	MaxMessageLength = 500

	DefaultPortfolioLimit = 5
	PortfolioWindow       = 24 * time.Hour
)

// MediaLookup resuelve los items elegidos (owner y kind salen del catálogo, no del request).
type MediaLookup interface {
	Lookup(ctx context.Context, ids []string) ([]media.Item, error)
}

// WindowLimiter cuenta eventos por key en una ventana fija. Release devuelve un hit
// que Allow consumió para una escritura que después falló.
type WindowLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Observer interface {
	ShareCreated(kind Kind)
	ShareRevoked()
	RateLimited(kind string)
}

type Options struct {
	Notifier       notify.Notifier
	Limiter        WindowLimiter
	PortfolioLimit int
	Observer       Observer
}

type Service struct {
	repo           Repository
	media          MediaLookup
	notifier       notify.Notifier
	limiter        WindowLimiter
	portfolioLimit int
	observer       Observer
	now            func() time.Time
}

func NewService(repo Repository, lookup MediaLookup, opts Options) *Service {
	s := &Service{
		repo:           repo,
		media:          lookup,
		notifier:       opts.Notifier,
		limiter:        opts.Limiter,
		portfolioLimit: opts.PortfolioLimit,
		observer:       opts.Observer,
		now:            time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.portfolioLimit <= 0 {
		s.portfolioLimit = DefaultPortfolioLimit
	}
	return s
}

type CreateInput struct {
	SenderID string
	TargetID string
	Kind     Kind
	Scope    accessgrants.Scope
	Duration accessgrants.Duration
	MediaIDs []string
	Message  string
}

// Create valida todo contra el catálogo (los topes del cliente no son una barrera)
// y guarda share + items juntos.
func (s *Service) Create(ctx context.Context, in CreateInput) (Share, error) {
	senderID := strings.TrimSpace(in.SenderID)
	targetID := strings.TrimSpace(in.TargetID)
	if senderID == "" || targetID == "" || senderID == targetID {
		return Share{}, ErrInvalidInput
	}
	kind, err := ParseKind(string(in.Kind))
	if err != nil {
		return Share{}, err
	}
	d, err := accessgrants.ParseDuration(string(in.Duration))
	if err != nil {
		return Share{}, ErrInvalidInput
	}
	scope, err := accessgrants.ParseScope(string(in.Scope))
	if err != nil {
		return Share{}, ErrInvalidInput
	}
	msg := strings.TrimSpace(in.Message)
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return Share{}, ErrInvalidInput
	}
	// Primero ids (vacío / duplicados) sin tocar el store.
	if err := CheckCaps(in.MediaIDs, nil); err != nil {
		return Share{}, err
	}

	items, err := s.media.Lookup(ctx, in.MediaIDs)
	if errors.Is(err, media.ErrNotFound) {
		return Share{}, fmt.Errorf("%w: unknown media id", ErrInvalidInput)
	}
	if err != nil {
		return Share{}, err
	}

	kinds := make([]string, 0, len(items))
	for _, m := range items {
		if m.OwnerID != senderID {
			return Share{}, ErrForbidden
		}
		if !scope.Covers(string(m.Kind)) {
			return Share{}, fmt.Errorf("%w: %s not covered by scope %s", ErrInvalidInput, m.Kind, scope)
		}
		kinds = append(kinds, string(m.Kind))
	}
	if err := CheckCaps(in.MediaIDs, kinds); err != nil {
		return Share{}, err
	}

	limited := kind == KindPortfolio && s.limiter != nil
	if limited {
		ok, err := s.limiter.Allow(ctx, portfolioKey(senderID, targetID), s.portfolioLimit, PortfolioWindow)
		if err != nil {
			return Share{}, err
		}
		if !ok {
			s.observer.RateLimited("portfolio_share")
			return Share{}, ErrRateLimited
		}
	}

	now := s.now()
	sh := Share{
		ID:        uuid.NewString(),
		Kind:      kind,
		SenderID:  senderID,
		TargetID:  targetID,
		Scope:     scope,
		Duration:  d,
		ExpiresAt: d.ExpiresAt(now),
		Message:   msg,
		CreatedAt: now,
	}
	sh.Items = make([]Item, 0, len(items))
	for i, m := range items {
		sh.Items = append(sh.Items, Item{ShareID: sh.ID, MediaID: m.ID, Kind: string(m.Kind), Position: i})
	}

	if err := s.repo.CreateShare(ctx, sh); err != nil {
		// Sin share no hay envío que contar. Si el release también falla, el hit
		// queda hasta que cierre la ventana.
		if limited {
			_ = s.limiter.Release(ctx, portfolioKey(senderID, targetID))
		}
		return Share{}, err
	}

	s.observer.ShareCreated(kind)
	s.publish(ctx, notify.TypeInsert, sh, now)
	return sh, nil
}

// Get: el sender ve su historial completo; el target solo mientras el share está activo.
func (s *Service) Get(ctx context.Context, shareID, userID string) (Share, error) {
	sh, err := s.repo.GetShare(ctx, strings.TrimSpace(shareID))
	if err != nil {
		return Share{}, err
	}
	switch userID {
	case sh.SenderID:
		return sh, nil
	case sh.TargetID:
		if !sh.IsActive(s.now()) {
			return Share{}, ErrNotFound
		}
		return sh, nil
	default:
		return Share{}, ErrForbidden
	}
}

// SharedMedia dice si viewerID recibió mediaID en algún share activo. Es lo que
// habilita al target a abrir los items (media.ShareAccess).
func (s *Service) SharedMedia(ctx context.Context, viewerID, mediaID string) (bool, error) {
	viewerID = strings.TrimSpace(viewerID)
	mediaID = strings.TrimSpace(mediaID)
	if viewerID == "" || mediaID == "" {
		return false, nil
	}
	received, err := s.repo.ListSharesByTarget(ctx, viewerID)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, sh := range received {
		if !sh.IsActive(now) {
			continue
		}
		for _, it := range sh.Items {
			if it.MediaID == mediaID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Revoke lo hace el sender. Idempotente.
func (s *Service) Revoke(ctx context.Context, shareID, senderID string) (Share, error) {
	sh, err := s.repo.GetShare(ctx, strings.TrimSpace(shareID))
	if err != nil {
		return Share{}, err
	}
	if sh.SenderID != strings.TrimSpace(senderID) {
		return Share{}, ErrForbidden
	}
	if sh.RevokedAt != nil {
		return sh, nil
	}

	now := s.now()
	sh.RevokedAt = &now
	if err := s.repo.UpdateShare(ctx, sh); err != nil {
		return Share{}, err
	}

	s.observer.ShareRevoked()
	s.publish(ctx, notify.TypeUpdate, sh, now)
	return sh, nil
}

// ListReceived: shares activos para el target.
func (s *Service) ListReceived(ctx context.Context, targetID string) ([]Share, error) {
	items, err := s.repo.ListSharesByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Share, 0, len(items))
	for _, sh := range items {
		if sh.IsActive(now) {
			out = append(out, sh)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListSent: historial completo del sender (incluye vencidos y revocados).
func (s *Service) ListSent(ctx context.Context, senderID string) ([]Share, error) {
	items, err := s.repo.ListSharesBySender(ctx, senderID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

func (s *Service) ExpiredBetween(ctx context.Context, from, to time.Time) ([]Share, error) {
	if !to.After(from) {
		return nil, nil
	}
	return s.repo.ListSharesExpiredBetween(ctx, from, to)
}

func (s *Service) publish(ctx context.Context, typ string, sh Share, at time.Time) {
	s.notifier.Notify(ctx, notify.Event{
		Topic:    notify.TopicShares,
		Type:     typ,
		OwnerID:  sh.SenderID,
		ViewerID: sh.TargetID,
		RecordID: sh.ID,
		At:       at,
	})
}

func portfolioKey(senderID, targetID string) string {
	return "portfolio:" + senderID + ":" + targetID
}

func sortNewestFirst(items []Share) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

type nopObserver struct{}

func (nopObserver) ShareCreated(Kind)  {}
func (nopObserver) ShareRevoked()      {}
func (nopObserver) RateLimited(string) {}
