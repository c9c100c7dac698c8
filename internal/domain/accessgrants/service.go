package accessgrants

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"media-access/internal/ports/notify"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

const MaxMessageLength = 500

// RequestLimiter limita cuántos requests puede crear un viewer (token bucket por viewer).
type RequestLimiter interface {
	Allow(viewerID string) bool
}

// Observer recibe las transiciones (métricas). Todos los métodos deben ser baratos.
type Observer interface {
	RequestCreated(d Duration)
	RequestTransition(to RequestStatus)
	GrantCreated(source string)
	GrantRevoked()
	RateLimited(kind string)
	Resolved(kind StateKind)
}

type Options struct {
	Notifier notify.Notifier
	Limiter  RequestLimiter
	Observer Observer
}

type Service struct {
	repo     Repository
	notifier notify.Notifier
	limiter  RequestLimiter
	observer Observer
	now      func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:     repo,
		notifier: opts.Notifier,
		limiter:  opts.Limiter,
		observer: opts.Observer,
		now:      time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

type CreateRequestInput struct {
	RequesterID string
	OwnerID     string
	Duration    Duration
	Scope       Scope
	Message     string
}

// CreateRequest crea un pending. Falla con ErrConflict si el viewer ya tiene acceso
// o ya tiene un pending para ese owner.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (Request, error) {
	requesterID := strings.TrimSpace(in.RequesterID)
	ownerID := strings.TrimSpace(in.OwnerID)
	if requesterID == "" || ownerID == "" || requesterID == ownerID {
		return Request{}, ErrInvalidInput
	}

	d, err := ParseDuration(string(in.Duration))
	if err != nil {
		return Request{}, err
	}
	scope, err := ParseScope(string(in.Scope))
	if err != nil {
		return Request{}, err
	}
	msg := strings.TrimSpace(in.Message)
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return Request{}, ErrInvalidInput
	}

	if s.limiter != nil && !s.limiter.Allow(requesterID) {
		s.observer.RateLimited("access_request")
		return Request{}, ErrRateLimited
	}

	now := s.now()

	// El chequeo previo es orientativo; la unicidad real del pending la garantiza el store.
	if _, err := s.repo.GetActiveGrant(ctx, requesterID, ownerID, now); err == nil {
		return Request{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}
	if _, err := s.repo.LatestPendingRequest(ctx, requesterID, ownerID); err == nil {
		return Request{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}

	r := Request{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		OwnerID:     ownerID,
		Duration:    d,
		Scope:       scope,
		Message:     msg,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateRequest(ctx, r); err != nil {
		return Request{}, err
	}

	s.observer.RequestCreated(d)
	s.publish(ctx, notify.TopicAccessRequests, notify.TypeInsert, ownerID, requesterID, r.ID, now)
	return r, nil
}

// ApproveRequest convierte el pending en grant en una sola operación del store.
// Aprobar dos veces devuelve el mismo grant.
func (s *Service) ApproveRequest(ctx context.Context, requestID, ownerID string) (Request, Grant, error) {
	requestID = strings.TrimSpace(requestID)
	ownerID = strings.TrimSpace(ownerID)
	if requestID == "" || ownerID == "" {
		return Request{}, Grant{}, ErrInvalidInput
	}

	r, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, Grant{}, err
	}
	if r.OwnerID != ownerID {
		return Request{}, Grant{}, ErrForbidden
	}

	now := s.now()
	res, err := s.repo.ApproveRequest(ctx, requestID, uuid.NewString(), now)
	if err != nil {
		return Request{}, Grant{}, err
	}
	if res.AlreadyApproved {
		return res.Request, res.Grant, nil
	}

	s.observer.RequestTransition(RequestApproved)
	grantType := notify.TypeUpdate
	if res.GrantCreated {
		s.observer.GrantCreated("request")
		grantType = notify.TypeInsert
	}
	s.publish(ctx, notify.TopicAccessRequests, notify.TypeUpdate, r.OwnerID, r.RequesterID, r.ID, now)
	s.publish(ctx, notify.TopicAccessGrants, grantType, r.OwnerID, r.RequesterID, res.Grant.ID, now)
	return res.Request, res.Grant, nil
}

func (s *Service) DenyRequest(ctx context.Context, requestID, ownerID string) (Request, error) {
	return s.decide(ctx, requestID, ownerID, RequestDenied, func(r Request, actor string) bool {
		return r.OwnerID == actor
	})
}

// CancelRequest lo hace el propio viewer y solo mientras está pending.
func (s *Service) CancelRequest(ctx context.Context, requestID, requesterID string) (Request, error) {
	return s.decide(ctx, requestID, requesterID, RequestCancelled, func(r Request, actor string) bool {
		return r.RequesterID == actor
	})
}

func (s *Service) decide(ctx context.Context, requestID, actorID string, to RequestStatus, allowed func(Request, string) bool) (Request, error) {
	requestID = strings.TrimSpace(requestID)
	actorID = strings.TrimSpace(actorID)
	if requestID == "" || actorID == "" {
		return Request{}, ErrInvalidInput
	}

	r, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !allowed(r, actorID) {
		return Request{}, ErrForbidden
	}

	now := s.now()
	r, changed, err := s.repo.DecideRequest(ctx, requestID, to, now)
	if err != nil {
		return Request{}, err
	}
	// Idempotente
	if !changed {
		return r, nil
	}

	s.observer.RequestTransition(to)
	s.publish(ctx, notify.TopicAccessRequests, notify.TypeUpdate, r.OwnerID, r.RequesterID, r.ID, now)
	return r, nil
}

type GrantInput struct {
	OwnerID  string
	ViewerID string
	Scope    Scope
	Duration Duration
}

// GrantAccess: el owner da acceso sin request previo. Si el par ya tiene un grant activo, se extiende.
func (s *Service) GrantAccess(ctx context.Context, in GrantInput) (Grant, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	viewerID := strings.TrimSpace(in.ViewerID)
	if ownerID == "" || viewerID == "" || ownerID == viewerID {
		return Grant{}, ErrInvalidInput
	}
	d, err := ParseDuration(string(in.Duration))
	if err != nil {
		return Grant{}, err
	}
	scope, err := ParseScope(string(in.Scope))
	if err != nil {
		return Grant{}, err
	}

	now := s.now()
	proposed := Grant{
		ID:        uuid.NewString(),
		ViewerID:  viewerID,
		OwnerID:   ownerID,
		Scope:     scope,
		ExpiresAt: d.ExpiresAt(now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	g, created, err := s.repo.GrantOrExtend(ctx, proposed, now)
	if err != nil {
		return Grant{}, err
	}

	typ := notify.TypeUpdate
	if created {
		s.observer.GrantCreated("direct")
		typ = notify.TypeInsert
	}
	s.publish(ctx, notify.TopicAccessGrants, typ, ownerID, viewerID, g.ID, now)
	return g, nil
}

// RevokeGrant funciona también sobre grants permanentes (expires_at = nil).
func (s *Service) RevokeGrant(ctx context.Context, grantID, ownerID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerID = strings.TrimSpace(ownerID)
	if grantID == "" || ownerID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetGrant(ctx, grantID)
	if err != nil {
		return Grant{}, err
	}
	if g.OwnerID != ownerID {
		return Grant{}, ErrForbidden
	}

	now := s.now()
	g, changed, err := s.repo.RevokeGrant(ctx, grantID, now)
	if err != nil {
		return Grant{}, err
	}
	// Idempotente
	if !changed {
		return g, nil
	}

	s.observer.GrantRevoked()
	s.publish(ctx, notify.TopicAccessGrants, notify.TypeUpdate, g.OwnerID, g.ViewerID, g.ID, now)
	return g, nil
}

// Resolve: grant activo primero, después el pending más reciente, si no NoAccess.
// Un grant activo siempre le gana a un pending viejo.
func (s *Service) Resolve(ctx context.Context, viewerID, ownerID string) (AccessState, error) {
	viewerID = strings.TrimSpace(viewerID)
	ownerID = strings.TrimSpace(ownerID)
	if viewerID == "" || ownerID == "" || viewerID == ownerID {
		return AccessState{}, ErrInvalidInput
	}

	now := s.now()

	g, err := s.repo.GetActiveGrant(ctx, viewerID, ownerID, now)
	if err == nil && g.IsActive(now) {
		s.observer.Resolved(StateActive)
		return Active(g), nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return AccessState{}, err
	}

	r, err := s.repo.LatestPendingRequest(ctx, viewerID, ownerID)
	if err == nil {
		s.observer.Resolved(StatePending)
		return Pending(r), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return AccessState{}, err
	}

	s.observer.Resolved(StateNone)
	return NoAccess(), nil
}

// ListActiveGrants: vista del owner, "quién tiene acceso ahora".
func (s *Service) ListActiveGrants(ctx context.Context, ownerID string) ([]Grant, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListGrantsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.activeOnly(items), nil
}

// ListReceivedGrants: vista del viewer, a quién puede ver ahora.
func (s *Service) ListReceivedGrants(ctx context.Context, viewerID string) ([]Grant, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListGrantsByViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.activeOnly(items), nil
}

// ListRequests: inbox del owner. status vacío = todos.
func (s *Service) ListRequests(ctx context.Context, ownerID string, status RequestStatus) ([]Request, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	switch status {
	case "", RequestPending, RequestApproved, RequestDenied, RequestCancelled:
	default:
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListRequestsByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}
	sortRequestsNewestFirst(items)
	return items, nil
}

func (s *Service) ListOutgoingRequests(ctx context.Context, requesterID string) ([]Request, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListRequestsByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	sortRequestsNewestFirst(items)
	return items, nil
}

// ExpiredBetween lo usa el sweeper para avisar vencimientos; no escribe nada.
func (s *Service) ExpiredBetween(ctx context.Context, from, to time.Time) ([]Grant, error) {
	if !to.After(from) {
		return nil, nil
	}
	return s.repo.ListGrantsExpiredBetween(ctx, from, to)
}

func (s *Service) activeOnly(items []Grant) []Grant {
	now := s.now()
	out := make([]Grant, 0, len(items))
	for _, g := range items {
		if g.IsActive(now) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *Service) publish(ctx context.Context, topic, typ, ownerID, viewerID, recordID string, at time.Time) {
	s.notifier.Notify(ctx, notify.Event{
		Topic:    topic,
		Type:     typ,
		OwnerID:  ownerID,
		ViewerID: viewerID,
		RecordID: recordID,
		At:       at,
	})
}

func sortRequestsNewestFirst(items []Request) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

type nopObserver struct{}

func (nopObserver) RequestCreated(Duration)          {}
func (nopObserver) RequestTransition(RequestStatus) {}
func (nopObserver) GrantCreated(string)             {}
func (nopObserver) GrantRevoked()                   {}
func (nopObserver) RateLimited(string)              {}
func (nopObserver) Resolved(StateKind)              {}
