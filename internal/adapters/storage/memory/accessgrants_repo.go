package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"media-access/internal/domain/accessgrants"
)

// grantRepo guarda requests y grants bajo el mismo lock: así ApproveRequest
// es atómico igual que en postgres.
type grantRepo struct {
	mu       sync.RWMutex
	requests map[string]accessgrants.Request
	grants   map[string]accessgrants.Grant
}

func NewAccessGrantsRepo() accessgrants.Repository {
	return &grantRepo{
		requests: make(map[string]accessgrants.Request),
		grants:   make(map[string]accessgrants.Grant),
	}
}

func (r *grantRepo) CreateRequest(ctx context.Context, req accessgrants.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(req.ID) == "" {
		return errors.New("request id required")
	}
	if _, exists := r.requests[req.ID]; exists {
		return errors.New("request already exists")
	}
	if req.Status == accessgrants.RequestPending {
		if _, ok := r.latestPendingLocked(req.RequesterID, req.OwnerID); ok {
			return accessgrants.ErrConflict
		}
	}
	r.requests[req.ID] = req
	return nil
}

func (r *grantRepo) GetRequest(ctx context.Context, id string) (accessgrants.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return accessgrants.Request{}, accessgrants.ErrNotFound
	}
	return req, nil
}

func (r *grantRepo) LatestPendingRequest(ctx context.Context, requesterID, ownerID string) (accessgrants.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.latestPendingLocked(requesterID, ownerID)
	if !ok {
		return accessgrants.Request{}, accessgrants.ErrNotFound
	}
	return req, nil
}

func (r *grantRepo) latestPendingLocked(requesterID, ownerID string) (accessgrants.Request, bool) {
	var winner accessgrants.Request
	has := false
	for _, req := range r.requests {
		if req.RequesterID != requesterID || req.OwnerID != ownerID || req.Status != accessgrants.RequestPending {
			continue
		}
		if !has || req.CreatedAt.After(winner.CreatedAt) {
			winner = req
			has = true
		}
	}
	return winner, has
}

func (r *grantRepo) ListRequestsByOwner(ctx context.Context, ownerID string, status accessgrants.RequestStatus) ([]accessgrants.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Request, 0)
	for _, req := range r.requests {
		if req.OwnerID == ownerID && (status == "" || req.Status == status) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *grantRepo) ListRequestsByRequester(ctx context.Context, requesterID string) ([]accessgrants.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Request, 0)
	for _, req := range r.requests {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *grantRepo) ApproveRequest(ctx context.Context, requestID, newGrantID string, now time.Time) (accessgrants.ApprovalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return accessgrants.ApprovalResult{}, accessgrants.ErrNotFound
	}

	var active, linked *accessgrants.Grant
	if g, ok := r.activeGrantLocked(req.RequesterID, req.OwnerID, now); ok {
		active = &g
	}
	for _, g := range r.grants {
		if g.RequestID == requestID {
			g := g
			linked = &g
			break
		}
	}

	res, err := accessgrants.PlanApproval(req, active, linked, newGrantID, now)
	if err != nil || res.AlreadyApproved {
		return res, err
	}

	r.requests[requestID] = res.Request
	r.grants[res.Grant.ID] = res.Grant
	return res, nil
}

func (r *grantRepo) DecideRequest(ctx context.Context, requestID string, to accessgrants.RequestStatus, now time.Time) (accessgrants.Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return accessgrants.Request{}, false, accessgrants.ErrNotFound
	}
	next, changed, err := accessgrants.PlanDecision(req, to, now)
	if err != nil || !changed {
		return next, false, err
	}
	r.requests[requestID] = next
	return next, true, nil
}

func (r *grantRepo) CreateGrant(ctx context.Context, g accessgrants.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(g.ID) == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.grants[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.grants[g.ID] = g
	return nil
}

func (r *grantRepo) GrantOrExtend(ctx context.Context, proposed accessgrants.Grant, now time.Time) (accessgrants.Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active *accessgrants.Grant
	if g, ok := r.activeGrantLocked(proposed.ViewerID, proposed.OwnerID, now); ok {
		active = &g
	}
	g, created := accessgrants.MergeGrant(active, proposed, now)
	if created {
		if _, exists := r.grants[g.ID]; exists {
			return accessgrants.Grant{}, false, accessgrants.ErrConflict
		}
	}
	r.grants[g.ID] = g
	return g, created, nil
}

func (r *grantRepo) RevokeGrant(ctx context.Context, grantID string, now time.Time) (accessgrants.Grant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.grants[grantID]
	if !ok {
		return accessgrants.Grant{}, false, accessgrants.ErrNotFound
	}
	g, changed := accessgrants.PlanRevoke(g, now)
	if changed {
		r.grants[grantID] = g
	}
	return g, changed, nil
}

func (r *grantRepo) GetGrant(ctx context.Context, id string) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[id]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

// Si por data sucia hubiera varios activos, gana el más reciente por UpdatedAt
// (y en empate, por CreatedAt).
func (r *grantRepo) GetActiveGrant(ctx context.Context, viewerID, ownerID string, now time.Time) (accessgrants.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.activeGrantLocked(viewerID, ownerID, now)
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) activeGrantLocked(viewerID, ownerID string, now time.Time) (accessgrants.Grant, bool) {
	var winner accessgrants.Grant
	has := false
	for _, g := range r.grants {
		if g.ViewerID != viewerID || g.OwnerID != ownerID || !g.IsActive(now) {
			continue
		}
		switch {
		case !has:
			winner, has = g, true
		case g.UpdatedAt.After(winner.UpdatedAt):
			winner = g
		case g.UpdatedAt.Equal(winner.UpdatedAt) && g.CreatedAt.After(winner.CreatedAt):
			winner = g
		}
	}
	return winner, has
}

func (r *grantRepo) ListGrantsByOwner(ctx context.Context, ownerID string) ([]accessgrants.Grant, error) {
	return r.filterGrants(func(g accessgrants.Grant) bool { return g.OwnerID == ownerID }), nil
}

func (r *grantRepo) ListGrantsByViewer(ctx context.Context, viewerID string) ([]accessgrants.Grant, error) {
	return r.filterGrants(func(g accessgrants.Grant) bool { return g.ViewerID == viewerID }), nil
}

func (r *grantRepo) ListGrantsExpiredBetween(ctx context.Context, from, to time.Time) ([]accessgrants.Grant, error) {
	return r.filterGrants(func(g accessgrants.Grant) bool {
		return g.RevokedAt == nil && g.ExpiresAt != nil && g.ExpiresAt.After(from) && !g.ExpiresAt.After(to)
	}), nil
}

func (r *grantRepo) filterGrants(keep func(accessgrants.Grant) bool) []accessgrants.Grant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}
