package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"media-access/internal/domain/shares"
)

type shareRepo struct {
	mu   sync.RWMutex
	byID map[string]shares.Share
}

func NewSharesRepo() shares.Repository {
	return &shareRepo{
		byID: make(map[string]shares.Share),
	}
}

// CreateShare guarda share + items de una: bajo el lock no hay estado intermedio visible.
func (r *shareRepo) CreateShare(ctx context.Context, s shares.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.ID) == "" {
		return errors.New("share id required")
	}
	if _, exists := r.byID[s.ID]; exists {
		return errors.New("share already exists")
	}
	r.byID[s.ID] = cloneShare(s)
	return nil
}

func (r *shareRepo) GetShare(ctx context.Context, id string) (shares.Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return shares.Share{}, shares.ErrNotFound
	}
	return cloneShare(s), nil
}

// UpdateShare solo toca revoked_at; los items son inmutables.
func (r *shareRepo) UpdateShare(ctx context.Context, s shares.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[s.ID]
	if !ok {
		return shares.ErrNotFound
	}
	current.RevokedAt = s.RevokedAt
	r.byID[s.ID] = current
	return nil
}

func (r *shareRepo) ListSharesBySender(ctx context.Context, senderID string) ([]shares.Share, error) {
	return r.filter(func(s shares.Share) bool { return s.SenderID == senderID }), nil
}

func (r *shareRepo) ListSharesByTarget(ctx context.Context, targetID string) ([]shares.Share, error) {
	return r.filter(func(s shares.Share) bool { return s.TargetID == targetID }), nil
}

func (r *shareRepo) ListSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]shares.Share, error) {
	return r.filter(func(s shares.Share) bool {
		return s.RevokedAt == nil && s.ExpiresAt != nil && s.ExpiresAt.After(from) && !s.ExpiresAt.After(to)
	}), nil
}

func (r *shareRepo) filter(keep func(shares.Share) bool) []shares.Share {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]shares.Share, 0)
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, cloneShare(s))
		}
	}
	return out
}

func cloneShare(s shares.Share) shares.Share {
	s.Items = append([]shares.Item(nil), s.Items...)
	return s
}
