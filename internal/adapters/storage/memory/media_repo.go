package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"media-access/internal/domain/media"
)

type mediaRepo struct {
	mu   sync.RWMutex
	byID map[string]media.Item
}

func NewMediaRepo() media.Repository {
	return &mediaRepo{
		byID: make(map[string]media.Item),
	}
}

func (r *mediaRepo) CreateMedia(ctx context.Context, m media.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("media id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("media already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *mediaRepo) GetMedia(ctx context.Context, id string) (media.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return media.Item{}, media.ErrNotFound
	}
	return m, nil
}

func (r *mediaRepo) ListMediaByOwner(ctx context.Context, ownerID string) ([]media.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]media.Item, 0)
	for _, m := range r.byID {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *mediaRepo) GetMediaMany(ctx context.Context, ids []string) ([]media.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]media.Item, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
