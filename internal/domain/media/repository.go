package media

import "context"

type Repository interface {
	CreateMedia(ctx context.Context, m Item) error
	GetMedia(ctx context.Context, id string) (Item, error)
	ListMediaByOwner(ctx context.Context, ownerID string) ([]Item, error)
	// GetMediaMany devuelve los items encontrados; los ids inexistentes se omiten.
	GetMediaMany(ctx context.Context, ids []string) ([]Item, error)
}
