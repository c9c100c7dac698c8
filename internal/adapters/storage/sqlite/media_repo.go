package sqlite

import (
	"context"
	"errors"

	"media-access/internal/domain/media"

	"gorm.io/gorm"
)

type MediaRepo struct {
	db *gorm.DB
}

func (r *MediaRepo) CreateMedia(ctx context.Context, m media.Item) error {
	row := mediaRow{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Kind:      string(m.Kind),
		URL:       m.URL,
		Caption:   m.Caption,
		Private:   m.Private,
		CreatedAt: utc(m.CreatedAt),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *MediaRepo) GetMedia(ctx context.Context, id string) (media.Item, error) {
	var row mediaRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return media.Item{}, media.ErrNotFound
		}
		return media.Item{}, err
	}
	return row.toDomain(), nil
}

func (r *MediaRepo) ListMediaByOwner(ctx context.Context, ownerID string) ([]media.Item, error) {
	var rows []mediaRow
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return mediaToDomain(rows), nil
}

func (r *MediaRepo) GetMediaMany(ctx context.Context, ids []string) ([]media.Item, error) {
	if len(ids) == 0 {
		return []media.Item{}, nil
	}
	var rows []mediaRow
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return mediaToDomain(rows), nil
}

func (row mediaRow) toDomain() media.Item {
	return media.Item{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Kind:      media.Kind(row.Kind),
		URL:       row.URL,
		Caption:   row.Caption,
		Private:   row.Private,
		CreatedAt: row.CreatedAt,
	}
}

func mediaToDomain(rows []mediaRow) []media.Item {
	out := make([]media.Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
