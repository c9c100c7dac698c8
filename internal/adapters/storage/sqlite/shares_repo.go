package sqlite

import (
	"context"
	"errors"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"

	"gorm.io/gorm"
)

type SharesRepo struct {
	db *gorm.DB
}

// CreateShare inserta share + items en la misma tx (GORM crea la asociación Items).
func (r *SharesRepo) CreateShare(ctx context.Context, s shares.Share) error {
	row := toShareRow(s)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
}

func (r *SharesRepo) GetShare(ctx context.Context, id string) (shares.Share, error) {
	var row shareRow
	err := r.db.WithContext(ctx).Preload("Items", orderItems).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shares.Share{}, shares.ErrNotFound
		}
		return shares.Share{}, err
	}
	return row.toDomain(), nil
}

// UpdateShare solo toca revoked_at.
func (r *SharesRepo) UpdateShare(ctx context.Context, s shares.Share) error {
	res := r.db.WithContext(ctx).Model(&shareRow{}).Where("id = ?", s.ID).Update("revoked_at", utcPtr(s.RevokedAt))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shares.ErrNotFound
	}
	return nil
}

func (r *SharesRepo) ListSharesBySender(ctx context.Context, senderID string) ([]shares.Share, error) {
	return r.find(ctx, r.db.Where("sender_id = ?", senderID))
}

func (r *SharesRepo) ListSharesByTarget(ctx context.Context, targetID string) ([]shares.Share, error) {
	return r.find(ctx, r.db.Where("target_id = ?", targetID))
}

func (r *SharesRepo) ListSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]shares.Share, error) {
	return r.find(ctx, r.db.Where("revoked_at IS NULL AND expires_at > ? AND expires_at <= ?", utc(from), utc(to)))
}

func (r *SharesRepo) find(ctx context.Context, q *gorm.DB) ([]shares.Share, error) {
	var rows []shareRow
	if err := q.WithContext(ctx).Preload("Items", orderItems).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]shares.Share, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func toShareRow(s shares.Share) shareRow {
	row := shareRow{
		ID:        s.ID,
		Kind:      string(s.Kind),
		SenderID:  s.SenderID,
		TargetID:  s.TargetID,
		Scope:     string(s.Scope),
		Duration:  string(s.Duration),
		ExpiresAt: utcPtr(s.ExpiresAt),
		Message:   s.Message,
		CreatedAt: utc(s.CreatedAt),
		RevokedAt: utcPtr(s.RevokedAt),
		Items:     make([]shareItemRow, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		row.Items = append(row.Items, shareItemRow{
			ShareID:  s.ID,
			MediaID:  it.MediaID,
			Kind:     it.Kind,
			Position: it.Position,
		})
	}
	return row
}

func (row shareRow) toDomain() shares.Share {
	s := shares.Share{
		ID:        row.ID,
		Kind:      shares.Kind(row.Kind),
		SenderID:  row.SenderID,
		TargetID:  row.TargetID,
		Scope:     accessgrants.Scope(row.Scope),
		Duration:  accessgrants.Duration(row.Duration),
		ExpiresAt: row.ExpiresAt,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
		RevokedAt: row.RevokedAt,
		Items:     make([]shares.Item, 0, len(row.Items)),
	}
	for _, it := range row.Items {
		s.Items = append(s.Items, shares.Item{
			ShareID:  it.ShareID,
			MediaID:  it.MediaID,
			Kind:     it.Kind,
			Position: it.Position,
		})
	}
	return s
}
