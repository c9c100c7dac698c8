package shares

import (
	"context"
	"time"
)

type Repository interface {
	// CreateShare persiste el share y sus items en una sola transacción.
	CreateShare(ctx context.Context, s Share) error
	GetShare(ctx context.Context, id string) (Share, error)
	UpdateShare(ctx context.Context, s Share) error
	ListSharesBySender(ctx context.Context, senderID string) ([]Share, error)
	ListSharesByTarget(ctx context.Context, targetID string) ([]Share, error)
	// ListSharesExpiredBetween: no revocados con from < expires_at <= to.
	ListSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]Share, error)
}
