package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
)

type SharesRepo struct {
	db *sql.DB
}

func NewSharesRepo(db *sql.DB) *SharesRepo {
	return &SharesRepo{db: db}
}

const shareColumns = `
	id, kind, sender_id, target_id, scope, duration, expires_at, message,
	created_at, revoked_at`

// CreateShare: share + items en la misma tx; si falla un item no queda el share huérfano.
func (r *SharesRepo) CreateShare(ctx context.Context, s shares.Share) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin share tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO direct_shares (`+shareColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		s.ID,
		string(s.Kind),
		s.SenderID,
		s.TargetID,
		string(s.Scope),
		string(s.Duration),
		toNullTime(s.ExpiresAt),
		s.Message,
		s.CreatedAt,
		toNullTime(s.RevokedAt),
	); err != nil {
		return fmt.Errorf("insert share: %w", err)
	}

	for _, it := range s.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO share_items (share_id, media_id, kind, position)
			VALUES ($1,$2,$3,$4)
		`, s.ID, it.MediaID, it.Kind, it.Position); err != nil {
			return fmt.Errorf("insert share item %s: %w", it.MediaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit share tx: %w", err)
	}
	return nil
}

func (r *SharesRepo) GetShare(ctx context.Context, id string) (shares.Share, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, `
		SELECT `+shareColumns+` FROM direct_shares WHERE id = $1
	`, id))
	if err != nil {
		return shares.Share{}, err
	}
	if err := r.loadItems(ctx, []*shares.Share{&s}); err != nil {
		return shares.Share{}, err
	}
	return s, nil
}

func (r *SharesRepo) UpdateShare(ctx context.Context, s shares.Share) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE direct_shares SET revoked_at = $2 WHERE id = $1
	`, s.ID, toNullTime(s.RevokedAt))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return shares.ErrNotFound
	}
	return nil
}

func (r *SharesRepo) ListSharesBySender(ctx context.Context, senderID string) ([]shares.Share, error) {
	return r.list(ctx, `
		SELECT `+shareColumns+` FROM direct_shares WHERE sender_id = $1 ORDER BY created_at DESC
	`, senderID)
}

func (r *SharesRepo) ListSharesByTarget(ctx context.Context, targetID string) ([]shares.Share, error) {
	return r.list(ctx, `
		SELECT `+shareColumns+` FROM direct_shares WHERE target_id = $1 ORDER BY created_at DESC
	`, targetID)
}

func (r *SharesRepo) ListSharesExpiredBetween(ctx context.Context, from, to time.Time) ([]shares.Share, error) {
	return r.list(ctx, `
		SELECT `+shareColumns+`
		FROM direct_shares
		WHERE revoked_at IS NULL AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at ASC
	`, from, to)
}

func (r *SharesRepo) list(ctx context.Context, query string, args ...any) ([]shares.Share, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]shares.Share, 0)
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*shares.Share, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems trae los items de todos los shares en una sola query.
func (r *SharesRepo) loadItems(ctx context.Context, list []*shares.Share) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string]*shares.Share, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
		byID[s.ID] = s
		s.Items = []shares.Item{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT share_id, media_id, kind, position
		FROM share_items
		WHERE share_id = ANY($1)
		ORDER BY share_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it shares.Item
		if err := rows.Scan(&it.ShareID, &it.MediaID, &it.Kind, &it.Position); err != nil {
			return err
		}
		if s, ok := byID[it.ShareID]; ok {
			s.Items = append(s.Items, it)
		}
	}
	return rows.Err()
}

func scanShare(row scanner) (shares.Share, error) {
	var s shares.Share
	var kind, scope, duration string
	var expiresAt, revokedAt sql.NullTime

	if err := row.Scan(
		&s.ID,
		&kind,
		&s.SenderID,
		&s.TargetID,
		&scope,
		&duration,
		&expiresAt,
		&s.Message,
		&s.CreatedAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shares.Share{}, shares.ErrNotFound
		}
		return shares.Share{}, err
	}

	s.Kind = shares.Kind(kind)
	s.Scope = accessgrants.Scope(scope)
	s.Duration = accessgrants.Duration(duration)
	s.ExpiresAt = fromNullTime(expiresAt)
	s.RevokedAt = fromNullTime(revokedAt)
	return s, nil
}
