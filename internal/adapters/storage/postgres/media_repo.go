package postgres

import (
	"context"
	"database/sql"
	"errors"

	"media-access/internal/domain/media"
)

type MediaRepo struct {
	db *sql.DB
}

func NewMediaRepo(db *sql.DB) *MediaRepo {
	return &MediaRepo{db: db}
}

const mediaColumns = `id, owner_id, kind, url, caption, private, created_at`

func (r *MediaRepo) CreateMedia(ctx context.Context, m media.Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media_items (`+mediaColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		m.ID,
		m.OwnerID,
		string(m.Kind),
		m.URL,
		m.Caption,
		m.Private,
		m.CreatedAt,
	)
	return err
}

func (r *MediaRepo) GetMedia(ctx context.Context, id string) (media.Item, error) {
	return scanMedia(r.db.QueryRowContext(ctx, `
		SELECT `+mediaColumns+` FROM media_items WHERE id = $1
	`, id))
}

func (r *MediaRepo) ListMediaByOwner(ctx context.Context, ownerID string) ([]media.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media_items WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectMedia(rows)
}

// GetMediaMany usa un array de texto (pgx lo mapea desde []string).
func (r *MediaRepo) GetMediaMany(ctx context.Context, ids []string) ([]media.Item, error) {
	if len(ids) == 0 {
		return []media.Item{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media_items WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	return collectMedia(rows)
}

func scanMedia(row scanner) (media.Item, error) {
	var m media.Item
	var kind string
	if err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&kind,
		&m.URL,
		&m.Caption,
		&m.Private,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return media.Item{}, media.ErrNotFound
		}
		return media.Item{}, err
	}
	m.Kind = media.Kind(kind)
	return m, nil
}

func collectMedia(rows *sql.Rows) ([]media.Item, error) {
	defer rows.Close()

	out := make([]media.Item, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
