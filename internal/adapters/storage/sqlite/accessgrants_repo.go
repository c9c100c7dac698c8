package sqlite

import (
	"context"
	"errors"
	"time"

	"media-access/internal/domain/accessgrants"

	"gorm.io/gorm"
)

type AccessGrantsRepo struct {
	db *gorm.DB
}

const activeWhere = "revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)"

func (r *AccessGrantsRepo) CreateRequest(ctx context.Context, req accessgrants.Request) error {
	row := toRequestRow(req)
	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return accessgrants.ErrConflict
	}
	return err
}

func updateRequest(db *gorm.DB, req accessgrants.Request) error {
	res := db.Model(&requestRow{}).Where("id = ?", req.ID).Updates(map[string]any{
		"status":     string(req.Status),
		"updated_at": utc(req.UpdatedAt),
		"decided_at": utcPtr(req.DecidedAt),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetRequest(ctx context.Context, id string) (accessgrants.Request, error) {
	var row requestRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return accessgrants.Request{}, requestErr(err)
	}
	return row.toDomain(), nil
}

func (r *AccessGrantsRepo) LatestPendingRequest(ctx context.Context, requesterID, ownerID string) (accessgrants.Request, error) {
	var row requestRow
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND owner_id = ? AND status = ?", requesterID, ownerID, string(accessgrants.RequestPending)).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return accessgrants.Request{}, requestErr(err)
	}
	return row.toDomain(), nil
}

func (r *AccessGrantsRepo) ListRequestsByOwner(ctx context.Context, ownerID string, status accessgrants.RequestStatus) ([]accessgrants.Request, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []requestRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return requestsToDomain(rows), nil
}

func (r *AccessGrantsRepo) ListRequestsByRequester(ctx context.Context, requesterID string) ([]accessgrants.Request, error) {
	var rows []requestRow
	if err := r.db.WithContext(ctx).Where("requester_id = ?", requesterID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return requestsToDomain(rows), nil
}

// ApproveRequest corre PlanApproval dentro de una tx de GORM. Con una sola
// conexión la tx ya es exclusiva, no hace falta FOR UPDATE.
func (r *AccessGrantsRepo) ApproveRequest(ctx context.Context, requestID, newGrantID string, now time.Time) (accessgrants.ApprovalResult, error) {
	var res accessgrants.ApprovalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reqRow requestRow
		if err := tx.First(&reqRow, "id = ?", requestID).Error; err != nil {
			return requestErr(err)
		}
		req := reqRow.toDomain()

		active, err := findActive(tx, req.RequesterID, req.OwnerID, now)
		if err != nil {
			return err
		}

		var linked *accessgrants.Grant
		var linkedRow grantRow
		err = tx.First(&linkedRow, "request_id = ?", requestID).Error
		switch {
		case err == nil:
			g := linkedRow.toDomain()
			linked = &g
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		planned, err := accessgrants.PlanApproval(req, active, linked, newGrantID, now)
		if err != nil {
			return err
		}
		res = planned
		if planned.AlreadyApproved {
			return nil
		}

		if err := updateRequest(tx, planned.Request); err != nil {
			return err
		}
		return saveGrant(tx, planned.Grant, planned.GrantCreated)
	})
	if err != nil {
		return accessgrants.ApprovalResult{}, err
	}
	return res, nil
}

func findActive(tx *gorm.DB, viewerID, ownerID string, now time.Time) (*accessgrants.Grant, error) {
	var row grantRow
	err := tx.Where("viewer_id = ? AND owner_id = ?", viewerID, ownerID).
		Where(activeWhere, utc(now)).
		Order("updated_at DESC, created_at DESC").
		First(&row).Error
	switch {
	case err == nil:
		g := row.toDomain()
		return &g, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

func saveGrant(tx *gorm.DB, g accessgrants.Grant, created bool) error {
	row := toGrantRow(g)
	if created {
		err := tx.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return accessgrants.ErrConflict
		}
		return err
	}
	return tx.Save(&row).Error
}

func (r *AccessGrantsRepo) DecideRequest(ctx context.Context, requestID string, to accessgrants.RequestStatus, now time.Time) (accessgrants.Request, bool, error) {
	var out accessgrants.Request
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row requestRow
		if err := tx.First(&row, "id = ?", requestID).Error; err != nil {
			return requestErr(err)
		}
		next, ok, err := accessgrants.PlanDecision(row.toDomain(), to, now)
		if err != nil {
			return err
		}
		out, changed = next, ok
		if !ok {
			return nil
		}
		return updateRequest(tx, next)
	})
	if err != nil {
		return accessgrants.Request{}, false, err
	}
	return out, changed, nil
}

func (r *AccessGrantsRepo) CreateGrant(ctx context.Context, g accessgrants.Grant) error {
	row := toGrantRow(g)
	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return accessgrants.ErrConflict
	}
	return err
}

func (r *AccessGrantsRepo) GrantOrExtend(ctx context.Context, proposed accessgrants.Grant, now time.Time) (accessgrants.Grant, bool, error) {
	var out accessgrants.Grant
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := findActive(tx, proposed.ViewerID, proposed.OwnerID, now)
		if err != nil {
			return err
		}
		out, created = accessgrants.MergeGrant(active, proposed, now)
		return saveGrant(tx, out, created)
	})
	if err != nil {
		return accessgrants.Grant{}, false, err
	}
	return out, created, nil
}

func (r *AccessGrantsRepo) RevokeGrant(ctx context.Context, grantID string, now time.Time) (accessgrants.Grant, bool, error) {
	var out accessgrants.Grant
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row grantRow
		if err := tx.First(&row, "id = ?", grantID).Error; err != nil {
			return grantErr(err)
		}
		out, changed = accessgrants.PlanRevoke(row.toDomain(), now)
		if !changed {
			return nil
		}
		return tx.Model(&grantRow{}).Where("id = ?", grantID).Updates(map[string]any{
			"revoked_at": utcPtr(out.RevokedAt),
			"updated_at": utc(out.UpdatedAt),
		}).Error
	})
	if err != nil {
		return accessgrants.Grant{}, false, err
	}
	return out, changed, nil
}

func (r *AccessGrantsRepo) GetGrant(ctx context.Context, id string) (accessgrants.Grant, error) {
	var row grantRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return accessgrants.Grant{}, grantErr(err)
	}
	return row.toDomain(), nil
}

func (r *AccessGrantsRepo) GetActiveGrant(ctx context.Context, viewerID, ownerID string, now time.Time) (accessgrants.Grant, error) {
	var row grantRow
	err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND owner_id = ?", viewerID, ownerID).
		Where(activeWhere, utc(now)).
		Order("updated_at DESC, created_at DESC").
		First(&row).Error
	if err != nil {
		return accessgrants.Grant{}, grantErr(err)
	}
	return row.toDomain(), nil
}

func (r *AccessGrantsRepo) ListGrantsByOwner(ctx context.Context, ownerID string) ([]accessgrants.Grant, error) {
	return r.findGrants(ctx, r.db.Where("owner_id = ?", ownerID))
}

func (r *AccessGrantsRepo) ListGrantsByViewer(ctx context.Context, viewerID string) ([]accessgrants.Grant, error) {
	return r.findGrants(ctx, r.db.Where("viewer_id = ?", viewerID))
}

func (r *AccessGrantsRepo) ListGrantsExpiredBetween(ctx context.Context, from, to time.Time) ([]accessgrants.Grant, error) {
	return r.findGrants(ctx, r.db.Where("revoked_at IS NULL AND expires_at > ? AND expires_at <= ?", utc(from), utc(to)))
}

func (r *AccessGrantsRepo) findGrants(ctx context.Context, q *gorm.DB) ([]accessgrants.Grant, error) {
	var rows []grantRow
	if err := q.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]accessgrants.Grant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func requestErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return accessgrants.ErrNotFound
	}
	return err
}

func grantErr(err error) error { return requestErr(err) }

func toRequestRow(req accessgrants.Request) requestRow {
	return requestRow{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		OwnerID:     req.OwnerID,
		Duration:    string(req.Duration),
		Scope:       string(req.Scope),
		Message:     req.Message,
		Status:      string(req.Status),
		CreatedAt:   utc(req.CreatedAt),
		UpdatedAt:   utc(req.UpdatedAt),
		DecidedAt:   utcPtr(req.DecidedAt),
	}
}

func (row requestRow) toDomain() accessgrants.Request {
	return accessgrants.Request{
		ID:          row.ID,
		RequesterID: row.RequesterID,
		OwnerID:     row.OwnerID,
		Duration:    accessgrants.Duration(row.Duration),
		Scope:       accessgrants.Scope(row.Scope),
		Message:     row.Message,
		Status:      accessgrants.RequestStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		DecidedAt:   row.DecidedAt,
	}
}

func requestsToDomain(rows []requestRow) []accessgrants.Request {
	out := make([]accessgrants.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func toGrantRow(g accessgrants.Grant) grantRow {
	return grantRow{
		ID:        g.ID,
		ViewerID:  g.ViewerID,
		OwnerID:   g.OwnerID,
		Scope:     string(g.Scope),
		ExpiresAt: utcPtr(g.ExpiresAt),
		RequestID: nullableString(g.RequestID),
		CreatedAt: utc(g.CreatedAt),
		UpdatedAt: utc(g.UpdatedAt),
		RevokedAt: utcPtr(g.RevokedAt),
	}
}

func (row grantRow) toDomain() accessgrants.Grant {
	g := accessgrants.Grant{
		ID:        row.ID,
		ViewerID:  row.ViewerID,
		OwnerID:   row.OwnerID,
		Scope:     accessgrants.Scope(row.Scope),
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		RevokedAt: row.RevokedAt,
	}
	if row.RequestID != nil {
		g.RequestID = *row.RequestID
	}
	return g
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
