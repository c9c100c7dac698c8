package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-access/internal/domain/accessgrants"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

const requestColumns = `
	id, requester_id, owner_id, duration, scope, message, status,
	created_at, updated_at, decided_at`

const grantColumns = `
	id, viewer_id, owner_id, scope, expires_at, request_id,
	created_at, updated_at, revoked_at`

// activo = no revocado y (sin vencimiento o vence después de $3)
const activePredicate = `revoked_at IS NULL AND (expires_at IS NULL OR expires_at > $3)`

// execer cubre *sql.DB y *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *AccessGrantsRepo) CreateRequest(ctx context.Context, req accessgrants.Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		req.ID,
		req.RequesterID,
		req.OwnerID,
		string(req.Duration),
		string(req.Scope),
		req.Message,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
		toNullTime(req.DecidedAt),
	)
	if isUniqueViolation(err) {
		return accessgrants.ErrConflict
	}
	return err
}

func updateRequest(ctx context.Context, db execer, req accessgrants.Request) error {
	res, err := db.ExecContext(ctx, `
		UPDATE access_requests
		SET status = $2, updated_at = $3, decided_at = $4
		WHERE id = $1
	`,
		req.ID,
		string(req.Status),
		req.UpdatedAt,
		toNullTime(req.DecidedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetRequest(ctx context.Context, id string) (accessgrants.Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Request{}, accessgrants.ErrNotFound
	}
	return scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM access_requests WHERE id = $1
	`, id))
}

func (r *AccessGrantsRepo) LatestPendingRequest(ctx context.Context, requesterID, ownerID string) (accessgrants.Request, error) {
	return scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE requester_id = $1 AND owner_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, requesterID, ownerID))
}

func (r *AccessGrantsRepo) ListRequestsByOwner(ctx context.Context, ownerID string, status accessgrants.RequestStatus) ([]accessgrants.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE owner_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at DESC
	`, ownerID, string(status))
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (r *AccessGrantsRepo) ListRequestsByRequester(ctx context.Context, requesterID string) ([]accessgrants.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC
	`, requesterID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ApproveRequest bloquea el request y el grant activo del par; request -> approved y
// grant creado/extendido se commitean juntos.
func (r *AccessGrantsRepo) ApproveRequest(ctx context.Context, requestID, newGrantID string, now time.Time) (accessgrants.ApprovalResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return accessgrants.ApprovalResult{}, fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	req, err := scanRequest(tx.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM access_requests WHERE id = $1 FOR UPDATE
	`, requestID))
	if err != nil {
		return accessgrants.ApprovalResult{}, err
	}

	active, err := lockActiveGrant(ctx, tx, req.RequesterID, req.OwnerID, now)
	if err != nil {
		return accessgrants.ApprovalResult{}, err
	}

	var linked *accessgrants.Grant
	lg, err := scanGrant(tx.QueryRowContext(ctx, `
		SELECT `+grantColumns+` FROM access_grants WHERE request_id = $1
	`, requestID))
	switch {
	case err == nil:
		linked = &lg
	case !errors.Is(err, accessgrants.ErrNotFound):
		return accessgrants.ApprovalResult{}, err
	}

	res, err := accessgrants.PlanApproval(req, active, linked, newGrantID, now)
	if err != nil || res.AlreadyApproved {
		return res, err
	}

	if err := updateRequest(ctx, tx, res.Request); err != nil {
		return accessgrants.ApprovalResult{}, err
	}
	if res.GrantCreated {
		err = insertGrant(ctx, tx, res.Grant)
	} else {
		err = updateGrant(ctx, tx, res.Grant)
	}
	if err != nil {
		return accessgrants.ApprovalResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return accessgrants.ApprovalResult{}, fmt.Errorf("commit approve tx: %w", err)
	}
	return res, nil
}

// lockActiveGrant toma un advisory lock por par (viewer, owner) y después el grant activo
// FOR UPDATE. El advisory lock cubre el caso sin fila: dos tx que no ven grant activo no
// pueden crear uno cada una.
func lockActiveGrant(ctx context.Context, tx *sql.Tx, viewerID, ownerID string, now time.Time) (*accessgrants.Grant, error) {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"access_grants:"+viewerID+":"+ownerID,
	); err != nil {
		return nil, fmt.Errorf("lock grant pair: %w", err)
	}

	g, err := scanGrant(tx.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE viewer_id = $1 AND owner_id = $2 AND `+activePredicate+`
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
		FOR UPDATE
	`, viewerID, ownerID, now))
	switch {
	case err == nil:
		return &g, nil
	case errors.Is(err, accessgrants.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// DecideRequest bloquea el request con FOR UPDATE: si un approve commiteó antes, PlanDecision
// ve approved y devuelve ErrNotFound en vez de pisarlo.
func (r *AccessGrantsRepo) DecideRequest(ctx context.Context, requestID string, to accessgrants.RequestStatus, now time.Time) (accessgrants.Request, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return accessgrants.Request{}, false, fmt.Errorf("begin decide tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	req, err := scanRequest(tx.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM access_requests WHERE id = $1 FOR UPDATE
	`, requestID))
	if err != nil {
		return accessgrants.Request{}, false, err
	}

	next, changed, err := accessgrants.PlanDecision(req, to, now)
	if err != nil || !changed {
		return next, false, err
	}
	if err := updateRequest(ctx, tx, next); err != nil {
		return accessgrants.Request{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return accessgrants.Request{}, false, fmt.Errorf("commit decide tx: %w", err)
	}
	return next, true, nil
}

func (r *AccessGrantsRepo) CreateGrant(ctx context.Context, g accessgrants.Grant) error {
	return insertGrant(ctx, r.db, g)
}

func insertGrant(ctx context.Context, db execer, g accessgrants.Grant) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.ViewerID,
		g.OwnerID,
		string(g.Scope),
		toNullTime(g.ExpiresAt),
		toNullString(g.RequestID),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if isUniqueViolation(err) {
		return accessgrants.ErrConflict
	}
	return err
}

func (r *AccessGrantsRepo) GrantOrExtend(ctx context.Context, proposed accessgrants.Grant, now time.Time) (accessgrants.Grant, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return accessgrants.Grant{}, false, fmt.Errorf("begin grant tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	active, err := lockActiveGrant(ctx, tx, proposed.ViewerID, proposed.OwnerID, now)
	if err != nil {
		return accessgrants.Grant{}, false, err
	}

	g, created := accessgrants.MergeGrant(active, proposed, now)
	if created {
		err = insertGrant(ctx, tx, g)
	} else {
		err = updateGrant(ctx, tx, g)
	}
	if err != nil {
		return accessgrants.Grant{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return accessgrants.Grant{}, false, fmt.Errorf("commit grant tx: %w", err)
	}
	return g, created, nil
}

// RevokeGrant escribe solo revoked_at/updated_at, y solo si sigue sin revocar: no pisa
// una extensión concurrente del mismo grant.
func (r *AccessGrantsRepo) RevokeGrant(ctx context.Context, grantID string, now time.Time) (accessgrants.Grant, bool, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx, `
		UPDATE access_grants
		SET revoked_at = $2, updated_at = $2
		WHERE id = $1 AND revoked_at IS NULL
		RETURNING `+grantColumns+`
	`, grantID, now))
	switch {
	case err == nil:
		return g, true, nil
	case !errors.Is(err, accessgrants.ErrNotFound):
		return accessgrants.Grant{}, false, err
	}

	// ya revocado (idempotente) o no existe
	g, err = r.GetGrant(ctx, grantID)
	if err != nil {
		return accessgrants.Grant{}, false, err
	}
	return g, false, nil
}

func updateGrant(ctx context.Context, db execer, g accessgrants.Grant) error {
	res, err := db.ExecContext(ctx, `
		UPDATE access_grants
		SET scope = $2, expires_at = $3, request_id = $4, updated_at = $5, revoked_at = $6
		WHERE id = $1
	`,
		g.ID,
		string(g.Scope),
		toNullTime(g.ExpiresAt),
		toNullString(g.RequestID),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetGrant(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return scanGrant(r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+` FROM access_grants WHERE id = $1
	`, id))
}

func (r *AccessGrantsRepo) GetActiveGrant(ctx context.Context, viewerID, ownerID string, now time.Time) (accessgrants.Grant, error) {
	return scanGrant(r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE viewer_id = $1 AND owner_id = $2 AND `+activePredicate+`
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, viewerID, ownerID, now))
}

func (r *AccessGrantsRepo) ListGrantsByOwner(ctx context.Context, ownerID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM access_grants WHERE owner_id = $1 ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectGrants(rows)
}

func (r *AccessGrantsRepo) ListGrantsByViewer(ctx context.Context, viewerID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM access_grants WHERE viewer_id = $1 ORDER BY updated_at DESC
	`, viewerID)
	if err != nil {
		return nil, err
	}
	return collectGrants(rows)
}

func (r *AccessGrantsRepo) ListGrantsExpiredBetween(ctx context.Context, from, to time.Time) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE revoked_at IS NULL AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectGrants(rows)
}

func scanRequest(row scanner) (accessgrants.Request, error) {
	var req accessgrants.Request
	var duration, scope, status string
	var decidedAt sql.NullTime

	if err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.OwnerID,
		&duration,
		&scope,
		&req.Message,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&decidedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accessgrants.Request{}, accessgrants.ErrNotFound
		}
		return accessgrants.Request{}, err
	}

	req.Duration = accessgrants.Duration(duration)
	req.Scope = accessgrants.Scope(scope)
	req.Status = accessgrants.RequestStatus(status)
	req.DecidedAt = fromNullTime(decidedAt)
	return req, nil
}

func scanGrant(row scanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var scope string
	var requestID sql.NullString
	var expiresAt, revokedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.ViewerID,
		&g.OwnerID,
		&scope,
		&expiresAt,
		&requestID,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accessgrants.Grant{}, accessgrants.ErrNotFound
		}
		return accessgrants.Grant{}, err
	}

	g.Scope = accessgrants.Scope(scope)
	g.ExpiresAt = fromNullTime(expiresAt)
	g.RequestID = requestID.String
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func collectRequests(rows *sql.Rows) ([]accessgrants.Request, error) {
	defer rows.Close()

	out := make([]accessgrants.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func collectGrants(rows *sql.Rows) ([]accessgrants.Grant, error) {
	defer rows.Close()

	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
