package accessgrants

import "time"

// ApprovalResult es lo que deja una aprobación.
type ApprovalResult struct {
	Request Request
	Grant   Grant

	// AlreadyApproved: el request ya estaba aprobado (aprobar dos veces es idempotente).
	AlreadyApproved bool
	// GrantCreated: false si se extendió un grant activo existente del par.
	GrantCreated bool
}

// PlanApproval decide la transición pending -> approved. Los stores la llaman dentro de su
// transacción con el request bloqueado, el grant activo del par (si hay) y el grant
// vinculado a este request (si hay), y después persisten el resultado.
func PlanApproval(req Request, active, linked *Grant, newGrantID string, now time.Time) (ApprovalResult, error) {
	if req.Status == RequestApproved {
		switch {
		case linked != nil:
			return ApprovalResult{Request: req, Grant: *linked, AlreadyApproved: true}, nil
		case active != nil:
			return ApprovalResult{Request: req, Grant: *active, AlreadyApproved: true}, nil
		default:
			return ApprovalResult{}, ErrNotFound
		}
	}
	// denied / cancelled: ya no hay un pending con ese id
	if req.Status != RequestPending {
		return ApprovalResult{}, ErrNotFound
	}

	req.Status = RequestApproved
	req.UpdatedAt = now
	decided := now
	req.DecidedAt = &decided

	proposed := Grant{
		ID:        newGrantID,
		ViewerID:  req.RequesterID,
		OwnerID:   req.OwnerID,
		Scope:     req.Scope,
		ExpiresAt: req.Duration.ExpiresAt(now),
		RequestID: req.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	g, created := MergeGrant(active, proposed, now)
	return ApprovalResult{Request: req, Grant: g, GrantCreated: created}, nil
}

// MergeGrant evita un segundo grant activo por par: si ya existe uno, se extiende
// (scope más amplio, vencimiento más lejano) en lugar de crear otro.
func MergeGrant(existing *Grant, proposed Grant, now time.Time) (Grant, bool) {
	if existing == nil || !existing.IsActive(now) {
		return proposed, true
	}

	g := *existing
	g.Scope = widenScope(existing.Scope, proposed.Scope)
	g.ExpiresAt = laterExpiry(existing.ExpiresAt, proposed.ExpiresAt)
	if proposed.RequestID != "" {
		g.RequestID = proposed.RequestID
	}
	g.UpdatedAt = now
	return g, false
}

func widenScope(a, b Scope) Scope {
	if a == b {
		return a
	}
	return ScopeAll
}

// nil (permanente) gana siempre.
func laterExpiry(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.After(*a) {
		t := *b
		return &t
	}
	t := *a
	return &t
}

// PlanDecision decide pending -> denied/cancelled sobre el request leído dentro de la
// transacción del store. changed=false si ya estaba en ese estado. Cualquier otro estado
// final (p.ej. un approve que ganó la carrera) devuelve ErrNotFound y no se pisa.
func PlanDecision(req Request, to RequestStatus, now time.Time) (Request, bool, error) {
	if req.Status == to {
		return req, false, nil
	}
	if req.Status != RequestPending {
		return Request{}, false, ErrNotFound
	}
	req.Status = to
	req.UpdatedAt = now
	decided := now
	req.DecidedAt = &decided
	return req, true, nil
}

// PlanRevoke marca el grant como revocado. changed=false si ya lo estaba.
func PlanRevoke(g Grant, now time.Time) (Grant, bool) {
	if g.RevokedAt != nil {
		return g, false
	}
	revoked := now
	g.RevokedAt = &revoked
	g.UpdatedAt = now
	return g, true
}
