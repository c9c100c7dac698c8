package accessgrants

import (
	"errors"
	"testing"
	"time"
)

func pendingRequest(now time.Time, d Duration, scope Scope) Request {
	return Request{
		ID:          "r-1",
		RequesterID: "viewer-1",
		OwnerID:     "owner-1",
		Duration:    d,
		Scope:       scope,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPlanApproval_NewGrant(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

	res, err := PlanApproval(pendingRequest(now, Duration5m, ScopePhotos), nil, nil, "g-new", now)
	if err != nil {
		t.Fatalf("PlanApproval error: %v", err)
	}
	if !res.GrantCreated || res.AlreadyApproved {
		t.Fatalf("expected fresh grant, got %#v", res)
	}
	if res.Request.Status != RequestApproved || res.Request.DecidedAt == nil {
		t.Fatalf("expected approved request, got %#v", res.Request)
	}
	if res.Grant.ID != "g-new" || res.Grant.RequestID != "r-1" || res.Grant.Scope != ScopePhotos {
		t.Fatalf("unexpected grant %#v", res.Grant)
	}
	if res.Grant.ExpiresAt == nil || res.Grant.ExpiresAt.Sub(now) != 300*time.Second {
		t.Fatalf("expected +300s expiry, got %v", res.Grant.ExpiresAt)
	}
}

func TestPlanApproval_TerminalStatuses(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

	for _, st := range []RequestStatus{RequestDenied, RequestCancelled} {
		req := pendingRequest(now, Duration1h, ScopeAll)
		req.Status = st
		if _, err := PlanApproval(req, nil, nil, "g", now); !errors.Is(err, ErrNotFound) {
			t.Fatalf("status %s: expected ErrNotFound, got %v", st, err)
		}
	}
}

func TestPlanApproval_AlreadyApprovedReturnsLinked(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	req := pendingRequest(now, Duration1h, ScopeAll)
	req.Status = RequestApproved
	linked := Grant{ID: "g-linked", RequestID: req.ID}

	res, err := PlanApproval(req, nil, &linked, "g-other", now)
	if err != nil {
		t.Fatalf("PlanApproval error: %v", err)
	}
	if !res.AlreadyApproved || res.Grant.ID != "g-linked" {
		t.Fatalf("expected linked grant, got %#v", res)
	}
}

func TestMergeGrant_IgnoresInactiveExisting(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)
	existing := Grant{ID: "g-old", Scope: ScopeAll, RevokedAt: &revoked}
	proposed := Grant{ID: "g-new", Scope: ScopeVideos}

	g, created := MergeGrant(&existing, proposed, now)
	if !created || g.ID != "g-new" {
		t.Fatalf("expected proposed grant, got %#v (created=%v)", g, created)
	}
}

func TestMergeGrant_KeepsLaterExpiry(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	existing := Grant{ID: "g-1", Scope: ScopeVideos, ExpiresAt: &later, CreatedAt: now, UpdatedAt: now}
	proposed := Grant{ID: "g-2", Scope: ScopeVideos, ExpiresAt: Duration5m.ExpiresAt(now)}

	g, created := MergeGrant(&existing, proposed, now)
	if created {
		t.Fatalf("expected merge")
	}
	if g.Scope != ScopeVideos || g.ExpiresAt == nil || !g.ExpiresAt.Equal(later) {
		t.Fatalf("expected videos until +1h, got %#v", g)
	}
}

func TestAccessState_Allows(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	s := Active(Grant{ID: "g", Scope: ScopePhotos})

	if !s.Allows("photo", now) || s.Allows("video", now) {
		t.Fatalf("photos scope should allow only photos")
	}
	if NoAccess().Allows("photo", now) {
		t.Fatalf("none must not allow anything")
	}
	if Pending(Request{ID: "r"}).Allows("photo", now) {
		t.Fatalf("pending must not allow anything")
	}
}

func TestMergeGrant_KeepsPermanent(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	existing := Grant{ID: "g-1", Scope: ScopeAll, CreatedAt: now, UpdatedAt: now}
	proposed := Grant{ID: "g-2", Scope: ScopePhotos, ExpiresAt: Duration5m.ExpiresAt(now)}

	g, created := MergeGrant(&existing, proposed, now)
	if created {
		t.Fatalf("expected merge into existing grant")
	}
	if g.ExpiresAt != nil || g.Scope != ScopeAll {
		t.Fatalf("expected permanent all-scope grant, got %#v", g)
	}
}

func TestPlanDecision_NeverOverwritesFinalState(t *testing.T) {
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

	denied, changed, err := PlanDecision(pendingRequest(now, Duration1h, ScopeAll), RequestDenied, now)
	if err != nil || !changed || denied.Status != RequestDenied || denied.DecidedAt == nil {
		t.Fatalf("pending -> denied failed: %#v changed=%v err=%v", denied, changed, err)
	}

	again, changed, err := PlanDecision(denied, RequestDenied, now.Add(time.Minute))
	if err != nil || changed || !again.UpdatedAt.Equal(now) {
		t.Fatalf("second deny must be a no-op, got %#v changed=%v err=%v", again, changed, err)
	}

	approved := pendingRequest(now, Duration1h, ScopeAll)
	approved.Status = RequestApproved
	for _, to := range []RequestStatus{RequestDenied, RequestCancelled} {
		if _, _, err := PlanDecision(approved, to, now); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s over approved: expected ErrNotFound, got %v", to, err)
		}
	}
}
