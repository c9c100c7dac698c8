package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"media-access/internal/domain/accessgrants"
)

type testRepo struct {
	byID map[string]Item
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]Item{}} }

func (r *testRepo) CreateMedia(ctx context.Context, m Item) error {
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) GetMedia(ctx context.Context, id string) (Item, error) {
	m, ok := r.byID[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return m, nil
}

func (r *testRepo) ListMediaByOwner(ctx context.Context, ownerID string) ([]Item, error) {
	out := make([]Item, 0)
	for _, m := range r.byID {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *testRepo) GetMediaMany(ctx context.Context, ids []string) ([]Item, error) {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubResolver struct {
	state accessgrants.AccessState
	err   error
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, viewerID, ownerID string) (accessgrants.AccessState, error) {
	s.calls++
	return s.state, s.err
}

type stubShares struct {
	shared map[string]bool // viewer|media
	err    error
}

func (s stubShares) SharedMedia(ctx context.Context, viewerID, mediaID string) (bool, error) {
	return s.shared[viewerID+"|"+mediaID], s.err
}

func seed(t *testing.T, svc *Service) (photo, video, public Item) {
	t.Helper()
	ctx := context.Background()
	var err error

	photo, err = svc.Register(ctx, "owner-1", RegisterInput{Kind: "photo", URL: "https://cdn.example.com/p.jpg", Private: true})
	if err != nil {
		t.Fatalf("Register photo: %v", err)
	}
	video, err = svc.Register(ctx, "owner-1", RegisterInput{Kind: "video", URL: "https://cdn.example.com/v.mp4", Private: true})
	if err != nil {
		t.Fatalf("Register video: %v", err)
	}
	public, err = svc.Register(ctx, "owner-1", RegisterInput{Kind: "photo", URL: "https://cdn.example.com/pub.jpg"})
	if err != nil {
		t.Fatalf("Register public: %v", err)
	}
	return photo, video, public
}

func TestService_Register_Validation(t *testing.T) {
	svc := NewService(newTestRepo(), &stubResolver{})
	ctx := context.Background()

	bad := []RegisterInput{
		{Kind: "audio", URL: "https://x.test/a"},
		{Kind: "photo", URL: "ftp://x.test/a"},
		{Kind: "photo", URL: "not a url"},
	}
	for _, in := range bad {
		if _, err := svc.Register(ctx, "owner-1", in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %#v, got %v", in, err)
		}
	}
}

func TestService_Gallery_LockedShowsOnlyPublic(t *testing.T) {
	res := &stubResolver{state: accessgrants.NoAccess()}
	svc := NewService(newTestRepo(), res)
	_, _, public := seed(t, svc)

	g, err := svc.Gallery(context.Background(), "viewer-1", "owner-1")
	if err != nil {
		t.Fatalf("Gallery error: %v", err)
	}
	if len(g.Items) != 1 || g.Items[0].ID != public.ID {
		t.Fatalf("expected only public item, got %#v", g.Items)
	}
	if len(g.View.Options) != 3 {
		t.Fatalf("expected 3 request options, got %v", g.View.Options)
	}
}

func TestService_Gallery_ScopeFiltersKinds(t *testing.T) {
	res := &stubResolver{state: accessgrants.Active(accessgrants.Grant{ID: "g", Scope: accessgrants.ScopePhotos})}
	svc := NewService(newTestRepo(), res)
	photo, video, _ := seed(t, svc)

	g, err := svc.Gallery(context.Background(), "viewer-1", "owner-1")
	if err != nil {
		t.Fatalf("Gallery error: %v", err)
	}
	ids := map[string]bool{}
	for _, m := range g.Items {
		ids[m.ID] = true
	}
	if !ids[photo.ID] || ids[video.ID] {
		t.Fatalf("expected private photo but not video, got %v", ids)
	}

	if _, err := svc.Get(context.Background(), "viewer-1", video.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for video, got %v", err)
	}
}

func TestService_Get_ActiveShareOpensItem(t *testing.T) {
	res := &stubResolver{state: accessgrants.NoAccess()}
	svc := NewService(newTestRepo(), res)
	photo, video, _ := seed(t, svc)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "target-1", photo.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden before shares are wired, got %v", err)
	}

	svc.UseShares(stubShares{shared: map[string]bool{"target-1|" + photo.ID: true}})
	if got, err := svc.Get(ctx, "target-1", photo.ID); err != nil || got.ID != photo.ID {
		t.Fatalf("shared photo should open, got %v", err)
	}
	// solo lo que se compartió
	if _, err := svc.Get(ctx, "target-1", video.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unshared video, got %v", err)
	}
	if _, err := svc.Get(ctx, "other", photo.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another viewer, got %v", err)
	}

	svc.UseShares(stubShares{err: errors.New("store down")})
	if _, err := svc.Get(ctx, "target-1", photo.ID); err == nil || errors.Is(err, ErrForbidden) {
		t.Fatalf("share lookup failure should surface, got %v", err)
	}
}

func TestService_Gallery_OwnerSkipsResolver(t *testing.T) {
	res := &stubResolver{err: errors.New("boom")}
	svc := NewService(newTestRepo(), res)
	seed(t, svc)

	g, err := svc.Gallery(context.Background(), "owner-1", "owner-1")
	if err != nil {
		t.Fatalf("Gallery error: %v", err)
	}
	if len(g.Items) != 3 || res.calls != 0 {
		t.Fatalf("owner should see 3 items without resolving, got %d items, %d calls", len(g.Items), res.calls)
	}
}

func TestService_Gallery_ResolverFailureSurfaces(t *testing.T) {
	res := &stubResolver{err: errors.New("store down")}
	svc := NewService(newTestRepo(), res)
	seed(t, svc)

	if _, err := svc.Gallery(context.Background(), "viewer-1", "owner-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_Lookup_KeepsOrderAndFailsOnMissing(t *testing.T) {
	svc := NewService(newTestRepo(), &stubResolver{})
	svc.now = func() time.Time { return time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC) }
	photo, video, _ := seed(t, svc)

	items, err := svc.Lookup(context.Background(), []string{video.ID, photo.ID})
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if items[0].ID != video.ID || items[1].ID != photo.ID {
		t.Fatalf("expected request order")
	}

	if _, err := svc.Lookup(context.Background(), []string{photo.ID, "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	owner, err := svc.OwnerOf(context.Background(), photo.ID)
	if err != nil || owner != "owner-1" {
		t.Fatalf("OwnerOf = %q, %v", owner, err)
	}
}
