package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/media"
	"media-access/internal/domain/shares"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Estos tests necesitan un postgres descartable: MEDIA_ACCESS_TEST_DATABASE_URL.
func openTestDB(t *testing.T) (*AccessGrantsRepo, *MediaRepo, *SharesRepo) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("MEDIA_ACCESS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("MEDIA_ACCESS_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)

	applied, err := ApplyMigrations(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	// segunda pasada: nada pendiente
	again, err := ApplyMigrations(ctx, db)
	require.NoError(t, err)
	require.Empty(t, again)

	return NewAccessGrantsRepo(db), NewMediaRepo(db), NewSharesRepo(db)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), ".up.sql"), e.Name())
	}
}

func TestPostgres_PendingUniquenessAndApproval(t *testing.T) {
	grants, _, _ := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	req := accessgrants.Request{
		ID: "r-1", RequesterID: "viewer-1", OwnerID: "owner-1",
		Duration: accessgrants.Duration1h, Scope: accessgrants.ScopeAll,
		Status: accessgrants.RequestPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, grants.CreateRequest(ctx, req))

	dup := req
	dup.ID = "r-2"
	assert.ErrorIs(t, grants.CreateRequest(ctx, dup), accessgrants.ErrConflict)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := grants.ApproveRequest(ctx, "r-1", fmt.Sprintf("g-%d", i), now)
			if assert.NoError(t, err) {
				ids[i] = res.Grant.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	all, err := grants.ListGrantsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ExpiresAt)
	assert.WithinDuration(t, now.Add(time.Hour), *all[0].ExpiresAt, time.Millisecond)

	_, err = grants.GetActiveGrant(ctx, "viewer-1", "owner-1", now.Add(3601*time.Second))
	assert.ErrorIs(t, err, accessgrants.ErrNotFound)
}

func TestPostgres_DecideAndDirectGrantRaceApprove(t *testing.T) {
	grants, _, _ := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, grants.CreateRequest(ctx, accessgrants.Request{
		ID: "r-1", RequesterID: "viewer-1", OwnerID: "owner-1",
		Duration: accessgrants.Duration1h, Scope: accessgrants.ScopeVideos,
		Status: accessgrants.RequestPending, CreatedAt: now, UpdatedAt: now,
	}))

	var wg sync.WaitGroup
	var approveErr, denyErr error
	wg.Add(6)
	go func() {
		defer wg.Done()
		_, approveErr = grants.ApproveRequest(ctx, "r-1", "g-req", now)
	}()
	go func() {
		defer wg.Done()
		_, _, denyErr = grants.DecideRequest(ctx, "r-1", accessgrants.RequestDenied, now)
	}()
	for i := 0; i < 4; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, err := grants.GrantOrExtend(ctx, accessgrants.Grant{
				ID: fmt.Sprintf("g-direct-%d", i), ViewerID: "viewer-1", OwnerID: "owner-1",
				Scope: accessgrants.ScopePhotos, CreatedAt: now, UpdatedAt: now,
			}, now)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// exactamente uno de approve/deny gana
	assert.True(t, (approveErr == nil) != (denyErr == nil), "approve=%v deny=%v", approveErr, denyErr)

	req, err := grants.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	if approveErr == nil {
		assert.Equal(t, accessgrants.RequestApproved, req.Status)
	} else {
		assert.Equal(t, accessgrants.RequestDenied, req.Status)
	}

	all, err := grants.ListGrantsByViewer(ctx, "viewer-1")
	require.NoError(t, err)
	require.Len(t, all, 1, "one active grant per pair")
	assert.Nil(t, all[0].ExpiresAt)

	revoked, changed, err := grants.RevokeGrant(ctx, all[0].ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, revoked.RevokedAt)

	_, changed, err = grants.RevokeGrant(ctx, all[0].ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPostgres_ShareWithItems(t *testing.T) {
	_, mediaRepo, sharesRepo := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, mediaRepo.CreateMedia(ctx, media.Item{ID: "m-1", OwnerID: "sender-1", Kind: media.KindPhoto, URL: "https://x.test/1", CreatedAt: now}))

	sh := shares.Share{
		ID: "s-1", Kind: shares.KindPrivateAlbum, SenderID: "sender-1", TargetID: "target-1",
		Scope: accessgrants.ScopeAll, Duration: accessgrants.DurationAlways, CreatedAt: now,
		Items: []shares.Item{{ShareID: "s-1", MediaID: "m-1", Kind: "photo", Position: 0}},
	}
	require.NoError(t, sharesRepo.CreateShare(ctx, sh))

	// item inexistente: la tx completa se cae y no queda el share
	broken := sh
	broken.ID = "s-2"
	broken.Items = []shares.Item{{ShareID: "s-2", MediaID: "missing", Kind: "photo"}}
	assert.Error(t, sharesRepo.CreateShare(ctx, broken))
	_, err := sharesRepo.GetShare(ctx, "s-2")
	assert.ErrorIs(t, err, shares.ErrNotFound)

	got, err := sharesRepo.GetShare(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "m-1", got.Items[0].MediaID)
}
