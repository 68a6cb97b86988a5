package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/database/testutil"
	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

type shareFixture struct {
	db      *gorm.DB
	svc     *ShareService
	owner   models.User
	grantee models.User
	peer    models.User
	bot     models.Bot
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	f := &shareFixture{
		db:      db,
		owner:   models.User{Username: "owner", Email: "owner@example.com", Password: "secret"},
		grantee: models.User{Username: "grantee", Email: "grantee@example.com", Password: "secret"},
		peer:    models.User{Username: "peer", Email: "peer@example.com", Password: "secret"},
	}
	require.NoError(t, db.Create(&f.owner).Error)
	require.NoError(t, db.Create(&f.grantee).Error)
	require.NoError(t, db.Create(&f.peer).Error)

	f.bot = models.Bot{Name: "Tagger", OwnerUserID: f.owner.ID}
	require.NoError(t, db.Create(&f.bot).Error)

	adapter, err := NewBotAdapter(db)
	require.NoError(t, err)
	f.svc, err = NewShareService(db, adapter)
	require.NoError(t, err)

	return f
}

func TestShareService_UpsertCreatesThenUpdates(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	first, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionRead,
	})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, permissions.PermissionRead, first.Grant.Permission)
	require.NotNil(t, first.Grant.UserID)
	require.Equal(t, f.grantee.ID, *first.Grant.UserID)
	require.NotNil(t, first.Grant.Username)
	require.Equal(t, "grantee", *first.Grant.Username)

	second, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionFull,
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Grant.ID, second.Grant.ID)
	require.Equal(t, permissions.PermissionFull, second.Grant.Permission)

	var count int64
	require.NoError(t, f.db.Model(&models.ShareGrant{}).
		Where("resource_type = ? AND resource_id = ?", KindBot, f.bot.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestShareService_WildcardShareLifecycle(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	created, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		Permission: permissions.PermissionFull,
	})
	require.NoError(t, err)
	require.True(t, created.Created)
	require.Nil(t, created.Grant.UserID)
	require.Nil(t, created.Grant.Username)

	downgraded, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		Permission: permissions.PermissionRead,
	})
	require.NoError(t, err)
	require.False(t, downgraded.Created)
	require.Equal(t, created.Grant.ID, downgraded.Grant.ID)
	require.Equal(t, permissions.PermissionRead, downgraded.Grant.Permission)

	listed, err := f.svc.ListShares(ctx, f.owner.ID, f.bot.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Nil(t, listed[0].UserID)
}

func TestShareService_SelfShareRejected(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.owner.ID,
		Permission:    permissions.PermissionRead,
	})
	require.ErrorIs(t, err, ErrSelfShare)

	// A FULL-grant holder manages sharing but still may not grant to
	// themselves.
	_, err = f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionFull,
	})
	require.NoError(t, err)

	_, err = f.svc.UpsertShare(ctx, f.grantee.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionRead,
	})
	require.ErrorIs(t, err, ErrSelfShare)
}

func TestShareService_GranteeMustExist(t *testing.T) {
	f := newShareFixture(t)

	missing := "00000000-0000-0000-0000-000000000000"
	_, err := f.svc.UpsertShare(context.Background(), f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &missing,
		Permission:    permissions.PermissionRead,
	})
	require.ErrorIs(t, err, ErrGranteeNotFound)
}

func TestShareService_InvalidPermissionRejected(t *testing.T) {
	f := newShareFixture(t)

	_, err := f.svc.UpsertShare(context.Background(), f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.Permission("ADMIN"),
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestShareService_NonManageableCallerSeesNotFound(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	assertHidden := func(callerID string) {
		t.Helper()
		_, err := f.svc.ListShares(ctx, callerID, f.bot.ID)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "aiBotNotFound", appErr.Code)
		require.Equal(t, 404, appErr.StatusCode)

		_, err = f.svc.UpsertShare(ctx, callerID, f.bot.ID, UpsertShareInput{
			GranteeUserID: &f.grantee.ID,
			Permission:    permissions.PermissionRead,
		})
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "aiBotNotFound", appErr.Code)
	}

	// No grant at all.
	assertHidden(f.peer.ID)

	// WRITE is enough to edit the resource but not to manage sharing.
	_, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.peer.ID,
		Permission:    permissions.PermissionWrite,
	})
	require.NoError(t, err)
	assertHidden(f.peer.ID)

	// FULL unlocks sharing management.
	_, err = f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.peer.ID,
		Permission:    permissions.PermissionFull,
	})
	require.NoError(t, err)
	listed, err := f.svc.ListShares(ctx, f.peer.ID, f.bot.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestShareService_MissingResource(t *testing.T) {
	f := newShareFixture(t)

	_, err := f.svc.ListShares(context.Background(), f.owner.ID, "no-such-bot")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "aiBotNotFound", appErr.Code)
	require.Equal(t, 404, appErr.StatusCode)
}

func TestShareService_AnonymousCaller(t *testing.T) {
	f := newShareFixture(t)

	_, err := f.svc.ListShares(context.Background(), "", f.bot.ID)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestShareService_CreateConflictRecoversAsUpdate(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	// Fill the slot the instant the service's Find comes back empty, so its
	// Create loses the race and hits the unique index. The only share_grants
	// lookup that misses during an upsert on an empty slot is that Find.
	var raced models.ShareGrant
	filled := false
	err := f.db.Callback().Query().After("gorm:query").Register("test:fill_grant_slot", func(tx *gorm.DB) {
		if filled || tx.Statement.Table != "share_grants" || !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return
		}
		filled = true
		raced = models.ShareGrant{
			ResourceType:  KindBot,
			ResourceID:    f.bot.ID,
			GranteeUserID: f.grantee.ID,
			Permission:    permissions.PermissionRead,
			GrantedBy:     f.owner.ID,
		}
		require.NoError(t, f.db.Create(&raced).Error)
	})
	require.NoError(t, err)

	result, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionFull,
	})
	require.NoError(t, err)
	require.True(t, filled)
	require.False(t, result.Created)
	require.Equal(t, raced.ID, result.Grant.ID)
	require.Equal(t, permissions.PermissionFull, result.Grant.Permission)

	var count int64
	require.NoError(t, f.db.Model(&models.ShareGrant{}).
		Where("resource_type = ? AND resource_id = ?", KindBot, f.bot.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestShareService_DeleteShare(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	created, err := f.svc.UpsertShare(ctx, f.owner.ID, f.bot.ID, UpsertShareInput{
		GranteeUserID: &f.grantee.ID,
		Permission:    permissions.PermissionRead,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteShare(ctx, f.owner.ID, f.bot.ID, created.Grant.ID))

	listed, err := f.svc.ListShares(ctx, f.owner.ID, f.bot.ID)
	require.NoError(t, err)
	require.Empty(t, listed)

	err = f.svc.DeleteShare(ctx, f.owner.ID, f.bot.ID, created.Grant.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
