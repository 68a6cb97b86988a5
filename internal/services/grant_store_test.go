package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/woozar/paperless-ai-ngx/internal/database/testutil"
	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
)

func TestGrantStore_CreateFindUpdateDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	grantee := models.User{Username: "grantee", Email: "grantee@example.com", Password: "secret"}
	require.NoError(t, db.Create(&grantee).Error)

	store, err := NewGrantStore(db, KindBot)
	require.NoError(t, err)

	ctx := context.Background()

	created, err := store.Create(ctx, "bot-1", &grantee.ID, permissions.PermissionWrite, owner.ID)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, permissions.PermissionWrite, created.Permission)
	require.Equal(t, grantee.ID, created.GranteeUserID)

	found, err := store.Find(ctx, "bot-1", &grantee.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)

	updated, err := store.Update(ctx, created.ID, permissions.PermissionFull)
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, permissions.PermissionFull, updated.Permission)

	require.NoError(t, store.Delete(ctx, "bot-1", created.ID))

	found, err = store.Find(ctx, "bot-1", &grantee.ID)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestGrantStore_CreateConflictOnFilledSlot(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	grantee := models.User{Username: "grantee", Email: "grantee@example.com", Password: "secret"}
	require.NoError(t, db.Create(&grantee).Error)

	store, err := NewGrantStore(db, KindAIAccount)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Create(ctx, "acct-1", &grantee.ID, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)

	_, err = store.Create(ctx, "acct-1", &grantee.ID, permissions.PermissionFull, owner.ID)
	require.ErrorIs(t, err, ErrGrantConflict)

	// The same grantee on another resource, and another grantee on the same
	// resource, both remain free slots.
	_, err = store.Create(ctx, "acct-2", &grantee.ID, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)
	_, err = store.Create(ctx, "acct-1", nil, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)
}

func TestGrantStore_WildcardSlot(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)

	store, err := NewGrantStore(db, KindPaperlessInstance)
	require.NoError(t, err)

	ctx := context.Background()

	created, err := store.Create(ctx, "inst-1", nil, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)
	require.True(t, created.IsWildcard())
	require.Nil(t, created.Grantee())

	found, err := store.Find(ctx, "inst-1", nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)

	// The wildcard slot obeys the same one-grant-per-slot rule.
	_, err = store.Create(ctx, "inst-1", nil, permissions.PermissionWrite, owner.ID)
	require.ErrorIs(t, err, ErrGrantConflict)

	infos, err := store.List(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Nil(t, infos[0].UserID)
	require.Nil(t, infos[0].Username)
}

func TestGrantStore_UpdateMissingGrant(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	store, err := NewGrantStore(db, KindBot)
	require.NoError(t, err)

	_, err = store.Update(context.Background(), "no-such-grant", permissions.PermissionRead)
	require.ErrorIs(t, err, ErrGrantVanished)
}

func TestGrantStore_ListOrderAndUsernames(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	alice := models.User{Username: "alice", Email: "alice@example.com", Password: "secret"}
	require.NoError(t, db.Create(&alice).Error)
	bob := models.User{Username: "bob", Email: "bob@example.com", Password: "secret"}
	require.NoError(t, db.Create(&bob).Error)

	store, err := NewGrantStore(db, KindAIModel)
	require.NoError(t, err)

	ctx := context.Background()

	older := models.ShareGrant{
		ResourceType:  KindAIModel,
		ResourceID:    "model-1",
		GranteeUserID: alice.ID,
		Permission:    permissions.PermissionRead,
		GrantedBy:     owner.ID,
	}
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, db.Create(&older).Error)

	newer, err := store.Create(ctx, "model-1", &bob.ID, permissions.PermissionWrite, owner.ID)
	require.NoError(t, err)

	infos, err := store.List(ctx, "model-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	require.Equal(t, newer.ID, infos[0].ID)
	require.NotNil(t, infos[0].Username)
	require.Equal(t, "bob", *infos[0].Username)

	require.Equal(t, older.ID, infos[1].ID)
	require.NotNil(t, infos[1].Username)
	require.Equal(t, "alice", *infos[1].Username)

	// Grants of other resources stay out of the listing.
	_, err = store.Create(ctx, "model-2", &alice.ID, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)
	infos, err = store.List(ctx, "model-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
}

func TestGrantStore_ApplicableGrants(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "secret"}
	require.NoError(t, db.Create(&owner).Error)
	caller := models.User{Username: "caller", Email: "caller@example.com", Password: "secret"}
	require.NoError(t, db.Create(&caller).Error)
	other := models.User{Username: "other", Email: "other@example.com", Password: "secret"}
	require.NoError(t, db.Create(&other).Error)

	store, err := NewGrantStore(db, KindBot)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Create(ctx, "bot-1", &caller.ID, permissions.PermissionRead, owner.ID)
	require.NoError(t, err)
	_, err = store.Create(ctx, "bot-1", nil, permissions.PermissionFull, owner.ID)
	require.NoError(t, err)
	_, err = store.Create(ctx, "bot-1", &other.ID, permissions.PermissionWrite, owner.ID)
	require.NoError(t, err)

	personal, wildcard, err := store.ApplicableGrants(ctx, "bot-1", caller.ID)
	require.NoError(t, err)
	require.NotNil(t, personal)
	require.Equal(t, permissions.PermissionRead, *personal)
	require.NotNil(t, wildcard)
	require.Equal(t, permissions.PermissionFull, *wildcard)

	bulk, err := store.ApplicableGrantsBulk(ctx, []string{"bot-1", "bot-2"}, caller.ID)
	require.NoError(t, err)
	require.Len(t, bulk, 1)
	pair := bulk["bot-1"]
	require.NotNil(t, pair[0])
	require.Equal(t, permissions.PermissionRead, *pair[0])
	require.NotNil(t, pair[1])
	require.Equal(t, permissions.PermissionFull, *pair[1])
}
