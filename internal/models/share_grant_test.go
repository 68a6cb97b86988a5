package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/woozar/paperless-ai-ngx/internal/permissions"
)

func TestShareGrantBeforeSaveValidates(t *testing.T) {
	grant := &ShareGrant{}
	err := grant.BeforeSave(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "resource_type")

	grant.ResourceType = "bot"
	err = grant.BeforeSave(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "resource_id")

	grant.ResourceID = "bot-1"
	err = grant.BeforeSave(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid permission")

	grant.Permission = permissions.PermissionRead
	err = grant.BeforeSave(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "granted_by")

	grant.GrantedBy = "owner-1"
	require.NoError(t, grant.BeforeSave(nil))

	grant.Permission = permissions.Permission("ALL")
	err = grant.BeforeSave(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid permission")
}

func TestShareGrantWildcardSlot(t *testing.T) {
	grant := &ShareGrant{GranteeUserID: WildcardGrantee}
	require.True(t, grant.IsWildcard())
	require.Nil(t, grant.Grantee())

	grant.GranteeUserID = "user-2"
	require.False(t, grant.IsWildcard())
	require.NotNil(t, grant.Grantee())
	require.Equal(t, "user-2", *grant.Grantee())
}

func TestGranteeColumnValue(t *testing.T) {
	require.Equal(t, WildcardGrantee, GranteeColumnValue(nil))

	id := " user-7 "
	require.Equal(t, "user-7", GranteeColumnValue(&id))
}
