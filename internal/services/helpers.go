package services

import (
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
)

// grantedResourceIDs builds the sub-query selecting every resource id of the
// given kind that callerID can see through a personal or wildcard grant.
func grantedResourceIDs(db *gorm.DB, kind, callerID string) *gorm.DB {
	return db.Model(&models.ShareGrant{}).
		Select("resource_id").
		Where("resource_type = ? AND grantee_user_id IN ?", kind, []string{callerID, models.WildcardGrantee})
}
