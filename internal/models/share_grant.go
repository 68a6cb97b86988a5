package models

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/permissions"
)

// WildcardGrantee is the sentinel stored in place of a user id when a grant
// applies to every authenticated user. An empty string rather than SQL NULL
// keeps the composite unique index enforceable on every supported driver
// (SQLite and PostgreSQL treat NULLs as distinct index entries).
const WildcardGrantee = ""

// ShareGrant attaches a permission level to a (resource, grantee) pair.
// Exactly one row may exist per slot, the wildcard slot included.
type ShareGrant struct {
	BaseModel

	ResourceType  string                 `gorm:"type:varchar(32);not null;uniqueIndex:idx_share_grant_slot,priority:1" json:"resourceType"`
	ResourceID    string                 `gorm:"type:uuid;not null;uniqueIndex:idx_share_grant_slot,priority:2;index" json:"resourceId"`
	GranteeUserID string                 `gorm:"type:uuid;not null;default:'';uniqueIndex:idx_share_grant_slot,priority:3" json:"-"`
	Permission    permissions.Permission `gorm:"type:varchar(16);not null" json:"permission"`
	GrantedBy     string                 `gorm:"type:uuid;not null" json:"grantedBy"`
}

// TableName overrides the default table name for GORM.
func (ShareGrant) TableName() string {
	return "share_grants"
}

// IsWildcard reports whether the grant applies to every authenticated user.
func (g *ShareGrant) IsWildcard() bool {
	return g.GranteeUserID == WildcardGrantee
}

// Grantee returns the grantee user id as an optional value, nil for the
// wildcard slot. The storage sentinel never leaves the model layer.
func (g *ShareGrant) Grantee() *string {
	if g.IsWildcard() {
		return nil
	}
	id := g.GranteeUserID
	return &id
}

// GranteeColumnValue converts an optional grantee id to its storage form.
func GranteeColumnValue(granteeUserID *string) string {
	if granteeUserID == nil {
		return WildcardGrantee
	}
	return strings.TrimSpace(*granteeUserID)
}

// BeforeSave validates resource and permission metadata.
func (g *ShareGrant) BeforeSave(tx *gorm.DB) error {
	g.ResourceType = strings.TrimSpace(g.ResourceType)
	if g.ResourceType == "" {
		return errors.New("share_grant: resource_type is required")
	}

	g.ResourceID = strings.TrimSpace(g.ResourceID)
	if g.ResourceID == "" {
		return errors.New("share_grant: resource_id is required")
	}

	if !g.Permission.Valid() {
		return fmt.Errorf("share_grant: invalid permission %q", g.Permission)
	}

	g.GrantedBy = strings.TrimSpace(g.GrantedBy)
	if g.GrantedBy == "" {
		return errors.New("share_grant: granted_by is required")
	}

	return nil
}
