package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// GrantInfo is the API-facing projection of a share grant. UserID and
// Username are nil for the wildcard grant.
type GrantInfo struct {
	ID         string                 `json:"id"`
	UserID     *string                `json:"userId"`
	Username   *string                `json:"username"`
	Permission permissions.Permission `json:"permission"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// GrantStore persists share grants for a single resource kind. The composite
// unique index on (resource_type, resource_id, grantee_user_id) backs the
// one-grant-per-slot invariant; the wildcard slot participates like any
// other grantee.
type GrantStore struct {
	db           *gorm.DB
	resourceType string
}

// NewGrantStore constructs a grant store scoped to one resource kind.
func NewGrantStore(db *gorm.DB, resourceType string) (*GrantStore, error) {
	if db == nil {
		return nil, errors.New("grant store: db is required")
	}
	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return nil, errors.New("grant store: resource type is required")
	}
	return &GrantStore{db: db, resourceType: resourceType}, nil
}

// List returns the resource's grants most-recent-first, enriched with the
// grantee's username where the grantee is a specific user.
func (s *GrantStore) List(ctx context.Context, resourceID string) ([]GrantInfo, error) {
	var grants []models.ShareGrant
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", s.resourceType, resourceID).
		Order("created_at DESC, id DESC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("grant store (%s): list grants: %w", s.resourceType, err)
	}

	usernames, err := s.loadUsernames(ctx, grants)
	if err != nil {
		return nil, err
	}

	infos := make([]GrantInfo, 0, len(grants))
	for i := range grants {
		infos = append(infos, toGrantInfo(&grants[i], usernames))
	}
	return infos, nil
}

// Find returns the grant occupying the exact (resource, grantee) slot, the
// wildcard slot when granteeUserID is nil, or nil when the slot is empty.
func (s *GrantStore) Find(ctx context.Context, resourceID string, granteeUserID *string) (*models.ShareGrant, error) {
	var grant models.ShareGrant
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND grantee_user_id = ?",
			s.resourceType, resourceID, models.GranteeColumnValue(granteeUserID)).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("grant store (%s): find grant: %w", s.resourceType, err)
	}
	return &grant, nil
}

// Create inserts a grant for an empty (resource, grantee) slot. A filled slot
// surfaces as ErrGrantConflict; callers are expected to Find first and route
// to Update, the store defends the invariant regardless.
func (s *GrantStore) Create(ctx context.Context, resourceID string, granteeUserID *string, permission permissions.Permission, grantedBy string) (*models.ShareGrant, error) {
	grant := models.ShareGrant{
		ResourceType:  s.resourceType,
		ResourceID:    resourceID,
		GranteeUserID: models.GranteeColumnValue(granteeUserID),
		Permission:    permission,
		GrantedBy:     grantedBy,
	}

	if err := s.db.WithContext(ctx).Create(&grant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrGrantConflict
		}
		return nil, fmt.Errorf("grant store (%s): create grant: %w", s.resourceType, err)
	}
	return &grant, nil
}

// Update changes the permission of an existing grant in place.
func (s *GrantStore) Update(ctx context.Context, grantID string, permission permissions.Permission) (*models.ShareGrant, error) {
	var grant models.ShareGrant
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND id = ?", s.resourceType, grantID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGrantVanished
		}
		return nil, fmt.Errorf("grant store (%s): load grant: %w", s.resourceType, err)
	}

	grant.Permission = permission
	if err := s.db.WithContext(ctx).Model(&grant).Update("permission", permission).Error; err != nil {
		return nil, fmt.Errorf("grant store (%s): update grant: %w", s.resourceType, err)
	}
	return &grant, nil
}

// Delete removes a grant by id, scoped to the resource for safety.
func (s *GrantStore) Delete(ctx context.Context, resourceID, grantID string) error {
	result := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND id = ?", s.resourceType, resourceID, grantID).
		Delete(&models.ShareGrant{})
	if result.Error != nil {
		return fmt.Errorf("grant store (%s): delete grant: %w", s.resourceType, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ApplicableGrants returns the caller's personal grant and the resource's
// wildcard grant, either of which may be nil.
func (s *GrantStore) ApplicableGrants(ctx context.Context, resourceID, userID string) (personal, wildcard *permissions.Permission, err error) {
	var grants []models.ShareGrant
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND grantee_user_id IN ?",
			s.resourceType, resourceID, []string{userID, models.WildcardGrantee}).
		Find(&grants).Error; err != nil {
		return nil, nil, fmt.Errorf("grant store (%s): load applicable grants: %w", s.resourceType, err)
	}

	for i := range grants {
		perm := grants[i].Permission
		if grants[i].IsWildcard() {
			wildcard = &perm
		} else {
			personal = &perm
		}
	}
	return personal, wildcard, nil
}

// ApplicableGrantsBulk resolves personal and wildcard grants for many
// resources in one query, keyed by resource id. Used when folding permission
// flags into resource listings.
func (s *GrantStore) ApplicableGrantsBulk(ctx context.Context, resourceIDs []string, userID string) (map[string][2]*permissions.Permission, error) {
	result := make(map[string][2]*permissions.Permission, len(resourceIDs))
	if len(resourceIDs) == 0 {
		return result, nil
	}

	var grants []models.ShareGrant
	if err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id IN ? AND grantee_user_id IN ?",
			s.resourceType, resourceIDs, []string{userID, models.WildcardGrantee}).
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("grant store (%s): load applicable grants: %w", s.resourceType, err)
	}

	for i := range grants {
		pair := result[grants[i].ResourceID]
		perm := grants[i].Permission
		if grants[i].IsWildcard() {
			pair[1] = &perm
		} else {
			pair[0] = &perm
		}
		result[grants[i].ResourceID] = pair
	}
	return result, nil
}

func (s *GrantStore) loadUsernames(ctx context.Context, grants []models.ShareGrant) (map[string]string, error) {
	ids := make([]string, 0, len(grants))
	for i := range grants {
		if !grants[i].IsWildcard() {
			ids = append(ids, grants[i].GranteeUserID)
		}
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Select("id", "username").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("grant store (%s): load grantee users: %w", s.resourceType, err)
	}

	usernames := make(map[string]string, len(users))
	for _, user := range users {
		usernames[user.ID] = user.Username
	}
	return usernames, nil
}

func toGrantInfo(grant *models.ShareGrant, usernames map[string]string) GrantInfo {
	info := GrantInfo{
		ID:         grant.ID,
		UserID:     grant.Grantee(),
		Permission: grant.Permission,
		CreatedAt:  grant.CreatedAt,
	}
	if info.UserID != nil {
		if name, ok := usernames[*info.UserID]; ok {
			info.Username = &name
		}
	}
	return info
}
