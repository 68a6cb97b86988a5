package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	"github.com/woozar/paperless-ai-ngx/pkg/crypto"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// PaperlessInstanceDTO is the API projection of a Paperless-ngx deployment.
// The API token never leaves the service.
type PaperlessInstanceDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	BaseURL       string     `json:"baseUrl"`
	OwnerUserID   string     `json:"ownerUserId"`
	Status        string     `json:"status"`
	LastCheckedAt *time.Time `json:"lastCheckedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	permissions.Flags
}

// PaperlessInstanceInput carries create/update fields for an instance.
type PaperlessInstanceInput struct {
	Name     string
	BaseURL  string
	APIToken string
}

// PaperlessInstanceService manages external Paperless-ngx deployments.
type PaperlessInstanceService struct {
	db       *gorm.DB
	grants   *GrantStore
	vaultKey []byte
	notFound *apperrors.AppError
}

// NewPaperlessInstanceService constructs the instance service. The vault key
// seals API tokens at rest.
func NewPaperlessInstanceService(db *gorm.DB, vaultKey []byte) (*PaperlessInstanceService, error) {
	if db == nil {
		return nil, errors.New("paperless instance service: db is required")
	}
	if len(vaultKey) != 32 {
		return nil, errors.New("paperless instance service: vault key must be 32 bytes")
	}
	grants, err := NewGrantStore(db, KindPaperlessInstance)
	if err != nil {
		return nil, err
	}
	return &PaperlessInstanceService{
		db:       db,
		grants:   grants,
		vaultKey: vaultKey,
		notFound: apperrors.NewNotFound("paperlessInstanceNotFound"),
	}, nil
}

// List returns every instance visible to the caller with capability flags.
func (s *PaperlessInstanceService) List(ctx context.Context, callerID string) ([]PaperlessInstanceDTO, error) {
	ctx = ensureContext(ctx)

	var instances []models.PaperlessInstance
	if err := s.db.WithContext(ctx).
		Where("owner_user_id = ?", callerID).
		Or("id IN (?)", grantedResourceIDs(s.db, KindPaperlessInstance, callerID)).
		Order("created_at DESC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("paperless instance service: list instances: %w", err)
	}

	ids := make([]string, 0, len(instances))
	for i := range instances {
		ids = append(ids, instances[i].ID)
	}
	grantPairs, err := s.grants.ApplicableGrantsBulk(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PaperlessInstanceDTO, 0, len(instances))
	for i := range instances {
		pair := grantPairs[instances[i].ID]
		dtos = append(dtos, s.toDTO(&instances[i], callerID, pair[0], pair[1]))
	}
	return dtos, nil
}

// Get returns one instance if the caller owns it or holds any grant on it.
func (s *PaperlessInstanceService) Get(ctx context.Context, callerID, instanceID string) (*PaperlessInstanceDTO, error) {
	instance, pair, err := s.loadVisible(ctx, callerID, instanceID)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(instance, callerID, pair[0], pair[1])
	return &dto, nil
}

// Create stores a new instance owned by the caller, sealing its API token.
func (s *PaperlessInstanceService) Create(ctx context.Context, callerID string, input PaperlessInstanceInput) (*PaperlessInstanceDTO, error) {
	ctx = ensureContext(ctx)

	if err := validateBaseURL(input.BaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.APIToken) == "" {
		return nil, apperrors.NewBadRequest("api token is required")
	}
	sealed, err := crypto.SealSecret(strings.TrimSpace(input.APIToken), s.vaultKey)
	if err != nil {
		return nil, fmt.Errorf("paperless instance service: seal api token: %w", err)
	}

	instance := models.PaperlessInstance{
		Name:        input.Name,
		BaseURL:     input.BaseURL,
		APIToken:    sealed,
		OwnerUserID: callerID,
	}
	if err := s.db.WithContext(ctx).Create(&instance).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(&instance, callerID, nil, nil)
	return &dto, nil
}

// Update modifies instance fields. Requires ownership or an edit-capable grant.
func (s *PaperlessInstanceService) Update(ctx context.Context, callerID, instanceID string, input PaperlessInstanceInput) (*PaperlessInstanceDTO, error) {
	instance, pair, err := s.loadVisible(ctx, callerID, instanceID)
	if err != nil {
		return nil, err
	}

	flags := permissions.Derive(instance.OwnerUserID == callerID, permissions.Effective(instance.OwnerUserID, callerID, pair[0], pair[1]))
	if !flags.CanEdit {
		return nil, apperrors.ErrForbidden
	}

	if strings.TrimSpace(input.Name) != "" {
		instance.Name = input.Name
	}
	if strings.TrimSpace(input.BaseURL) != "" {
		if err := validateBaseURL(input.BaseURL); err != nil {
			return nil, err
		}
		instance.BaseURL = input.BaseURL
		instance.Status = models.InstanceStatusUnknown
	}
	if strings.TrimSpace(input.APIToken) != "" {
		sealed, err := crypto.SealSecret(strings.TrimSpace(input.APIToken), s.vaultKey)
		if err != nil {
			return nil, fmt.Errorf("paperless instance service: seal api token: %w", err)
		}
		instance.APIToken = sealed
	}

	if err := s.db.WithContext(ctx).Save(instance).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(instance, callerID, pair[0], pair[1])
	return &dto, nil
}

// Delete removes an instance and its grants. Owner only.
func (s *PaperlessInstanceService) Delete(ctx context.Context, callerID, instanceID string) error {
	instance, _, err := s.loadVisible(ctx, callerID, instanceID)
	if err != nil {
		return err
	}
	if instance.OwnerUserID != callerID {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_type = ? AND resource_id = ?", KindPaperlessInstance, instanceID).
			Delete(&models.ShareGrant{}).Error; err != nil {
			return fmt.Errorf("paperless instance service: delete grants: %w", err)
		}
		return tx.Delete(&models.PaperlessInstance{}, "id = ?", instanceID).Error
	})
}

// RevealAPIToken unseals the stored API token for talking to the instance.
// Owner only.
func (s *PaperlessInstanceService) RevealAPIToken(ctx context.Context, callerID, instanceID string) (string, error) {
	instance, _, err := s.loadVisible(ctx, callerID, instanceID)
	if err != nil {
		return "", err
	}
	if instance.OwnerUserID != callerID {
		return "", apperrors.ErrForbidden
	}
	token, err := crypto.OpenSecret(instance.APIToken, s.vaultKey)
	if err != nil {
		return "", fmt.Errorf("paperless instance service: open api token: %w", err)
	}
	return token, nil
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperrors.NewBadRequest("base url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return apperrors.NewBadRequest("base url must be an absolute http(s) URL")
	}
	return nil
}

func (s *PaperlessInstanceService) loadVisible(ctx context.Context, callerID, instanceID string) (*models.PaperlessInstance, [2]*permissions.Permission, error) {
	ctx = ensureContext(ctx)

	var none [2]*permissions.Permission
	if strings.TrimSpace(callerID) == "" {
		return nil, none, apperrors.ErrUnauthorized
	}

	var instance models.PaperlessInstance
	if err := s.db.WithContext(ctx).First(&instance, "id = ?", instanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, none, s.notFound
		}
		return nil, none, fmt.Errorf("paperless instance service: load instance: %w", err)
	}

	personal, wildcard, err := s.grants.ApplicableGrants(ctx, instanceID, callerID)
	if err != nil {
		return nil, none, err
	}
	if instance.OwnerUserID != callerID && permissions.Effective(instance.OwnerUserID, callerID, personal, wildcard) == nil {
		return nil, none, s.notFound
	}
	return &instance, [2]*permissions.Permission{personal, wildcard}, nil
}

func (s *PaperlessInstanceService) toDTO(instance *models.PaperlessInstance, callerID string, personal, wildcard *permissions.Permission) PaperlessInstanceDTO {
	return PaperlessInstanceDTO{
		ID:            instance.ID,
		Name:          instance.Name,
		BaseURL:       instance.BaseURL,
		OwnerUserID:   instance.OwnerUserID,
		Status:        instance.Status,
		LastCheckedAt: instance.LastCheckedAt,
		CreatedAt:     instance.CreatedAt,
		UpdatedAt:     instance.UpdatedAt,
		Flags: permissions.Derive(
			instance.OwnerUserID == callerID,
			permissions.Effective(instance.OwnerUserID, callerID, personal, wildcard),
		),
	}
}
