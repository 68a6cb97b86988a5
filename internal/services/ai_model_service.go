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

// AIModelDTO is the API projection of a model catalog entry.
type AIModelDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Provider      string    `json:"provider"`
	ModelID       string    `json:"modelId"`
	ContextWindow int       `json:"contextWindow"`
	SupportsTools bool      `json:"supportsTools"`
	OwnerUserID   string    `json:"ownerUserId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	permissions.Flags
}

// AIModelInput carries create/update fields for a catalog entry.
type AIModelInput struct {
	Name          string
	Provider      string
	ModelID       string
	ContextWindow int
	SupportsTools bool
}

// AIModelService manages the AI model catalog.
type AIModelService struct {
	db       *gorm.DB
	grants   *GrantStore
	notFound *apperrors.AppError
}

// NewAIModelService constructs the model catalog service.
func NewAIModelService(db *gorm.DB) (*AIModelService, error) {
	if db == nil {
		return nil, errors.New("ai model service: db is required")
	}
	grants, err := NewGrantStore(db, KindAIModel)
	if err != nil {
		return nil, err
	}
	return &AIModelService{
		db:       db,
		grants:   grants,
		notFound: apperrors.NewNotFound("aiModelNotFound"),
	}, nil
}

// List returns every catalog entry visible to the caller with capability flags.
func (s *AIModelService) List(ctx context.Context, callerID string) ([]AIModelDTO, error) {
	ctx = ensureContext(ctx)

	var entries []models.AIModel
	if err := s.db.WithContext(ctx).
		Where("owner_user_id = ?", callerID).
		Or("id IN (?)", grantedResourceIDs(s.db, KindAIModel, callerID)).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ai model service: list models: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for i := range entries {
		ids = append(ids, entries[i].ID)
	}
	grantPairs, err := s.grants.ApplicableGrantsBulk(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]AIModelDTO, 0, len(entries))
	for i := range entries {
		pair := grantPairs[entries[i].ID]
		dtos = append(dtos, s.toDTO(&entries[i], callerID, pair[0], pair[1]))
	}
	return dtos, nil
}

// Get returns one catalog entry if the caller owns it or holds any grant on it.
func (s *AIModelService) Get(ctx context.Context, callerID, modelID string) (*AIModelDTO, error) {
	entry, pair, err := s.loadVisible(ctx, callerID, modelID)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(entry, callerID, pair[0], pair[1])
	return &dto, nil
}

// Create stores a new catalog entry owned by the caller.
func (s *AIModelService) Create(ctx context.Context, callerID string, input AIModelInput) (*AIModelDTO, error) {
	ctx = ensureContext(ctx)

	entry := models.AIModel{
		Name:          input.Name,
		Provider:      input.Provider,
		ModelID:       input.ModelID,
		ContextWindow: input.ContextWindow,
		SupportsTools: input.SupportsTools,
		OwnerUserID:   callerID,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(&entry, callerID, nil, nil)
	return &dto, nil
}

// Update modifies catalog fields. Requires ownership or an edit-capable grant.
func (s *AIModelService) Update(ctx context.Context, callerID, modelID string, input AIModelInput) (*AIModelDTO, error) {
	entry, pair, err := s.loadVisible(ctx, callerID, modelID)
	if err != nil {
		return nil, err
	}

	flags := permissions.Derive(entry.OwnerUserID == callerID, permissions.Effective(entry.OwnerUserID, callerID, pair[0], pair[1]))
	if !flags.CanEdit {
		return nil, apperrors.ErrForbidden
	}

	if strings.TrimSpace(input.Name) != "" {
		entry.Name = input.Name
	}
	if strings.TrimSpace(input.Provider) != "" {
		entry.Provider = input.Provider
	}
	if strings.TrimSpace(input.ModelID) != "" {
		entry.ModelID = input.ModelID
	}
	entry.ContextWindow = input.ContextWindow
	entry.SupportsTools = input.SupportsTools

	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(entry, callerID, pair[0], pair[1])
	return &dto, nil
}

// Delete removes a catalog entry and its grants. Owner only.
func (s *AIModelService) Delete(ctx context.Context, callerID, modelID string) error {
	entry, _, err := s.loadVisible(ctx, callerID, modelID)
	if err != nil {
		return err
	}
	if entry.OwnerUserID != callerID {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_type = ? AND resource_id = ?", KindAIModel, modelID).
			Delete(&models.ShareGrant{}).Error; err != nil {
			return fmt.Errorf("ai model service: delete grants: %w", err)
		}
		return tx.Delete(&models.AIModel{}, "id = ?", modelID).Error
	})
}

func (s *AIModelService) loadVisible(ctx context.Context, callerID, modelID string) (*models.AIModel, [2]*permissions.Permission, error) {
	ctx = ensureContext(ctx)

	var none [2]*permissions.Permission
	if strings.TrimSpace(callerID) == "" {
		return nil, none, apperrors.ErrUnauthorized
	}

	var entry models.AIModel
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", modelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, none, s.notFound
		}
		return nil, none, fmt.Errorf("ai model service: load model: %w", err)
	}

	personal, wildcard, err := s.grants.ApplicableGrants(ctx, modelID, callerID)
	if err != nil {
		return nil, none, err
	}
	if entry.OwnerUserID != callerID && permissions.Effective(entry.OwnerUserID, callerID, personal, wildcard) == nil {
		return nil, none, s.notFound
	}
	return &entry, [2]*permissions.Permission{personal, wildcard}, nil
}

func (s *AIModelService) toDTO(entry *models.AIModel, callerID string, personal, wildcard *permissions.Permission) AIModelDTO {
	return AIModelDTO{
		ID:            entry.ID,
		Name:          entry.Name,
		Provider:      entry.Provider,
		ModelID:       entry.ModelID,
		ContextWindow: entry.ContextWindow,
		SupportsTools: entry.SupportsTools,
		OwnerUserID:   entry.OwnerUserID,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
		Flags: permissions.Derive(
			entry.OwnerUserID == callerID,
			permissions.Effective(entry.OwnerUserID, callerID, personal, wildcard),
		),
	}
}
