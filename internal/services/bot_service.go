package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// BotDTO is the API projection of an AI bot.
type BotDTO struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	SystemPrompt string         `json:"systemPrompt"`
	AIAccountID  *string        `json:"aiAccountId"`
	AIModelID    *string        `json:"aiModelId"`
	OwnerUserID  string         `json:"ownerUserId"`
	Parameters   datatypes.JSON `json:"parameters"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	permissions.Flags
}

// BotInput carries create/update fields for a bot. Parameters replaces the
// stored document wholesale when non-nil.
type BotInput struct {
	Name         string
	Description  string
	SystemPrompt string
	AIAccountID  *string
	AIModelID    *string
	Parameters   map[string]any
}

// BotService manages AI bots.
type BotService struct {
	db       *gorm.DB
	grants   *GrantStore
	notFound *apperrors.AppError
}

// NewBotService constructs the bot service.
func NewBotService(db *gorm.DB) (*BotService, error) {
	if db == nil {
		return nil, errors.New("bot service: db is required")
	}
	grants, err := NewGrantStore(db, KindBot)
	if err != nil {
		return nil, err
	}
	return &BotService{
		db:       db,
		grants:   grants,
		notFound: apperrors.NewNotFound("aiBotNotFound"),
	}, nil
}

// List returns every bot visible to the caller with capability flags.
func (s *BotService) List(ctx context.Context, callerID string) ([]BotDTO, error) {
	ctx = ensureContext(ctx)

	var bots []models.Bot
	if err := s.db.WithContext(ctx).
		Where("owner_user_id = ?", callerID).
		Or("id IN (?)", grantedResourceIDs(s.db, KindBot, callerID)).
		Order("created_at DESC").
		Find(&bots).Error; err != nil {
		return nil, fmt.Errorf("bot service: list bots: %w", err)
	}

	ids := make([]string, 0, len(bots))
	for i := range bots {
		ids = append(ids, bots[i].ID)
	}
	grantPairs, err := s.grants.ApplicableGrantsBulk(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]BotDTO, 0, len(bots))
	for i := range bots {
		pair := grantPairs[bots[i].ID]
		dtos = append(dtos, s.toDTO(&bots[i], callerID, pair[0], pair[1]))
	}
	return dtos, nil
}

// Get returns one bot if the caller owns it or holds any grant on it.
func (s *BotService) Get(ctx context.Context, callerID, botID string) (*BotDTO, error) {
	bot, pair, err := s.loadVisible(ctx, callerID, botID)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(bot, callerID, pair[0], pair[1])
	return &dto, nil
}

// Create stores a new bot owned by the caller. Referenced accounts and
// models must exist and be visible to the caller.
func (s *BotService) Create(ctx context.Context, callerID string, input BotInput) (*BotDTO, error) {
	ctx = ensureContext(ctx)

	if err := s.validateReferences(ctx, input); err != nil {
		return nil, err
	}

	parameters, err := encodeParameters(input.Parameters)
	if err != nil {
		return nil, err
	}

	bot := models.Bot{
		Name:         input.Name,
		Description:  input.Description,
		SystemPrompt: input.SystemPrompt,
		AIAccountID:  input.AIAccountID,
		AIModelID:    input.AIModelID,
		OwnerUserID:  callerID,
		Parameters:   parameters,
	}
	if err := s.db.WithContext(ctx).Create(&bot).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(&bot, callerID, nil, nil)
	return &dto, nil
}

// Update modifies bot fields. Requires ownership or an edit-capable grant.
func (s *BotService) Update(ctx context.Context, callerID, botID string, input BotInput) (*BotDTO, error) {
	bot, pair, err := s.loadVisible(ctx, callerID, botID)
	if err != nil {
		return nil, err
	}

	flags := permissions.Derive(bot.OwnerUserID == callerID, permissions.Effective(bot.OwnerUserID, callerID, pair[0], pair[1]))
	if !flags.CanEdit {
		return nil, apperrors.ErrForbidden
	}

	if err := s.validateReferences(ctx, input); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Name) != "" {
		bot.Name = input.Name
	}
	bot.Description = input.Description
	bot.SystemPrompt = input.SystemPrompt
	bot.AIAccountID = input.AIAccountID
	bot.AIModelID = input.AIModelID
	if input.Parameters != nil {
		parameters, err := encodeParameters(input.Parameters)
		if err != nil {
			return nil, err
		}
		bot.Parameters = parameters
	}

	if err := s.db.WithContext(ctx).Save(bot).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(bot, callerID, pair[0], pair[1])
	return &dto, nil
}

// Delete removes a bot and its grants. Owner only.
func (s *BotService) Delete(ctx context.Context, callerID, botID string) error {
	bot, _, err := s.loadVisible(ctx, callerID, botID)
	if err != nil {
		return err
	}
	if bot.OwnerUserID != callerID {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_type = ? AND resource_id = ?", KindBot, botID).
			Delete(&models.ShareGrant{}).Error; err != nil {
			return fmt.Errorf("bot service: delete grants: %w", err)
		}
		return tx.Delete(&models.Bot{}, "id = ?", botID).Error
	})
}

func (s *BotService) validateReferences(ctx context.Context, input BotInput) error {
	if input.AIAccountID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.AIAccount{}).
			Where("id = ?", *input.AIAccountID).Count(&count).Error; err != nil {
			return fmt.Errorf("bot service: check account reference: %w", err)
		}
		if count == 0 {
			return apperrors.NewBadRequest("referenced AI account does not exist")
		}
	}
	if input.AIModelID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.AIModel{}).
			Where("id = ?", *input.AIModelID).Count(&count).Error; err != nil {
			return fmt.Errorf("bot service: check model reference: %w", err)
		}
		if count == 0 {
			return apperrors.NewBadRequest("referenced AI model does not exist")
		}
	}
	return nil
}

func (s *BotService) loadVisible(ctx context.Context, callerID, botID string) (*models.Bot, [2]*permissions.Permission, error) {
	ctx = ensureContext(ctx)

	var none [2]*permissions.Permission
	if strings.TrimSpace(callerID) == "" {
		return nil, none, apperrors.ErrUnauthorized
	}

	var bot models.Bot
	if err := s.db.WithContext(ctx).First(&bot, "id = ?", botID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, none, s.notFound
		}
		return nil, none, fmt.Errorf("bot service: load bot: %w", err)
	}

	personal, wildcard, err := s.grants.ApplicableGrants(ctx, botID, callerID)
	if err != nil {
		return nil, none, err
	}
	if bot.OwnerUserID != callerID && permissions.Effective(bot.OwnerUserID, callerID, personal, wildcard) == nil {
		return nil, none, s.notFound
	}
	return &bot, [2]*permissions.Permission{personal, wildcard}, nil
}

func encodeParameters(params map[string]any) (datatypes.JSON, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid bot parameters: %v", err))
	}
	return datatypes.JSON(raw), nil
}

func (s *BotService) toDTO(bot *models.Bot, callerID string, personal, wildcard *permissions.Permission) BotDTO {
	return BotDTO{
		ID:           bot.ID,
		Name:         bot.Name,
		Description:  bot.Description,
		SystemPrompt: bot.SystemPrompt,
		AIAccountID:  bot.AIAccountID,
		AIModelID:    bot.AIModelID,
		OwnerUserID:  bot.OwnerUserID,
		Parameters:   bot.Parameters,
		CreatedAt:    bot.CreatedAt,
		UpdatedAt:    bot.UpdatedAt,
		Flags: permissions.Derive(
			bot.OwnerUserID == callerID,
			permissions.Effective(bot.OwnerUserID, callerID, personal, wildcard),
		),
	}
}
