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
	"github.com/woozar/paperless-ai-ngx/pkg/crypto"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// AIAccountDTO is the API projection of an AI credential account. The API
// key never leaves the service.
type AIAccountDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	BaseURL     string    `json:"baseUrl"`
	OwnerUserID string    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	permissions.Flags
}

// AIAccountInput carries create/update fields for an account.
type AIAccountInput struct {
	Name     string
	Provider string
	BaseURL  string
	APIKey   string
}

// AIAccountService manages AI provider credential accounts.
type AIAccountService struct {
	db       *gorm.DB
	grants   *GrantStore
	vaultKey []byte
	notFound *apperrors.AppError
}

// NewAIAccountService constructs the account service. The vault key seals
// API keys at rest.
func NewAIAccountService(db *gorm.DB, vaultKey []byte) (*AIAccountService, error) {
	if db == nil {
		return nil, errors.New("ai account service: db is required")
	}
	if len(vaultKey) != 32 {
		return nil, errors.New("ai account service: vault key must be 32 bytes")
	}
	grants, err := NewGrantStore(db, KindAIAccount)
	if err != nil {
		return nil, err
	}
	return &AIAccountService{
		db:       db,
		grants:   grants,
		vaultKey: vaultKey,
		notFound: apperrors.NewNotFound("aiAccountNotFound"),
	}, nil
}

// List returns every account the caller owns or has been granted access to,
// each with the caller's capability flags folded in.
func (s *AIAccountService) List(ctx context.Context, callerID string) ([]AIAccountDTO, error) {
	ctx = ensureContext(ctx)

	var accounts []models.AIAccount
	if err := s.db.WithContext(ctx).
		Where("owner_user_id = ?", callerID).
		Or("id IN (?)", grantedResourceIDs(s.db, KindAIAccount, callerID)).
		Order("created_at DESC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("ai account service: list accounts: %w", err)
	}

	ids := make([]string, 0, len(accounts))
	for i := range accounts {
		ids = append(ids, accounts[i].ID)
	}
	grantPairs, err := s.grants.ApplicableGrantsBulk(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]AIAccountDTO, 0, len(accounts))
	for i := range accounts {
		pair := grantPairs[accounts[i].ID]
		dtos = append(dtos, s.toDTO(&accounts[i], callerID, pair[0], pair[1]))
	}
	return dtos, nil
}

// Get returns one account if the caller owns it or holds any grant on it.
func (s *AIAccountService) Get(ctx context.Context, callerID, accountID string) (*AIAccountDTO, error) {
	account, flagsHolder, err := s.loadVisible(ctx, callerID, accountID)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(account, callerID, flagsHolder[0], flagsHolder[1])
	return &dto, nil
}

// Create stores a new account owned by the caller, sealing its API key.
func (s *AIAccountService) Create(ctx context.Context, callerID string, input AIAccountInput) (*AIAccountDTO, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.APIKey) == "" {
		return nil, apperrors.NewBadRequest("api key is required")
	}
	sealed, err := crypto.SealSecret(strings.TrimSpace(input.APIKey), s.vaultKey)
	if err != nil {
		return nil, fmt.Errorf("ai account service: seal api key: %w", err)
	}

	account := models.AIAccount{
		Name:        input.Name,
		Provider:    input.Provider,
		BaseURL:     strings.TrimSpace(input.BaseURL),
		APIKey:      sealed,
		OwnerUserID: callerID,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(&account, callerID, nil, nil)
	return &dto, nil
}

// Update modifies account fields. Requires ownership or an edit-capable grant.
func (s *AIAccountService) Update(ctx context.Context, callerID, accountID string, input AIAccountInput) (*AIAccountDTO, error) {
	account, pair, err := s.loadVisible(ctx, callerID, accountID)
	if err != nil {
		return nil, err
	}

	flags := permissions.Derive(account.OwnerUserID == callerID, permissions.Effective(account.OwnerUserID, callerID, pair[0], pair[1]))
	if !flags.CanEdit {
		return nil, apperrors.ErrForbidden
	}

	if strings.TrimSpace(input.Name) != "" {
		account.Name = input.Name
	}
	if strings.TrimSpace(input.Provider) != "" {
		account.Provider = input.Provider
	}
	account.BaseURL = strings.TrimSpace(input.BaseURL)
	if strings.TrimSpace(input.APIKey) != "" {
		sealed, err := crypto.SealSecret(strings.TrimSpace(input.APIKey), s.vaultKey)
		if err != nil {
			return nil, fmt.Errorf("ai account service: seal api key: %w", err)
		}
		account.APIKey = sealed
	}

	if err := s.db.WithContext(ctx).Save(account).Error; err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	dto := s.toDTO(account, callerID, pair[0], pair[1])
	return &dto, nil
}

// Delete removes an account and its grants. Owner only.
func (s *AIAccountService) Delete(ctx context.Context, callerID, accountID string) error {
	account, _, err := s.loadVisible(ctx, callerID, accountID)
	if err != nil {
		return err
	}
	if account.OwnerUserID != callerID {
		return apperrors.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_type = ? AND resource_id = ?", KindAIAccount, accountID).
			Delete(&models.ShareGrant{}).Error; err != nil {
			return fmt.Errorf("ai account service: delete grants: %w", err)
		}
		return tx.Delete(&models.AIAccount{}, "id = ?", accountID).Error
	})
}

// RevealAPIKey unseals the stored API key for provider invocation. Owner only.
func (s *AIAccountService) RevealAPIKey(ctx context.Context, callerID, accountID string) (string, error) {
	account, _, err := s.loadVisible(ctx, callerID, accountID)
	if err != nil {
		return "", err
	}
	if account.OwnerUserID != callerID {
		return "", apperrors.ErrForbidden
	}
	key, err := crypto.OpenSecret(account.APIKey, s.vaultKey)
	if err != nil {
		return "", fmt.Errorf("ai account service: open api key: %w", err)
	}
	return key, nil
}

func (s *AIAccountService) loadVisible(ctx context.Context, callerID, accountID string) (*models.AIAccount, [2]*permissions.Permission, error) {
	ctx = ensureContext(ctx)

	var none [2]*permissions.Permission
	if strings.TrimSpace(callerID) == "" {
		return nil, none, apperrors.ErrUnauthorized
	}

	var account models.AIAccount
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, none, s.notFound
		}
		return nil, none, fmt.Errorf("ai account service: load account: %w", err)
	}

	personal, wildcard, err := s.grants.ApplicableGrants(ctx, accountID, callerID)
	if err != nil {
		return nil, none, err
	}
	if account.OwnerUserID != callerID && permissions.Effective(account.OwnerUserID, callerID, personal, wildcard) == nil {
		return nil, none, s.notFound
	}
	return &account, [2]*permissions.Permission{personal, wildcard}, nil
}

func (s *AIAccountService) toDTO(account *models.AIAccount, callerID string, personal, wildcard *permissions.Permission) AIAccountDTO {
	return AIAccountDTO{
		ID:          account.ID,
		Name:        account.Name,
		Provider:    account.Provider,
		BaseURL:     account.BaseURL,
		OwnerUserID: account.OwnerUserID,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
		Flags: permissions.Derive(
			account.OwnerUserID == callerID,
			permissions.Effective(account.OwnerUserID, callerID, personal, wildcard),
		),
	}
}
