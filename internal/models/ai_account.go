package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// AIAccount stores credentials for one AI provider account. The API key is
// sealed with the vault key before persisting and is never serialised back.
type AIAccount struct {
	BaseModel

	Name        string `gorm:"not null;index" json:"name"`
	Provider    string `gorm:"type:varchar(64);not null" json:"provider"`
	BaseURL     string `json:"baseUrl"`
	APIKey      string `gorm:"not null" json:"-"`
	OwnerUserID string `gorm:"type:uuid;not null;index" json:"ownerUserId"`

	Owner *User `gorm:"foreignKey:OwnerUserID" json:"-"`
}

// BeforeSave validates required account fields.
func (a *AIAccount) BeforeSave(tx *gorm.DB) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return errors.New("ai_account: name is required")
	}

	a.Provider = strings.TrimSpace(a.Provider)
	if a.Provider == "" {
		return errors.New("ai_account: provider is required")
	}

	a.OwnerUserID = strings.TrimSpace(a.OwnerUserID)
	if a.OwnerUserID == "" {
		return errors.New("ai_account: owner_user_id is required")
	}

	return nil
}
