package models

import (
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Bot binds an AI account and model together with a prompt into a reusable
// document-processing assistant.
type Bot struct {
	BaseModel

	Name         string  `gorm:"not null;index" json:"name"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"systemPrompt"`
	AIAccountID  *string `gorm:"type:uuid;index" json:"aiAccountId"`
	AIModelID    *string `gorm:"type:uuid;index" json:"aiModelId"`
	OwnerUserID  string  `gorm:"type:uuid;not null;index" json:"ownerUserId"`

	// Parameters holds provider invocation settings (temperature, top_p and
	// similar) as an opaque JSON document.
	Parameters datatypes.JSON `json:"parameters"`

	Owner     *User      `gorm:"foreignKey:OwnerUserID" json:"-"`
	AIAccount *AIAccount `gorm:"foreignKey:AIAccountID" json:"-"`
	AIModel   *AIModel   `gorm:"foreignKey:AIModelID" json:"-"`
}

// BeforeSave validates required bot fields.
func (b *Bot) BeforeSave(tx *gorm.DB) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return errors.New("bot: name is required")
	}

	b.OwnerUserID = strings.TrimSpace(b.OwnerUserID)
	if b.OwnerUserID == "" {
		return errors.New("bot: owner_user_id is required")
	}

	return nil
}
