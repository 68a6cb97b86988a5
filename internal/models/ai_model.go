package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// AIModel is a catalog entry describing one model offered by a provider.
type AIModel struct {
	BaseModel

	Name          string `gorm:"not null;index" json:"name"`
	Provider      string `gorm:"type:varchar(64);not null" json:"provider"`
	ModelID       string `gorm:"not null" json:"modelId"`
	ContextWindow int    `json:"contextWindow"`
	SupportsTools bool   `gorm:"default:false" json:"supportsTools"`
	OwnerUserID   string `gorm:"type:uuid;not null;index" json:"ownerUserId"`

	Owner *User `gorm:"foreignKey:OwnerUserID" json:"-"`
}

// BeforeSave validates required catalog fields.
func (m *AIModel) BeforeSave(tx *gorm.DB) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return errors.New("ai_model: name is required")
	}

	m.ModelID = strings.TrimSpace(m.ModelID)
	if m.ModelID == "" {
		return errors.New("ai_model: model_id is required")
	}

	m.OwnerUserID = strings.TrimSpace(m.OwnerUserID)
	if m.OwnerUserID == "" {
		return errors.New("ai_model: owner_user_id is required")
	}

	return nil
}
