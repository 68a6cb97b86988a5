package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Instance status values maintained by the reachability monitor.
const (
	InstanceStatusUnknown     = "unknown"
	InstanceStatusReachable   = "reachable"
	InstanceStatusUnreachable = "unreachable"
)

// PaperlessInstance points at one external Paperless-ngx deployment. The API
// token is sealed with the vault key before persisting.
type PaperlessInstance struct {
	BaseModel

	Name        string `gorm:"not null;index" json:"name"`
	BaseURL     string `gorm:"not null" json:"baseUrl"`
	APIToken    string `gorm:"not null" json:"-"`
	OwnerUserID string `gorm:"type:uuid;not null;index" json:"ownerUserId"`

	Status        string     `gorm:"type:varchar(16);default:unknown" json:"status"`
	LastCheckedAt *time.Time `json:"lastCheckedAt"`

	Owner *User `gorm:"foreignKey:OwnerUserID" json:"-"`
}

// BeforeSave validates required instance fields.
func (p *PaperlessInstance) BeforeSave(tx *gorm.DB) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("paperless_instance: name is required")
	}

	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		return errors.New("paperless_instance: base_url is required")
	}

	p.OwnerUserID = strings.TrimSpace(p.OwnerUserID)
	if p.OwnerUserID == "" {
		return errors.New("paperless_instance: owner_user_id is required")
	}

	if p.Status == "" {
		p.Status = InstanceStatusUnknown
	}

	return nil
}
