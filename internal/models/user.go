package models

import "time"

// User describes an authenticated account of the admin application.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	IsAdmin  bool `gorm:"default:false" json:"isAdmin"`
	IsActive bool `gorm:"default:true" json:"isActive"`

	LastLoginAt *time.Time `json:"lastLoginAt"`
}
