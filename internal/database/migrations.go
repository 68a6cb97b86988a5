package database

import (
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.AIAccount{},
		&models.AIModel{},
		&models.Bot{},
		&models.PaperlessInstance{},
		&models.ShareGrant{},
	)
}

// SeedData creates the initial administrator account when no users exist.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := crypto.HashPassword("admin")
	if err != nil {
		return err
	}

	admin := models.User{
		Username: "admin",
		Email:    "admin@localhost",
		Password: hash,
		IsAdmin:  true,
		IsActive: true,
	}
	return db.Create(&admin).Error
}
