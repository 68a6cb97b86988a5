package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/pkg/crypto"
	apperrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
)

// UserDTO is the directory projection used by the share grantee picker.
type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserService exposes the user directory and local authentication.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs the user service.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// List returns every active user, sorted by username.
func (s *UserService) List(ctx context.Context) ([]UserDTO, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("username ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}

	dtos := make([]UserDTO, 0, len(users))
	for _, user := range users {
		dtos = append(dtos, UserDTO{ID: user.ID, Username: user.Username, Email: user.Email})
	}
	return dtos, nil
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*UserDTO, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGranteeNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &UserDTO{ID: user.ID, Username: user.Username, Email: user.Email}, nil
}

// Authenticate verifies local credentials and records the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", &now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}

	return &user, nil
}
