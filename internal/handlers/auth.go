package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/woozar/paperless-ai-ngx/internal/auth"
	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/errors"
	"github.com/woozar/paperless-ai-ngx/pkg/metrics"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// AuthHandler serves login and identity endpoints.
type AuthHandler struct {
	db    *gorm.DB
	jwt   *iauth.JWTService
	users *services.UserService
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService) (*AuthHandler, error) {
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{db: db, jwt: jwt, users: users}, nil
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		// Normalise auth errors to 401
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID, user.IsAdmin)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"accessToken": token,
		"user":        user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var user models.User
	if err := h.db.WithContext(requestContext(c)).Take(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, user)
}
