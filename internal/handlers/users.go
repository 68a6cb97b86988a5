package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// UserHandler exposes the user directory consumed by the share grantee picker.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs the user directory handler.
func NewUserHandler(db *gorm.DB) (*UserHandler, error) {
	svc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &UserHandler{service: svc}, nil
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
