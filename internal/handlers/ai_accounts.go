package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// AIAccountHandler exposes CRUD for AI provider credential accounts.
type AIAccountHandler struct {
	svc *services.AIAccountService
}

// NewAIAccountHandler constructs the account handler.
func NewAIAccountHandler(db *gorm.DB, vaultKey []byte) (*AIAccountHandler, error) {
	svc, err := services.NewAIAccountService(db, vaultKey)
	if err != nil {
		return nil, err
	}
	return &AIAccountHandler{svc: svc}, nil
}

type aiAccountRequest struct {
	Name     string `json:"name" validate:"omitempty,max=128"`
	Provider string `json:"provider" validate:"omitempty,max=64"`
	BaseURL  string `json:"baseUrl" validate:"omitempty,url"`
	APIKey   string `json:"apiKey"`
}

func (r aiAccountRequest) toInput() services.AIAccountInput {
	return services.AIAccountInput{
		Name:     r.Name,
		Provider: r.Provider,
		BaseURL:  r.BaseURL,
		APIKey:   r.APIKey,
	}
}

// GET /api/ai-accounts
func (h *AIAccountHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	accounts, err := h.svc.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": accounts})
}

// GET /api/ai-accounts/:id
func (h *AIAccountHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	account, err := h.svc.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// POST /api/ai-accounts
func (h *AIAccountHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body aiAccountRequest
	if !bindAndValidate(c, &body) {
		return
	}

	account, err := h.svc.Create(requestContext(c), userID, body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// PATCH /api/ai-accounts/:id
func (h *AIAccountHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body aiAccountRequest
	if !bindAndValidate(c, &body) {
		return
	}

	account, err := h.svc.Update(requestContext(c), userID, c.Param("id"), body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, account)
}

// GET /api/ai-accounts/:id/key returns the unsealed API key to the owner.
func (h *AIAccountHandler) RevealKey(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	key, err := h.svc.RevealAPIKey(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"apiKey": key})
}

// DELETE /api/ai-accounts/:id
func (h *AIAccountHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.svc.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
