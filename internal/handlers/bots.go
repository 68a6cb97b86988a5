package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// BotHandler exposes CRUD for AI bots.
type BotHandler struct {
	svc *services.BotService
}

// NewBotHandler constructs the bot handler.
func NewBotHandler(db *gorm.DB) (*BotHandler, error) {
	svc, err := services.NewBotService(db)
	if err != nil {
		return nil, err
	}
	return &BotHandler{svc: svc}, nil
}

type botRequest struct {
	Name         string  `json:"name" validate:"omitempty,max=128"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"systemPrompt"`
	AIAccountID  *string `json:"aiAccountId"`
	AIModelID    *string `json:"aiModelId"`

	Parameters map[string]any `json:"parameters"`
}

func (r botRequest) toInput() services.BotInput {
	return services.BotInput{
		Name:         r.Name,
		Description:  r.Description,
		SystemPrompt: r.SystemPrompt,
		AIAccountID:  r.AIAccountID,
		AIModelID:    r.AIModelID,
		Parameters:   r.Parameters,
	}
}

// GET /api/bots
func (h *BotHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	bots, err := h.svc.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": bots})
}

// GET /api/bots/:id
func (h *BotHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	bot, err := h.svc.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, bot)
}

// POST /api/bots
func (h *BotHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body botRequest
	if !bindAndValidate(c, &body) {
		return
	}

	bot, err := h.svc.Create(requestContext(c), userID, body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bot)
}

// PATCH /api/bots/:id
func (h *BotHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body botRequest
	if !bindAndValidate(c, &body) {
		return
	}

	bot, err := h.svc.Update(requestContext(c), userID, c.Param("id"), body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, bot)
}

// DELETE /api/bots/:id
func (h *BotHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.svc.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
