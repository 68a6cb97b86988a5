package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// AIModelHandler exposes CRUD for the AI model catalog.
type AIModelHandler struct {
	svc *services.AIModelService
}

// NewAIModelHandler constructs the model catalog handler.
func NewAIModelHandler(db *gorm.DB) (*AIModelHandler, error) {
	svc, err := services.NewAIModelService(db)
	if err != nil {
		return nil, err
	}
	return &AIModelHandler{svc: svc}, nil
}

type aiModelRequest struct {
	Name          string `json:"name" validate:"omitempty,max=128"`
	Provider      string `json:"provider" validate:"omitempty,max=64"`
	ModelID       string `json:"modelId"`
	ContextWindow int    `json:"contextWindow" validate:"min=0"`
	SupportsTools bool   `json:"supportsTools"`
}

func (r aiModelRequest) toInput() services.AIModelInput {
	return services.AIModelInput{
		Name:          r.Name,
		Provider:      r.Provider,
		ModelID:       r.ModelID,
		ContextWindow: r.ContextWindow,
		SupportsTools: r.SupportsTools,
	}
}

// GET /api/ai-models
func (h *AIModelHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	entries, err := h.svc.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": entries})
}

// GET /api/ai-models/:id
func (h *AIModelHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	entry, err := h.svc.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// POST /api/ai-models
func (h *AIModelHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body aiModelRequest
	if !bindAndValidate(c, &body) {
		return
	}

	entry, err := h.svc.Create(requestContext(c), userID, body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// PATCH /api/ai-models/:id
func (h *AIModelHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body aiModelRequest
	if !bindAndValidate(c, &body) {
		return
	}

	entry, err := h.svc.Update(requestContext(c), userID, c.Param("id"), body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// DELETE /api/ai-models/:id
func (h *AIModelHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.svc.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
