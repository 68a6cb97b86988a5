package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// PaperlessInstanceHandler exposes CRUD for Paperless-ngx deployments.
type PaperlessInstanceHandler struct {
	svc *services.PaperlessInstanceService
}

// NewPaperlessInstanceHandler constructs the instance handler.
func NewPaperlessInstanceHandler(db *gorm.DB, vaultKey []byte) (*PaperlessInstanceHandler, error) {
	svc, err := services.NewPaperlessInstanceService(db, vaultKey)
	if err != nil {
		return nil, err
	}
	return &PaperlessInstanceHandler{svc: svc}, nil
}

type paperlessInstanceRequest struct {
	Name     string `json:"name" validate:"omitempty,max=128"`
	BaseURL  string `json:"baseUrl" validate:"omitempty,url"`
	APIToken string `json:"apiToken"`
}

func (r paperlessInstanceRequest) toInput() services.PaperlessInstanceInput {
	return services.PaperlessInstanceInput{
		Name:     r.Name,
		BaseURL:  r.BaseURL,
		APIToken: r.APIToken,
	}
}

// GET /api/instances
func (h *PaperlessInstanceHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	instances, err := h.svc.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": instances})
}

// GET /api/instances/:id
func (h *PaperlessInstanceHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	instance, err := h.svc.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, instance)
}

// POST /api/instances
func (h *PaperlessInstanceHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body paperlessInstanceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	instance, err := h.svc.Create(requestContext(c), userID, body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instance)
}

// PATCH /api/instances/:id
func (h *PaperlessInstanceHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var body paperlessInstanceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	instance, err := h.svc.Update(requestContext(c), userID, c.Param("id"), body.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, instance)
}

// GET /api/instances/:id/token returns the unsealed API token to the owner.
func (h *PaperlessInstanceHandler) RevealToken(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	token, err := h.svc.RevealAPIToken(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"apiToken": token})
}

// DELETE /api/instances/:id
func (h *PaperlessInstanceHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if err := h.svc.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
