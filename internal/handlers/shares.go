package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/middleware"
	"github.com/woozar/paperless-ai-ngx/internal/permissions"
	"github.com/woozar/paperless-ai-ngx/internal/services"
	"github.com/woozar/paperless-ai-ngx/pkg/errors"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// ShareHandler exposes the sharing endpoints for one resource kind. The same
// handler type backs every kind; the adapter decides table names and error
// codes.
type ShareHandler struct {
	svc *services.ShareService
}

// NewShareHandler constructs a share handler over a kind-bound adapter.
func NewShareHandler(db *gorm.DB, adapter services.ResourceAdapter) (*ShareHandler, error) {
	svc, err := services.NewShareService(db, adapter)
	if err != nil {
		return nil, err
	}
	return &ShareHandler{svc: svc}, nil
}

// GET /:id/shares
func (h *ShareHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	grants, err := h.svc.ListShares(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": grants})
}

type upsertShareRequest struct {
	// UserID is the grantee; null or absent targets the wildcard slot that
	// covers every authenticated user.
	UserID     *string `json:"userId"`
	Permission string  `json:"permission" validate:"required"`
}

// POST /:id/shares answers 201 when the slot was empty and a grant was
// created, 200 when an existing grant's permission was changed.
func (h *ShareHandler) Upsert(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var body upsertShareRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.UpsertShare(requestContext(c), userID, c.Param("id"), services.UpsertShareInput{
		GranteeUserID: body.UserID,
		Permission:    permissions.Permission(body.Permission),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, result.Grant)
}

// DELETE /:id/shares/:grantId
func (h *ShareHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.svc.DeleteShare(requestContext(c), userID, c.Param("id"), c.Param("grantId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
