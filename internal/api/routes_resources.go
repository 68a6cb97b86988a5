package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/app"
	"github.com/woozar/paperless-ai-ngx/internal/handlers"
	"github.com/woozar/paperless-ai-ngx/internal/services"
)

// resourceHandler is the CRUD surface every kind-specific handler exposes.
type resourceHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

func registerResourceRoutes(api *gin.RouterGroup, db *gorm.DB, cfg *app.Config) error {
	vaultKey := []byte(cfg.Vault.EncryptionKey)

	accountHandler, err := handlers.NewAIAccountHandler(db, vaultKey)
	if err != nil {
		return err
	}
	accountAdapter, err := services.NewAIAccountAdapter(db)
	if err != nil {
		return err
	}
	if err := mountResource(api, "/ai-accounts", db, accountHandler, accountAdapter); err != nil {
		return err
	}
	api.GET("/ai-accounts/:id/key", accountHandler.RevealKey)

	modelHandler, err := handlers.NewAIModelHandler(db)
	if err != nil {
		return err
	}
	modelAdapter, err := services.NewAIModelAdapter(db)
	if err != nil {
		return err
	}
	if err := mountResource(api, "/ai-models", db, modelHandler, modelAdapter); err != nil {
		return err
	}

	botHandler, err := handlers.NewBotHandler(db)
	if err != nil {
		return err
	}
	botAdapter, err := services.NewBotAdapter(db)
	if err != nil {
		return err
	}
	if err := mountResource(api, "/bots", db, botHandler, botAdapter); err != nil {
		return err
	}

	instanceHandler, err := handlers.NewPaperlessInstanceHandler(db, vaultKey)
	if err != nil {
		return err
	}
	instanceAdapter, err := services.NewPaperlessInstanceAdapter(db)
	if err != nil {
		return err
	}
	if err := mountResource(api, "/instances", db, instanceHandler, instanceAdapter); err != nil {
		return err
	}
	api.GET("/instances/:id/token", instanceHandler.RevealToken)
	return nil
}

// mountResource wires the CRUD routes plus the sharing subroutes for one
// resource kind.
func mountResource(api *gin.RouterGroup, path string, db *gorm.DB, handler resourceHandler, adapter services.ResourceAdapter) error {
	shareHandler, err := handlers.NewShareHandler(db, adapter)
	if err != nil {
		return err
	}

	group := api.Group(path)
	{
		group.GET("", handler.List)
		group.POST("", handler.Create)
		group.GET("/:id", handler.Get)
		group.PATCH("/:id", handler.Update)
		group.DELETE("/:id", handler.Delete)

		group.GET("/:id/shares", shareHandler.List)
		group.POST("/:id/shares", shareHandler.Upsert)
		group.DELETE("/:id/shares/:grantId", shareHandler.Delete)
	}
	return nil
}
