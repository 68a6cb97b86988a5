package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, db *gorm.DB) error {
	handler, err := handlers.NewUserHandler(db)
	if err != nil {
		return err
	}

	users := api.Group("/users")
	{
		users.GET("", handler.List)
		users.GET("/:id", handler.Get)
	}
	return nil
}
