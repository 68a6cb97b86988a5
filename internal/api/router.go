package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/app"
	iauth "github.com/woozar/paperless-ai-ngx/internal/auth"
	"github.com/woozar/paperless-ai-ngx/internal/handlers"
	"github.com/woozar/paperless-ai-ngx/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// Public endpoints
	r.GET("/healthz", handlers.Health(db))
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}
	r.POST("/api/auth/login", authHandler.Login)

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", authHandler.Me)

	if err := registerUserRoutes(api, db); err != nil {
		return nil, err
	}
	if err := registerResourceRoutes(api, db, cfg); err != nil {
		return nil, err
	}

	return r, nil
}
