package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/pkg/errors"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
)

// Health returns a status payload useful for readiness checks. The database
// ping keeps load balancers from routing to an instance with a dead pool.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(requestContext(c)) != nil {
				response.Error(c, errors.ErrServiceUnavailable)
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
