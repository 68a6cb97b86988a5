package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext extracts the request-scoped context, falling back to a
// background context for handler tests that never attach a request.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
