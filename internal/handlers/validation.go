package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/woozar/paperless-ai-ngx/pkg/errors"
	"github.com/woozar/paperless-ai-ngx/pkg/response"
	appValidator "github.com/woozar/paperless-ai-ngx/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When either step fails, an error response is written and false is
// returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}

	return true
}

func formatValidationError(err error) string {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		switch failure.Tag {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", failure.Field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", failure.Field, failure.Param))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", failure.Field, failure.Param))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", failure.Field))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", failure.Field, failure.Tag))
		}
	}
	return strings.Join(messages, "; ")
}
