package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-webhook-spine/core"
)

type errorBody struct {
	Category string         `json:"category"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// abortWithError renders err as the go-errors envelope with the status its
// category maps to.
func abortWithError(c *gin.Context, err error) {
	rich := core.MapError(err)
	status := rich.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{
		Category: string(rich.Category),
		Code:     status,
		TextCode: rich.TextCode,
		Message:  rich.Message,
		Metadata: rich.Metadata,
	}})
}

func badRequest(c *gin.Context, field string, message string) {
	abortWithError(c, core.NewValidationError(field, message))
}
