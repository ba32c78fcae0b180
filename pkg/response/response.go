package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error aborts the request with a JSON error body.
func Error(c *gin.Context, status, code int, details string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:    code,
		Message: Message(code),
		Details: details,
	})
}
