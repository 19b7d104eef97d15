package handlers

import (
	"errors"
	"net/http"

	"github.com/deltapoly/assistant/internal/utils"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

// customerID returns the authenticated customer reference, when present.
// Chat is open to anonymous sessions, so absence is not an error.
func customerID(c *gin.Context) *string {
	if v, ok := c.Get("customer_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
