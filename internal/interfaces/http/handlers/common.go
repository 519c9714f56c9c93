package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/embedscope/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to its HTTP status.  Server errors are masked.
func writeAppError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}
	resp := ErrorResponse{Code: string(errors.GetCode(err)), Message: errors.UserMessage(err)}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Detail = ae.Detail
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the request body, answering 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeAppError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
		return false
	}
	return true
}
