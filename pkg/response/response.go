package response

import (
	"errors"
	"net/http"

	"payflow/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the error envelope: {"error":{"code","message","details?"}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the public error fields.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OK sends a 200 response with the resource as the body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with the resource as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500 without leaking the cause.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorBody{
			Error: ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
		Error: ErrorDetail{
			Code:    apperror.CodeInternal,
			Message: "internal server error",
		},
	})
}
