package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ativasaude/guia-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// statusForCode maps business-rule rejections to HTTP statuses. Domain
// rejections are conflicts except quantity and binding-shape problems,
// which are the caller's input being wrong.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrInvalidQuantity, apperrors.ErrTypeMismatch:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrDuplicateAuthorization,
		apperrors.ErrInvalidTransition,
		apperrors.ErrGuideAlreadyInvoiced,
		apperrors.ErrGuideNotExecuted,
		apperrors.ErrUnresolvedDenialsPresent,
		apperrors.ErrConcurrentModification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the JSON error body for a service failure. Internal
// errors are not echoed to the client.
func RespondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := statusForCode(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.JSON(status, &Response{
		Status:  "error",
		Message: message,
		Code:    int(code),
	})
}
