// Package response writes the JSON envelope shared by every API route:
// {success, data?, error?{code, message}}.
package response

import (
	"errors"
	"net/http"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInternal         = "INTERNAL_ERROR"
	CodeApprovalFailed   = "APPROVAL_FAILED"
	CodeRejectionFailed  = "REJECTION_FAILED"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Envelope{Error: &Error{Code: code, Message: message}})
}

// FromError maps err onto the envelope. Validation, not found and permission
// errors carry their message; anything else is logged and answered with a
// generic message.
func FromError(c echo.Context, err error, message string) error {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return Fail(c, http.StatusBadRequest, CodeInvalidParameter, verr.Error())
	case errors.Is(err, common.ErrValidation):
		return Fail(c, http.StatusBadRequest, CodeInvalidParameter, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return Fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, common.ErrPermission):
		return Fail(c, http.StatusForbidden, CodeForbidden, err.Error())
	default:
		logger.Error("[Server] Request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"err", err,
		)
		return Fail(c, http.StatusInternalServerError, CodeInternal, message)
	}
}
