package middleware

import (
	"net/http"
	"slices"

	"github.com/aletheia-codex/backend/internal/server/response"

	"github.com/labstack/echo/v4"
)

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

func IsAdmin(user *AppUser) bool {
	return user != nil && user.Role == "admin"
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return unauthorized(c, "Unauthorized")
			}
			if !HasPermission(user, permission) && !IsAdmin(user) {
				return response.Fail(c, http.StatusForbidden, response.CodeForbidden, "Missing permission "+permission)
			}
			return next(c)
		}
	}
}
