package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aletheia-codex/backend/internal/server/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermReviewRead      = "review.read"
	PermReviewWrite     = "review.write"
	PermDocumentsCreate = "documents.create"
	PermGraphRebuild    = "graph.rebuild"
)

var allPermissions = []string{
	PermReviewRead,
	PermReviewWrite,
	PermDocumentsCreate,
	PermGraphRebuild,
}

// defaultPermissions apply to users whose token carries no permission claim.
var defaultPermissions = []string{
	PermReviewRead,
	PermReviewWrite,
	PermDocumentsCreate,
}

func unauthorized(c echo.Context, message string) error {
	return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, message)
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return unauthorized(c, "Missing bearer token")
		}
		token = strings.TrimSpace(token)

		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != "" && token == app.MasterAPIKey {
			role := app.MasterUserRole
			if role == "" {
				role = "admin"
			}
			ac.User = &AppUser{UserID: app.MasterUserID, Role: role, Permissions: allPermissions}
			return next(c)
		}

		if app.Keyfunc == nil {
			return unauthorized(c, "Unauthorized")
		}
		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}
		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		userID := userIDFromClaims(claims)
		if userID == "" {
			return unauthorized(c, "Invalid user ID")
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok && roleClaim != "" {
			role = roleClaim
		}

		var permissions []string
		if permsClaim, ok := claims["permissions"].([]any); ok {
			for _, p := range permsClaim {
				if pStr, ok := p.(string); ok {
					permissions = append(permissions, pStr)
				}
			}
		}
		if len(permissions) == 0 {
			if role == "admin" {
				permissions = allPermissions
			} else {
				permissions = defaultPermissions
			}
		}

		ac.User = &AppUser{UserID: userID, Role: role, Permissions: permissions}
		return next(c)
	}
}

// userIDFromClaims reads the user id from the user_id claim, falling back
// to the standard subject.
func userIDFromClaims(claims jwt.MapClaims) string {
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	sub, _ := claims.GetSubject()
	return sub
}
