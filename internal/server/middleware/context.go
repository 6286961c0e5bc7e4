package middleware

import (
	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/queue"
	"github.com/aletheia-codex/backend/internal/storage"
	"github.com/aletheia-codex/backend/pkg/loader"
	"github.com/aletheia-codex/backend/pkg/review"
	"github.com/aletheia-codex/backend/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App carries the dependencies shared by all handlers. It is built once at
// start up and never mutated afterwards.
type App struct {
	Queue     *review.Queue
	Workflow  *review.Workflow
	Batch     *review.BatchProcessor
	Documents store.DocumentStore
	Graph     store.GraphStore
	Storage   storage.DocumentStorage
	Loaders   *loader.Registry
	Publisher queue.Publisher
	Cache     cache.Cache

	// Keyfunc verifies bearer tokens. A nil Keyfunc only admits the master
	// API key.
	Keyfunc        jwt.Keyfunc
	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
