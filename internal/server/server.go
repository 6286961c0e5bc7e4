package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aletheia-codex/backend/internal/db"
	"github.com/aletheia-codex/backend/internal/queue"
	mid "github.com/aletheia-codex/backend/internal/server/middleware"
	"github.com/aletheia-codex/backend/internal/setup"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns the configured echo instance serving app. An empty
// allowedOrigins list disables cross origin requests.
func New(app *mid.App, allowedOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	if len(allowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("25M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.Init(ctx)
	if err != nil {
		logger.Fatal("[Server] Failed to initialize dependencies", "err", err)
	}
	defer deps.Close()

	if deps.DatabaseURL != "" {
		if err := db.Migrate(deps.DatabaseURL); err != nil {
			logger.Fatal("[Server] Failed to migrate database", "err", err)
		}
	}

	app := &mid.App{
		Queue:          deps.Queue,
		Workflow:       deps.Workflow,
		Batch:          deps.Batch,
		Documents:      deps.Reviews,
		Graph:          deps.Graph,
		Storage:        deps.Storage,
		Loaders:        deps.Loaders(),
		Cache:          deps.Cache,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   util.GetEnv("MASTER_USER_ID"),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("[Server] Failed to load jwks keys", "err", err)
		}
		app.Keyfunc = k.Keyfunc
	} else {
		logger.Warn("[Server] AUTH_URL not set, only the master API key is accepted")
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("[Server] Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("[Server] Failed to set up queues", "err", err)
	}
	app.Publisher = queue.NewAMQPPublisher(ch)

	e := New(app, util.GetEnvList("ALLOWED_ORIGINS", nil))

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("[Server] Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
}
