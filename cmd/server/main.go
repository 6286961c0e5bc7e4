package main

import (
	"github.com/aletheia-codex/backend/internal/server"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	server.Init()
}
