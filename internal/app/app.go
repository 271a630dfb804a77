package app

import (
	"log/slog"
	"net/http"

	"pdflux-api/internal/config"
)

// App bundles the long-lived pieces main needs to run and shut down
// the service.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server) *App {
	return &App{Config: cfg, Logger: logger, Server: server}
}
