package infra

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v3"

	"github.com/pancudaniel7/blocksync-service/internal/adapter/http"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

func InitRoutes(server *fiber.App, state http.StateSource) {
	server.Get("/health", http.Health(state))
}

// StartHTTPServer serves /health and /metrics on cfg.Addr when enabled.
// Returns a stop function that gracefully shuts the server down.
func StartHTTPServer(logger applog.AppLogger, wg *sync.WaitGroup, cfg HTTPConfig, state http.StateSource) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}

	app := fiber.New(fiber.Config{AppName: "blocksync"})
	InitRoutes(app, state)
	InitMetrics(app)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", "addr", cfg.Addr)
		if err := app.Listen(cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			logger.Warn("HTTP server error", "err", err)
		}
	}()

	return app.ShutdownWithContext
}
