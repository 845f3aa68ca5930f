package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/verdant/pkg/config"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func main() {
	cfg := config.Load()

	logx.Info("starting verdant catalog server")

	container := NewContainer(cfg)
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "Verdant Catalog API",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	app.Get("/health", healthCheckHandler(container))

	container.Handlers.RegisterRoutes(app, container.AuthMiddleware)
	logx.Info("catalog routes registered")

	startServer(app, cfg.Server.Port)
}

// healthCheckHandler reports DB health; redis is optional and only noted.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "verdant-catalog-api",
		}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["db_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unreachable"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

// globalErrorHandler is the last-resort fiber error handler.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	logx.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// startServer runs the app and blocks until a shutdown signal arrives.
func startServer(app *fiber.App, port int) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		logx.WithField("addr", addr).Info("listening")
		if err := app.Listen(addr); err != nil {
			logx.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logx.WithError(err).Error("graceful shutdown failed")
	}
}
