// Package server exposes the ingestion and verification services over
// HTTP. Every body carries a success boolean discriminant; scrape and
// analyze nest their payload under data.
package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/otp"
	"DeliberoScan/internal/ports"
	"DeliberoScan/internal/usecase"
)

// Deps wires the services the handlers delegate to.
type Deps struct {
	Pipeline    *usecase.Pipeline
	Scraper     ports.Scraper
	Extractor   ports.Extractor
	OTP         *otp.Service
	BearerToken string
	Logger      *slog.Logger
}

// New builds the fiber application with all routes registered.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "DeliberoScan",
		DisableStartupMessage: true,
	})

	app.Use(fiberlogger.New())
	app.Use(corsMiddleware)

	h := &handlers{deps: deps}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	api := app.Group("/api")
	api.Post("/sync", h.sync)
	api.Post("/process", h.process)
	api.Post("/scrape", h.scrape)
	api.Post("/analyze", h.analyze)
	api.Post("/otp", h.otp)

	return app
}

// corsMiddleware answers preflight requests with an empty 200 and adds
// permissive cross-origin headers to every response.
func corsMiddleware(c *fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Headers", "authorization, content-type")
	c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.Next()
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func statusForError(err error) int {
	switch {
	case apperr.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	}
	if status := apperr.UpstreamStatus(err); status >= 400 {
		return status
	}
	return fiber.StatusInternalServerError
}
