// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the converter over HTTP with fiber.
//
//	GET  /health         liveness, {"status":"ok"}
//	POST /convert        multipart field "file", returns application/pdf
//	POST /convert/batch  multipart field "files", returns a zip archive
//	GET  /               browser upload page
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pdiddy/label-converter/internal/cache"
	"github.com/pdiddy/label-converter/internal/convert"
	"github.com/pdiddy/label-converter/internal/history"
	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/pkg/types"
)

const (
	defaultBodyLimitMB     = 32
	defaultShutdownTimeout = 10 * time.Second
)

// Deps are the collaborators of the HTTP service. Cache, History and
// RateStorage are optional.
type Deps struct {
	Converter *convert.Converter
	Cache     *cache.Cache
	History   *history.Store

	// Defaults is the conversion configuration before form overrides.
	Defaults types.ConversionConfig

	Config types.ServerConfig

	// RateStorage backs the rate limiter; nil keeps counters in memory.
	RateStorage fiber.Storage
}

// New builds the fiber application.
func New(d Deps) *fiber.App {
	if d.Converter == nil {
		d.Converter = convert.New()
	}
	limit := d.Config.BodyLimitMB
	if limit <= 0 {
		limit = defaultBodyLimitMB
	}

	app := fiber.New(fiber.Config{
		AppName:               "label-converter",
		BodyLimit:             limit * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	registerMiddleware(app, d)
	registerRoutes(app, d)

	// Every unmatched route answers with a JSON 404.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	h := &handlers{
		conv:     d.Converter,
		cache:    d.Cache,
		history:  d.History,
		defaults: d.Defaults,
	}

	app.Get("/health", h.health)
	if d.Config.UI {
		app.Get("/", h.ui)
	} else {
		app.Get("/", h.index)
	}

	conv := app.Group("/convert", rateLimiter(d.Config, d.RateStorage))
	conv.Post("/", h.convert)
	conv.Post("/batch", h.convertBatch)
}

// errorHandler renders every error as {"error":{"code","message"}}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		logging.Error("Request failed", "path", c.Path(), "status", code, "error", err)
	} else {
		logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}

// Run serves app on addr until ctx is cancelled, then shuts down, waiting
// up to timeout for in-flight requests.
func Run(ctx context.Context, app *fiber.App, addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down", "timeout", timeout.String())
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return nil
}
