// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"github.com/pdiddy/label-converter/internal/logging"
	"github.com/pdiddy/label-converter/pkg/types"
)

const defaultRateInterval = time.Minute

// NewRateStorage returns Redis-backed limiter storage when cfg names a
// server, falling back to memory when it is unset or unreachable.
func NewRateStorage(cfg types.CacheConfig) (store fiber.Storage) {
	store = memoryStorage.New()
	if !cfg.Enabled() {
		return store
	}

	// The redis storage constructor panics when it cannot connect.
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.Password,
		Database: cfg.RateDB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.RedisAddr, "db", cfg.RateDB)
	return store
}

func registerMiddleware(app *fiber.App, d Deps) {
	app.Use(fiberrecover.New())

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			if d.Cache == nil {
				return true
			}
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			return d.Cache.Ping(ctx) == nil
		},
	}))

	app.Use(accessLog)
}

// accessLog logs every request once it has been handled.
func accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	logging.Info("Request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	return err
}

// clientKey identifies a client by address and user agent.
func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// rateLimiter limits conversions per client. A zero limit disables it.
func rateLimiter(cfg types.ServerConfig, store fiber.Storage) fiber.Handler {
	if cfg.RateLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = defaultRateInterval
	}

	return limiter.New(limiter.Config{
		Max:               cfg.RateLimit,
		Expiration:        interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "client", clientKey(c), "path", c.Path())
			return fiber.NewError(fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})
}
