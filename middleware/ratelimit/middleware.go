package ratelimit

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	logger := cfg.Logger.Named("ratelimit")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			if cfg.CountMode == config.CountAll {
				// The increment decides, so concurrent requests cannot all
				// pass a check made before any of them counted.
				count, resetTime, err := cfg.Store.Increment(ctx, key, cfg.Period)
				if err != nil {
					// An unavailable store must not lock users out.
					logger.Warn("rate limit store unavailable", zap.Error(err))
					return next(c)
				}
				setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)
				if count > cfg.Rate {
					return cfg.OnLimitReached(c)
				}
				return next(c)
			}

			count, resetTime, err := cfg.Store.Get(ctx, key)
			if err != nil {
				logger.Warn("rate limit store unavailable", zap.Error(err))
				return next(c)
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				return cfg.OnLimitReached(c)
			}

			if resetTime.IsZero() {
				resetTime = time.Now().Add(cfg.Period)
			}
			setHeaders(c, cfg.Rate, cfg.Rate-count-1, resetTime)

			err = next(c)

			if shouldCount(cfg.CountMode, responseStatus(c, err)) {
				if _, _, incErr := cfg.Store.Increment(ctx, key, cfg.Period); incErr != nil {
					logger.Warn("rate limit store unavailable", zap.Error(incErr))
				}
			}

			return err
		}
	}
}

func shouldCount(mode config.CountingMode, status int) bool {
	switch mode {
	case config.CountFailures:
		return status >= 400
	case config.CountSuccess:
		return status < 400
	default:
		return true
	}
}

// responseStatus is the status the client will see. Errors returned by the
// handler are rendered later by the error handler, so derive it from them.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return apperr.KindOf(err).Status()
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

// DefaultKeyGenerator buckets requests by client IP and route.
func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP + ":" + c.Path()
}

func DefaultOnLimitReached(c echo.Context) error {
	return apperr.TooManyRequests("Too Many Requests")
}
