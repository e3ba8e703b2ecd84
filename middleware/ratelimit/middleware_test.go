package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/testutils"
	"go.uber.org/fx/fxtest"
)

type limiterHarness struct {
	e       *echo.Echo
	lastErr error
}

// newHarness mounts the limiter on a router with a login route that fails
// when the request carries ?fail=1.
func newHarness(cfg *Config) *limiterHarness {
	h := &limiterHarness{e: echo.New()}
	h.e.HTTPErrorHandler = func(err error, c echo.Context) {
		h.lastErr = err
		_ = c.NoContent(apperr.KindOf(err).Status())
	}

	limiter := Middleware(cfg)
	handler := func(c echo.Context) error {
		if c.QueryParam("fail") == "1" {
			return apperr.Unauthorized("Invalid email or password", nil)
		}
		return c.NoContent(http.StatusOK)
	}
	h.e.POST("/api/v1/auth/login", handler, limiter)
	h.e.POST("/api/v1/auth/register", handler, limiter)

	return h
}

func (h *limiterHarness) do(path string) *httptest.ResponseRecorder {
	h.lastErr = nil
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Run("blocks once the rate is used up", func(t *testing.T) {
		h := newHarness(&Config{Store: NewMemoryStore(), Rate: 2, Period: time.Minute})

		first := h.do("/api/v1/auth/login")
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)

		blocked := h.do("/api/v1/auth/login")
		assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
		assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))
		testutils.AssertErrorKind(t, apperr.KindTooManyRequests, h.lastErr)

		reset, err := strconv.ParseInt(blocked.Header().Get("X-RateLimit-Reset"), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, reset, time.Now().Unix())
	})

	t.Run("routes are limited separately", func(t *testing.T) {
		h := newHarness(&Config{Store: NewMemoryStore(), Rate: 1, Period: time.Minute})

		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)
		assert.Equal(t, http.StatusTooManyRequests, h.do("/api/v1/auth/login").Code)
		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/register").Code)
	})

	t.Run("failures mode only counts failed requests", func(t *testing.T) {
		h := newHarness(&Config{
			Store:     NewMemoryStore(),
			Rate:      2,
			Period:    time.Minute,
			CountMode: config.CountFailures,
		})

		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)
		}

		assert.Equal(t, http.StatusUnauthorized, h.do("/api/v1/auth/login?fail=1").Code)
		assert.Equal(t, http.StatusUnauthorized, h.do("/api/v1/auth/login?fail=1").Code)
		assert.Equal(t, http.StatusTooManyRequests, h.do("/api/v1/auth/login").Code)
	})

	t.Run("success mode ignores failed requests", func(t *testing.T) {
		h := newHarness(&Config{
			Store:     NewMemoryStore(),
			Rate:      1,
			Period:    time.Minute,
			CountMode: config.CountSuccess,
		})

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusUnauthorized, h.do("/api/v1/auth/login?fail=1").Code)
		}

		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)
		assert.Equal(t, http.StatusTooManyRequests, h.do("/api/v1/auth/login").Code)
	})

	t.Run("shared redis counters", func(t *testing.T) {
		_, client := testutils.SetupTestRedis(t)
		a := newHarness(&Config{Store: NewRedisStore(client), Rate: 1, Period: time.Minute})
		b := newHarness(&Config{Store: NewRedisStore(client), Rate: 1, Period: time.Minute})

		assert.Equal(t, http.StatusOK, a.do("/api/v1/auth/login").Code)
		assert.Equal(t, http.StatusTooManyRequests, b.do("/api/v1/auth/login").Code)
	})

	t.Run("unavailable store lets requests through", func(t *testing.T) {
		mr, client := testutils.SetupTestRedis(t)
		mr.Close()
		h := newHarness(&Config{Store: NewRedisStore(client), Rate: 1, Period: time.Minute})

		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)
		assert.Equal(t, http.StatusOK, h.do("/api/v1/auth/login").Code)
	})

	t.Run("custom limit handler", func(t *testing.T) {
		h := newHarness(&Config{
			Store:  NewMemoryStore(),
			Rate:   1,
			Period: time.Minute,
			OnLimitReached: func(c echo.Context) error {
				return c.NoContent(http.StatusServiceUnavailable)
			},
		})

		h.do("/api/v1/auth/login")
		assert.Equal(t, http.StatusServiceUnavailable, h.do("/api/v1/auth/login").Code)
	})

	t.Run("default configuration", func(t *testing.T) {
		cfg := &Config{}
		Middleware(cfg)

		assert.NotNil(t, cfg.Store)
		assert.Equal(t, 10, cfg.Rate)
		assert.Equal(t, time.Minute, cfg.Period)
		assert.Equal(t, config.CountAll, cfg.CountMode)
		assert.NotNil(t, cfg.KeyGenerator)
		assert.NotNil(t, cfg.OnLimitReached)
	})
}

func TestMiddleware_ConcurrentBurst(t *testing.T) {
	const (
		rate  = 5
		burst = 40
	)

	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			_, client := testutils.SetupTestRedis(t)
			return NewRedisStore(client)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = func(err error, c echo.Context) {
				_ = c.NoContent(apperr.KindOf(err).Status())
			}
			e.POST("/api/v1/auth/login", func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			}, Middleware(&Config{Store: newStore(t), Rate: rate, Period: time.Minute}))

			var (
				wg      sync.WaitGroup
				start   = make(chan struct{})
				allowed atomic.Int32
				blocked atomic.Int32
			)
			for i := 0; i < burst; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					rec := httptest.NewRecorder()
					e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
					switch rec.Code {
					case http.StatusOK:
						allowed.Add(1)
					case http.StatusTooManyRequests:
						blocked.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(rate), allowed.Load())
			assert.Equal(t, int32(burst-rate), blocked.Load())
		})
	}
}

func TestDefaultKeyGenerator(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	assert.Equal(t, "rate_limit:203.0.113.7:/api/v1/auth/login", DefaultKeyGenerator(c))
}

func TestProvideRateLimitStore(t *testing.T) {
	newParams := func(t *testing.T, store string, withRedis bool) StoreParams {
		cfg := testutils.GetTestConfig()
		cfg.RateLimit.Store = store
		p := StoreParams{Lifecycle: fxtest.NewLifecycle(t), Config: cfg}
		if withRedis {
			_, p.Redis = testutils.SetupTestRedis(t)
		}
		return p
	}

	t.Run("memory by default", func(t *testing.T) {
		assert.IsType(t, &MemoryStore{}, ProvideRateLimitStore(newParams(t, "memory", true)))
	})

	t.Run("redis when configured", func(t *testing.T) {
		assert.IsType(t, &RedisStore{}, ProvideRateLimitStore(newParams(t, "redis", true)))
	})

	t.Run("falls back to memory without a redis client", func(t *testing.T) {
		p := newParams(t, "redis", false)
		store := ProvideRateLimitStore(p)
		assert.IsType(t, &MemoryStore{}, store)

		p.Lifecycle.(*fxtest.Lifecycle).RequireStart().RequireStop()
	})
}
