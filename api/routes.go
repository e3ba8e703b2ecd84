package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/middleware/authguard"
	"github.com/tech-arch1tect/inkpress/middleware/ratelimit"
	"github.com/tech-arch1tect/inkpress/openapi"
	"github.com/tech-arch1tect/inkpress/server"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/fx"
)

const (
	PathPrefix = "/api/v1"
	AuthPrefix = PathPrefix + "/auth"
	HealthPath = "/healthz"
)

// PublicRoutes lists every route served without a bearer token.
func PublicRoutes(cfg *config.Config) *authguard.Routes {
	routes := authguard.NewRoutes(
		authguard.Route{Method: http.MethodPost, Path: AuthPrefix + "/register"},
		authguard.Route{Method: http.MethodPost, Path: AuthPrefix + "/login"},
		authguard.Route{Method: http.MethodPost, Path: AuthPrefix + "/refresh"},
		authguard.Route{Method: http.MethodGet, Path: HealthPath},
		authguard.Route{Method: http.MethodGet, Path: PathPrefix + "/openapi.json"},
		authguard.Route{Method: http.MethodGet, Path: PathPrefix + "/openapi.yaml"},
	)
	if cfg.Metrics.Enabled {
		routes.Add(http.MethodGet, cfg.Metrics.Path)
	}
	return routes
}

type RouterParams struct {
	fx.In

	Server     *server.Server
	Config     *config.Config
	Logger     *logging.Service
	Codec      *token.Codec
	Sessions   *session.Manager
	Users      user.Directory
	Handler    *AuthHandler
	Routes     *authguard.Routes
	Docs       *openapi.Document
	LimitStore ratelimit.Store
}

func RegisterRoutes(p RouterParams) {
	e := p.Server.Echo()
	e.HTTPErrorHandler = ErrorHandler(p.Logger)
	e.Validator = NewValidator()

	e.GET(HealthPath, Health)
	if p.Config.Metrics.Enabled {
		e.GET(p.Config.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}

	v1 := e.Group(PathPrefix,
		authguard.Middleware(authguard.Config{
			Codec:    p.Codec,
			Sessions: p.Sessions,
			Users:    p.Users,
			Routes:   p.Routes,
			Logger:   p.Logger,
		}),
		p.Routes.Enforce(),
	)

	v1.GET("/openapi.json", p.Docs.JSONHandler())
	v1.GET("/openapi.yaml", p.Docs.YAMLHandler())

	var limited []echo.MiddlewareFunc
	if p.Config.RateLimit.Enabled {
		limited = append(limited, ratelimit.Middleware(&ratelimit.Config{
			Store:     p.LimitStore,
			Rate:      p.Config.RateLimit.Rate,
			Period:    p.Config.RateLimit.Period,
			CountMode: p.Config.RateLimit.CountMode,
			Logger:    p.Logger,
		}))
	}

	a := v1.Group("/auth")
	a.POST("/register", p.Handler.Register, limited...)
	a.POST("/login", p.Handler.Login, limited...)
	a.POST("/refresh", p.Handler.Refresh, limited...)
	a.POST("/logout", p.Handler.Logout)
	a.POST("/logout-all", p.Handler.LogoutAll)
	a.GET("/sessions", p.Handler.Sessions)
	a.GET("/me", p.Handler.Me)

	Describe(p.Docs, p.Routes)
}

func Health(c echo.Context) error {
	return Success(c, http.StatusOK, "OK", map[string]string{"status": "ok"})
}
