package authguard

import (
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/apperr"
)

type Route struct {
	Method string
	Path   string
}

// Routes is the single list of routes reachable without a bearer token. The
// guard skips them and Enforce admits them; every other route needs an identity.
type Routes struct {
	public map[Route]struct{}
}

func NewRoutes(public ...Route) *Routes {
	r := &Routes{public: make(map[Route]struct{}, len(public))}
	for _, route := range public {
		r.public[route] = struct{}{}
	}
	return r
}

func (r *Routes) Add(method, path string) {
	r.public[Route{Method: method, Path: path}] = struct{}{}
}

func (r *Routes) IsPublic(method, path string) bool {
	if r == nil {
		return false
	}
	_, ok := r.public[Route{Method: method, Path: path}]
	return ok
}

// List returns the public routes sorted by path then method.
func (r *Routes) List() []Route {
	out := make([]Route, 0, len(r.public))
	for route := range r.public {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Skipper matches on the registered route template, so it must run after routing.
func (r *Routes) Skipper(c echo.Context) bool {
	return r.IsPublic(c.Request().Method, c.Path())
}

// Enforce rejects any non-public route that reached a handler without an identity.
func (r *Routes) Enforce() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r.Skipper(c) || GetIdentity(c) != nil {
				return next(c)
			}
			return apperr.Unauthorized("Authentication required", nil)
		}
	}
}
