package authguard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/zap"
)

// SessionChecker reports whether a token id is the live one for its device.
type SessionChecker interface {
	IsActive(ctx context.Context, userID, deviceID, jti string) (bool, error)
}

type Config struct {
	Codec    *token.Codec
	Sessions SessionChecker
	Users    user.Directory
	Routes   *Routes
	Logger   *logging.Service
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	logger := cfg.Logger.Named("authguard")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Routes.Skipper(c) {
				return next(c)
			}

			identity, claims, err := authenticate(c, cfg)
			if err != nil {
				clearIdentity(c)
				if apperr.KindOf(err) == apperr.KindUnauthorized {
					c.Response().Header().Set(echo.HeaderWWWAuthenticate, challenge(err))
				}
				logger.Debug("request rejected",
					zap.String("path", c.Path()),
					zap.Error(err))
				return err
			}

			c.Set(ClaimsKey, claims)
			c.Set(IdentityKey, identity)
			c.Set(logging.UserIDKey, identity.UserID)

			return next(c)
		}
	}
}

func authenticate(c echo.Context, cfg Config) (*Identity, *token.Claims, error) {
	req := c.Request()

	if req.UserAgent() == "" {
		return nil, nil, apperr.BadRequest("Missing User-Agent")
	}

	header := req.Header.Get(echo.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, nil, apperr.Unauthorized("Missing Authentication Header", nil)
	}

	claims, err := cfg.Codec.Verify(raw, token.Access)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, nil, apperr.Unauthorized("Token has expired", err)
		case errors.Is(err, token.ErrTypeMismatch):
			return nil, nil, apperr.Unauthorized("Only Access Token allowed", err)
		default:
			return nil, nil, apperr.Unauthorized("Invalid token", err)
		}
	}

	active, err := cfg.Sessions.IsActive(req.Context(), claims.UserID, claims.DeviceID, claims.JTI())
	if err != nil {
		return nil, nil, apperr.Internal("failed to check session", err)
	}
	if !active {
		return nil, nil, apperr.Unauthorized("Session is no longer active", session.ErrSessionRevoked)
	}

	return newIdentity(claims, cfg.Users), claims, nil
}

func clearIdentity(c echo.Context) {
	c.Set(ClaimsKey, nil)
	c.Set(IdentityKey, nil)
	c.Set(logging.UserIDKey, nil)
}

func challenge(err error) string {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Err == nil {
		return "Bearer"
	}
	return fmt.Sprintf(`Bearer error="invalid_token", error_description=%q`, appErr.Message)
}
