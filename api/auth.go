package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/middleware/authguard"
	"github.com/tech-arch1tect/inkpress/services/auth"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/zap"
)

// RefreshTokenHeader carries the refresh token in both directions.
const RefreshTokenHeader = "X-Refresh-Token"

type RegisterRequest struct {
	Firstname       string `json:"firstname" validate:"required,max=100" example:"Ada"`
	Email           string `json:"email" validate:"required,email,max=100" example:"ada@example.com"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"deviceId" validate:"required,deviceid" example:"dev-AAAA1111"`
}

type AccessToken struct {
	Token    string `json:"token"`
	ExpireAt int64  `json:"expireAt"`
}

type LoginData struct {
	AccessToken AccessToken `json:"accessToken"`
	UserData    *user.User  `json:"userData"`
}

type RefreshData struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

type LogoutAllData struct {
	Revoked int64 `json:"revoked"`
}

type ListMeta struct {
	Total int `json:"total"`
}

type AuthHandler struct {
	auth     *auth.Service
	sessions *session.Manager
	logger   *logging.Service
}

func NewAuthHandler(authService *auth.Service, sessions *session.Manager, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		logger:   logger.Named("api"),
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	u, err := h.auth.Register(c.Request().Context(), auth.RegisterInput{
		Firstname:       req.Firstname,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	return Success(c, http.StatusCreated, "User registered successfully", u)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	u, pair, err := h.sessions.Authenticate(c.Request().Context(), session.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		DeviceID:  req.DeviceID,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(RefreshTokenHeader, pair.RefreshToken)
	return Success(c, http.StatusOK, "Login success", LoginData{
		AccessToken: AccessToken{Token: pair.AccessToken, ExpireAt: pair.AccessExpiresAt.UnixMilli()},
		UserData:    u,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	pair, err := h.sessions.Refresh(c.Request().Context(), session.RefreshRequest{
		RefreshToken: c.Request().Header.Get(RefreshTokenHeader),
		UserAgent:    c.Request().UserAgent(),
		IPAddress:    c.RealIP(),
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(RefreshTokenHeader, pair.RefreshToken)
	return Success(c, http.StatusOK, "Tokens refreshed successfully", RefreshData{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt.UnixMilli(),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	if err := h.sessions.Logout(c.Request().Context(), identity.UserID, identity.DeviceID); err != nil {
		return err
	}

	return Success(c, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	revoked, err := h.sessions.LogoutAll(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}

	return Success(c, http.StatusOK, "Logged out from all devices", LogoutAllData{Revoked: revoked})
}

func (h *AuthHandler) Sessions(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	views, err := h.sessions.ListSessions(c.Request().Context(), identity.UserID, identity.DeviceID)
	if err != nil {
		return err
	}

	return SuccessWithMeta(c, http.StatusOK, "Sessions retrieved", views, ListMeta{Total: len(views)})
}

func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	u, err := identity.User(c.Request().Context())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.NotFound("User not found", err)
		}
		h.logger.Error("failed to load user", zap.String("user_id", identity.UserID), zap.Error(err))
		return apperr.Internal("failed to load user", err)
	}

	return Success(c, http.StatusOK, "User retrieved", u)
}

func requireIdentity(c echo.Context) (*authguard.Identity, error) {
	identity := authguard.GetIdentity(c)
	if identity == nil {
		return nil, apperr.Unauthorized("Authentication required", nil)
	}
	return identity, nil
}
