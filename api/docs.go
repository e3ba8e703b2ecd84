package api

import (
	"net/http"

	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/middleware/authguard"
	"github.com/tech-arch1tect/inkpress/openapi"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/user"
)

func NewDocument(cfg *config.Config) *openapi.Document {
	return openapi.New(cfg.App.Name+" API", cfg.App.Version).
		Description("Account registration, login and session lifecycle.").
		Server(cfg.App.URL, "").
		Tag("auth", "Authentication and sessions").
		BearerAuth("Access token from login or refresh")
}

type userResponse struct {
	Message string     `json:"message"`
	Status  int        `json:"status"`
	Data    *user.User `json:"data"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Status  int       `json:"status"`
	Data    LoginData `json:"data"`
}

type refreshResponse struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Data    RefreshData `json:"data"`
}

type logoutAllResponse struct {
	Message string        `json:"message"`
	Status  int           `json:"status"`
	Data    LogoutAllData `json:"data"`
}

type sessionsResponse struct {
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Data    []session.View `json:"data"`
	Meta    ListMeta       `json:"meta"`
}

type messageResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Describe adds the auth routes to doc. Security follows the public route
// list, so the document cannot disagree with the guard.
func Describe(doc *openapi.Document, routes *authguard.Routes) {
	op := func(method, path, summary string) *openapi.Operation {
		return doc.Operation(method, path).
			Summary(summary).
			Tags("auth").
			Secured(!routes.IsPublic(method, path)).
			Response(http.StatusBadRequest, ErrorResponse{}, "Malformed request").
			Response(http.StatusInternalServerError, ErrorResponse{}, "Unexpected failure")
	}

	op(http.MethodPost, AuthPrefix+"/register", "Create an account").
		Body(RegisterRequest{}, "New account").
		Response(http.StatusCreated, userResponse{}, "Account created").
		Response(http.StatusConflict, ErrorResponse{}, "Email already in use").
		Response(http.StatusUnprocessableEntity, ErrorResponse{}, "Validation failed").
		Build()

	op(http.MethodPost, AuthPrefix+"/login", "Log in on a device").
		Body(LoginRequest{}, "Credentials and device id").
		Response(http.StatusOK, loginResponse{}, "Logged in").
		ResponseHeader(http.StatusOK, RefreshTokenHeader, "Refresh token").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Invalid email or password").
		Response(http.StatusConflict, ErrorResponse{}, "Device registered to another account").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Rate limited").
		Build()

	op(http.MethodPost, AuthPrefix+"/refresh", "Rotate the token pair").
		Header(RefreshTokenHeader, "Current refresh token", true).
		Response(http.StatusOK, refreshResponse{}, "Tokens rotated").
		ResponseHeader(http.StatusOK, RefreshTokenHeader, "New refresh token").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Refresh token rejected").
		Build()

	op(http.MethodPost, AuthPrefix+"/logout", "Log out the current device").
		Response(http.StatusOK, messageResponse{}, "Logged out").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Response(http.StatusNotFound, ErrorResponse{}, "Session not found").
		Build()

	op(http.MethodPost, AuthPrefix+"/logout-all", "Log out every device").
		Response(http.StatusOK, logoutAllResponse{}, "Sessions revoked").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Build()

	op(http.MethodGet, AuthPrefix+"/sessions", "List sessions").
		Response(http.StatusOK, sessionsResponse{}, "Sessions of the caller").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Build()

	op(http.MethodGet, AuthPrefix+"/me", "Current user").
		Response(http.StatusOK, userResponse{}, "The caller").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Not authenticated").
		Build()
}
