// Package api is the HTTP boundary: response envelopes, error rendering,
// request validation and the auth handlers.
package api

import (
	"github.com/labstack/echo/v4"
)

type Response struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Meta    any    `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Status  int               `json:"status"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

func Success(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{Message: message, Status: status, Data: data})
}

func SuccessWithMeta(c echo.Context, status int, message string, data, meta any) error {
	return c.JSON(status, Response{Message: message, Status: status, Data: data, Meta: meta})
}
