package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/inkpress/apperr"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/zap"
)

const internalMessage = "Something went wrong"

// ErrorHandler renders every error returned by a handler or middleware as an
// ErrorResponse. Causes of internal errors are logged, never sent.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	logger = logger.Named("api")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := render(err)
		if body.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(body.Status)
		} else {
			writeErr = c.JSON(body.Status, body)
		}
		if writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func render(err error) ErrorResponse {
	if appErr, ok := apperr.As(err); ok {
		status := appErr.Kind.Status()
		message := appErr.Message
		if appErr.Kind == apperr.KindInternal {
			message = internalMessage
		}
		return ErrorResponse{
			Status:  status,
			Error:   http.StatusText(status),
			Message: message,
			Data:    appErr.Fields,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status := he.Code
		message := http.StatusText(status)
		if status < http.StatusInternalServerError {
			if m, ok := he.Message.(string); ok && m != "" {
				message = m
			} else if he.Message != nil {
				message = fmt.Sprint(he.Message)
			}
		} else {
			message = internalMessage
		}
		return ErrorResponse{Status: status, Error: http.StatusText(status), Message: message}
	}

	return ErrorResponse{
		Status:  http.StatusInternalServerError,
		Error:   http.StatusText(http.StatusInternalServerError),
		Message: internalMessage,
	}
}
