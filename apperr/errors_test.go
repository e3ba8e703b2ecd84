package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindValidation, http.StatusUnprocessableEntity},
		{KindTooManyRequests, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
		{Kind("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
		})
	}
}

func TestError_Wrapping(t *testing.T) {
	cause := errors.New("token has expired")
	err := Unauthorized("Token expired", cause)

	assert.Equal(t, "Token expired: token has expired", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("refresh: %w", err)
	assert.Equal(t, KindUnauthorized, KindOf(wrapped))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Token expired", appErr.Message)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestValidation(t *testing.T) {
	err := Validation("One or more fields are invalid", map[string]string{"email": "Email is required"})

	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "Email is required", err.Fields["email"])
	assert.Equal(t, "One or more fields are invalid", err.Error())
}
