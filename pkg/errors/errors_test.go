package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	appErr := Internal(cause)

	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "boom")
	assert.ErrorIs(t, appErr, cause)
}

func TestConstructors_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		code   string
	}{
		{"not found", NotFound("message", "msg-1"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{"unauthorized", Unauthorized("nope"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", Forbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"service unavailable", ServiceUnavailable("down"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("parse: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestWrap_PreservesChain(t *testing.T) {
	wrapped := Wrap(ErrConflict, "registering")
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Contains(t, wrapped.Error(), "registering")
}
