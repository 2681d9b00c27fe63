package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		status int
		code   string
		msg    string
	}{
		{"internal default", Internal(""), http.StatusInternalServerError, "internal_error", "internal server error"},
		{"bad request", BadRequest("invalid_email", "email is required"), http.StatusBadRequest, "invalid_email", "email is required"},
		{"unauthorized default", Unauthorized(""), http.StatusUnauthorized, "unauthorized", "unauthorized"},
		{"not found", NotFound("state_not_found", "missing"), http.StatusNotFound, "state_not_found", "missing"},
		{"unavailable default", Unavailable(""), http.StatusServiceUnavailable, "unavailable", "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.msg, tt.err.Error())
		})
	}
}

func TestConflictCarriesDetails(t *testing.T) {
	err := Conflict("state_conflict", "stale", map[string]int{"version": 3})
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, map[string]int{"version": 3}, err.Details)
}
