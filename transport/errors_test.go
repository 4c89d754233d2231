package transport

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAPIErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"error key", 401, `{"error": "Invalid credentials"}`, "Invalid credentials"},
		{"detail key", 403, `{"detail": "Authentication required"}`, "Authentication required"},
		{"empty body", 500, ``, ""},
		{"not json", 502, `<html>bad gateway</html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.detail, apiErr.Detail)
		})
	}
}

func TestDecodeAPIErrorFieldDetail(t *testing.T) {
	body := `{"username": ["A user with that username already exists."], "email": "Enter a valid email address."}`
	apiErr := decodeAPIError(http.StatusBadRequest, []byte(body))

	require.NotNil(t, apiErr.Fields)
	assert.Equal(t, []string{"A user with that username already exists."}, apiErr.Fields["username"])
	assert.Equal(t, []string{"Enter a valid email address."}, apiErr.Fields["email"])
	assert.True(t, IsValidationError(apiErr))
}

func TestErrorClassification(t *testing.T) {
	auth := &APIError{StatusCode: http.StatusUnauthorized}
	forbidden := &APIError{StatusCode: http.StatusForbidden}
	validation := &APIError{StatusCode: http.StatusBadRequest, Fields: map[string][]string{"title": {"required"}}}
	server := &APIError{StatusCode: http.StatusInternalServerError}
	network := fmt.Errorf("send GET /api/thing/: %w", errors.New("connection refused"))

	assert.True(t, IsAuthError(auth))
	assert.True(t, IsAuthError(forbidden))
	assert.False(t, IsAuthError(validation))

	assert.True(t, IsValidationError(validation))
	assert.False(t, IsValidationError(auth))

	assert.True(t, IsServerError(server))
	assert.False(t, IsServerError(validation))

	assert.True(t, IsNetworkError(network))
	assert.False(t, IsNetworkError(auth))
	assert.False(t, IsNetworkError(ErrSessionTerminated))
	assert.False(t, IsNetworkError(nil))
}

func TestErrorClassificationSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("login user %q: %w", "alice", &APIError{StatusCode: http.StatusUnauthorized})
	assert.True(t, IsAuthError(wrapped))
}

func TestAPIErrorMessage(t *testing.T) {
	withDetail := &APIError{StatusCode: 401, Detail: "Invalid credentials"}
	assert.Equal(t, "api error 401: Invalid credentials", withDetail.Error())

	bare := &APIError{StatusCode: 503}
	assert.Equal(t, "api error 503: Service Unavailable", bare.Error())
}
