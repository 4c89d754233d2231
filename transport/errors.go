// Package transport is the single choke-point for every call the client
// makes to the Createathon API. It attaches the stored access token,
// logs request metadata, and transparently refreshes the token once on
// an authentication failure.
//
// Error Handling:
// Failed HTTP exchanges surface as *APIError carrying the status code and
// whatever detail the server returned. Transport-level failures (the
// request never reached the server or never returned) are plain wrapped
// errors with no *APIError in the chain. Session termination — refresh
// impossible or refused — is signalled with ErrSessionTerminated.
//
// Error Checking (in callers):
//
//	switch {
//	case errors.Is(err, transport.ErrSessionTerminated):
//	    // redirect to login
//	case transport.IsValidationError(err):
//	    // show field errors next to the form
//	case transport.IsServerError(err):
//	    // generic retry-able message
//	}
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionTerminated indicates the access token was rejected and could
// not be refreshed. Both tokens have been cleared; the caller is expected
// to drop to an unauthenticated state.
var ErrSessionTerminated = errors.New("session terminated")

// APIError is a non-2xx response from the server.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Detail is the human-readable message, when the server sent one.
	Detail string

	// Fields maps form field names to validation messages for 4xx
	// responses with field-level detail.
	Fields map[string][]string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsAuthError reports whether err is a 401 or 403 response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsValidationError reports whether err is a 4xx response carrying
// field-level detail.
func IsValidationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && len(apiErr.Fields) > 0
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 500
}

// IsNetworkError reports whether err is a transport-level failure — the
// request never produced an HTTP response.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr) && !errors.Is(err, ErrSessionTerminated)
}

// decodeAPIError builds an *APIError from a non-2xx response body.
// The server answers either {"error": "..."}, {"detail": "..."} or a
// field → messages map for validation failures.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if len(body) == 0 {
		return apiErr
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}

	for _, key := range []string{"error", "detail"} {
		var msg string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &msg) == nil {
			apiErr.Detail = msg
			delete(raw, key)
		}
	}

	for field, v := range raw {
		var msgs []string
		if json.Unmarshal(v, &msgs) == nil && len(msgs) > 0 {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[field] = msgs
			continue
		}
		var msg string
		if json.Unmarshal(v, &msg) == nil && msg != "" {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[field] = []string{msg}
		}
	}

	return apiErr
}
