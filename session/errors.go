// Package session owns the client's authenticated-user lifecycle.
//
// Error Handling:
// This package defines sentinel errors for the identity operations.
// They are wrapped with context using fmt.Errorf("%w") when returned,
// so callers check them with errors.Is.
//
// Example Usage:
//
//	if _, err := ctrl.Login(ctx, creds); err != nil {
//	    switch {
//	    case errors.Is(err, session.ErrInvalidCredentials):
//	        // wrong username or password
//	    case transport.IsNetworkError(err):
//	        // server unreachable
//	    }
//	}
package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrInvalidCredentials indicates the login credentials were rejected.
	// Surfaced from a 400/401 response on the login endpoint.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserExists indicates the username or email is already registered.
	// Surfaced from a 400/409 response on the register endpoint.
	ErrUserExists = errors.New("user already exists")

	// ErrNotAuthenticated indicates an operation that needs a current user
	// was called while logged out.
	ErrNotAuthenticated = errors.New("not authenticated")
)
