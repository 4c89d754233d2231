package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/telemetry"
	"github.com/createathon/client-go/transport"
)

const (
	loginPath    = "/api/users/login/"
	registerPath = "/api/users/register/"
	mePath       = "/api/users/me/"
)

// defaultLanguage is used when neither the store nor the profile carries
// a preference.
const defaultLanguage = "python"

// Controller owns the session: the in-memory user snapshot and the
// persisted credentials. It is constructed explicitly and handed to
// callers — no ambient singleton — and is safe for concurrent use.
//
// Invariant: a non-nil user implies an access token in the store; both
// are always cleared together on logout or unrecoverable failure.
type Controller struct {
	pipeline *transport.Pipeline
	store    domain.CredentialStore

	mu   sync.RWMutex
	user *domain.User
}

// NewController creates a Controller over the given pipeline and store.
// Call Initialize before reading User.
func NewController(pipeline *transport.Pipeline, store domain.CredentialStore) *Controller {
	return &Controller{pipeline: pipeline, store: store}
}

// User returns a copy of the current user snapshot, or nil when logged
// out.
func (c *Controller) User() *domain.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Initialize restores the session from persisted credentials: when an
// access token is present the current profile is fetched; a fetch failure
// clears the credentials and leaves the session logged out. It never
// returns an error — startup must resolve to a definite state either way.
func (c *Controller) Initialize(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "session.initialize", trace.WithAttributes(
		attribute.String("layer", "session"),
	))
	defer span.End()

	if c.store.Get(domain.KeyAccessToken) == "" {
		span.SetAttributes(attribute.Bool("session.restored", false))
		return
	}

	var user domain.User
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, mePath, nil, nil, &user); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("session.restored", false))
		log.Warn().Err(err).Msg("Stored session rejected, clearing credentials")
		c.clear()
		return
	}

	c.setUser(&user)
	span.SetAttributes(attribute.Bool("session.restored", true))
	log.Info().Str("username", user.Username).Msg("Session restored")
}

// Login authenticates with the server, persists both tokens and sets the
// user. A 400/401 response maps to ErrInvalidCredentials.
func (c *Controller) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.login", trace.WithAttributes(
		attribute.String("layer", "session"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	var resp domain.AuthResponse
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, loginPath, nil, req, &resp); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		// A rejected login surfaces either as a plain 400, or as a
		// terminated session when the server answered 401 and no refresh
		// was possible. Both mean the credentials were wrong.
		var apiErr *transport.APIError
		if errors.Is(err, transport.ErrSessionTerminated) ||
			(errors.As(err, &apiErr) &&
				(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized)) {
			return nil, fmt.Errorf("login user %q: %w", req.Username, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("login user %q: %w", req.Username, err)
	}

	c.store.Set(domain.KeyAccessToken, resp.Token)
	c.store.Set(domain.KeyRefreshToken, resp.RefreshToken)
	c.setUser(resp.User)

	span.SetAttributes(attribute.Bool("auth.success", true))
	log.Info().Str("username", req.Username).Msg("Login successful")
	return c.User(), nil
}

// Register creates an account and starts a session. The server issues no
// refresh token at registration, so only the access token is persisted;
// once it expires the user must log in again.
func (c *Controller) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.register", trace.WithAttributes(
		attribute.String("layer", "session"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	var resp domain.AuthResponse
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, registerPath, nil, req, &resp); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("registration.success", false))
		// Duplicate accounts surface either as a 409 or as a username/email
		// validation message on a 400.
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusConflict ||
				len(apiErr.Fields["username"]) > 0 || len(apiErr.Fields["email"]) > 0 {
				return nil, fmt.Errorf("register user %q: %w", req.Username, ErrUserExists)
			}
		}
		return nil, fmt.Errorf("register user %q: %w", req.Username, err)
	}

	c.store.Set(domain.KeyAccessToken, resp.Token)
	c.setUser(resp.User)

	span.SetAttributes(attribute.Bool("registration.success", true))
	log.Info().Str("username", req.Username).Msg("Registration successful")
	return c.User(), nil
}

// Logout clears both tokens and the user snapshot. It never fails and is
// a no-op when already logged out. The language preference survives.
func (c *Controller) Logout() {
	c.clear()
	log.Info().Msg("Logged out")
}

// UpdateUser shallow-merges partial into the in-memory user without a
// network call, for optimistic reflection of a separately confirmed
// server update. Keys are the profile's JSON field names. A nil current
// user or empty partial is a no-op.
func (c *Controller) UpdateUser(partial map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil || len(partial) == 0 {
		return
	}

	base, err := json.Marshal(c.user)
	if err != nil {
		return
	}
	merged := make(map[string]any)
	if err := json.Unmarshal(base, &merged); err != nil {
		return
	}
	for k, v := range partial {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return
	}
	c.user = &user
}

// RefreshProfile re-fetches the profile and replaces the user wholesale,
// reconciling server-computed fields after an edit.
func (c *Controller) RefreshProfile(ctx context.Context) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.refresh_profile", trace.WithAttributes(
		attribute.String("layer", "session"),
	))
	defer span.End()

	var user domain.User
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, mePath, nil, nil, &user); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	c.setUser(&user)
	return c.User(), nil
}

// UpdateProfile PATCHes partial profile fields to the server and replaces
// the user with the updated record it returns.
func (c *Controller) UpdateProfile(ctx context.Context, partial map[string]any) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "session.update_profile", trace.WithAttributes(
		attribute.String("layer", "session"),
	))
	defer span.End()

	if c.User() == nil {
		return nil, fmt.Errorf("update profile: %w", ErrNotAuthenticated)
	}

	var user domain.User
	if err := c.pipeline.DoJSON(ctx, http.MethodPatch, mePath, nil, partial, &user); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("update profile: %w", err)
	}

	c.setUser(&user)
	return c.User(), nil
}

// PreferredLanguage returns the stored language preference, falling back
// to the profile's preferred_language and finally to the default.
func (c *Controller) PreferredLanguage() string {
	if v := c.store.Get(domain.KeyPreferredLanguage); v != "" {
		return v
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user != nil && c.user.PreferredLanguage != "" {
		return c.user.PreferredLanguage
	}
	return defaultLanguage
}

// SetPreferredLanguage persists the language preference.
func (c *Controller) SetPreferredLanguage(lang string) {
	c.store.Set(domain.KeyPreferredLanguage, lang)
}

func (c *Controller) setUser(u *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

func (c *Controller) clear() {
	c.store.Remove(domain.KeyAccessToken)
	c.store.Remove(domain.KeyRefreshToken)
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
}
