package domain

// Storage keys for persisted credentials. The values are stored and read
// back verbatim as strings; nothing in the client inspects them beyond the
// expiry peek in the CLI.
const (
	KeyAccessToken       = "token"
	KeyRefreshToken      = "refresh_token"
	KeyPreferredLanguage = "preferred_language"
)

// CredentialStore defines the persistence contract for the access token,
// refresh token and the user's preferred code language.
// Implementations live in the credstore package; the transport and session
// layers depend on this interface only — never on a concrete backend.
type CredentialStore interface {
	// Get returns the stored value for key, or "" when the key is absent.
	// A degraded store may return "" even after a prior Set; callers must
	// tolerate that.
	Get(key string) string

	// Set stores value under key, replacing any previous value.
	Set(key, value string)

	// Remove deletes key from the store. Removing an absent key is a no-op.
	Remove(key string)
}
