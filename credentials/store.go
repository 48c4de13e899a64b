package credentials

// Store provides durable persistence for a single credential. Implementations
// can use a file, keychain, or in-memory backends for tests.
type Store interface {
	// Get returns the persisted credential. The second return value is false
	// when no credential is stored.
	Get() (*Credential, bool)

	// Set persists the credential atomically: access token, refresh token and
	// profile are written together, never individually.
	Set(credential *Credential) error

	// UpdateUser replaces the cached profile, leaving the token pair exactly
	// as stored. A no-op when no credential is persisted. This exists so a
	// profile fetch cannot clobber a token refresh that landed in between a
	// read and a full write.
	UpdateUser(user *UserProfile) error

	// Clear removes the persisted credential. Safe to call when already empty.
	Clear() error
}
