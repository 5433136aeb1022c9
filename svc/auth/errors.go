package auth

import "errors"

// Domain errors for authentication operations.
var (
	// ErrInvalidCredentials is returned when the username is unknown or the
	// password does not match. The two cases are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")

	// ErrInvalidRefreshToken is returned when a refresh token is malformed,
	// expired, of the wrong type, or already consumed by rotation.
	ErrInvalidRefreshToken = errors.New("auth.invalid_refresh_token")

	// ErrInvalidAccessToken is returned when a bearer token fails
	// verification.
	ErrInvalidAccessToken = errors.New("auth.invalid_access_token")

	// ErrUsernameTaken is returned when provisioning a user with a username
	// already in use.
	ErrUsernameTaken = errors.New("auth.username_taken")

	// ErrInvalidRole is returned when provisioning a user with a role
	// outside the closed role set.
	ErrInvalidRole = errors.New("auth.invalid_role")
)
