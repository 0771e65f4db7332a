package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when credentials are invalid
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInternal is returned when there is an internal server error
	ErrInternal = errors.New("internal server error")

	// ErrDatabaseQuery is returned when a storage query fails
	ErrDatabaseQuery = errors.New("database query failed")

	// ErrPersistedGrantNotFound is returned when a handle is unknown, expired or already consumed
	ErrPersistedGrantNotFound = errors.New("persisted grant not found")

	// ErrDuplicateKey is returned when a unique key is already stored
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidFilter is returned when a grant filter has no field set
	ErrInvalidFilter = errors.New("persisted grant filter must set at least one field")

	// ErrClientNotFound is returned when a client is unknown
	ErrClientNotFound = errors.New("client not found")

	// ErrClientAlreadyExists is returned when creating a client with a taken id
	ErrClientAlreadyExists = errors.New("client already exists")

	// ErrUserNotFound is returned when a user is unknown
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidKeyConfig is returned when the signing key cannot be loaded
	ErrInvalidKeyConfig = errors.New("invalid key configuration")

	// ErrTokenGeneration is returned when a token cannot be signed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidSignature is returned when a signing backend returns an unusable signature
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidToken is returned when a token cannot be parsed or verified
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token is past its lifetime
	ErrTokenExpired = errors.New("token expired")

	// ErrUserCodeGeneration is returned when no unique user code could be produced
	ErrUserCodeGeneration = errors.New("unable to create unique device flow user code")

	// ErrSessionNotFound is returned when no user session exists
	ErrSessionNotFound = errors.New("session not found")
)
