package domain

import (
	"context"
	"time"
)

// PersistedGrantStore persists every server-side handle.
type PersistedGrantStore interface {
	// Store inserts or replaces the grant with the same key
	Store(ctx context.Context, grant *PersistedGrant) error
	// Get returns ErrPersistedGrantNotFound when the key is unknown
	Get(ctx context.Context, key string) (*PersistedGrant, error)
	GetAll(ctx context.Context, filter PersistedGrantFilter) ([]*PersistedGrant, error)
	Remove(ctx context.Context, key string) error
	RemoveAll(ctx context.Context, filter PersistedGrantFilter) error
	// Take atomically reads and deletes the grant. Of two concurrent callers
	// at most one receives the grant, the other gets ErrPersistedGrantNotFound.
	Take(ctx context.Context, key string) (*PersistedGrant, error)
}

// DeviceFlowStore persists device authorization requests, indexed by device code and user code.
type DeviceFlowStore interface {
	// StoreDeviceAuthorization fails with ErrDuplicateKey when the user code is already in use
	StoreDeviceAuthorization(ctx context.Context, deviceCode, userCode string, data *DeviceCode) error
	FindByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)
	FindByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)
	UpdateByUserCode(ctx context.Context, userCode string, data *DeviceCode) error
	// RemoveByDeviceCode returns ErrPersistedGrantNotFound when nothing was removed
	RemoveByDeviceCode(ctx context.Context, deviceCode string) error
}

// ExpiredRemover deletes records whose expiration is at or before now and reports how many went.
// Backends with native expiry (Redis TTLs) do not implement it.
type ExpiredRemover interface {
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClientStore looks clients up by id.
type ClientStore interface {
	FindClientByID(ctx context.Context, clientID string) (*Client, error)
}

// ClientRepository is the administrative view of the client registry.
type ClientRepository interface {
	ClientStore
	CreateClient(ctx context.Context, client *Client) error
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, clientID string) error
	ListClients(ctx context.Context) ([]*Client, error)
}

// ResourceStore resolves scopes to resources.
type ResourceStore interface {
	FindIdentityResourcesByScopeName(ctx context.Context, names []string) ([]*IdentityResource, error)
	FindApiScopesByName(ctx context.Context, names []string) ([]*ApiScope, error)
	FindApiResourcesByScopeName(ctx context.Context, names []string) ([]*ApiResource, error)
	FindApiResourcesByName(ctx context.Context, names []string) ([]*ApiResource, error)
	GetAllResources(ctx context.Context) (*Resources, error)
}

// UserStore looks local accounts up.
type UserStore interface {
	FindBySubjectID(ctx context.Context, subjectID string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// Cache records short-lived markers (replayed assertions, device polling).
type Cache interface {
	// SetIfAbsent stores key for ttl and reports true, or reports false if key is already present
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
