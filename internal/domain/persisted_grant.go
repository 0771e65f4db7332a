package domain

import (
	"time"
)

// Persisted grant types
const (
	PersistedGrantTypeAuthorizationCode = "authorization_code"
	PersistedGrantTypeReferenceToken    = "reference_token"
	PersistedGrantTypeRefreshToken      = "refresh_token"
	PersistedGrantTypeUserConsent       = "user_consent"
	PersistedGrantTypeDeviceCode        = "device_code"
)

// PersistedGrant is the storage envelope for every server-side handle.
// Key is the hashed handle; Data is the serialized payload.
type PersistedGrant struct {
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	SubjectID    string     `json:"subject_id,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	ClientID     string     `json:"client_id"`
	Description  string     `json:"description,omitempty"`
	CreationTime time.Time  `json:"creation_time"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	ConsumedTime *time.Time `json:"consumed_time,omitempty"`
	Data         string     `json:"data"`
}

// IsExpired reports whether the grant expired at now
func (g *PersistedGrant) IsExpired(now time.Time) bool {
	return g.Expiration != nil && !now.Before(*g.Expiration)
}

// PersistedGrantFilter selects grants for bulk reads and removals.
// Fields are combined with AND; empty fields are ignored.
type PersistedGrantFilter struct {
	SubjectID string
	SessionID string
	ClientID  string
	Type      string
}

// Validate rejects a filter that would match every grant
func (f PersistedGrantFilter) Validate() error {
	if f.SubjectID == "" && f.SessionID == "" && f.ClientID == "" && f.Type == "" {
		return ErrInvalidFilter
	}
	return nil
}

// Matches reports whether grant satisfies every non-empty field of the filter
func (f PersistedGrantFilter) Matches(grant *PersistedGrant) bool {
	if f.SubjectID != "" && grant.SubjectID != f.SubjectID {
		return false
	}
	if f.SessionID != "" && grant.SessionID != f.SessionID {
		return false
	}
	if f.ClientID != "" && grant.ClientID != f.ClientID {
		return false
	}
	if f.Type != "" && grant.Type != f.Type {
		return false
	}
	return true
}
