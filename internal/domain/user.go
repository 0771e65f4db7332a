package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// User represents a local account able to sign in
type User struct {
	SubjectID         string    `json:"subject_id" yaml:"subject_id"`
	Username          string    `json:"username" yaml:"username"`
	Password          string    `json:"-" yaml:"password"` // bcrypt hash, never serialized to JSON
	ProviderName      string    `json:"provider_name,omitempty" yaml:"provider_name,omitempty"`
	ProviderSubjectID string    `json:"provider_subject_id,omitempty" yaml:"provider_subject_id,omitempty"`
	IsActive          bool      `json:"is_active" yaml:"is_active"`
	Claims            Claims    `json:"claims,omitempty" yaml:"claims,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// NewUser creates an active local user with a fresh subject id
func NewUser(username, passwordHash string, claims Claims) *User {
	now := time.Now().UTC()
	return &User{
		SubjectID: ulid.Make().String(),
		Username:  username,
		Password:  passwordHash,
		IsActive:  true,
		Claims:    claims,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
