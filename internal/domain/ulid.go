package domain

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new ULID string, used for jti and event ids
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
