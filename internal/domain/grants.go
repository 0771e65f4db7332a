package domain

import (
	"time"
)

// Token is an access or identity token before it is serialized.
// Reference access tokens are persisted in this shape.
type Token struct {
	Type            string          `json:"type"`
	Issuer          string          `json:"issuer"`
	Audiences       []string        `json:"audiences"`
	CreationTime    time.Time       `json:"creation_time"`
	Lifetime        time.Duration   `json:"lifetime"`
	ClientID        string          `json:"client_id"`
	AccessTokenType AccessTokenType `json:"access_token_type"`
	Claims          Claims          `json:"claims"`
	Version         int             `json:"version"`
}

// SubjectID returns the sub claim, empty for client-only tokens
func (t *Token) SubjectID() string {
	return t.Claims.Value(ClaimSubject)
}

// SessionID returns the sid claim
func (t *Token) SessionID() string {
	return t.Claims.Value(ClaimSessionID)
}

// Scopes returns every scope claim
func (t *Token) Scopes() []string {
	return t.Claims.Values(ClaimScope)
}

// Expiration returns the instant the token stops being valid
func (t *Token) Expiration() time.Time {
	return t.CreationTime.Add(t.Lifetime)
}

// IsExpired reports whether the token expired at now
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.Expiration())
}

// AuthorizationCode is the payload behind an authorization code handle.
type AuthorizationCode struct {
	CreationTime        time.Time     `json:"creation_time"`
	Lifetime            time.Duration `json:"lifetime"`
	ClientID            string        `json:"client_id"`
	Subject             *Principal    `json:"subject"`
	IsOpenID            bool          `json:"is_open_id"`
	RequestedScopes     []string      `json:"requested_scopes"`
	RedirectURI         string        `json:"redirect_uri"`
	Nonce               string        `json:"nonce,omitempty"`
	StateHash           string        `json:"state_hash,omitempty"`
	WasConsentShown     bool          `json:"was_consent_shown"`
	SessionID           string        `json:"session_id,omitempty"`
	CodeChallenge       string        `json:"code_challenge,omitempty"`
	CodeChallengeMethod string        `json:"code_challenge_method,omitempty"`
}

// IsExpired reports whether the code expired at now
func (c *AuthorizationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.CreationTime.Add(c.Lifetime))
}

// RefreshToken is the payload behind a refresh token handle.
type RefreshToken struct {
	CreationTime time.Time     `json:"creation_time"`
	Lifetime     time.Duration `json:"lifetime"`
	ConsumedTime *time.Time    `json:"consumed_time,omitempty"`
	AccessToken  *Token        `json:"access_token"`
	Version      int           `json:"version"`
}

// SubjectID returns the subject the refresh token was issued to
func (r *RefreshToken) SubjectID() string {
	if r.AccessToken == nil {
		return ""
	}
	return r.AccessToken.SubjectID()
}

// ClientID returns the client the refresh token was issued to
func (r *RefreshToken) ClientID() string {
	if r.AccessToken == nil {
		return ""
	}
	return r.AccessToken.ClientID
}

// SessionID returns the sid the refresh token is bound to
func (r *RefreshToken) SessionID() string {
	if r.AccessToken == nil {
		return ""
	}
	return r.AccessToken.SessionID()
}

// Scopes returns the scopes granted to the refresh token
func (r *RefreshToken) Scopes() []string {
	if r.AccessToken == nil {
		return nil
	}
	return r.AccessToken.Scopes()
}

// Expiration returns the instant the handle stops being redeemable
func (r *RefreshToken) Expiration() time.Time {
	return r.CreationTime.Add(r.Lifetime)
}

// IsExpired reports whether the handle expired at now
func (r *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(r.Expiration())
}

// Consent is a remembered user decision for a client.
type Consent struct {
	SubjectID    string     `json:"subject_id"`
	ClientID     string     `json:"client_id"`
	Scopes       []string   `json:"scopes"`
	CreationTime time.Time  `json:"creation_time"`
	Expiration   *time.Time `json:"expiration,omitempty"`
}

// IsExpired reports whether the consent expired at now
func (c *Consent) IsExpired(now time.Time) bool {
	return c.Expiration != nil && !now.Before(*c.Expiration)
}

// DeviceCode is the state of a device authorization request.
type DeviceCode struct {
	CreationTime     time.Time     `json:"creation_time"`
	Lifetime         time.Duration `json:"lifetime"`
	ClientID         string        `json:"client_id"`
	IsOpenID         bool          `json:"is_open_id"`
	IsAuthorized     bool          `json:"is_authorized"`
	IsDenied         bool          `json:"is_denied"`
	RequestedScopes  []string      `json:"requested_scopes"`
	AuthorizedScopes []string      `json:"authorized_scopes,omitempty"`
	Subject          *Principal    `json:"subject,omitempty"`
	SessionID        string        `json:"session_id,omitempty"`
}

// Expiration returns the instant the device code stops being valid
func (d *DeviceCode) Expiration() time.Time {
	return d.CreationTime.Add(d.Lifetime)
}

// IsExpired reports whether the device code expired at now
func (d *DeviceCode) IsExpired(now time.Time) bool {
	return !now.Before(d.Expiration())
}
