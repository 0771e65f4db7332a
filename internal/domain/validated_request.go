package domain

import "time"

// ValidatedRequest is the state shared by every validated protocol request.
// It lives for a single endpoint invocation and is never persisted.
type ValidatedRequest struct {
	Client   *Client
	ClientID string
	// ClientClaims are added to access tokens issued to the client
	ClientClaims Claims
	Subject      *Principal
	SessionID    string
	// SecretType names how the client authenticated, empty for public clients
	SecretType          string
	AccessTokenType     AccessTokenType
	AccessTokenLifetime time.Duration
	// Resources are the resources granted to this request
	Resources *Resources
}

// SetClient records the client and the settings derived from it
func (r *ValidatedRequest) SetClient(client *Client) {
	r.Client = client
	r.ClientID = client.ClientID
	r.AccessTokenType = client.AccessTokenType
	r.AccessTokenLifetime = client.AccessTokenLifetime
	r.ClientClaims = client.Claims
}

// TokenCreationRequest describes a token to mint.
type TokenCreationRequest struct {
	Subject   *Principal
	Resources *Resources
	Request   *ValidatedRequest
	// IncludeAllIdentityClaims puts every identity claim in the id_token
	IncludeAllIdentityClaims bool
	Nonce                    string
	AccessTokenToHash        string
	AuthorizationCodeToHash  string
	StateHash                string
}
