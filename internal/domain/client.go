package domain

import (
	"strings"
	"time"
)

// TokenUsage controls what happens to a refresh token handle when it is redeemed.
type TokenUsage string

const (
	// TokenUsageReUse keeps the handle stable across refreshes
	TokenUsageReUse TokenUsage = "ReUse"
	// TokenUsageOneTimeOnly invalidates the handle and issues a new one on every refresh
	TokenUsageOneTimeOnly TokenUsage = "OneTimeOnly"
)

// TokenExpiration controls how refresh token lifetimes evolve.
type TokenExpiration string

const (
	TokenExpirationAbsolute TokenExpiration = "Absolute"
	TokenExpirationSliding  TokenExpiration = "Sliding"
)

// AccessTokenType selects self-contained or reference access tokens.
type AccessTokenType string

const (
	AccessTokenTypeJwt       AccessTokenType = "Jwt"
	AccessTokenTypeReference AccessTokenType = "Reference"
)

// Secret types
const (
	SecretTypeSharedSecret = "SharedSecret"
	SecretTypeJSONWebKey   = "JsonWebKey"
)

// Secret is a credential a client or an API resource can authenticate with.
type Secret struct {
	Type        string     `json:"type" yaml:"type"`
	Value       string     `json:"value" yaml:"value"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Expiration  *time.Time `json:"expiration,omitempty" yaml:"expiration,omitempty"`
}

// IsExpired reports whether the secret expired before now
func (s Secret) IsExpired(now time.Time) bool {
	return s.Expiration != nil && !s.Expiration.After(now)
}

// Client is a registered relying party. It is configuration, never mutated by the protocol.
type Client struct {
	ClientID                          string          `json:"client_id" yaml:"client_id"`
	ClientName                        string          `json:"client_name,omitempty" yaml:"client_name,omitempty"`
	Enabled                           bool            `json:"enabled" yaml:"enabled"`
	ClientSecrets                     []Secret        `json:"client_secrets,omitempty" yaml:"client_secrets,omitempty"`
	RequireClientSecret               bool            `json:"require_client_secret" yaml:"require_client_secret"`
	AllowedGrantTypes                 []string        `json:"allowed_grant_types" yaml:"allowed_grant_types"`
	AllowedScopes                     []string        `json:"allowed_scopes" yaml:"allowed_scopes"`
	RedirectURIs                      []string        `json:"redirect_uris,omitempty" yaml:"redirect_uris,omitempty"`
	PostLogoutRedirectURIs            []string        `json:"post_logout_redirect_uris,omitempty" yaml:"post_logout_redirect_uris,omitempty"`
	FrontChannelLogoutURI             string          `json:"front_channel_logout_uri,omitempty" yaml:"front_channel_logout_uri,omitempty"`
	FrontChannelLogoutSessionRequired bool            `json:"front_channel_logout_session_required" yaml:"front_channel_logout_session_required"`
	BackChannelLogoutURI              string          `json:"back_channel_logout_uri,omitempty" yaml:"back_channel_logout_uri,omitempty"`
	BackChannelLogoutSessionRequired  bool            `json:"back_channel_logout_session_required" yaml:"back_channel_logout_session_required"`
	RequirePkce                       bool            `json:"require_pkce" yaml:"require_pkce"`
	AllowPlainTextPkce                bool            `json:"allow_plain_text_pkce" yaml:"allow_plain_text_pkce"`
	RequireConsent                    bool            `json:"require_consent" yaml:"require_consent"`
	AllowRememberConsent              bool            `json:"allow_remember_consent" yaml:"allow_remember_consent"`
	ConsentLifetime                   time.Duration   `json:"consent_lifetime,omitempty" yaml:"consent_lifetime,omitempty"`
	AllowAccessTokensViaBrowser       bool            `json:"allow_access_tokens_via_browser" yaml:"allow_access_tokens_via_browser"`
	AllowOfflineAccess                bool            `json:"allow_offline_access" yaml:"allow_offline_access"`
	AlwaysIncludeUserClaimsInIDToken  bool            `json:"always_include_user_claims_in_id_token" yaml:"always_include_user_claims_in_id_token"`
	IdentityTokenLifetime             time.Duration   `json:"identity_token_lifetime" yaml:"identity_token_lifetime"`
	AccessTokenLifetime               time.Duration   `json:"access_token_lifetime" yaml:"access_token_lifetime"`
	AuthorizationCodeLifetime         time.Duration   `json:"authorization_code_lifetime" yaml:"authorization_code_lifetime"`
	AbsoluteRefreshTokenLifetime      time.Duration   `json:"absolute_refresh_token_lifetime" yaml:"absolute_refresh_token_lifetime"`
	SlidingRefreshTokenLifetime       time.Duration   `json:"sliding_refresh_token_lifetime" yaml:"sliding_refresh_token_lifetime"`
	RefreshTokenUsage                 TokenUsage      `json:"refresh_token_usage" yaml:"refresh_token_usage"`
	RefreshTokenExpiration            TokenExpiration `json:"refresh_token_expiration" yaml:"refresh_token_expiration"`
	UpdateAccessTokenClaimsOnRefresh  bool            `json:"update_access_token_claims_on_refresh" yaml:"update_access_token_claims_on_refresh"`
	AccessTokenType                   AccessTokenType `json:"access_token_type" yaml:"access_token_type"`
	IdentityProviderRestrictions      []string        `json:"identity_provider_restrictions,omitempty" yaml:"identity_provider_restrictions,omitempty"`
	EnableLocalLogin                  bool            `json:"enable_local_login" yaml:"enable_local_login"`
	AllowedCorsOrigins                []string        `json:"allowed_cors_origins,omitempty" yaml:"allowed_cors_origins,omitempty"`
	DeviceCodeLifetime                time.Duration   `json:"device_code_lifetime" yaml:"device_code_lifetime"`
	UserCodeType                      string          `json:"user_code_type,omitempty" yaml:"user_code_type,omitempty"`
	Claims                            Claims          `json:"claims,omitempty" yaml:"claims,omitempty"`
	AlwaysSendClientClaims            bool            `json:"always_send_client_claims" yaml:"always_send_client_claims"`
	ClientClaimsPrefix                string          `json:"client_claims_prefix" yaml:"client_claims_prefix"`
	CreatedAt                         time.Time       `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt                         time.Time       `json:"updated_at,omitempty" yaml:"-"`
}

// Default client lifetimes
const (
	DefaultIdentityTokenLifetime        = 5 * time.Minute
	DefaultAccessTokenLifetime          = time.Hour
	DefaultAuthorizationCodeLifetime    = 5 * time.Minute
	DefaultAbsoluteRefreshTokenLifetime = 30 * 24 * time.Hour
	DefaultSlidingRefreshTokenLifetime  = 15 * 24 * time.Hour
	DefaultDeviceCodeLifetime           = 5 * time.Minute
	DefaultClientClaimsPrefix           = "client_"
)

// NewClient returns a client populated with the protocol defaults.
func NewClient() *Client {
	return &Client{
		Enabled:                      true,
		RequireClientSecret:          true,
		RequirePkce:                  true,
		AllowRememberConsent:         true,
		EnableLocalLogin:             true,
		IdentityTokenLifetime:        DefaultIdentityTokenLifetime,
		AccessTokenLifetime:          DefaultAccessTokenLifetime,
		AuthorizationCodeLifetime:    DefaultAuthorizationCodeLifetime,
		AbsoluteRefreshTokenLifetime: DefaultAbsoluteRefreshTokenLifetime,
		SlidingRefreshTokenLifetime:  DefaultSlidingRefreshTokenLifetime,
		RefreshTokenUsage:            TokenUsageOneTimeOnly,
		RefreshTokenExpiration:       TokenExpirationAbsolute,
		AccessTokenType:              AccessTokenTypeJwt,
		DeviceCodeLifetime:           DefaultDeviceCodeLifetime,
		ClientClaimsPrefix:           DefaultClientClaimsPrefix,
	}
}

// HasGrantType reports whether the client may use grantType
func (c *Client) HasGrantType(grantType string) bool {
	return contains(c.AllowedGrantTypes, grantType)
}

// HasScope reports whether the client may request scope
func (c *Client) HasScope(scope string) bool {
	return contains(c.AllowedScopes, scope)
}

// HasRedirectURI performs an exact, case-sensitive match against the registered redirect URIs
func (c *Client) HasRedirectURI(uri string) bool {
	return contains(c.RedirectURIs, uri)
}

// HasPostLogoutRedirectURI performs an exact match against the registered post logout URIs
func (c *Client) HasPostLogoutRedirectURI(uri string) bool {
	return contains(c.PostLogoutRedirectURIs, uri)
}

// AllowsIdentityProvider reports whether idp is acceptable for this client
func (c *Client) AllowsIdentityProvider(idp string) bool {
	if len(c.IdentityProviderRestrictions) == 0 {
		return true
	}
	return contains(c.IdentityProviderRestrictions, idp)
}

// HasCorsOrigin reports whether origin is registered for CORS, ignoring case
func (c *Client) HasCorsOrigin(origin string) bool {
	for _, o := range c.AllowedCorsOrigins {
		if strings.EqualFold(strings.TrimSuffix(o, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
