package dto

import (
	"time"

	"github.com/manorfm/identityserver/internal/domain"
)

// ClientRequest is the body of the client create and update calls. Lifetimes are in seconds.
type ClientRequest struct {
	ClientID                    string   `json:"client_id" validate:"required,max=100"`
	ClientName                  string   `json:"client_name"`
	Enabled                     *bool    `json:"enabled"`
	Secrets                     []string `json:"secrets"`
	RequireClientSecret         *bool    `json:"require_client_secret"`
	AllowedGrantTypes           []string `json:"allowed_grant_types" validate:"required,min=1"`
	AllowedScopes               []string `json:"allowed_scopes" validate:"required,min=1"`
	RedirectURIs                []string `json:"redirect_uris" validate:"dive,url"`
	PostLogoutRedirectURIs      []string `json:"post_logout_redirect_uris" validate:"dive,url"`
	FrontChannelLogoutURI       string   `json:"front_channel_logout_uri" validate:"omitempty,url"`
	BackChannelLogoutURI        string   `json:"back_channel_logout_uri" validate:"omitempty,url"`
	AllowedCorsOrigins          []string `json:"allowed_cors_origins" validate:"dive,url"`
	RequirePkce                 *bool    `json:"require_pkce"`
	RequireConsent              bool     `json:"require_consent"`
	AllowOfflineAccess          bool     `json:"allow_offline_access"`
	AllowAccessTokensViaBrowser bool     `json:"allow_access_tokens_via_browser"`
	AccessTokenType             string   `json:"access_token_type" validate:"omitempty,oneof=Jwt Reference"`
	AccessTokenLifetime         int      `json:"access_token_lifetime" validate:"omitempty,gt=0"`
	IdentityTokenLifetime       int      `json:"identity_token_lifetime" validate:"omitempty,gt=0"`
	RefreshTokenUsage           string   `json:"refresh_token_usage" validate:"omitempty,oneof=ReUse OneTimeOnly"`
	RefreshTokenExpiration      string   `json:"refresh_token_expiration" validate:"omitempty,oneof=Absolute Sliding"`
}

// ApplyTo copies the request onto client. hashed holds the already hashed secrets.
func (r *ClientRequest) ApplyTo(client *domain.Client, hashed []string) {
	client.ClientID = r.ClientID
	client.ClientName = r.ClientName
	client.AllowedGrantTypes = r.AllowedGrantTypes
	client.AllowedScopes = r.AllowedScopes
	client.RedirectURIs = r.RedirectURIs
	client.PostLogoutRedirectURIs = r.PostLogoutRedirectURIs
	client.FrontChannelLogoutURI = r.FrontChannelLogoutURI
	client.BackChannelLogoutURI = r.BackChannelLogoutURI
	client.AllowedCorsOrigins = r.AllowedCorsOrigins
	client.RequireConsent = r.RequireConsent
	client.AllowOfflineAccess = r.AllowOfflineAccess
	client.AllowAccessTokensViaBrowser = r.AllowAccessTokensViaBrowser

	if r.Enabled != nil {
		client.Enabled = *r.Enabled
	}
	if r.RequireClientSecret != nil {
		client.RequireClientSecret = *r.RequireClientSecret
	}
	if r.RequirePkce != nil {
		client.RequirePkce = *r.RequirePkce
	}
	if r.AccessTokenType != "" {
		client.AccessTokenType = domain.AccessTokenType(r.AccessTokenType)
	}
	if r.AccessTokenLifetime > 0 {
		client.AccessTokenLifetime = time.Duration(r.AccessTokenLifetime) * time.Second
	}
	if r.IdentityTokenLifetime > 0 {
		client.IdentityTokenLifetime = time.Duration(r.IdentityTokenLifetime) * time.Second
	}
	if r.RefreshTokenUsage != "" {
		client.RefreshTokenUsage = domain.TokenUsage(r.RefreshTokenUsage)
	}
	if r.RefreshTokenExpiration != "" {
		client.RefreshTokenExpiration = domain.TokenExpiration(r.RefreshTokenExpiration)
	}
	if len(hashed) > 0 {
		client.ClientSecrets = make([]domain.Secret, 0, len(hashed))
		for _, h := range hashed {
			client.ClientSecrets = append(client.ClientSecrets, domain.Secret{Type: domain.SecretTypeSharedSecret, Value: h})
		}
	}
}

// ClientResponse never carries secret values.
type ClientResponse struct {
	ClientID               string    `json:"client_id"`
	ClientName             string    `json:"client_name,omitempty"`
	Enabled                bool      `json:"enabled"`
	SecretCount            int       `json:"secret_count"`
	RequireClientSecret    bool      `json:"require_client_secret"`
	AllowedGrantTypes      []string  `json:"allowed_grant_types"`
	AllowedScopes          []string  `json:"allowed_scopes"`
	RedirectURIs           []string  `json:"redirect_uris,omitempty"`
	PostLogoutRedirectURIs []string  `json:"post_logout_redirect_uris,omitempty"`
	AllowedCorsOrigins     []string  `json:"allowed_cors_origins,omitempty"`
	RequirePkce            bool      `json:"require_pkce"`
	RequireConsent         bool      `json:"require_consent"`
	AllowOfflineAccess     bool      `json:"allow_offline_access"`
	AccessTokenType        string    `json:"access_token_type"`
	AccessTokenLifetime    int       `json:"access_token_lifetime"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func NewClientResponse(client *domain.Client) *ClientResponse {
	return &ClientResponse{
		ClientID:               client.ClientID,
		ClientName:             client.ClientName,
		Enabled:                client.Enabled,
		SecretCount:            len(client.ClientSecrets),
		RequireClientSecret:    client.RequireClientSecret,
		AllowedGrantTypes:      client.AllowedGrantTypes,
		AllowedScopes:          client.AllowedScopes,
		RedirectURIs:           client.RedirectURIs,
		PostLogoutRedirectURIs: client.PostLogoutRedirectURIs,
		AllowedCorsOrigins:     client.AllowedCorsOrigins,
		RequirePkce:            client.RequirePkce,
		RequireConsent:         client.RequireConsent,
		AllowOfflineAccess:     client.AllowOfflineAccess,
		AccessTokenType:        string(client.AccessTokenType),
		AccessTokenLifetime:    int(client.AccessTokenLifetime / time.Second),
		CreatedAt:              client.CreatedAt,
		UpdatedAt:              client.UpdatedAt,
	}
}
