package domain

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeImplicit          = "implicit"
	GrantTypeHybrid            = "hybrid"
)

// Response types
const (
	ResponseTypeCode             = "code"
	ResponseTypeToken            = "token"
	ResponseTypeIDToken          = "id_token"
	ResponseTypeIDTokenToken     = "id_token token"
	ResponseTypeCodeIDToken      = "code id_token"
	ResponseTypeCodeToken        = "code token"
	ResponseTypeCodeIDTokenToken = "code id_token token"
)

// ResponseTypeToGrantType maps every supported response_type to the grant type that governs it.
var ResponseTypeToGrantType = map[string]string{
	ResponseTypeCode:             GrantTypeAuthorizationCode,
	ResponseTypeToken:            GrantTypeImplicit,
	ResponseTypeIDToken:          GrantTypeImplicit,
	ResponseTypeIDTokenToken:     GrantTypeImplicit,
	ResponseTypeCodeIDToken:      GrantTypeHybrid,
	ResponseTypeCodeToken:        GrantTypeHybrid,
	ResponseTypeCodeIDTokenToken: GrantTypeHybrid,
}

// Response modes
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Prompt modes
const (
	PromptNone          = "none"
	PromptLogin         = "login"
	PromptConsent       = "consent"
	PromptSelectAccount = "select_account"
)

// Display modes
const (
	DisplayPage  = "page"
	DisplayPopup = "popup"
	DisplayTouch = "touch"
	DisplayWap   = "wap"
)

// Standard scopes
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeAddress       = "address"
	ScopePhone         = "phone"
	ScopeOfflineAccess = "offline_access"
)

// PKCE transformation methods
const (
	CodeChallengeMethodPlain  = "plain"
	CodeChallengeMethodSHA256 = "S256"
)

// Token type hints and token types
const (
	TokenTypeAccessToken  = "access_token"
	TokenTypeIdentity     = "id_token"
	TokenTypeRefreshToken = "refresh_token"
	TokenTypeBearer       = "Bearer"
)

// Client assertion types
const (
	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// Well-known protocol paths, relative to the issuer.
const (
	PathDiscovery            = "/.well-known/openid-configuration"
	PathDiscoveryWebKeys     = "/.well-known/openid-configuration/jwks"
	PathAuthorize            = "/connect/authorize"
	PathAuthorizeCallback    = "/connect/authorize/callback"
	PathToken                = "/connect/token"
	PathUserInfo             = "/connect/userinfo"
	PathIntrospection        = "/connect/introspect"
	PathRevocation           = "/connect/revocation"
	PathEndSession           = "/connect/endsession"
	PathEndSessionCallback   = "/connect/endsession/callback"
	PathDeviceAuthorization  = "/connect/deviceauthorization"
	LocalIdentityProvider    = "local"
	ExternalIdpAcrPrefix     = "idp:"
	TenantAcrPrefix          = "tenant:"
	AuthenticationMethodPwd  = "pwd"
	DefaultUserCodeType      = "Numeric"
	AlphanumericUserCodeType = "Alphanumeric"
)

// CorsPaths are the only endpoints that answer cross-origin requests.
var CorsPaths = []string{
	PathDiscovery,
	PathDiscoveryWebKeys,
	PathToken,
	PathUserInfo,
	PathRevocation,
}
