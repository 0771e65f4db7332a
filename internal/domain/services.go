package domain

import "context"

// Profile callers identify which part of the protocol asks for user claims.
const (
	CallerIdentityToken               = "ClaimsProviderIdentityToken"
	CallerAccessToken                 = "ClaimsProviderAccessToken"
	CallerUserInfo                    = "UserInfoEndpoint"
	CallerAuthorizeEndpoint           = "AuthorizeEndpoint"
	CallerRefreshTokenValidation      = "RefreshTokenValidation"
	CallerAuthorizationCodeValidation = "AuthorizationCodeValidation"
	CallerDeviceCodeValidation        = "DeviceCodeValidation"
	CallerAccessTokenValidation       = "AccessTokenValidation"
)

// ProfileDataRequest asks the claims provider for a subset of a user's claims.
type ProfileDataRequest struct {
	Subject             *Principal
	Client              *Client
	Caller              string
	RequestedClaimTypes []string
	RequestedResources  *Resources
}

// ProfileService is the claims provider: user claims and account liveness.
type ProfileService interface {
	GetProfileData(ctx context.Context, req *ProfileDataRequest) (Claims, error)
	IsActive(ctx context.Context, subject *Principal, client *Client, caller string) (bool, error)
}

// ResourceOwnerPasswordValidator is the login provider: it turns credentials into a principal.
type ResourceOwnerPasswordValidator interface {
	// ValidateCredentials returns ErrInvalidCredentials on a bad username or password
	ValidateCredentials(ctx context.Context, username, password string) (*Principal, error)
}

// UserCodeGenerator produces user codes for the device flow.
type UserCodeGenerator interface {
	UserCodeType() string
	RetryLimit() int
	Generate() (string, error)
}
