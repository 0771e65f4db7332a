package domain

import "time"

// Options configures protocol behaviour that is not client specific.
type Options struct {
	IssuerURI               string
	UserInteraction         UserInteractionOptions
	InputLengthRestrictions InputLengthRestrictions
	DeviceFlow              DeviceFlowOptions
	Events                  EventsOptions
	Logout                  LogoutOptions
	Authentication          AuthenticationOptions
	// EmitStaticAudienceClaim adds "<issuer>/resources" to every access token audience
	EmitStaticAudienceClaim bool
}

// UserInteractionOptions names the UI pages the protocol redirects to.
type UserInteractionOptions struct {
	LoginURL              string
	LoginReturnURLParam   string
	ConsentURL            string
	ConsentReturnURLParam string
	DeviceVerificationURL string
	DeviceUserCodeParam   string
	LogoutURL             string
}

// InputLengthRestrictions bound the size of every protocol parameter.
type InputLengthRestrictions struct {
	ClientID               int
	ClientSecret           int
	Scope                  int
	RedirectURI            int
	Nonce                  int
	UILocale               int
	LoginHint              int
	AcrValues              int
	State                  int
	GrantType              int
	UserName               int
	Password               int
	AuthorizationCode      int
	RefreshToken           int
	TokenHandle            int
	Jwt                    int
	CodeChallengeMinLength int
	CodeChallengeMaxLength int
	CodeVerifierMinLength  int
	CodeVerifierMaxLength  int
	DeviceCode             int
	UserCode               int
}

// DeviceFlowOptions configures the device authorization grant.
type DeviceFlowOptions struct {
	DefaultUserCodeType string
	UserCodeLength      int
	Interval            time.Duration
}

// EventsOptions switches event categories on or off.
type EventsOptions struct {
	RaiseSuccessEvents     bool
	RaiseFailureEvents     bool
	RaiseInformationEvents bool
	RaiseErrorEvents       bool
}

// LogoutOptions configures logout notifications.
type LogoutOptions struct {
	BackChannelLogoutTimeout     time.Duration
	BackChannelLogoutConcurrency int
	LogoutTokenLifetime          time.Duration
}

// AuthenticationOptions configures the user session.
type AuthenticationOptions struct {
	CookieLifetime time.Duration
	CookieName     string
}

// DefaultOptions returns the protocol defaults for issuer.
func DefaultOptions(issuer string) Options {
	return Options{
		IssuerURI: issuer,
		UserInteraction: UserInteractionOptions{
			LoginURL:              "/account/login",
			LoginReturnURLParam:   "returnUrl",
			ConsentURL:            "/consent",
			ConsentReturnURLParam: "returnUrl",
			DeviceVerificationURL: "/device",
			DeviceUserCodeParam:   "userCode",
			LogoutURL:             "/account/logout",
		},
		InputLengthRestrictions: InputLengthRestrictions{
			ClientID:               100,
			ClientSecret:           100,
			Scope:                  300,
			RedirectURI:            400,
			Nonce:                  300,
			UILocale:               100,
			LoginHint:              100,
			AcrValues:              300,
			State:                  2000,
			GrantType:              100,
			UserName:               100,
			Password:               100,
			AuthorizationCode:      100,
			RefreshToken:           100,
			TokenHandle:            100,
			Jwt:                    51200,
			CodeChallengeMinLength: 43,
			CodeChallengeMaxLength: 128,
			CodeVerifierMinLength:  43,
			CodeVerifierMaxLength:  128,
			DeviceCode:             100,
			UserCode:               100,
		},
		DeviceFlow: DeviceFlowOptions{
			DefaultUserCodeType: DefaultUserCodeType,
			UserCodeLength:      8,
			Interval:            5 * time.Second,
		},
		Events: EventsOptions{
			RaiseSuccessEvents: true,
			RaiseFailureEvents: true,
			RaiseErrorEvents:   true,
		},
		Logout: LogoutOptions{
			BackChannelLogoutTimeout:     10 * time.Second,
			BackChannelLogoutConcurrency: 8,
			LogoutTokenLifetime:          5 * time.Minute,
		},
		Authentication: AuthenticationOptions{
			CookieLifetime: 10 * time.Hour,
			CookieName:     "idsrv",
		},
	}
}
