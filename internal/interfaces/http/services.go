package http

import (
	"context"

	"github.com/manorfm/identityserver/internal/application"
	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/interaction"
	"github.com/manorfm/identityserver/internal/application/logout"
	"github.com/manorfm/identityserver/internal/application/response"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/jwt"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	"github.com/manorfm/identityserver/internal/interfaces/http/handlers"
	"github.com/manorfm/identityserver/internal/interfaces/http/middleware/ratelimit"
	"go.uber.org/zap"
)

// Stores are the persistence backends selected at startup
type Stores struct {
	Clients   domain.ClientRepository
	Resources domain.ResourceStore
	Users     domain.UserStore
	Grants    domain.PersistedGrantStore
	Devices   domain.DeviceFlowStore
	Cache     domain.Cache
	// Ping reports whether the backend is reachable, nil means always ready
	Ping func(ctx context.Context) error
}

// Dependencies are the collaborators built outside the HTTP layer
type Dependencies struct {
	Stores      Stores
	Keys        *jwt.KeyService
	Sessions    *session.Manager
	Events      *events.Service
	Poster      logout.FormPoster
	RateLimiter *ratelimit.RateLimiter
	Clock       domain.Clock
	Options     domain.Options
}

type endpoints struct {
	oidc          *handlers.OIDCHandler
	authorize     *handlers.AuthorizeHandler
	token         *handlers.TokenHandler
	introspection *handlers.IntrospectionHandler
	revocation    *handlers.RevocationHandler
	device        *handlers.DeviceAuthorizationHandler
	endSession    *handlers.EndSessionHandler
	account       *handlers.AccountHandler
	clients       *handlers.ClientHandler
	tokens        *validation.TokenValidator
}

// newEndpoints composes the protocol services into the endpoint handlers
func newEndpoints(deps Dependencies, logger *zap.Logger) *endpoints {
	st := deps.Stores
	opts := deps.Options
	clock := deps.Clock

	profile := application.NewProfileService(st.Users, logger)
	accounts := application.NewAccountService(st.Users, clock, logger)

	codes := grants.NewAuthorizationCodeStore(st.Grants, clock, logger)
	referenceTokens := grants.NewReferenceTokenStore(st.Grants, clock, logger)
	refreshTokens := grants.NewRefreshTokenStore(st.Grants, clock, logger)
	consents := grants.NewUserConsentStore(st.Grants, clock, logger)

	claims := tokens.NewClaimsService(profile, logger)
	refresh := tokens.NewRefreshTokenService(refreshTokens, profile, clock, logger)
	tokenService := tokens.NewTokenService(claims, referenceTokens, deps.Keys, clock, opts, logger)

	resources := validation.NewResourceValidator(st.Resources, logger)
	tokenValidator := validation.NewTokenValidator(deps.Keys, referenceTokens, st.Clients, profile, opts, logger)
	authorizeValidator := validation.NewAuthorizeRequestValidator(st.Clients, resources, tokenValidator, opts, logger)
	clientSecrets := validation.NewClientSecretValidator(st.Clients, st.Cache, deps.Events, clock, opts, logger)
	apiSecrets := validation.NewApiSecretValidator(st.Resources, deps.Events, clock, logger)
	tokenRequests := validation.NewTokenRequestValidator(codes, refresh, st.Devices, resources, accounts, profile,
		st.Cache, clock, opts, logger)

	consent := interaction.NewConsentService(consents, clock, logger)
	userCodes := interaction.NewUserCodeService(opts.DeviceFlow)
	notifications := logout.NewNotificationService(st.Clients, opts, logger)

	return &endpoints{
		oidc: handlers.NewOIDCHandler(
			response.NewDiscoveryResponseGenerator(st.Resources, opts, logger),
			deps.Keys,
			tokenValidator,
			response.NewUserInfoResponseGenerator(st.Resources, profile, logger),
			logger),
		authorize: handlers.NewAuthorizeHandler(
			authorizeValidator,
			interaction.NewResponseGenerator(consent, profile, clock, logger),
			response.NewAuthorizeResponseGenerator(tokenService, codes, deps.Events, clock, logger),
			deps.Sessions, deps.Events, opts, logger),
		token: handlers.NewTokenHandler(
			clientSecrets,
			tokenRequests,
			response.NewTokenResponseGenerator(tokenService, refresh, deps.Events, clock, logger),
			deps.Events, opts, logger),
		introspection: handlers.NewIntrospectionHandler(
			apiSecrets,
			validation.NewIntrospectionRequestValidator(tokenValidator, logger),
			response.NewIntrospectionResponseGenerator(deps.Events, logger),
			deps.Events, opts, logger),
		revocation: handlers.NewRevocationHandler(
			clientSecrets,
			response.NewRevocationResponseGenerator(referenceTokens, refreshTokens, deps.Events, logger),
			opts, logger),
		device: handlers.NewDeviceAuthorizationHandler(
			clientSecrets,
			validation.NewDeviceAuthorizationRequestValidator(resources, opts, logger),
			response.NewDeviceAuthorizationResponseGenerator(st.Devices, userCodes, deps.Events, clock, opts, logger),
			deps.Events, opts, logger),
		endSession: handlers.NewEndSessionHandler(
			validation.NewEndSessionRequestValidator(tokenValidator, opts, logger),
			notifications,
			logout.NewBackChannelLogoutService(notifications, deps.Keys, deps.Poster, deps.Events, clock, opts, logger),
			deps.Sessions, deps.Events, opts, logger),
		account: handlers.NewAccountHandler(
			accounts,
			interaction.NewService(authorizeValidator, deps.Events, logger),
			interaction.NewDeviceFlowInteractionService(st.Clients, st.Devices, st.Resources, consent, deps.Events, clock, logger),
			deps.Sessions, deps.Events, opts, logger),
		clients: handlers.NewClientHandler(st.Clients, logger),
		tokens:  tokenValidator,
	}
}
