package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"go.uber.org/zap"
)

const assertionClockSkew = 5 * time.Minute

// ClientSecretValidationResult is the outcome of client authentication.
type ClientSecretValidationResult struct {
	Client *domain.Client
	Secret *ParsedSecret
	Error  *apperrors.ProtocolError
}

// ClientSecretValidator authenticates clients at the back-channel endpoints.
type ClientSecretValidator struct {
	clients domain.ClientStore
	cache   domain.Cache
	events  *events.Service
	clock   domain.Clock
	options domain.Options
	logger  *zap.Logger
}

func NewClientSecretValidator(clients domain.ClientStore, cache domain.Cache, events *events.Service, clock domain.Clock,
	options domain.Options, logger *zap.Logger) *ClientSecretValidator {
	return &ClientSecretValidator{
		clients: clients,
		cache:   cache,
		events:  events,
		clock:   clock,
		options: options,
		logger:  logger,
	}
}

// Validate authenticates the parsed secret against the client's registered secrets
func (v *ClientSecretValidator) Validate(ctx context.Context, parsed *ParsedSecret) (*ClientSecretValidationResult, error) {
	fail := func(clientID, description string) (*ClientSecretValidationResult, error) {
		v.logger.Debug("Client authentication failed", zap.String("client_id", clientID), zap.String("reason", description))
		v.events.Raise(ctx, events.ClientAuthenticationFailure(clientID, description))
		return &ClientSecretValidationResult{Error: apperrors.NewInvalidClient("")}, nil
	}

	if parsed == nil {
		return fail("", "no client id found")
	}

	client, err := v.clients.FindClientByID(ctx, parsed.ID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return fail(parsed.ID, "unknown client")
		}
		v.logger.Error("Failed to load client", zap.String("client_id", parsed.ID), zap.Error(err))
		return nil, err
	}
	if !client.Enabled {
		return fail(parsed.ID, "client is disabled")
	}

	if !client.RequireClientSecret {
		v.events.Raise(ctx, events.ClientAuthenticationSuccess(client.ClientID, AuthMethodNone))
		return &ClientSecretValidationResult{Client: client, Secret: parsed}, nil
	}

	switch parsed.Type {
	case ParsedSecretTypeSharedSecret:
		if !v.matchesSharedSecret(client.ClientSecrets, parsed.Credential) {
			return fail(parsed.ID, "invalid client secret")
		}
	case ParsedSecretTypeJwtBearer:
		ok, err := v.validateAssertion(ctx, client, parsed.Credential)
		if err != nil {
			return nil, err
		}
		if !ok {
			return fail(parsed.ID, "invalid client assertion")
		}
	default:
		return fail(parsed.ID, "client secret required")
	}

	v.events.Raise(ctx, events.ClientAuthenticationSuccess(client.ClientID, parsed.Method))
	return &ClientSecretValidationResult{Client: client, Secret: parsed}, nil
}

func (v *ClientSecretValidator) matchesSharedSecret(secrets []domain.Secret, presented string) bool {
	return matchesSharedSecret(secrets, presented, v.clock.Now())
}

func matchesSharedSecret(secrets []domain.Secret, presented string, now time.Time) bool {
	for _, s := range secrets {
		if s.Type != domain.SecretTypeSharedSecret || s.IsExpired(now) {
			continue
		}
		if password.MatchesSecret(presented, s.Value) {
			return true
		}
	}
	return false
}

// validateAssertion checks a private_key_jwt assertion: signed by one of the client's
// keys, iss and sub equal to the client id, audience the token endpoint or the
// issuer, and a jti never seen before.
func (v *ClientSecretValidator) validateAssertion(ctx context.Context, client *domain.Client, assertion string) (bool, error) {
	now := v.clock.Now()
	set := jwk.NewSet()
	for _, s := range client.ClientSecrets {
		if s.Type != domain.SecretTypeJSONWebKey || s.IsExpired(now) {
			continue
		}
		key, err := jwk.ParseKey([]byte(s.Value))
		if err != nil {
			v.logger.Warn("Ignoring unparsable client key", zap.String("client_id", client.ClientID), zap.Error(err))
			continue
		}
		if err := set.AddKey(key); err != nil {
			return false, fmt.Errorf("collecting client keys: %w", err)
		}
	}
	if set.Len() == 0 {
		v.logger.Debug("Client has no usable keys", zap.String("client_id", client.ClientID))
		return false, nil
	}

	token, err := jwxjwt.Parse([]byte(assertion),
		jwxjwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true), jws.WithRequireKid(false)),
		jwxjwt.WithValidate(true),
		jwxjwt.WithClock(jwxjwt.ClockFunc(v.clock.Now)),
		jwxjwt.WithAcceptableSkew(assertionClockSkew),
		jwxjwt.WithIssuer(client.ClientID),
		jwxjwt.WithSubject(client.ClientID),
		jwxjwt.WithRequiredClaim(jwxjwt.JwtIDKey),
		jwxjwt.WithRequiredClaim(jwxjwt.ExpirationKey),
	)
	if err != nil {
		v.logger.Debug("Client assertion rejected", zap.String("client_id", client.ClientID), zap.Error(err))
		return false, nil
	}

	validAudiences := []string{v.options.IssuerURI + domain.PathToken, v.options.IssuerURI}
	audienceOK := false
	for _, aud := range token.Audience() {
		if containsValue(validAudiences, aud) {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		v.logger.Debug("Client assertion has wrong audience", zap.String("client_id", client.ClientID))
		return false, nil
	}

	ttl := token.Expiration().Sub(now) + assertionClockSkew
	fresh, err := v.cache.SetIfAbsent(ctx, "jti:"+client.ClientID+":"+token.JwtID(), ttl)
	if err != nil {
		return false, err
	}
	if !fresh {
		v.logger.Warn("Client assertion replayed", zap.String("client_id", client.ClientID))
		return false, nil
	}
	return true, nil
}

// ApiSecretValidationResult is the outcome of API authentication.
type ApiSecretValidationResult struct {
	Resource *domain.ApiResource
	Error    *apperrors.ProtocolError
}

// ApiSecretValidator authenticates API resources at the introspection endpoint.
type ApiSecretValidator struct {
	resources domain.ResourceStore
	events    *events.Service
	clock     domain.Clock
	logger    *zap.Logger
}

func NewApiSecretValidator(resources domain.ResourceStore, events *events.Service, clock domain.Clock, logger *zap.Logger) *ApiSecretValidator {
	return &ApiSecretValidator{
		resources: resources,
		events:    events,
		clock:     clock,
		logger:    logger,
	}
}

// Validate authenticates an API with one of its shared secrets
func (v *ApiSecretValidator) Validate(ctx context.Context, parsed *ParsedSecret) (*ApiSecretValidationResult, error) {
	fail := func(name, description string) (*ApiSecretValidationResult, error) {
		v.logger.Debug("API authentication failed", zap.String("api", name), zap.String("reason", description))
		v.events.Raise(ctx, events.ApiAuthenticationFailure(name, description))
		return &ApiSecretValidationResult{Error: apperrors.NewInvalidClient("")}, nil
	}

	if parsed == nil {
		return fail("", "no api id found")
	}
	if parsed.Type != ParsedSecretTypeSharedSecret {
		return fail(parsed.ID, "api secret required")
	}

	apis, err := v.resources.FindApiResourcesByName(ctx, []string{parsed.ID})
	if err != nil {
		return nil, err
	}
	if len(apis) != 1 || !apis[0].Enabled {
		return fail(parsed.ID, "unknown or disabled api")
	}
	if !matchesSharedSecret(apis[0].ApiSecrets, parsed.Credential, v.clock.Now()) {
		return fail(parsed.ID, "invalid api secret")
	}

	v.events.Raise(ctx, events.ApiAuthenticationSuccess(parsed.ID, parsed.Method))
	return &ApiSecretValidationResult{Resource: apis[0]}, nil
}
