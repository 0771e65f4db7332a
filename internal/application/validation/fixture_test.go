package validation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/domain"
	jwtinfra "github.com/manorfm/identityserver/internal/infrastructure/jwt"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testIssuer   = "https://id.example.com"
	testSecret   = "secret"
	testRedirect = "https://code_client/callback"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type staticProfile struct {
	inactive map[string]bool
}

func (p *staticProfile) GetProfileData(_ context.Context, _ *domain.ProfileDataRequest) (domain.Claims, error) {
	return nil, nil
}

func (p *staticProfile) IsActive(_ context.Context, subject *domain.Principal, _ *domain.Client, _ string) (bool, error) {
	return !p.inactive[subject.SubjectID], nil
}

type staticPasswords struct{}

func (staticPasswords) ValidateCredentials(_ context.Context, username, pwd string) (*domain.Principal, error) {
	if username == "alice" && pwd == "alice" {
		return &domain.Principal{SubjectID: "818727", AuthTime: testNow, IdentityProvider: domain.LocalIdentityProvider}, nil
	}
	return nil, domain.ErrInvalidCredentials
}

type fixture struct {
	clock           *domain.ManualClock
	options         domain.Options
	clients         *memory.ClientStore
	resourceStore   *memory.ResourceStore
	grantStore      *memory.PersistedGrantStore
	devices         *memory.DeviceFlowStore
	cache           *memory.Cache
	profile         *staticProfile
	keys            *jwtinfra.KeyService
	codes           *grants.AuthorizationCodeStore
	referenceTokens *grants.ReferenceTokenStore
	refreshTokens   *grants.RefreshTokenStore
	refresh         *tokens.RefreshTokenService
	resources       *ResourceValidator
	tokens          *TokenValidator
	secrets         *ClientSecretValidator
}

func codeClient() *domain.Client {
	c := domain.NewClient()
	c.ClientID = "code_client"
	c.ClientSecrets = []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: password.HashSecret(testSecret)}}
	c.AllowedGrantTypes = []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeClientCredentials, domain.GrantTypePassword,
		domain.GrantTypeDeviceCode, "urn:example:otp"}
	c.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile, "orders.read"}
	c.RedirectURIs = []string{testRedirect}
	c.PostLogoutRedirectURIs = []string{"https://code_client/signed-out"}
	c.AllowOfflineAccess = true
	return c
}

func implicitClient() *domain.Client {
	c := domain.NewClient()
	c.ClientID = "spa"
	c.RequireClientSecret = false
	c.AllowedGrantTypes = []string{domain.GrantTypeImplicit}
	c.AllowedScopes = []string{domain.ScopeOpenID, "orders.read"}
	c.RedirectURIs = []string{"https://spa/callback"}
	c.AllowAccessTokensViaBrowser = true
	c.AllowOfflineAccess = true
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	clock := domain.NewManualClock(testNow)
	options := domain.DefaultOptions(testIssuer)

	disabled := domain.NewClient()
	disabled.ClientID = "disabled"
	disabled.Enabled = false
	disabled.RedirectURIs = []string{testRedirect}

	clients := memory.NewClientStore([]*domain.Client{codeClient(), implicitClient(), disabled})
	resourceStore := memory.NewResourceStore(
		domain.StandardIdentityResources(),
		[]*domain.ApiScope{{Name: "orders.read", Enabled: true}, {Name: "orders.write", Enabled: true}},
		[]*domain.ApiResource{{
			Name: "orders", Enabled: true, Scopes: []string{"orders.read", "orders.write"},
			ApiSecrets: []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: password.HashSecret("api-secret")}},
		}},
	)

	strategy, err := jwtinfra.NewLocalStrategy(&domain.LocalConfig{KeyPath: filepath.Join(t.TempDir(), "key.pem")}, logger)
	require.NoError(t, err)
	keys := jwtinfra.NewKeyService(strategy, clock, logger)

	grantStore := memory.NewPersistedGrantStore()
	profile := &staticProfile{inactive: map[string]bool{}}
	codes := grants.NewAuthorizationCodeStore(grantStore, clock, logger)
	referenceTokens := grants.NewReferenceTokenStore(grantStore, clock, logger)
	refreshTokens := grants.NewRefreshTokenStore(grantStore, clock, logger)
	cache := memory.NewCache(clock)
	resources := NewResourceValidator(resourceStore, logger)
	tokenValidator := NewTokenValidator(keys, referenceTokens, clients, profile, options, logger)

	return &fixture{
		clock:           clock,
		options:         options,
		clients:         clients,
		resourceStore:   resourceStore,
		grantStore:      grantStore,
		devices:         memory.NewDeviceFlowStore(),
		cache:           cache,
		profile:         profile,
		keys:            keys,
		codes:           codes,
		referenceTokens: referenceTokens,
		refreshTokens:   refreshTokens,
		refresh:         tokens.NewRefreshTokenService(refreshTokens, profile, clock, logger),
		resources:       resources,
		tokens:          tokenValidator,
		secrets:         NewClientSecretValidator(clients, cache, nil, clock, options, logger),
	}
}

func (f *fixture) client(t *testing.T, id string) *domain.Client {
	t.Helper()
	c, err := f.clients.FindClientByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func alice() *domain.Principal {
	return &domain.Principal{
		SubjectID:             "818727",
		AuthTime:              testNow.Add(-time.Minute),
		IdentityProvider:      domain.LocalIdentityProvider,
		AuthenticationMethods: []string{domain.AuthenticationMethodPwd},
		SessionID:             "sid-1",
	}
}

// signToken signs token with the fixture's keys the way the token service does
func (f *fixture) signToken(t *testing.T, token *domain.Token) string {
	t.Helper()
	signed, err := f.keys.Sign(tokens.Payload(token))
	require.NoError(t, err)
	return signed
}

func (f *fixture) accessToken(clientID string, scopes ...string) *domain.Token {
	claims := append(alice().ToClaims(), domain.NewClaim(domain.ClaimClientID, clientID))
	for _, s := range scopes {
		claims = append(claims, domain.NewClaim(domain.ClaimScope, s))
	}
	return &domain.Token{
		Type: domain.TokenTypeAccessToken, Issuer: testIssuer, Audiences: []string{"orders"},
		CreationTime: f.clock.Now(), Lifetime: time.Hour, ClientID: clientID,
		AccessTokenType: domain.AccessTokenTypeJwt, Claims: claims,
	}
}

func (f *fixture) identityToken(clientID string) *domain.Token {
	return &domain.Token{
		Type: domain.TokenTypeIdentity, Issuer: testIssuer, Audiences: []string{clientID},
		CreationTime: f.clock.Now(), Lifetime: 5 * time.Minute, ClientID: clientID,
		Claims: append(alice().ToClaims(), domain.NewClaim(domain.ClaimSessionID, "sid-1")),
	}
}
