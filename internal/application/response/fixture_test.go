package response

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

const testIssuer = "https://id.example.com"

type hmacSigner struct {
	key []byte
}

func (s *hmacSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

func (s *hmacSigner) ValidateToken(token string, _ domain.TokenValidationOptions) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

type stubProfile struct {
	claims domain.Claims
}

func (p *stubProfile) GetProfileData(_ context.Context, req *domain.ProfileDataRequest) (domain.Claims, error) {
	return p.claims.FilterTypes(req.RequestedClaimTypes), nil
}

func (p *stubProfile) IsActive(_ context.Context, subject *domain.Principal, _ *domain.Client, _ string) (bool, error) {
	return subject.IsAuthenticated(), nil
}

type fixture struct {
	clock           *domain.ManualClock
	signer          *hmacSigner
	grantStore      *memory.PersistedGrantStore
	codes           *grants.AuthorizationCodeStore
	referenceTokens *grants.ReferenceTokenStore
	refreshTokens   *grants.RefreshTokenStore
	devices         *memory.DeviceFlowStore
	resourceStore   *memory.ResourceStore
	resources       *validation.ResourceValidator
	profile         *stubProfile
	tokens          *tokens.TokenService
	refresh         *tokens.RefreshTokenService
	options         domain.Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	clock := domain.NewManualClock(testNow)
	options := domain.DefaultOptions(testIssuer)
	store := memory.NewPersistedGrantStore()
	signer := &hmacSigner{key: []byte("0123456789abcdef0123456789abcdef")}
	profile := &stubProfile{claims: domain.Claims{
		domain.NewClaim(domain.ClaimName, "Alice Smith"),
		domain.NewClaim(domain.ClaimEmail, "alice@example.com"),
		domain.NewClaim(domain.ClaimRole, "buyer"),
		domain.NewClaim(domain.ClaimSubject, "forged"),
	}}

	resourceStore := memory.NewResourceStore(
		domain.StandardIdentityResources(),
		[]*domain.ApiScope{
			{Name: "orders.read", Enabled: true, ShowInDiscoveryDocument: true, UserClaims: []string{domain.ClaimRole}},
			{Name: "orders.write", Enabled: true},
			{Name: "billing", Enabled: true, ShowInDiscoveryDocument: true},
		},
		[]*domain.ApiResource{
			{Name: "orders", Enabled: true, Scopes: []string{"orders.read", "orders.write"}},
			{Name: "billing", Enabled: true, Scopes: []string{"billing"}},
		},
	)

	codes := grants.NewAuthorizationCodeStore(store, clock, logger)
	referenceTokens := grants.NewReferenceTokenStore(store, clock, logger)
	refreshTokens := grants.NewRefreshTokenStore(store, clock, logger)

	return &fixture{
		clock:           clock,
		signer:          signer,
		grantStore:      store,
		codes:           codes,
		referenceTokens: referenceTokens,
		refreshTokens:   refreshTokens,
		devices:         memory.NewDeviceFlowStore(),
		resourceStore:   resourceStore,
		resources:       validation.NewResourceValidator(resourceStore, logger),
		profile:         profile,
		tokens: tokens.NewTokenService(tokens.NewClaimsService(profile, logger), referenceTokens, signer,
			clock, options, logger),
		refresh: tokens.NewRefreshTokenService(refreshTokens, profile, clock, logger),
		options: options,
	}
}

func webClient() *domain.Client {
	c := domain.NewClient()
	c.ClientID = "web"
	c.AllowedGrantTypes = []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeClientCredentials, domain.GrantTypeDeviceCode}
	c.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile, domain.ScopeEmail, "orders.read", "orders.write", "billing"}
	c.RedirectURIs = []string{"https://web/callback"}
	c.AllowOfflineAccess = true
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

func (f *fixture) validate(t *testing.T, client *domain.Client, scopes ...string) *domain.Resources {
	t.Helper()
	resources, pe, err := f.resources.Validate(context.Background(), client, scopes)
	require.NoError(t, err)
	require.Nil(t, pe)
	return resources
}

// decode reads a token signed by the fixture signer without checking its lifetime
func (f *fixture) decode(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims, err := f.signer.ValidateToken(token, domain.TokenValidationOptions{})
	require.NoError(t, err)
	return claims
}

func (f *fixture) authorizeRequest(t *testing.T, responseType string, scopes ...string) *validation.ValidatedAuthorizeRequest {
	t.Helper()
	client := webClient()
	client.AllowedGrantTypes = append(client.AllowedGrantTypes, domain.ResponseTypeToGrantType[responseType])
	resources := f.validate(t, client, scopes...)

	req := &validation.ValidatedAuthorizeRequest{
		ResponseType:    responseType,
		ResponseMode:    domain.ResponseModeQuery,
		GrantType:       domain.ResponseTypeToGrantType[responseType],
		RedirectURI:     client.RedirectURIs[0],
		RequestedScopes: scopes,
		State:           "af0ifjsldkj",
		Nonce:           "n-0S6_WzA2Mj",
		IsOpenIDRequest: resources.IsOpenID(),
	}
	req.SetClient(client)
	req.Resources = resources
	req.Subject = alice()
	req.SessionID = "sid-1"
	return req
}

func (f *fixture) tokenRequest(t *testing.T, client *domain.Client, grantType string, subject *domain.Principal, scopes ...string) *validation.ValidatedTokenRequest {
	t.Helper()
	req := &validation.ValidatedTokenRequest{
		GrantType:       grantType,
		RequestedScopes: scopes,
	}
	req.SetClient(client)
	req.Resources = f.validate(t, client, scopes...)
	if subject.IsAuthenticated() {
		req.Subject = subject
		req.SessionID = subject.SessionID
	}
	return req
}
