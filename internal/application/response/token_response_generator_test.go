package response

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenGenerator(f *fixture) *TokenResponseGenerator {
	return NewTokenResponseGenerator(f.tokens, f.refresh, nil, f.clock, zap.NewNop())
}

func TestTokenResponse_Fields(t *testing.T) {
	resp := &TokenResponse{
		AccessToken:         "at",
		AccessTokenLifetime: 60,
		TokenType:           domain.TokenTypeBearer,
		Custom:              map[string]interface{}{"access_token": "spoofed", "issued_token_type": "urn:ietf:params:oauth:token-type:access_token"},
	}

	fields := resp.Fields()
	assert.Equal(t, "at", fields["access_token"])
	assert.Equal(t, 60, fields["expires_in"])
	assert.Equal(t, "Bearer", fields["token_type"])
	assert.Equal(t, "urn:ietf:params:oauth:token-type:access_token", fields["issued_token_type"])
	assert.NotContains(t, fields, "refresh_token")
	assert.NotContains(t, fields, "id_token")
	assert.NotContains(t, fields, "scope")
}

func TestTokenResponseGenerator_Process(t *testing.T) {
	tests := []struct {
		name         string
		grantType    string
		subject      *domain.Principal
		scopes       []string
		code         *domain.AuthorizationCode
		wantRefresh  bool
		wantIdentity bool
	}{
		{
			name:      "client credentials",
			grantType: domain.GrantTypeClientCredentials,
			scopes:    []string{"orders.read"},
		},
		{
			name:      "password without offline access",
			grantType: domain.GrantTypePassword,
			subject:   alice(),
			scopes:    []string{"openid", "orders.read"},
		},
		{
			name:        "password with offline access",
			grantType:   domain.GrantTypePassword,
			subject:     alice(),
			scopes:      []string{"orders.read", "offline_access"},
			wantRefresh: true,
		},
		{
			name:         "authorization code for openid",
			grantType:    domain.GrantTypeAuthorizationCode,
			subject:      alice(),
			scopes:       []string{"openid", "orders.read", "offline_access"},
			code:         &domain.AuthorizationCode{IsOpenID: true, Nonce: "n-1", StateHash: "s-hash"},
			wantRefresh:  true,
			wantIdentity: true,
		},
		{
			name:      "authorization code without openid",
			grantType: domain.GrantTypeAuthorizationCode,
			subject:   alice(),
			scopes:    []string{"orders.read"},
			code:      &domain.AuthorizationCode{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			g := newTokenGenerator(f)
			req := f.tokenRequest(t, webClient(), tt.grantType, tt.subject, tt.scopes...)
			req.AuthorizationCode = tt.code

			resp, err := g.Process(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, domain.TokenTypeBearer, resp.TokenType)
			assert.Equal(t, 3600, resp.AccessTokenLifetime)
			assert.Equal(t, req.Resources.ScopeNames(), splitScope(resp.Scope))

			access := f.decode(t, resp.AccessToken)
			assert.Equal(t, "web", access["client_id"])
			if tt.subject != nil {
				assert.Equal(t, tt.subject.SubjectID, access["sub"])
			} else {
				assert.NotContains(t, access, "sub")
			}

			if tt.wantRefresh {
				require.NotEmpty(t, resp.RefreshToken)
				stored, err := f.refreshTokens.GetRefreshToken(context.Background(), resp.RefreshToken)
				require.NoError(t, err)
				assert.Equal(t, "web", stored.ClientID())
				assert.Equal(t, tt.subject.SubjectID, stored.SubjectID())
			} else {
				assert.Empty(t, resp.RefreshToken)
			}

			if tt.wantIdentity {
				require.NotEmpty(t, resp.IdentityToken)
				identity := f.decode(t, resp.IdentityToken)
				assert.Equal(t, tokens.HashForIDToken(resp.AccessToken), identity["at_hash"])
				assert.Equal(t, tt.code.Nonce, identity["nonce"])
				assert.Equal(t, tt.code.StateHash, identity["s_hash"])
				assert.Equal(t, "web", identity["aud"])
			} else {
				assert.Empty(t, resp.IdentityToken)
			}
		})
	}
}

func TestTokenResponseGenerator_CustomResponse(t *testing.T) {
	f := newFixture(t)
	g := newTokenGenerator(f)
	req := f.tokenRequest(t, webClient(), "urn:example:delegation", nil, "orders.read")
	req.CustomResponse = map[string]interface{}{"delegated": true}

	resp, err := g.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, true, resp.Fields()["delegated"])
}

func TestTokenResponseGenerator_DeviceCode(t *testing.T) {
	f := newFixture(t)
	g := newTokenGenerator(f)
	req := f.tokenRequest(t, webClient(), domain.GrantTypeDeviceCode, alice(), "openid", "offline_access")
	req.DeviceCode = &domain.DeviceCode{IsOpenID: true, IsAuthorized: true, Subject: alice()}

	resp, err := g.Process(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotEmpty(t, resp.IdentityToken)
	assert.NotContains(t, f.decode(t, resp.IdentityToken), "nonce")
}

// refreshRequest issues a refresh token for scopes and validates it the way the token
// endpoint would before a refresh
func (f *fixture) refreshRequest(t *testing.T, client *domain.Client, scopes ...string) (*validation.ValidatedTokenRequest, string) {
	t.Helper()
	g := newTokenGenerator(f)
	first, err := g.Process(context.Background(), f.tokenRequest(t, client, domain.GrantTypePassword, alice(), scopes...))
	require.NoError(t, err)
	require.NotEmpty(t, first.RefreshToken)

	token, pe, err := f.refresh.ValidateRefreshToken(context.Background(), first.RefreshToken, client)
	require.NoError(t, err)
	require.Nil(t, pe)

	req := f.tokenRequest(t, client, domain.GrantTypeRefreshToken, domain.PrincipalFromClaims(token.AccessToken.Claims), token.Scopes()...)
	req.RefreshToken = token
	req.RefreshTokenHandle = first.RefreshToken
	return req, first.AccessToken
}

func TestTokenResponseGenerator_RefreshToken(t *testing.T) {
	tests := []struct {
		name         string
		usage        domain.TokenUsage
		updateClaims bool
		narrowTo     []string
		wantRotated  bool
		wantScopes   []string
	}{
		{
			name:        "one time only rotates the handle",
			usage:       domain.TokenUsageOneTimeOnly,
			wantRotated: true,
			wantScopes:  []string{"openid", "orders.read", "offline_access"},
		},
		{
			name:       "reuse keeps the handle",
			usage:      domain.TokenUsageReUse,
			wantScopes: []string{"openid", "orders.read", "offline_access"},
		},
		{
			name:         "claims refreshed from the profile",
			usage:        domain.TokenUsageReUse,
			updateClaims: true,
			wantScopes:   []string{"openid", "orders.read", "offline_access"},
		},
		{
			name:       "narrowed scopes",
			usage:      domain.TokenUsageReUse,
			narrowTo:   []string{"orders.read"},
			wantScopes: []string{"orders.read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			client := webClient()
			client.RefreshTokenUsage = tt.usage
			client.UpdateAccessTokenClaimsOnRefresh = tt.updateClaims
			req, firstAccess := f.refreshRequest(t, client, "openid", "orders.read", "offline_access")
			if tt.narrowTo != nil {
				req.RequestedScopes = tt.narrowTo
				req.Resources = f.validate(t, client, tt.narrowTo...)
			}

			f.clock.Advance(time.Minute)
			resp, err := newTokenGenerator(f).Process(context.Background(), req)
			require.NoError(t, err)

			assert.NotEqual(t, firstAccess, resp.AccessToken)
			assert.Equal(t, tt.wantScopes, splitScope(resp.Scope))
			access := f.decode(t, resp.AccessToken)
			assert.Equal(t, "818727", access["sub"])
			assert.Equal(t, float64(testNow.Add(time.Minute).Unix()), access["iat"])
			assert.NotEqual(t, f.decode(t, firstAccess)["jti"], access["jti"])

			require.NotEmpty(t, resp.RefreshToken)
			if tt.wantRotated {
				assert.NotEqual(t, req.RefreshTokenHandle, resp.RefreshToken)
			} else {
				assert.Equal(t, req.RefreshTokenHandle, resp.RefreshToken)
			}

			// the stored grant keeps what was originally granted
			stored, err := f.refreshTokens.GetRefreshToken(context.Background(), resp.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, []string{"openid", "orders.read", "offline_access"}, stored.Scopes())

			if len(tt.narrowTo) == 0 {
				assert.NotEmpty(t, resp.IdentityToken)
			} else {
				assert.Empty(t, resp.IdentityToken)
			}
		})
	}
}

func splitScope(scope string) []string {
	return validation.ParseScopes(scope)
}

type failingSigner struct{}

func (failingSigner) Sign(jwt.Claims) (string, error) {
	return "", errors.New("signing key unavailable")
}

func (failingSigner) ValidateToken(string, domain.TokenValidationOptions) (jwt.MapClaims, error) {
	return nil, domain.ErrInvalidToken
}

func TestTokenResponseGenerator_RefreshTokenSigningFailure(t *testing.T) {
	f := newFixture(t)
	client := webClient()
	client.RefreshTokenUsage = domain.TokenUsageOneTimeOnly
	req, _ := f.refreshRequest(t, client, "openid", "orders.read", "offline_access")

	_, err := f.refreshTokens.GetRefreshToken(context.Background(), req.RefreshTokenHandle)
	require.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)

	broken := tokens.NewTokenService(tokens.NewClaimsService(f.profile, zap.NewNop()), f.referenceTokens, failingSigner{},
		f.clock, f.options, zap.NewNop())
	_, err = NewTokenResponseGenerator(broken, f.refresh, nil, f.clock, zap.NewNop()).Process(context.Background(), req)
	require.Error(t, err)

	stored, err := f.refreshTokens.GetRefreshToken(context.Background(), req.RefreshTokenHandle)
	require.NoError(t, err)
	assert.Equal(t, "818727", stored.SubjectID())

	resp, err := newTokenGenerator(f).Process(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, req.RefreshTokenHandle, resp.RefreshToken)
}
