package validation

import (
	"context"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResourceValidator(t *testing.T) {
	f := newFixture(t)
	client := f.client(t, "code_client")

	tests := []struct {
		name        string
		client      *domain.Client
		scopes      []string
		wantErr     bool
		wantOffline bool
		wantApis    int
	}{
		{name: "identity and api scopes", client: client, scopes: []string{"openid", "orders.read"}, wantApis: 1},
		{name: "offline access", client: client, scopes: []string{"openid", "offline_access"}, wantOffline: true},
		{name: "no scopes", client: client, wantErr: true},
		{name: "scope not allowed", client: client, scopes: []string{"orders.write"}, wantErr: true},
		{name: "offline access not allowed", client: f.client(t, "disabled"), scopes: []string{"offline_access"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources, pe, err := f.resources.Validate(context.Background(), tt.client, tt.scopes)
			require.NoError(t, err)
			if tt.wantErr {
				require.NotNil(t, pe)
				assert.Equal(t, apperrors.InvalidScope, pe.Code)
				return
			}
			require.Nil(t, pe)
			assert.Equal(t, tt.wantOffline, resources.OfflineAccess)
			assert.Len(t, resources.ApiResources, tt.wantApis)
			assert.ElementsMatch(t, tt.scopes, resources.ScopeNames())
		})
	}
}

func TestResourceValidator_UnknownScope(t *testing.T) {
	f := newFixture(t)
	client := f.client(t, "code_client")
	client.AllowedScopes = append(client.AllowedScopes, "ghost.scope")

	_, pe, err := f.resources.Validate(context.Background(), client, []string{"ghost.scope"})
	require.NoError(t, err)
	require.NotNil(t, pe)
	assert.Equal(t, apperrors.InvalidScope, pe.Code)
}

func TestTokenValidator_ValidateAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	jwt := f.signToken(t, f.accessToken("code_client", "openid", "orders.read"))
	reference, err := f.referenceTokens.StoreReferenceToken(ctx, f.accessToken("code_client", "orders.read"))
	require.NoError(t, err)
	disabledClient := f.signToken(t, f.accessToken("disabled", "orders.read"))
	identity := f.signToken(t, f.identityToken("code_client"))

	f.profile.inactive["gone"] = true
	inactiveToken := f.accessToken("code_client", "orders.read")
	inactiveToken.Claims = append(domain.Claims{domain.NewClaim(domain.ClaimSubject, "gone")}, inactiveToken.Claims.Without(domain.ClaimSubject)...)
	inactive := f.signToken(t, inactiveToken)

	tests := []struct {
		name          string
		token         string
		expectedScope string
		wantCode      string
		wantReference bool
	}{
		{name: "jwt", token: jwt},
		{name: "jwt with expected scope", token: jwt, expectedScope: "orders.read"},
		{name: "reference", token: reference, wantReference: true},
		{name: "missing scope", token: reference, expectedScope: "openid", wantCode: apperrors.InsufficientScope},
		{name: "unknown reference", token: "DEADBEEF", wantCode: apperrors.InvalidToken},
		{name: "garbage jwt", token: "a.b.c", wantCode: apperrors.InvalidToken},
		{name: "empty", token: "", wantCode: apperrors.InvalidToken},
		{name: "disabled client", token: disabledClient, wantCode: apperrors.InvalidToken},
		{name: "identity token", token: identity, wantCode: apperrors.InvalidToken},
		{name: "inactive subject", token: inactive, wantCode: apperrors.InvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.tokens.ValidateAccessToken(ctx, tt.token, tt.expectedScope)
			require.NoError(t, err)
			if tt.wantCode != "" {
				require.NotNil(t, result.Error)
				assert.Equal(t, tt.wantCode, result.Error.Code)
				return
			}
			require.Nil(t, result.Error)
			assert.Equal(t, "code_client", result.Client.ClientID)
			assert.Equal(t, "818727", result.Claims.Value(domain.ClaimSubject))
			assert.Equal(t, tt.wantReference, result.ReferenceToken != nil)
		})
	}
}

func TestTokenValidator_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	token := f.signToken(t, f.accessToken("code_client", "orders.read"))
	f.clock.Advance(2 * time.Hour)

	result, err := f.tokens.ValidateAccessToken(context.Background(), token, "")
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, "token expired", result.Error.Description)
}

func TestTokenValidator_ValidateIdentityToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.signToken(t, f.identityToken("code_client"))
	f.clock.Advance(time.Hour)

	result, err := f.tokens.ValidateIdentityToken(ctx, token, "", false)
	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.Equal(t, "code_client", result.Client.ClientID)
	assert.Equal(t, "sid-1", result.Claims.Value(domain.ClaimSessionID))

	result, err = f.tokens.ValidateIdentityToken(ctx, token, "code_client", true)
	require.NoError(t, err)
	require.NotNil(t, result.Error)

	result, err = f.tokens.ValidateIdentityToken(ctx, token, "spa", false)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
}

func TestIntrospectionRequestValidator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := NewIntrospectionRequestValidator(f.tokens, zap.NewNop())

	orders := &domain.ApiResource{Name: "orders", Enabled: true, Scopes: []string{"orders.read", "orders.write"}}
	billing := &domain.ApiResource{Name: "billing", Enabled: true, Scopes: []string{"billing.read"}}
	token := f.signToken(t, f.accessToken("code_client", "openid", "orders.read"))

	tests := []struct {
		name       string
		token      string
		api        *domain.ApiResource
		wantActive bool
		wantErr    bool
	}{
		{name: "active for its api", token: token, api: orders, wantActive: true},
		{name: "inactive for another api", token: token, api: billing},
		{name: "unknown token", token: "DEADBEEF", api: orders},
		{name: "missing token", api: orders, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(ctx, &TokenTypeHintRequest{Token: tt.token}, tt.api)
			require.NoError(t, err)
			if tt.wantErr {
				require.NotNil(t, result.Error)
				assert.Equal(t, apperrors.InvalidRequest, result.Error.Code)
				return
			}
			require.Nil(t, result.Error)
			assert.Equal(t, tt.wantActive, result.IsActive)
			if tt.wantActive {
				assert.Equal(t, "818727", result.Claims.Value(domain.ClaimSubject))
			} else {
				assert.Nil(t, result.Claims)
			}
		})
	}
}

func TestValidateUserInfoRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withOpenID := f.signToken(t, f.accessToken("code_client", "openid", "orders.read"))
	apiOnly := f.signToken(t, f.accessToken("code_client", "orders.read"))

	result, err := ValidateUserInfoRequest(ctx, f.tokens, withOpenID)
	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.Equal(t, "818727", result.Subject.SubjectID)
	assert.Equal(t, "code_client", result.Client.ClientID)

	result, err = ValidateUserInfoRequest(ctx, f.tokens, apiOnly)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, apperrors.InsufficientScope, result.Error.Code)

	result, err = ValidateUserInfoRequest(ctx, f.tokens, "")
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, apperrors.InvalidToken, result.Error.Code)
}

func TestEndSessionRequestValidator(t *testing.T) {
	f := newFixture(t)
	v := NewEndSessionRequestValidator(f.tokens, f.options, zap.NewNop())
	hint := f.signToken(t, f.identityToken("code_client"))

	tests := []struct {
		name    string
		req     *EndSessionRequest
		subject *domain.Principal
		wantErr bool
		check   func(t *testing.T, req *ValidatedEndSessionRequest)
	}{
		{
			name: "anonymous without parameters",
			req:  &EndSessionRequest{},
			check: func(t *testing.T, req *ValidatedEndSessionRequest) {
				assert.Nil(t, req.Client)
				assert.Nil(t, req.Subject)
			},
		},
		{
			name:    "hint with registered redirect",
			req:     &EndSessionRequest{IDTokenHint: hint, PostLogoutRedirectURI: "https://code_client/signed-out", State: "s1"},
			subject: alice(),
			check: func(t *testing.T, req *ValidatedEndSessionRequest) {
				assert.Equal(t, "code_client", req.ClientID)
				assert.Equal(t, "https://code_client/signed-out", req.PostLogoutRedirectURI)
				assert.Equal(t, "s1", req.State)
				assert.Equal(t, "sid-1", req.SessionID)
			},
		},
		{
			name: "state without redirect is dropped",
			req:  &EndSessionRequest{IDTokenHint: hint, State: "s1"},
			check: func(t *testing.T, req *ValidatedEndSessionRequest) {
				assert.Empty(t, req.State)
				assert.Equal(t, "sid-1", req.SessionID)
			},
		},
		{
			name:    "redirect without hint",
			req:     &EndSessionRequest{PostLogoutRedirectURI: "https://code_client/signed-out"},
			wantErr: true,
		},
		{
			name:    "unregistered redirect",
			req:     &EndSessionRequest{IDTokenHint: hint, PostLogoutRedirectURI: "https://evil/out"},
			wantErr: true,
		},
		{
			name:    "hint for another user",
			req:     &EndSessionRequest{IDTokenHint: hint},
			subject: &domain.Principal{SubjectID: "bob", SessionID: "sid-2"},
			wantErr: true,
		},
		{
			name:    "garbage hint",
			req:     &EndSessionRequest{IDTokenHint: "x.y.z"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(context.Background(), tt.req, tt.subject)
			require.NoError(t, err)
			if tt.wantErr {
				require.NotNil(t, result.Error)
				assert.Equal(t, apperrors.InvalidRequest, result.Error.Code)
				return
			}
			require.Nil(t, result.Error)
			tt.check(t, result.ValidatedRequest)
		})
	}
}

func TestValidateRevocationRequest(t *testing.T) {
	client := codeClient()

	tests := []struct {
		name     string
		req      *TokenTypeHintRequest
		wantCode string
	}{
		{name: "no hint", req: &TokenTypeHintRequest{Token: "abc"}},
		{name: "access token hint", req: &TokenTypeHintRequest{Token: "abc", TokenTypeHint: domain.TokenTypeAccessToken}},
		{name: "refresh token hint", req: &TokenTypeHintRequest{Token: "abc", TokenTypeHint: domain.TokenTypeRefreshToken}},
		{name: "unsupported hint", req: &TokenTypeHintRequest{Token: "abc", TokenTypeHint: "id_token"}, wantCode: apperrors.UnsupportedTokenType},
		{name: "missing token", req: &TokenTypeHintRequest{}, wantCode: apperrors.InvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateRevocationRequest(tt.req, client)
			if tt.wantCode != "" {
				require.NotNil(t, result.Error)
				assert.Equal(t, tt.wantCode, result.Error.Code)
				return
			}
			require.Nil(t, result.Error)
			assert.Equal(t, client, result.Client)
			assert.Equal(t, "abc", result.Token)
		})
	}
}

func TestDeviceAuthorizationRequestValidator(t *testing.T) {
	f := newFixture(t)
	v := NewDeviceAuthorizationRequestValidator(f.resources, f.options, zap.NewNop())

	t.Run("explicit scopes", func(t *testing.T) {
		result, err := v.Validate(context.Background(), &DeviceAuthorizationRequest{Scope: "openid orders.read"}, f.client(t, "code_client"))
		require.NoError(t, err)
		require.Nil(t, result.Error)
		assert.True(t, result.ValidatedRequest.IsOpenIDRequest)
		assert.Equal(t, []string{"openid", "orders.read"}, result.ValidatedRequest.RequestedScopes)
	})

	t.Run("defaults to allowed scopes", func(t *testing.T) {
		result, err := v.Validate(context.Background(), &DeviceAuthorizationRequest{}, f.client(t, "code_client"))
		require.NoError(t, err)
		require.Nil(t, result.Error)
		assert.Equal(t, []string{"openid", "profile", "orders.read"}, result.ValidatedRequest.RequestedScopes)
	})

	t.Run("client without device grant", func(t *testing.T) {
		result, err := v.Validate(context.Background(), &DeviceAuthorizationRequest{Scope: "openid"}, f.client(t, "spa"))
		require.NoError(t, err)
		require.NotNil(t, result.Error)
		assert.Equal(t, apperrors.UnauthorizedClient, result.Error.Code)
	})

	t.Run("invalid scope", func(t *testing.T) {
		result, err := v.Validate(context.Background(), &DeviceAuthorizationRequest{Scope: "orders.write"}, f.client(t, "code_client"))
		require.NoError(t, err)
		require.NotNil(t, result.Error)
		assert.Equal(t, apperrors.InvalidScope, result.Error.Code)
	})
}
