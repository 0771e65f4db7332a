package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPersistedGrantFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  PersistedGrantFilter
		wantErr error
	}{
		{name: "empty filter", filter: PersistedGrantFilter{}, wantErr: ErrInvalidFilter},
		{name: "subject only", filter: PersistedGrantFilter{SubjectID: "alice"}},
		{name: "session only", filter: PersistedGrantFilter{SessionID: "sid"}},
		{name: "client only", filter: PersistedGrantFilter{ClientID: "web"}},
		{name: "type only", filter: PersistedGrantFilter{Type: PersistedGrantTypeRefreshToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPersistedGrantFilter_Matches(t *testing.T) {
	grant := &PersistedGrant{
		Key:       "k",
		Type:      PersistedGrantTypeRefreshToken,
		SubjectID: "alice",
		SessionID: "sid-1",
		ClientID:  "web",
	}

	tests := []struct {
		name   string
		filter PersistedGrantFilter
		want   bool
	}{
		{name: "all fields match", filter: PersistedGrantFilter{SubjectID: "alice", SessionID: "sid-1", ClientID: "web", Type: PersistedGrantTypeRefreshToken}, want: true},
		{name: "subject and client", filter: PersistedGrantFilter{SubjectID: "alice", ClientID: "web"}, want: true},
		{name: "different client", filter: PersistedGrantFilter{SubjectID: "alice", ClientID: "mobile"}, want: false},
		{name: "different type", filter: PersistedGrantFilter{Type: PersistedGrantTypeReferenceToken}, want: false},
		{name: "different session", filter: PersistedGrantFilter{SessionID: "sid-2"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(grant))
		})
	}
}

func TestPersistedGrant_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, (&PersistedGrant{}).IsExpired(now))
	assert.True(t, (&PersistedGrant{Expiration: &past}).IsExpired(now))
	assert.True(t, (&PersistedGrant{Expiration: &now}).IsExpired(now))
	assert.False(t, (&PersistedGrant{Expiration: &future}).IsExpired(now))
}

func TestClaims(t *testing.T) {
	claims := Claims{
		NewClaim(ClaimSubject, "alice"),
		NewClaim(ClaimScope, "openid"),
		NewClaim(ClaimScope, "api1"),
		NewClaim(ClaimEmail, "alice@example.com"),
	}

	assert.Equal(t, "alice", claims.Value(ClaimSubject))
	assert.Equal(t, []string{"openid", "api1"}, claims.Values(ClaimScope))
	assert.Len(t, claims.Without(ClaimScope), 2)
	assert.Equal(t, Claims{NewClaim(ClaimEmail, "alice@example.com")}, claims.FilterTypes([]string{ClaimEmail}))

	_, found := claims.Find(ClaimName)
	assert.False(t, found)
}

func TestPrincipal_RoundTripThroughClaims(t *testing.T) {
	p := &Principal{
		SubjectID:             "alice",
		AuthTime:              time.Unix(1700000000, 0).UTC(),
		IdentityProvider:      LocalIdentityProvider,
		AuthenticationMethods: []string{AuthenticationMethodPwd},
	}

	claims := append(p.ToClaims(), NewClaim(ClaimSessionID, "sid-1"), NewClaim(ClaimName, "Alice"))
	got := PrincipalFromClaims(claims)

	assert.Equal(t, "alice", got.SubjectID)
	assert.Equal(t, p.AuthTime, got.AuthTime)
	assert.Equal(t, LocalIdentityProvider, got.IdentityProvider)
	assert.Equal(t, []string{AuthenticationMethodPwd}, got.AuthenticationMethods)
	assert.Equal(t, "sid-1", got.SessionID)
	assert.Equal(t, Claims{NewClaim(ClaimName, "Alice")}, got.Claims)
	assert.Nil(t, PrincipalFromClaims(Claims{NewClaim(ClaimClientID, "svc")}))
}

func TestClient_Defaults(t *testing.T) {
	c := NewClient()

	assert.True(t, c.Enabled)
	assert.True(t, c.RequirePkce)
	assert.False(t, c.AllowPlainTextPkce)
	assert.Equal(t, TokenUsageOneTimeOnly, c.RefreshTokenUsage)
	assert.Equal(t, TokenExpirationAbsolute, c.RefreshTokenExpiration)
	assert.Equal(t, AccessTokenTypeJwt, c.AccessTokenType)
	assert.Equal(t, time.Hour, c.AccessTokenLifetime)
}

func TestClient_HasCorsOrigin(t *testing.T) {
	c := &Client{AllowedCorsOrigins: []string{"https://App.example.com"}}

	assert.True(t, c.HasCorsOrigin("https://app.example.com"))
	assert.True(t, c.HasCorsOrigin("https://app.example.com/"))
	assert.False(t, c.HasCorsOrigin("https://evil.example.com"))
}
