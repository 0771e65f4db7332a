package grants

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func TestNewHandle(t *testing.T) {
	h1, err := NewHandle()
	require.NoError(t, err)
	h2, err := NewHandle()
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{64}$`), h1)
	assert.NotEqual(t, h1, h2)
}

func TestHashKey(t *testing.T) {
	k := HashKey("ABC", domain.PersistedGrantTypeRefreshToken)
	assert.Equal(t, k, HashKey("ABC", domain.PersistedGrantTypeRefreshToken))
	assert.NotEqual(t, k, HashKey("ABC", domain.PersistedGrantTypeReferenceToken))
	assert.Len(t, k, 44)
}

func TestAuthorizationCodeStore(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(start)
	backing := memory.NewPersistedGrantStore()
	store := NewAuthorizationCodeStore(backing, clock, zap.NewNop())

	code := &domain.AuthorizationCode{
		CreationTime:    clock.Now(),
		Lifetime:        5 * time.Minute,
		ClientID:        "web",
		Subject:         &domain.Principal{SubjectID: "alice"},
		RequestedScopes: []string{"openid"},
		RedirectURI:     "https://web/callback",
		SessionID:       "sid",
	}

	t.Run("stored under hashed key", func(t *testing.T) {
		handle, err := store.StoreAuthorizationCode(ctx, code)
		require.NoError(t, err)

		_, err = backing.Get(ctx, handle)
		assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
		grant, err := backing.Get(ctx, HashKey(handle, domain.PersistedGrantTypeAuthorizationCode))
		require.NoError(t, err)
		assert.Equal(t, "alice", grant.SubjectID)
		assert.Equal(t, "sid", grant.SessionID)
		require.NotNil(t, grant.Expiration)
		assert.Equal(t, start.Add(5*time.Minute), *grant.Expiration)
	})

	t.Run("redeemable once", func(t *testing.T) {
		handle, err := store.StoreAuthorizationCode(ctx, code)
		require.NoError(t, err)

		got, err := store.TakeAuthorizationCode(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, "https://web/callback", got.RedirectURI)

		_, err = store.TakeAuthorizationCode(ctx, handle)
		assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
	})

	t.Run("concurrent redemption has a single winner", func(t *testing.T) {
		handle, err := store.StoreAuthorizationCode(ctx, code)
		require.NoError(t, err)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.TakeAuthorizationCode(ctx, handle); err == nil {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("expired code", func(t *testing.T) {
		handle, err := store.StoreAuthorizationCode(ctx, code)
		require.NoError(t, err)
		clock.Advance(5 * time.Minute)
		defer clock.Set(start)

		_, err = store.TakeAuthorizationCode(ctx, handle)
		assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
	})
}

func refreshToken(clock domain.Clock, sub, client string) *domain.RefreshToken {
	return &domain.RefreshToken{
		CreationTime: clock.Now(),
		Lifetime:     time.Hour,
		AccessToken: &domain.Token{
			ClientID: client,
			Claims: domain.Claims{
				domain.NewClaim(domain.ClaimSubject, sub),
				domain.NewClaim(domain.ClaimScope, "openid"),
				domain.NewClaim(domain.ClaimScope, "offline_access"),
			},
		},
		Version: 4,
	}
}

func TestRefreshTokenStore(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(start)
	store := NewRefreshTokenStore(memory.NewPersistedGrantStore(), clock, zap.NewNop())

	handle, err := store.StoreRefreshToken(ctx, refreshToken(clock, "alice", "web"))
	require.NoError(t, err)
	other, err := store.StoreRefreshToken(ctx, refreshToken(clock, "alice", "mobile"))
	require.NoError(t, err)

	got, err := store.GetRefreshToken(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.SubjectID())
	assert.Equal(t, []string{"openid", "offline_access"}, got.Scopes())

	got.Lifetime = 2 * time.Hour
	require.NoError(t, store.UpdateRefreshToken(ctx, handle, got))
	updated, err := store.GetRefreshToken(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, updated.Lifetime)

	require.NoError(t, store.RemoveRefreshTokens(ctx, "alice", "web"))
	_, err = store.GetRefreshToken(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
	_, err = store.GetRefreshToken(ctx, other)
	assert.NoError(t, err)

	taken, err := store.TakeRefreshToken(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "mobile", taken.ClientID())
	assert.NoError(t, store.RemoveRefreshToken(ctx, other))
}

func TestRefreshTokenStore_ExpiredIsRemovedOnRead(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(start)
	backing := memory.NewPersistedGrantStore()
	store := NewRefreshTokenStore(backing, clock, zap.NewNop())

	handle, err := store.StoreRefreshToken(ctx, refreshToken(clock, "alice", "web"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = store.GetRefreshToken(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)

	_, err = backing.Get(ctx, HashKey(handle, domain.PersistedGrantTypeRefreshToken))
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
}

func TestReferenceTokenStore(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(start)
	backing := memory.NewPersistedGrantStore()
	store := NewReferenceTokenStore(backing, clock, zap.NewNop())

	token := &domain.Token{
		Type:         domain.TokenTypeAccessToken,
		ClientID:     "web",
		CreationTime: clock.Now(),
		Lifetime:     time.Hour,
		Claims:       domain.Claims{domain.NewClaim(domain.ClaimSubject, "alice")},
	}
	handle, err := store.StoreReferenceToken(ctx, token)
	require.NoError(t, err)

	got, err := store.GetReferenceToken(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "web", got.ClientID)

	// a handle of another grant type never resolves
	refresh := NewRefreshTokenStore(backing, clock, zap.NewNop())
	_, err = refresh.GetRefreshToken(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)

	require.NoError(t, store.RemoveReferenceTokens(ctx, "alice", "web"))
	_, err = store.GetReferenceToken(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)
	assert.NoError(t, store.RemoveReferenceToken(ctx, handle))
}

func TestUserConsentStore(t *testing.T) {
	ctx := context.Background()
	clock := domain.NewManualClock(start)
	store := NewUserConsentStore(memory.NewPersistedGrantStore(), clock, zap.NewNop())

	_, err := store.GetUserConsent(ctx, "alice", "web")
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)

	expiry := start.Add(24 * time.Hour)
	require.NoError(t, store.StoreUserConsent(ctx, &domain.Consent{
		SubjectID: "alice", ClientID: "web", Scopes: []string{"openid"}, CreationTime: start, Expiration: &expiry,
	}))
	require.NoError(t, store.StoreUserConsent(ctx, &domain.Consent{
		SubjectID: "alice", ClientID: "web", Scopes: []string{"openid", "profile"}, CreationTime: start, Expiration: &expiry,
	}))

	got, err := store.GetUserConsent(ctx, "alice", "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"openid", "profile"}, got.Scopes)

	clock.Advance(24 * time.Hour)
	_, err = store.GetUserConsent(ctx, "alice", "web")
	assert.ErrorIs(t, err, domain.ErrPersistedGrantNotFound)

	assert.NoError(t, store.RemoveUserConsent(ctx, "alice", "web"))
}
