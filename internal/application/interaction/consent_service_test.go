package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentService_RequiresConsent(t *testing.T) {
	tests := []struct {
		name     string
		client   func(*domain.Client)
		stored   []string
		subject  *domain.Principal
		scopes   []string
		advance  time.Duration
		expected bool
	}{
		{
			name:     "client does not require consent",
			client:   func(c *domain.Client) { c.RequireConsent = false },
			subject:  alice(),
			scopes:   []string{"openid"},
			expected: false,
		},
		{
			name:     "no scopes",
			subject:  alice(),
			expected: false,
		},
		{
			name:     "remember consent disallowed",
			client:   func(c *domain.Client) { c.AllowRememberConsent = false },
			stored:   []string{"openid"},
			subject:  alice(),
			scopes:   []string{"openid"},
			expected: true,
		},
		{
			name:     "offline access always asks",
			stored:   []string{"openid", "offline_access"},
			subject:  alice(),
			scopes:   []string{"openid", "offline_access"},
			expected: true,
		},
		{
			name:     "nothing remembered",
			subject:  alice(),
			scopes:   []string{"openid"},
			expected: true,
		},
		{
			name:     "remembered consent covers the request",
			stored:   []string{"openid", "profile", "orders.read"},
			subject:  alice(),
			scopes:   []string{"openid", "orders.read"},
			expected: false,
		},
		{
			name:     "request exceeds remembered consent",
			stored:   []string{"openid"},
			subject:  alice(),
			scopes:   []string{"openid", "orders.read"},
			expected: true,
		},
		{
			name:     "remembered consent expired",
			stored:   []string{"openid"},
			subject:  alice(),
			scopes:   []string{"openid"},
			advance:  25 * time.Hour,
			expected: true,
		},
		{
			name:     "anonymous user",
			scopes:   []string{"openid"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			client := consentClient()
			if tt.client != nil {
				tt.client(client)
			}
			if tt.stored != nil {
				expiration := testNow.Add(24 * time.Hour)
				require.NoError(t, f.consents.StoreUserConsent(context.Background(), &domain.Consent{
					SubjectID:    "818727",
					ClientID:     client.ClientID,
					Scopes:       tt.stored,
					CreationTime: testNow,
					Expiration:   &expiration,
				}))
			}
			f.clock.Advance(tt.advance)

			required, err := f.consent.RequiresConsent(context.Background(), tt.subject, client, tt.scopes)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, required)
		})
	}
}

func TestConsentService_UpdateConsent(t *testing.T) {
	t.Run("remember", func(t *testing.T) {
		f := newFixture(t)
		client := consentClient()

		require.NoError(t, f.consent.UpdateConsent(context.Background(), alice(), client, []string{"openid", "orders.read"}))

		stored, err := f.consents.GetUserConsent(context.Background(), "818727", client.ClientID)
		require.NoError(t, err)
		assert.Equal(t, []string{"openid", "orders.read"}, stored.Scopes)
		assert.Equal(t, testNow, stored.CreationTime)
		require.NotNil(t, stored.Expiration)
		assert.Equal(t, testNow.Add(24*time.Hour), *stored.Expiration)
	})

	t.Run("forget", func(t *testing.T) {
		f := newFixture(t)
		client := consentClient()
		require.NoError(t, f.consent.UpdateConsent(context.Background(), alice(), client, []string{"openid"}))

		require.NoError(t, f.consent.UpdateConsent(context.Background(), alice(), client, nil))

		_, err := f.consents.GetUserConsent(context.Background(), "818727", client.ClientID)
		assert.True(t, errors.Is(err, domain.ErrPersistedGrantNotFound))
	})

	t.Run("client does not allow remembering", func(t *testing.T) {
		f := newFixture(t)
		client := consentClient()
		client.AllowRememberConsent = false

		require.NoError(t, f.consent.UpdateConsent(context.Background(), alice(), client, []string{"openid"}))

		_, err := f.consents.GetUserConsent(context.Background(), "818727", client.ClientID)
		assert.True(t, errors.Is(err, domain.ErrPersistedGrantNotFound))
	})

	t.Run("no lifetime means no expiration", func(t *testing.T) {
		f := newFixture(t)
		client := consentClient()
		client.ConsentLifetime = 0

		require.NoError(t, f.consent.UpdateConsent(context.Background(), alice(), client, []string{"openid"}))

		stored, err := f.consents.GetUserConsent(context.Background(), "818727", client.ClientID)
		require.NoError(t, err)
		assert.Nil(t, stored.Expiration)
	})
}
