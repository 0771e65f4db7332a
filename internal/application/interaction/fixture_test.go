package interaction

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type stubProfile struct {
	inactive map[string]bool
}

func (p *stubProfile) GetProfileData(_ context.Context, _ *domain.ProfileDataRequest) (domain.Claims, error) {
	return nil, nil
}

func (p *stubProfile) IsActive(_ context.Context, subject *domain.Principal, _ *domain.Client, _ string) (bool, error) {
	return !p.inactive[subject.SubjectID], nil
}

type fixture struct {
	clock         *domain.ManualClock
	clients       *memory.ClientStore
	resourceStore *memory.ResourceStore
	devices       *memory.DeviceFlowStore
	consents      *grants.UserConsentStore
	consent       *ConsentService
	profile       *stubProfile
	resources     *validation.ResourceValidator
}

func webClient() *domain.Client {
	c := domain.NewClient()
	c.ClientID = "web"
	c.AllowedGrantTypes = []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeDeviceCode}
	c.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile, "orders.read"}
	c.RedirectURIs = []string{"https://web/callback"}
	c.AllowOfflineAccess = true
	return c
}

func consentClient() *domain.Client {
	c := webClient()
	c.ClientID = "consent_client"
	c.RequireConsent = true
	c.ConsentLifetime = 24 * time.Hour
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	clock := domain.NewManualClock(testNow)

	resourceStore := memory.NewResourceStore(
		domain.StandardIdentityResources(),
		[]*domain.ApiScope{{Name: "orders.read", Enabled: true}},
		[]*domain.ApiResource{{Name: "orders", Enabled: true, Scopes: []string{"orders.read"}}},
	)
	consents := grants.NewUserConsentStore(memory.NewPersistedGrantStore(), clock, logger)

	return &fixture{
		clock:         clock,
		clients:       memory.NewClientStore([]*domain.Client{webClient(), consentClient()}),
		resourceStore: resourceStore,
		devices:       memory.NewDeviceFlowStore(),
		consents:      consents,
		consent:       NewConsentService(consents, clock, logger),
		profile:       &stubProfile{inactive: map[string]bool{}},
		resources:     validation.NewResourceValidator(resourceStore, logger),
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

// authorizeRequest builds a validated authorize request the way the validator would
func (f *fixture) authorizeRequest(t *testing.T, clientID string, subject *domain.Principal, prompt string, scopes ...string) *validation.ValidatedAuthorizeRequest {
	t.Helper()
	client := f.client(t, clientID)
	resources, pe, err := f.resources.Validate(context.Background(), client, scopes)
	require.NoError(t, err)
	require.Nil(t, pe)

	req := &validation.ValidatedAuthorizeRequest{
		ResponseType:    domain.ResponseTypeCode,
		GrantType:       domain.GrantTypeAuthorizationCode,
		RedirectURI:     client.RedirectURIs[0],
		RequestedScopes: scopes,
		IsOpenIDRequest: resources.IsOpenID(),
		Raw: url.Values{
			"client_id":     {clientID},
			"response_type": {domain.ResponseTypeCode},
			"scope":         {strings.Join(scopes, " ")},
		},
	}
	req.SetClient(client)
	req.Resources = resources
	if subject.IsAuthenticated() {
		req.Subject = subject
		req.SessionID = subject.SessionID
	}
	if prompt != "" {
		req.PromptModes = strings.Fields(prompt)
		req.Raw.Set("prompt", prompt)
	}
	return req
}
