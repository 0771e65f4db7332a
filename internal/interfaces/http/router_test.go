package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/domain"
	jwtinfra "github.com/manorfm/identityserver/internal/infrastructure/jwt"
	"github.com/manorfm/identityserver/internal/infrastructure/memory"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	"github.com/manorfm/identityserver/internal/interfaces/http/middleware/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	testIssuer       = "https://id.example.com"
	testSecret       = "secret"
	testRedirect     = "https://code_client/callback"
	testSignedOut    = "https://code_client/signed-out"
	testBackChannel  = "https://code_client/backchannel-logout"
	testOrigin       = "https://code_client"
	testAliceSubject = "818727"
)

type recordingPoster struct {
	mu      sync.Mutex
	targets []string
	forms   []url.Values
}

func (p *recordingPoster) PostForm(_ context.Context, target string, form url.Values) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, target)
	p.forms = append(p.forms, form)
	return nil
}

type testServer struct {
	*httptest.Server
	keys   *jwtinfra.KeyService
	poster *recordingPoster
}

func confidentialClient(id string, grantTypes ...string) *domain.Client {
	c := domain.NewClient()
	c.ClientID = id
	c.ClientSecrets = []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: password.HashSecret(testSecret)}}
	c.AllowedGrantTypes = grantTypes
	return c
}

func testClients() []*domain.Client {
	code := confidentialClient("code_client", domain.GrantTypeAuthorizationCode)
	code.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile, "orders.read"}
	code.RedirectURIs = []string{testRedirect}
	code.PostLogoutRedirectURIs = []string{testSignedOut}
	code.BackChannelLogoutURI = testBackChannel
	code.AllowedCorsOrigins = []string{testOrigin}
	code.AllowOfflineAccess = true

	consent := confidentialClient("consent_client", domain.GrantTypeAuthorizationCode)
	consent.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile}
	consent.RedirectURIs = []string{"https://consent_client/callback"}
	consent.RequireConsent = true

	service := confidentialClient("service", domain.GrantTypeClientCredentials)
	service.AllowedScopes = []string{"orders.read", AdminScope}

	device := domain.NewClient()
	device.ClientID = "device"
	device.RequireClientSecret = false
	device.AllowedGrantTypes = []string{domain.GrantTypeDeviceCode}
	device.AllowedScopes = []string{domain.ScopeOpenID, domain.ScopeProfile}

	return []*domain.Client{code, consent, service, device}
}

func newTestServer(t *testing.T, ping func(ctx context.Context) error) *testServer {
	t.Helper()
	logger := zap.NewNop()
	clock := domain.NewManualClock(time.Now().UTC())
	options := domain.DefaultOptions(testIssuer)
	options.DeviceFlow.Interval = time.Second

	hash, err := password.HashPassword("alice")
	require.NoError(t, err)
	alice := &domain.User{
		SubjectID: testAliceSubject,
		Username:  "alice",
		Password:  hash,
		IsActive:  true,
		Claims:    domain.Claims{domain.NewClaim("name", "Alice Smith"), domain.NewClaim("email", "alice@example.com")},
	}

	resources := memory.NewResourceStore(
		domain.StandardIdentityResources(),
		[]*domain.ApiScope{{Name: "orders.read", Enabled: true}, {Name: AdminScope, Enabled: true}},
		[]*domain.ApiResource{
			{
				Name: "orders", Enabled: true, Scopes: []string{"orders.read"},
				ApiSecrets: []domain.Secret{{Type: domain.SecretTypeSharedSecret, Value: password.HashSecret("api-secret")}},
			},
			{Name: "identityserver", Enabled: true, Scopes: []string{AdminScope}},
		},
	)

	strategy, err := jwtinfra.NewLocalStrategy(&domain.LocalConfig{KeyPath: filepath.Join(t.TempDir(), "key.pem")}, logger)
	require.NoError(t, err)
	keys := jwtinfra.NewKeyService(strategy, clock, logger)
	poster := &recordingPoster{}

	deps := Dependencies{
		Stores: Stores{
			Clients:   memory.NewClientStore(testClients()),
			Resources: resources,
			Users:     memory.NewUserStore([]*domain.User{alice}),
			Grants:    memory.NewPersistedGrantStore(),
			Devices:   memory.NewDeviceFlowStore(),
			Cache:     memory.NewCache(clock),
			Ping:      ping,
		},
		Keys: keys,
		Sessions: session.NewManager(session.Config{
			CookieName: "idsrv",
			HashKey:    []byte("0123456789abcdef0123456789abcdef"),
			Lifetime:   time.Hour,
		}, clock, logger),
		Events:      events.NewService(options.Events, clock, logger),
		Poster:      poster,
		RateLimiter: ratelimit.NewRateLimiter(rate.Limit(1000), 1000, time.Minute, logger),
		Clock:       clock,
		Options:     options,
	}

	srv := httptest.NewServer(NewRouter(deps, logger))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, keys: keys, poster: poster}
}

func (s *testServer) codeConfig(clientID, redirectURI string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: testSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.URL + domain.PathAuthorize,
			TokenURL:  s.URL + domain.PathToken,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (s *testServer) clientCredentials(scopes ...string) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     "service",
		ClientSecret: testSecret,
		TokenURL:     s.URL + domain.PathToken,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cfg.Token(context.Background())
}

// browser follows no redirects so each hop can be inspected
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: base, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) get(target string) *http.Response {
	b.t.Helper()
	if strings.HasPrefix(target, "/") {
		target = b.base + target
	}
	resp, err := b.client.Get(target)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) postJSON(path string, body interface{}) *http.Response {
	b.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(b.t, err)
	resp, err := b.client.Post(b.base+path, "application/json", bytes.NewReader(payload))
	require.NoError(b.t, err)
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// follow posts to an interaction endpoint and returns the redirect_url it answers with
func (b *browser) follow(path string, body interface{}) string {
	b.t.Helper()
	resp := b.postJSON(path, body)
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	var out struct {
		RedirectURL string `json:"redirect_url"`
	}
	require.NoError(b.t, json.NewDecoder(resp.Body).Decode(&out))
	return out.RedirectURL
}

func (b *browser) signIn(returnURL string) string {
	b.t.Helper()
	return b.follow("/account/login", map[string]string{"username": "alice", "password": "alice", "return_url": returnURL})
}

func location(t *testing.T, resp *http.Response) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	u, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return u
}

// authorize runs an authorize request through login and returns the final redirect to the client
func authorize(t *testing.T, b *browser, authURL string) *url.URL {
	t.Helper()
	login := location(t, b.get(authURL))
	require.Equal(t, "/account/login", login.Path)
	callback := b.signIn(login.Query().Get("returnUrl"))
	require.True(t, strings.HasPrefix(callback, domain.PathAuthorizeCallback))
	return location(t, b.get(callback))
}

func retrieveErrorCode(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.ErrorCode
	}
	return ""
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		ping           func(ctx context.Context) error
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", path: "/health", expectedStatus: http.StatusOK, expectedBody: "OK"},
		{name: "live", path: "/health/live", expectedStatus: http.StatusOK, expectedBody: "Alive"},
		{name: "ready", path: "/health/ready", ping: func(context.Context) error { return nil }, expectedStatus: http.StatusOK, expectedBody: "Ready"},
		{name: "ready without ping", path: "/health/ready", expectedStatus: http.StatusOK, expectedBody: "Ready"},
		{
			name:           "store down",
			path:           "/health/ready",
			ping:           func(context.Context) error { return errors.New("connection refused") },
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "Store connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.ping)
			resp := newBrowser(t, srv.URL).get(tt.path)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			var body bytes.Buffer
			_, _ = body.ReadFrom(resp.Body)
			assert.Equal(t, tt.expectedBody, body.String())
		})
	}
}

func TestRouter_Discovery(t *testing.T) {
	srv := newTestServer(t, nil)
	b := newBrowser(t, srv.URL)

	resp := b.get(domain.PathDiscovery)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, testIssuer, doc["issuer"])
	assert.Equal(t, testIssuer+domain.PathToken, doc["token_endpoint"])
	assert.Equal(t, testIssuer+domain.PathDiscoveryWebKeys, doc["jwks_uri"])

	resp = b.get(domain.PathDiscoveryWebKeys)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jwks struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RSA", jwks.Keys[0]["kty"])
	assert.NotContains(t, jwks.Keys[0], "d")
}

func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		method        string
		origin        string
		expectAllowed bool
	}{
		{name: "token endpoint, registered origin", path: domain.PathToken, method: http.MethodPost, origin: testOrigin, expectAllowed: true},
		{name: "token endpoint, unknown origin", path: domain.PathToken, method: http.MethodPost, origin: "https://evil.example.com"},
		{name: "discovery document", path: domain.PathDiscovery, method: http.MethodGet, origin: testOrigin, expectAllowed: true},
		{name: "discovery keys", path: domain.PathDiscoveryWebKeys, method: http.MethodGet, origin: testOrigin, expectAllowed: true},
		{name: "userinfo endpoint", path: domain.PathUserInfo, method: http.MethodGet, origin: testOrigin, expectAllowed: true},
		{name: "revocation endpoint", path: domain.PathRevocation, method: http.MethodPost, origin: testOrigin, expectAllowed: true},
		{name: "revocation endpoint, unknown origin", path: domain.PathRevocation, method: http.MethodPost, origin: "https://evil.example.com"},
		{name: "authorize endpoint is not a CORS path", path: domain.PathAuthorize, method: http.MethodGet, origin: testOrigin},
		{name: "end session endpoint is not a CORS path", path: domain.PathEndSession, method: http.MethodGet, origin: testOrigin},
		{name: "introspection endpoint is not a CORS path", path: domain.PathIntrospection, method: http.MethodPost, origin: testOrigin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			req, err := http.NewRequest(http.MethodOptions, srv.URL+tt.path, nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", tt.method)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			if tt.expectAllowed {
				assert.Equal(t, tt.origin, resp.Header.Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRouter_ClientCredentials(t *testing.T) {
	srv := newTestServer(t, nil)

	tok, err := srv.clientCredentials("orders.read")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "orders.read", tok.Extra("scope"))

	claims, err := srv.keys.ValidateToken(tok.AccessToken, jwtinfra.ValidationOptions{Issuer: testIssuer, Audience: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "service", claims["client_id"])

	t.Run("introspection", func(t *testing.T) {
		form := url.Values{"token": {tok.AccessToken}}
		req, err := http.NewRequest(http.MethodPost, srv.URL+domain.PathIntrospection, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth("orders", "api-secret")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, true, body["active"])
		assert.Equal(t, "service", body["client_id"])
	})

	t.Run("scope not allowed", func(t *testing.T) {
		_, err := srv.clientCredentials("orders.write")
		require.Error(t, err)
		assert.Equal(t, "invalid_scope", retrieveErrorCode(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		cfg := clientcredentials.Config{
			ClientID:     "service",
			ClientSecret: "wrong",
			TokenURL:     srv.URL + domain.PathToken,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		_, err := cfg.Token(context.Background())
		require.Error(t, err)
		assert.Equal(t, "invalid_client", retrieveErrorCode(err))
	})
}

func TestRouter_AuthorizationCodeFlowWithPKCE(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	cfg := srv.codeConfig("code_client", testRedirect, domain.ScopeOpenID, domain.ScopeProfile, domain.ScopeOfflineAccess)
	b := newBrowser(t, srv.URL)

	verifier := oauth2.GenerateVerifier()
	redirect := authorize(t, b, cfg.AuthCodeURL("af0ifjsldkj",
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", "n-0S6_WzA2Mj")))
	require.Equal(t, testRedirect, redirect.Scheme+"://"+redirect.Host+redirect.Path)
	assert.Equal(t, "af0ifjsldkj", redirect.Query().Get("state"))
	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)

	_, err := cfg.Exchange(ctx, code, oauth2.VerifierOption("wrong-verifier-wrong-verifier-wrong-verifier"))
	require.Error(t, err)
	assert.Equal(t, "invalid_grant", retrieveErrorCode(err))

	verifier2 := oauth2.GenerateVerifier()
	redirect = location(t, b.get(cfg.AuthCodeURL("xyz",
		oauth2.S256ChallengeOption(verifier2),
		oauth2.SetAuthURLParam("nonce", "n-1"))))
	code = redirect.Query().Get("code")
	require.NotEmpty(t, code, "a signed-in user gets a code without the login page")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier2))
	require.NoError(t, err)
	require.NotEmpty(t, tok.RefreshToken)
	idToken, ok := tok.Extra("id_token").(string)
	require.True(t, ok)

	idClaims, err := srv.keys.ValidateToken(idToken, jwtinfra.ValidationOptions{Issuer: testIssuer, Audience: "code_client"})
	require.NoError(t, err)
	assert.Equal(t, testAliceSubject, idClaims["sub"])
	assert.Equal(t, "n-1", idClaims["nonce"])
	assert.NotEmpty(t, idClaims["sid"])

	t.Run("code replay", func(t *testing.T) {
		_, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier2))
		require.Error(t, err)
		assert.Equal(t, "invalid_grant", retrieveErrorCode(err))
	})

	t.Run("userinfo", func(t *testing.T) {
		resp, err := cfg.Client(ctx, tok).Get(srv.URL + domain.PathUserInfo)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var claims map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&claims))
		assert.Equal(t, testAliceSubject, claims["sub"])
		assert.Equal(t, "Alice Smith", claims["name"])
		assert.NotContains(t, claims, "email")
	})

	t.Run("refresh and revoke", func(t *testing.T) {
		widened := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {tok.RefreshToken},
			"scope":         {"profile orders.read"},
		}
		req, err := http.NewRequest(http.MethodPost, srv.URL+domain.PathToken, strings.NewReader(widened.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth("code_client", testSecret)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		var rejected map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rejected))
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_scope", rejected["error"])

		refreshed, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
		require.NoError(t, err)
		require.NotEmpty(t, refreshed.AccessToken)
		require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

		_, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
		require.Error(t, err)
		assert.Equal(t, "invalid_grant", retrieveErrorCode(err))

		form := url.Values{"token": {refreshed.RefreshToken}, "token_type_hint": {"refresh_token"}}
		req, err = http.NewRequest(http.MethodPost, srv.URL+domain.PathRevocation, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth("code_client", testSecret)
		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		_, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshed.RefreshToken}).Token()
		require.Error(t, err)
		assert.Equal(t, "invalid_grant", retrieveErrorCode(err))
	})

	t.Run("end session", func(t *testing.T) {
		endSession := srv.URL + domain.PathEndSession + "?" + url.Values{
			"id_token_hint":            {idToken},
			"post_logout_redirect_uri": {testSignedOut},
			"state":                    {"bye"},
		}.Encode()
		logoutPage := location(t, b.get(endSession))
		require.Equal(t, "/account/logout", logoutPage.Path)

		callback := b.follow("/account/logout", map[string]string{"logout_id": logoutPage.Query().Get("logoutId")})
		require.True(t, strings.HasPrefix(callback, domain.PathEndSessionCallback))

		resp := b.get(callback)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		srv.poster.mu.Lock()
		assert.Equal(t, []string{testBackChannel}, srv.poster.targets)
		require.Len(t, srv.poster.forms, 1)
		logoutToken := srv.poster.forms[0].Get("logout_token")
		srv.poster.mu.Unlock()
		logoutClaims, err := srv.keys.ValidateToken(logoutToken, jwtinfra.ValidationOptions{Issuer: testIssuer, Audience: "code_client"})
		require.NoError(t, err)
		assert.Equal(t, testAliceSubject, logoutClaims["sub"])

		// the session is gone
		login := location(t, b.get(cfg.AuthCodeURL("again", oauth2.S256ChallengeOption(oauth2.GenerateVerifier()))))
		assert.Equal(t, "/account/login", login.Path)
	})
}

func TestRouter_AuthorizeErrors(t *testing.T) {
	tests := []struct {
		name           string
		query          url.Values
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unknown client",
			query:          url.Values{"client_id": {"nobody"}, "response_type": {"code"}, "redirect_uri": {testRedirect}, "scope": {"openid"}},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "unauthorized_client",
		},
		{
			name:           "unregistered redirect uri",
			query:          url.Values{"client_id": {"code_client"}, "response_type": {"code"}, "redirect_uri": {"https://evil.example.com/cb"}, "scope": {"openid"}},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "unauthorized_client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			resp := newBrowser(t, srv.URL).get(domain.PathAuthorize + "?" + tt.query.Encode())
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.expectedError, body["error"])
		})
	}
}

func TestRouter_Consent(t *testing.T) {
	tests := []struct {
		name        string
		answer      map[string]interface{}
		expectCode  bool
		expectError string
	}{
		{
			name:       "granted",
			answer:     map[string]interface{}{"scopes": []string{domain.ScopeOpenID, domain.ScopeProfile}},
			expectCode: true,
		},
		{
			name:        "denied",
			answer:      map[string]interface{}{"deny": true},
			expectError: "access_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			cfg := srv.codeConfig("consent_client", "https://consent_client/callback", domain.ScopeOpenID, domain.ScopeProfile)
			b := newBrowser(t, srv.URL)

			consentPage := authorize(t, b, cfg.AuthCodeURL("st", oauth2.S256ChallengeOption(oauth2.GenerateVerifier())))
			require.Equal(t, "/consent", consentPage.Path)
			returnURL := consentPage.Query().Get("returnUrl")

			resp := b.get("/consent?" + url.Values{"returnUrl": {returnURL}}.Encode())
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var consentContext struct {
				Client struct {
					ClientID string `json:"client_id"`
				} `json:"client"`
				IdentityScopes []struct {
					Name string `json:"name"`
				} `json:"identity_scopes"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&consentContext))
			assert.Equal(t, "consent_client", consentContext.Client.ClientID)
			assert.Len(t, consentContext.IdentityScopes, 2)

			tt.answer["return_url"] = returnURL
			callback := b.follow("/consent", tt.answer)

			redirect := location(t, b.get(callback))
			assert.Equal(t, "consent_client", redirect.Host)
			if tt.expectCode {
				assert.NotEmpty(t, redirect.Query().Get("code"))
			} else {
				assert.Equal(t, tt.expectError, redirect.Query().Get("error"))
			}
		})
	}
}

func TestRouter_DeviceFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	cfg := &oauth2.Config{
		ClientID: "device",
		Scopes:   []string{domain.ScopeOpenID, domain.ScopeProfile},
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: srv.URL + domain.PathDeviceAuthorization,
			TokenURL:      srv.URL + domain.PathToken,
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}

	da, err := cfg.DeviceAuth(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, da.DeviceCode)
	require.NotEmpty(t, da.UserCode)
	assert.Equal(t, int64(1), da.Interval)
	assert.Contains(t, da.VerificationURIComplete, url.QueryEscape(da.UserCode))

	b := newBrowser(t, srv.URL)
	resp := b.postJSON("/device", map[string]interface{}{"user_code": da.UserCode, "scopes": []string{domain.ScopeOpenID}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, "/", b.signIn(""))

	resp = b.get("/device?" + url.Values{"userCode": {da.UserCode}}.Encode())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.postJSON("/device", map[string]interface{}{
		"user_code": da.UserCode,
		"scopes":    []string{domain.ScopeOpenID, domain.ScopeProfile},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "authorized", status.Status)

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tok, err := cfg.DeviceAccessToken(pollCtx, da)
	require.NoError(t, err)
	idToken, ok := tok.Extra("id_token").(string)
	require.True(t, ok)
	claims, err := srv.keys.ValidateToken(idToken, jwtinfra.ValidationOptions{Issuer: testIssuer, Audience: "device"})
	require.NoError(t, err)
	assert.Equal(t, testAliceSubject, claims["sub"])

	t.Run("device code is single use", func(t *testing.T) {
		_, err := cfg.Exchange(ctx, "", oauth2.SetAuthURLParam("grant_type", domain.GrantTypeDeviceCode),
			oauth2.SetAuthURLParam("device_code", da.DeviceCode))
		require.Error(t, err)
		assert.Equal(t, "invalid_grant", retrieveErrorCode(err))
	})
}

func TestRouter_AdminClients(t *testing.T) {
	srv := newTestServer(t, nil)
	admin, err := srv.clientCredentials(AdminScope)
	require.NoError(t, err)
	reader, err := srv.clientCredentials("orders.read")
	require.NoError(t, err)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{name: "admin scope", token: admin.AccessToken, expectedStatus: http.StatusOK},
		{name: "missing scope", token: reader.AccessToken, expectedStatus: http.StatusForbidden},
		{name: "no token", expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-token", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/clients", nil)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var clients []map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&clients))
				assert.Len(t, clients, len(testClients()))
			}
		})
	}
}
