// Package session keeps the signed-in user in an encrypted cookie and protects the
// short-lived messages exchanged between the protocol endpoints and the UI pages.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

const (
	valuePrincipal = "principal"
	valueClients   = "clients"

	consentCookiePrefix = "idsrv.consent."
	consentMaxAge       = 10 * time.Minute
)

// Config configures the session cookies.
type Config struct {
	CookieName string
	HashKey    []byte
	// BlockKey enables encryption when set (16, 24 or 32 bytes)
	BlockKey []byte
	Lifetime time.Duration
	Secure   bool
}

// Manager reads and writes the user session and protected messages.
type Manager struct {
	store     *sessions.CookieStore
	protector *securecookie.SecureCookie
	name      string
	secure    bool
	clock     domain.Clock
	logger    *zap.Logger
}

// NewManager creates a session manager
func NewManager(cfg Config, clock domain.Clock, logger *zap.Logger) *Manager {
	keyPairs := [][]byte{cfg.HashKey}
	if len(cfg.BlockKey) > 0 {
		keyPairs = append(keyPairs, cfg.BlockKey)
	}
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	var block []byte
	if len(cfg.BlockKey) > 0 {
		block = cfg.BlockKey
	}
	protector := securecookie.New(cfg.HashKey, block)
	protector.SetSerializer(securecookie.JSONEncoder{})
	protector.MaxAge(int(consentMaxAge.Seconds()))

	name := cfg.CookieName
	if name == "" {
		name = "idsrv"
	}

	return &Manager{
		store:     store,
		protector: protector,
		name:      name,
		secure:    cfg.Secure,
		clock:     clock,
		logger:    logger,
	}
}

// SignIn starts a session for principal. A session id is assigned when the principal has none.
func (m *Manager) SignIn(w http.ResponseWriter, r *http.Request, principal *domain.Principal) error {
	if !principal.IsAuthenticated() {
		return fmt.Errorf("sign in requires a subject")
	}
	if principal.SessionID == "" {
		principal.SessionID = uuid.NewString()
	}
	if principal.AuthTime.IsZero() {
		principal.AuthTime = m.clock.Now()
	}
	if principal.IdentityProvider == "" {
		principal.IdentityProvider = domain.LocalIdentityProvider
	}

	sess, _ := m.store.Get(r, m.name)
	payload, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("encoding principal: %w", err)
	}
	sess.Values[valuePrincipal] = string(payload)
	sess.Values[valueClients] = "[]"
	if err := sess.Save(r, w); err != nil {
		m.logger.Error("Failed to save session", zap.String("sub", principal.SubjectID), zap.Error(err))
		return err
	}

	m.logger.Info("User signed in",
		zap.String("sub", principal.SubjectID),
		zap.String("sid", principal.SessionID))
	return nil
}

// GetPrincipal returns the signed-in user or ErrSessionNotFound
func (m *Manager) GetPrincipal(r *http.Request) (*domain.Principal, error) {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		// tampered or stale cookies read as anonymous
		m.logger.Debug("Discarding unreadable session cookie", zap.Error(err))
		return nil, domain.ErrSessionNotFound
	}
	raw, ok := sess.Values[valuePrincipal].(string)
	if !ok || raw == "" {
		return nil, domain.ErrSessionNotFound
	}

	var principal domain.Principal
	if err := json.Unmarshal([]byte(raw), &principal); err != nil {
		return nil, domain.ErrSessionNotFound
	}
	if !principal.IsAuthenticated() {
		return nil, domain.ErrSessionNotFound
	}
	return &principal, nil
}

// AddClientID records that the session signed into clientID
func (m *Manager) AddClientID(w http.ResponseWriter, r *http.Request, clientID string) error {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return domain.ErrSessionNotFound
	}
	if _, ok := sess.Values[valuePrincipal]; !ok {
		return domain.ErrSessionNotFound
	}

	clients := decodeClients(sess.Values[valueClients])
	for _, id := range clients {
		if id == clientID {
			return nil
		}
	}
	clients = append(clients, clientID)
	encoded, _ := json.Marshal(clients)
	sess.Values[valueClients] = string(encoded)
	return sess.Save(r, w)
}

// GetClientIDs lists the clients the session signed into
func (m *Manager) GetClientIDs(r *http.Request) ([]string, error) {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return decodeClients(sess.Values[valueClients]), nil
}

// SignOut removes the session cookie
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// WriteConsent stores the consent response for the authorize request identified by requestID
func (m *Manager) WriteConsent(w http.ResponseWriter, requestID string, consent *domain.ConsentResponse) error {
	name := consentCookiePrefix + requestID
	value, err := m.protector.Encode(name, consent)
	if err != nil {
		return fmt.Errorf("protecting consent: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(consentMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ReadConsent returns the consent response for requestID, or nil when there is none
func (m *Manager) ReadConsent(r *http.Request, requestID string) *domain.ConsentResponse {
	name := consentCookiePrefix + requestID
	cookie, err := r.Cookie(name)
	if err != nil {
		return nil
	}
	var consent domain.ConsentResponse
	if err := m.protector.Decode(name, cookie.Value, &consent); err != nil {
		m.logger.Debug("Ignoring invalid consent cookie", zap.Error(err))
		return nil
	}
	return &consent
}

// ClearConsent deletes the consent response for requestID
func (m *Manager) ClearConsent(w http.ResponseWriter, requestID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     consentCookiePrefix + requestID,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// Protect serializes value into a tamper-proof string bound to purpose
func (m *Manager) Protect(purpose string, value interface{}) (string, error) {
	return m.protector.Encode(purpose, value)
}

// Unprotect reverses Protect; it fails on tampering, a different purpose or an expired value
func (m *Manager) Unprotect(purpose, protected string, dst interface{}) error {
	return m.protector.Decode(purpose, protected, dst)
}

func decodeClients(v interface{}) []string {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return nil
	}
	var clients []string
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil
	}
	return clients
}
