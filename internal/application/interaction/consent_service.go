// Package interaction decides when the user must log in or consent, and backs
// the login, consent and device verification pages.
package interaction

import (
	"context"
	"errors"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// ConsentService decides whether consent is needed and remembers the user's decisions.
type ConsentService struct {
	consents *grants.UserConsentStore
	clock    domain.Clock
	logger   *zap.Logger
}

func NewConsentService(consents *grants.UserConsentStore, clock domain.Clock, logger *zap.Logger) *ConsentService {
	return &ConsentService{
		consents: consents,
		clock:    clock,
		logger:   logger,
	}
}

// RequiresConsent reports whether subject must be asked before client receives scopes.
// offline_access always requires an explicit answer.
func (s *ConsentService) RequiresConsent(ctx context.Context, subject *domain.Principal, client *domain.Client, scopes []string) (bool, error) {
	if !client.RequireConsent {
		return false, nil
	}
	if len(scopes) == 0 {
		return false, nil
	}
	if !client.AllowRememberConsent {
		return true, nil
	}
	if containsValue(scopes, domain.ScopeOfflineAccess) {
		return true, nil
	}
	if !subject.IsAuthenticated() {
		return true, nil
	}

	consent, err := s.consents.GetUserConsent(ctx, subject.SubjectID, client.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			return true, nil
		}
		s.logger.Error("Failed to load consent",
			zap.String("sub", subject.SubjectID),
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return false, err
	}
	if consent.IsExpired(s.clock.Now()) {
		if err := s.consents.RemoveUserConsent(ctx, subject.SubjectID, client.ClientID); err != nil {
			s.logger.Warn("Failed to remove expired consent", zap.Error(err))
		}
		return true, nil
	}

	for _, scope := range scopes {
		if !containsValue(consent.Scopes, scope) {
			s.logger.Debug("Requested scopes exceed remembered consent",
				zap.String("client_id", client.ClientID),
				zap.String("scope", scope))
			return true, nil
		}
	}
	return false, nil
}

// UpdateConsent remembers scopes for the subject and client, or forgets an
// earlier decision when scopes is empty. Clients that disallow remembering are ignored.
func (s *ConsentService) UpdateConsent(ctx context.Context, subject *domain.Principal, client *domain.Client, scopes []string) error {
	if !client.AllowRememberConsent || !subject.IsAuthenticated() {
		return nil
	}

	if len(scopes) == 0 {
		return s.consents.RemoveUserConsent(ctx, subject.SubjectID, client.ClientID)
	}

	now := s.clock.Now()
	consent := &domain.Consent{
		SubjectID:    subject.SubjectID,
		ClientID:     client.ClientID,
		Scopes:       scopes,
		CreationTime: now,
	}
	if client.ConsentLifetime > 0 {
		expiration := now.Add(client.ConsentLifetime)
		consent.Expiration = &expiration
	}
	if err := s.consents.StoreUserConsent(ctx, consent); err != nil {
		return err
	}
	s.logger.Debug("Consent remembered",
		zap.String("sub", subject.SubjectID),
		zap.String("client_id", client.ClientID),
		zap.Strings("scopes", scopes))
	return nil
}

func containsValue(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// intersect keeps the values of requested also present in granted, in requested order
func intersect(requested, granted []string) []string {
	var out []string
	for _, s := range requested {
		if containsValue(granted, s) {
			out = append(out, s)
		}
	}
	return out
}
