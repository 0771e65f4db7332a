package grants

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// UserConsentStore remembers consent decisions per subject and client.
type UserConsentStore struct {
	grantStore
}

// NewUserConsentStore creates a consent store
func NewUserConsentStore(store domain.PersistedGrantStore, clock domain.Clock, logger *zap.Logger) *UserConsentStore {
	return &UserConsentStore{newGrantStore(domain.PersistedGrantTypeUserConsent, store, clock, logger)}
}

func consentHandle(subjectID, clientID string) string {
	return subjectID + "|" + clientID
}

// StoreUserConsent records consent, replacing an earlier decision
func (s *UserConsentStore) StoreUserConsent(ctx context.Context, consent *domain.Consent) error {
	return s.storeItem(ctx, consentHandle(consent.SubjectID, consent.ClientID), consent, grantMeta{
		clientID:     consent.ClientID,
		subjectID:    consent.SubjectID,
		creationTime: consent.CreationTime,
		expiration:   consent.Expiration,
	})
}

// GetUserConsent returns the remembered consent or ErrPersistedGrantNotFound
func (s *UserConsentStore) GetUserConsent(ctx context.Context, subjectID, clientID string) (*domain.Consent, error) {
	var consent domain.Consent
	if _, err := s.getItem(ctx, consentHandle(subjectID, clientID), &consent); err != nil {
		return nil, err
	}
	return &consent, nil
}

// RemoveUserConsent forgets the decision
func (s *UserConsentStore) RemoveUserConsent(ctx context.Context, subjectID, clientID string) error {
	return s.removeItem(ctx, consentHandle(subjectID, clientID))
}
