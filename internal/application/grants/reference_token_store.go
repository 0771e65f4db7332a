package grants

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// ReferenceTokenStore keeps the payload of reference access tokens.
type ReferenceTokenStore struct {
	grantStore
}

// NewReferenceTokenStore creates a reference token store
func NewReferenceTokenStore(store domain.PersistedGrantStore, clock domain.Clock, logger *zap.Logger) *ReferenceTokenStore {
	return &ReferenceTokenStore{newGrantStore(domain.PersistedGrantTypeReferenceToken, store, clock, logger)}
}

// StoreReferenceToken persists token and returns the handle handed out as access token
func (s *ReferenceTokenStore) StoreReferenceToken(ctx context.Context, token *domain.Token) (string, error) {
	return s.create(ctx, token, grantMeta{
		clientID:     token.ClientID,
		subjectID:    token.SubjectID(),
		sessionID:    token.SessionID(),
		creationTime: token.CreationTime,
		expiration:   expiresAt(token.CreationTime, token.Lifetime),
	})
}

// GetReferenceToken returns the token behind handle
func (s *ReferenceTokenStore) GetReferenceToken(ctx context.Context, handle string) (*domain.Token, error) {
	var token domain.Token
	if _, err := s.getItem(ctx, handle, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RemoveReferenceToken deletes the token behind handle
func (s *ReferenceTokenStore) RemoveReferenceToken(ctx context.Context, handle string) error {
	return s.removeItem(ctx, handle)
}

// RemoveReferenceTokens deletes every reference token of subjectID issued to clientID
func (s *ReferenceTokenStore) RemoveReferenceTokens(ctx context.Context, subjectID, clientID string) error {
	return s.removeAll(ctx, subjectID, clientID)
}
