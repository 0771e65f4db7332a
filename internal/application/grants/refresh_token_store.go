package grants

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// RefreshTokenStore keeps refresh tokens.
type RefreshTokenStore struct {
	grantStore
}

// NewRefreshTokenStore creates a refresh token store
func NewRefreshTokenStore(store domain.PersistedGrantStore, clock domain.Clock, logger *zap.Logger) *RefreshTokenStore {
	return &RefreshTokenStore{newGrantStore(domain.PersistedGrantTypeRefreshToken, store, clock, logger)}
}

func refreshMeta(token *domain.RefreshToken) grantMeta {
	return grantMeta{
		clientID:     token.ClientID(),
		subjectID:    token.SubjectID(),
		sessionID:    token.SessionID(),
		creationTime: token.CreationTime,
		expiration:   expiresAt(token.CreationTime, token.Lifetime),
	}
}

// StoreRefreshToken persists token under a new handle
func (s *RefreshTokenStore) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) (string, error) {
	return s.create(ctx, token, refreshMeta(token))
}

// UpdateRefreshToken replaces the token stored under handle
func (s *RefreshTokenStore) UpdateRefreshToken(ctx context.Context, handle string, token *domain.RefreshToken) error {
	return s.storeItem(ctx, handle, token, refreshMeta(token))
}

// GetRefreshToken returns the token behind handle
func (s *RefreshTokenStore) GetRefreshToken(ctx context.Context, handle string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if _, err := s.getItem(ctx, handle, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// TakeRefreshToken removes and returns the token behind handle
func (s *RefreshTokenStore) TakeRefreshToken(ctx context.Context, handle string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	if _, err := s.takeItem(ctx, handle, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RemoveRefreshToken deletes the token behind handle
func (s *RefreshTokenStore) RemoveRefreshToken(ctx context.Context, handle string) error {
	return s.removeItem(ctx, handle)
}

// RemoveRefreshTokens deletes every refresh token of subjectID issued to clientID
func (s *RefreshTokenStore) RemoveRefreshTokens(ctx context.Context, subjectID, clientID string) error {
	return s.removeAll(ctx, subjectID, clientID)
}
