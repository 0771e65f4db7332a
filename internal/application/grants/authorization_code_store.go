package grants

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// AuthorizationCodeStore keeps authorization codes until their single redemption.
type AuthorizationCodeStore struct {
	grantStore
}

// NewAuthorizationCodeStore creates an authorization code store
func NewAuthorizationCodeStore(store domain.PersistedGrantStore, clock domain.Clock, logger *zap.Logger) *AuthorizationCodeStore {
	return &AuthorizationCodeStore{newGrantStore(domain.PersistedGrantTypeAuthorizationCode, store, clock, logger)}
}

// StoreAuthorizationCode persists code and returns its handle
func (s *AuthorizationCodeStore) StoreAuthorizationCode(ctx context.Context, code *domain.AuthorizationCode) (string, error) {
	var sub string
	if code.Subject != nil {
		sub = code.Subject.SubjectID
	}
	return s.create(ctx, code, grantMeta{
		clientID:     code.ClientID,
		subjectID:    sub,
		sessionID:    code.SessionID,
		creationTime: code.CreationTime,
		expiration:   expiresAt(code.CreationTime, code.Lifetime),
	})
}

// TakeAuthorizationCode removes and returns the code. Of concurrent callers at most one succeeds;
// the others, like callers presenting unknown or expired codes, get ErrPersistedGrantNotFound.
func (s *AuthorizationCodeStore) TakeAuthorizationCode(ctx context.Context, handle string) (*domain.AuthorizationCode, error) {
	var code domain.AuthorizationCode
	if _, err := s.takeItem(ctx, handle, &code); err != nil {
		return nil, err
	}
	return &code, nil
}
