package grants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// grantStore holds the logic shared by the typed stores
type grantStore struct {
	grantType string
	store     domain.PersistedGrantStore
	clock     domain.Clock
	logger    *zap.Logger
}

type grantMeta struct {
	clientID     string
	subjectID    string
	sessionID    string
	description  string
	creationTime time.Time
	expiration   *time.Time
}

func newGrantStore(grantType string, store domain.PersistedGrantStore, clock domain.Clock, logger *zap.Logger) grantStore {
	return grantStore{grantType: grantType, store: store, clock: clock, logger: logger}
}

func (s *grantStore) key(handle string) string {
	return HashKey(handle, s.grantType)
}

// create stores item under a fresh handle and returns the handle
func (s *grantStore) create(ctx context.Context, item interface{}, meta grantMeta) (string, error) {
	handle, err := NewHandle()
	if err != nil {
		return "", err
	}
	if err := s.storeItem(ctx, handle, item, meta); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *grantStore) storeItem(ctx context.Context, handle string, item interface{}, meta grantMeta) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.grantType, err)
	}

	grant := &domain.PersistedGrant{
		Key:          s.key(handle),
		Type:         s.grantType,
		ClientID:     meta.clientID,
		SubjectID:    meta.subjectID,
		SessionID:    meta.sessionID,
		Description:  meta.description,
		CreationTime: meta.creationTime,
		Expiration:   meta.expiration,
		Data:         string(data),
	}
	if err := s.store.Store(ctx, grant); err != nil {
		s.logger.Error("Failed to store grant",
			zap.String("type", s.grantType),
			zap.String("key", keyPrefix(grant.Key)),
			zap.Error(err))
		return err
	}
	return nil
}

// getItem loads the grant behind handle into item. Expired grants are removed and reported missing.
func (s *grantStore) getItem(ctx context.Context, handle string, item interface{}) (*domain.PersistedGrant, error) {
	key := s.key(handle)
	grant, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if grant.IsExpired(s.clock.Now()) {
		s.logger.Debug("Removing expired grant", zap.String("type", s.grantType), zap.String("key", keyPrefix(key)))
		if err := s.store.Remove(ctx, key); err != nil && !errors.Is(err, domain.ErrPersistedGrantNotFound) {
			s.logger.Warn("Failed to remove expired grant", zap.String("key", keyPrefix(key)), zap.Error(err))
		}
		return nil, domain.ErrPersistedGrantNotFound
	}
	if err := s.decode(grant, item); err != nil {
		return nil, err
	}
	return grant, nil
}

// takeItem atomically removes the grant behind handle and decodes it into item
func (s *grantStore) takeItem(ctx context.Context, handle string, item interface{}) (*domain.PersistedGrant, error) {
	grant, err := s.store.Take(ctx, s.key(handle))
	if err != nil {
		return nil, err
	}
	if grant.IsExpired(s.clock.Now()) {
		return nil, domain.ErrPersistedGrantNotFound
	}
	if err := s.decode(grant, item); err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *grantStore) decode(grant *domain.PersistedGrant, item interface{}) error {
	if grant.Type != s.grantType {
		return domain.ErrPersistedGrantNotFound
	}
	if err := json.Unmarshal([]byte(grant.Data), item); err != nil {
		s.logger.Error("Failed to decode grant",
			zap.String("type", s.grantType),
			zap.String("key", keyPrefix(grant.Key)),
			zap.Error(err))
		return fmt.Errorf("decoding %s: %w", s.grantType, err)
	}
	return nil
}

func (s *grantStore) removeItem(ctx context.Context, handle string) error {
	err := s.store.Remove(ctx, s.key(handle))
	if errors.Is(err, domain.ErrPersistedGrantNotFound) {
		return nil
	}
	return err
}

func (s *grantStore) removeAll(ctx context.Context, subjectID, clientID string) error {
	return s.store.RemoveAll(ctx, domain.PersistedGrantFilter{
		SubjectID: subjectID,
		ClientID:  clientID,
		Type:      s.grantType,
	})
}

func expiresAt(created time.Time, lifetime time.Duration) *time.Time {
	if lifetime <= 0 {
		return nil
	}
	t := created.Add(lifetime)
	return &t
}
