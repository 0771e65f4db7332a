package memory

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
)

// PersistedGrantStore keeps grants in a map guarded by a mutex.
type PersistedGrantStore struct {
	mu     sync.Mutex
	grants map[string]domain.PersistedGrant
}

// NewPersistedGrantStore creates an empty store
func NewPersistedGrantStore() *PersistedGrantStore {
	return &PersistedGrantStore{grants: make(map[string]domain.PersistedGrant)}
}

func (s *PersistedGrantStore) Store(_ context.Context, grant *domain.PersistedGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.Key] = *grant
	return nil
}

func (s *PersistedGrantStore) Get(_ context.Context, key string) (*domain.PersistedGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[key]
	if !ok {
		return nil, domain.ErrPersistedGrantNotFound
	}
	return &grant, nil
}

func (s *PersistedGrantStore) GetAll(_ context.Context, filter domain.PersistedGrantFilter) ([]*domain.PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PersistedGrant
	for _, grant := range s.grants {
		if filter.Matches(&grant) {
			g := grant
			out = append(out, &g)
		}
	}
	return out, nil
}

func (s *PersistedGrantStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, key)
	return nil
}

func (s *PersistedGrantStore) RemoveAll(_ context.Context, filter domain.PersistedGrantFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, grant := range s.grants {
		if filter.Matches(&grant) {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *PersistedGrantStore) Take(_ context.Context, key string) (*domain.PersistedGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[key]
	if !ok {
		return nil, domain.ErrPersistedGrantNotFound
	}
	delete(s.grants, key)
	return &grant, nil
}

func (s *PersistedGrantStore) RemoveExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, grant := range s.grants {
		if grant.IsExpired(now) {
			delete(s.grants, key)
			removed++
		}
	}
	return removed, nil
}
