package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/manorfm/identityserver/internal/domain"
)

// UserStore holds local test users.
type UserStore struct {
	mu    sync.RWMutex
	users []*domain.User
}

// NewUserStore creates a store holding users
func NewUserStore(users []*domain.User) *UserStore {
	return &UserStore{users: users}
}

func (s *UserStore) FindBySubjectID(_ context.Context, subjectID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.SubjectID == subjectID {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// FindByUsername matches usernames case-insensitively
func (s *UserStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.SubjectID == user.SubjectID || strings.EqualFold(u.Username, user.Username) {
			return domain.ErrDuplicateKey
		}
	}
	s.users = append(s.users, user)
	return nil
}
