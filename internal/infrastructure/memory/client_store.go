package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
)

// ClientStore is a client registry seeded from configuration.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

// NewClientStore creates a registry holding clients
func NewClientStore(clients []*domain.Client) *ClientStore {
	s := &ClientStore{clients: make(map[string]*domain.Client, len(clients))}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

func (s *ClientStore) FindClientByID(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return c, nil
}

func (s *ClientStore) CreateClient(_ context.Context, client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[client.ClientID]; exists {
		return domain.ErrClientAlreadyExists
	}
	now := time.Now().UTC()
	client.CreatedAt, client.UpdatedAt = now, now
	s.clients[client.ClientID] = client
	return nil
}

func (s *ClientStore) UpdateClient(_ context.Context, client *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[client.ClientID]; !exists {
		return domain.ErrClientNotFound
	}
	client.UpdatedAt = time.Now().UTC()
	s.clients[client.ClientID] = client
	return nil
}

func (s *ClientStore) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[clientID]; !exists {
		return domain.ErrClientNotFound
	}
	delete(s.clients, clientID)
	return nil
}

func (s *ClientStore) ListClients(_ context.Context) ([]*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}
