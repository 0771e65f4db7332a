package memory

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
)

type deviceEntry struct {
	deviceCode string
	userCode   string
	data       domain.DeviceCode
}

// DeviceFlowStore keeps device authorizations indexed by both codes.
type DeviceFlowStore struct {
	mu         sync.Mutex
	byUserCode map[string]*deviceEntry
	byDevice   map[string]*deviceEntry
}

// NewDeviceFlowStore creates an empty store
func NewDeviceFlowStore() *DeviceFlowStore {
	return &DeviceFlowStore{
		byUserCode: make(map[string]*deviceEntry),
		byDevice:   make(map[string]*deviceEntry),
	}
}

// StoreDeviceAuthorization reuses a user code whose previous authorization expired
// before data was created.
func (s *DeviceFlowStore) StoreDeviceAuthorization(_ context.Context, deviceCode, userCode string, data *domain.DeviceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, exists := s.byUserCode[userCode]; exists {
		if !existing.data.IsExpired(data.CreationTime) {
			return domain.ErrDuplicateKey
		}
		s.remove(existing)
	}
	if _, exists := s.byDevice[deviceCode]; exists {
		return domain.ErrDuplicateKey
	}
	entry := &deviceEntry{deviceCode: deviceCode, userCode: userCode, data: *data}
	s.byUserCode[userCode] = entry
	s.byDevice[deviceCode] = entry
	return nil
}

func (s *DeviceFlowStore) FindByUserCode(_ context.Context, userCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byUserCode[userCode]
	if !ok {
		return nil, domain.ErrPersistedGrantNotFound
	}
	data := entry.data
	return &data, nil
}

func (s *DeviceFlowStore) FindByDeviceCode(_ context.Context, deviceCode string) (*domain.DeviceCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byDevice[deviceCode]
	if !ok {
		return nil, domain.ErrPersistedGrantNotFound
	}
	data := entry.data
	return &data, nil
}

func (s *DeviceFlowStore) UpdateByUserCode(_ context.Context, userCode string, data *domain.DeviceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byUserCode[userCode]
	if !ok {
		return domain.ErrPersistedGrantNotFound
	}
	entry.data = *data
	return nil
}

func (s *DeviceFlowStore) RemoveByDeviceCode(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byDevice[deviceCode]
	if !ok {
		return domain.ErrPersistedGrantNotFound
	}
	s.remove(entry)
	return nil
}

func (s *DeviceFlowStore) RemoveExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, entry := range s.byDevice {
		if entry.data.IsExpired(now) {
			s.remove(entry)
			removed++
		}
	}
	return removed, nil
}

func (s *DeviceFlowStore) remove(entry *deviceEntry) {
	delete(s.byDevice, entry.deviceCode)
	delete(s.byUserCode, entry.userCode)
}
