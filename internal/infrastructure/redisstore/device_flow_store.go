package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/redis/go-redis/v9"
)

type storedDevice struct {
	DeviceCode string             `json:"device_code"`
	Data       *domain.DeviceCode `json:"data"`
}

// DeviceFlowStore keeps the authorization under the user code and a pointer
// from the device code to the user code. Both keys expire with the request.
type DeviceFlowStore struct {
	client redis.UniversalClient
	prefix string
}

// NewDeviceFlowStore creates a device flow store on top of client
func NewDeviceFlowStore(client redis.UniversalClient, prefix string) *DeviceFlowStore {
	return &DeviceFlowStore{client: client, prefix: prefix}
}

func (s *DeviceFlowStore) userKey(userCode string) string {
	return s.prefix + "device:user:" + userCode
}

func (s *DeviceFlowStore) deviceKey(deviceCode string) string {
	return s.prefix + "device:code:" + deviceCode
}

func (s *DeviceFlowStore) StoreDeviceAuthorization(ctx context.Context, deviceCode, userCode string, data *domain.DeviceCode) error {
	payload, err := json.Marshal(storedDevice{DeviceCode: deviceCode, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal device authorization: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.userKey(userCode), payload, data.Lifetime).Result()
	if err != nil {
		return fmt.Errorf("failed to store device authorization: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateKey
	}

	ok, err = s.client.SetNX(ctx, s.deviceKey(deviceCode), userCode, data.Lifetime).Result()
	if err != nil || !ok {
		_ = s.client.Del(ctx, s.userKey(userCode)).Err()
		if err != nil {
			return fmt.Errorf("failed to store device code: %w", err)
		}
		return domain.ErrDuplicateKey
	}
	return nil
}

func (s *DeviceFlowStore) FindByUserCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	stored, err := s.load(ctx, userCode)
	if err != nil {
		return nil, err
	}
	return stored.Data, nil
}

func (s *DeviceFlowStore) FindByDeviceCode(ctx context.Context, deviceCode string) (*domain.DeviceCode, error) {
	userCode, err := s.client.Get(ctx, s.deviceKey(deviceCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		return nil, fmt.Errorf("failed to read device code: %w", err)
	}
	return s.FindByUserCode(ctx, userCode)
}

func (s *DeviceFlowStore) UpdateByUserCode(ctx context.Context, userCode string, data *domain.DeviceCode) error {
	stored, err := s.load(ctx, userCode)
	if err != nil {
		return err
	}
	stored.Data = data
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal device authorization: %w", err)
	}
	err = s.client.SetArgs(ctx, s.userKey(userCode), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrPersistedGrantNotFound
	}
	return err
}

// RemoveByDeviceCode deletes the pointer with GETDEL so a device code is redeemed at most once.
func (s *DeviceFlowStore) RemoveByDeviceCode(ctx context.Context, deviceCode string) error {
	userCode, err := s.client.GetDel(ctx, s.deviceKey(deviceCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrPersistedGrantNotFound
		}
		return fmt.Errorf("failed to remove device code: %w", err)
	}
	return s.client.Del(ctx, s.userKey(userCode)).Err()
}

func (s *DeviceFlowStore) load(ctx context.Context, userCode string) (*storedDevice, error) {
	data, err := s.client.Get(ctx, s.userKey(userCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		return nil, fmt.Errorf("failed to read device authorization: %w", err)
	}
	stored := &storedDevice{}
	if err := json.Unmarshal(data, stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device authorization: %w", err)
	}
	return stored, nil
}
