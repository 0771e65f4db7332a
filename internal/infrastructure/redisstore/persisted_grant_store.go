package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PersistedGrantStore stores each grant as a JSON string with secondary index
// sets for subject, session, client and type. Index entries whose grant has
// expired are skipped on read and pruned lazily.
type PersistedGrantStore struct {
	client redis.UniversalClient
	prefix string
	clock  domain.Clock
	logger *zap.Logger
}

// NewPersistedGrantStore creates a grant store on top of client
func NewPersistedGrantStore(client redis.UniversalClient, prefix string, clock domain.Clock, logger *zap.Logger) *PersistedGrantStore {
	return &PersistedGrantStore{client: client, prefix: prefix, clock: clock, logger: logger}
}

func (s *PersistedGrantStore) grantKey(key string) string {
	return s.prefix + "grant:" + key
}

func (s *PersistedGrantStore) indexKey(field, value string) string {
	return s.prefix + "grant-idx:" + field + ":" + value
}

func (s *PersistedGrantStore) indexKeys(grant *domain.PersistedGrant) []string {
	keys := []string{s.indexKey("client", grant.ClientID), s.indexKey("type", grant.Type)}
	if grant.SubjectID != "" {
		keys = append(keys, s.indexKey("sub", grant.SubjectID))
	}
	if grant.SessionID != "" {
		keys = append(keys, s.indexKey("sid", grant.SessionID))
	}
	return keys
}

func (s *PersistedGrantStore) Store(ctx context.Context, grant *domain.PersistedGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	var ttl time.Duration
	if grant.Expiration != nil {
		ttl = grant.Expiration.Sub(s.clock.Now())
		if ttl <= 0 {
			return nil
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.grantKey(grant.Key), data, ttl)
	for _, idx := range s.indexKeys(grant) {
		pipe.SAdd(ctx, idx, grant.Key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store grant: %w", err)
	}
	return nil
}

func (s *PersistedGrantStore) Get(ctx context.Context, key string) (*domain.PersistedGrant, error) {
	data, err := s.client.Get(ctx, s.grantKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return decodeGrant(data)
}

func (s *PersistedGrantStore) GetAll(ctx context.Context, filter domain.PersistedGrantFilter) ([]*domain.PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	idx := s.selectIndex(filter)
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read grant index: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.grantKey(k)
	}
	values, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}

	var grants []*domain.PersistedGrant
	var stale []interface{}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		grant, err := decodeGrant([]byte(str))
		if err != nil {
			s.logger.Warn("Skipping undecodable grant", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if filter.Matches(grant) {
			grants = append(grants, grant)
		}
	}
	if len(stale) > 0 {
		s.warnOnCleanupErr(s.client.SRem(ctx, idx, stale...).Err(), idx)
	}
	return grants, nil
}

func (s *PersistedGrantStore) Remove(ctx context.Context, key string) error {
	_, err := s.Take(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrPersistedGrantNotFound) {
		return err
	}
	return nil
}

func (s *PersistedGrantStore) RemoveAll(ctx context.Context, filter domain.PersistedGrantFilter) error {
	grants, err := s.GetAll(ctx, filter)
	if err != nil {
		return err
	}
	for _, grant := range grants {
		if err := s.Remove(ctx, grant.Key); err != nil {
			return err
		}
	}
	return nil
}

// Take uses GETDEL so only one caller observes the grant.
func (s *PersistedGrantStore) Take(ctx context.Context, key string) (*domain.PersistedGrant, error) {
	data, err := s.client.GetDel(ctx, s.grantKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		return nil, fmt.Errorf("failed to take grant: %w", err)
	}
	grant, err := decodeGrant(data)
	if err != nil {
		return nil, err
	}
	for _, idx := range s.indexKeys(grant) {
		s.warnOnCleanupErr(s.client.SRem(ctx, idx, grant.Key).Err(), idx)
	}
	return grant, nil
}

// selectIndex picks the narrowest index set for the filter
func (s *PersistedGrantStore) selectIndex(filter domain.PersistedGrantFilter) string {
	switch {
	case filter.SessionID != "":
		return s.indexKey("sid", filter.SessionID)
	case filter.SubjectID != "":
		return s.indexKey("sub", filter.SubjectID)
	case filter.ClientID != "":
		return s.indexKey("client", filter.ClientID)
	default:
		return s.indexKey("type", filter.Type)
	}
}

func (s *PersistedGrantStore) warnOnCleanupErr(err error, key string) {
	if err != nil {
		s.logger.Warn("Grant index cleanup failed", zap.String("index", key), zap.Error(err))
	}
}

func decodeGrant(data []byte) (*domain.PersistedGrant, error) {
	grant := &domain.PersistedGrant{}
	if err := json.Unmarshal(data, grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	return grant, nil
}
