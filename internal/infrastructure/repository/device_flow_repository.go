package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/database"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// DeviceFlowRepository implements domain.DeviceFlowStore using PostgreSQL
type DeviceFlowRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewDeviceFlowRepository creates a new DeviceFlowRepository
func NewDeviceFlowRepository(db *database.Postgres, logger *zap.Logger) *DeviceFlowRepository {
	return &DeviceFlowRepository{db: db, logger: logger}
}

func (r *DeviceFlowRepository) StoreDeviceAuthorization(ctx context.Context, deviceCode, userCode string, data *domain.DeviceCode) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	// a user code held by an expired authorization is taken over
	tag, err := r.db.ExecRaw(ctx, `
		INSERT INTO device_codes (user_code, device_code, subject_id, session_id, client_id, creation_time, expiration, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_code) DO UPDATE SET
			device_code = EXCLUDED.device_code,
			subject_id = EXCLUDED.subject_id,
			session_id = EXCLUDED.session_id,
			client_id = EXCLUDED.client_id,
			creation_time = EXCLUDED.creation_time,
			expiration = EXCLUDED.expiration,
			data = EXCLUDED.data
		WHERE device_codes.expiration <= EXCLUDED.creation_time
	`, userCode, deviceCode, nullable(subjectOf(data)), nullable(data.SessionID), data.ClientID,
		data.CreationTime, data.Expiration(), payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateKey
		}
		r.logger.Error("failed to store device authorization", zap.String("client_id", data.ClientID), zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateKey
	}
	return nil
}

// RemoveExpired deletes device authorizations that expired at or before now
func (r *DeviceFlowRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.ExecRaw(ctx, "DELETE FROM device_codes WHERE expiration <= $1", now)
	if err != nil {
		r.logger.Error("failed to remove expired device authorizations", zap.Error(err))
		return 0, domain.ErrDatabaseQuery
	}
	return tag.RowsAffected(), nil
}

func (r *DeviceFlowRepository) FindByUserCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	return r.find(ctx, "SELECT data FROM device_codes WHERE user_code = $1", userCode)
}

func (r *DeviceFlowRepository) FindByDeviceCode(ctx context.Context, deviceCode string) (*domain.DeviceCode, error) {
	return r.find(ctx, "SELECT data FROM device_codes WHERE device_code = $1", deviceCode)
}

func (r *DeviceFlowRepository) UpdateByUserCode(ctx context.Context, userCode string, data *domain.DeviceCode) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tag, err := r.db.ExecRaw(ctx, `
		UPDATE device_codes SET subject_id = $1, session_id = $2, data = $3
		WHERE user_code = $4
	`, nullable(subjectOf(data)), nullable(data.SessionID), payload, userCode)
	if err != nil {
		r.logger.Error("failed to update device authorization", zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPersistedGrantNotFound
	}
	return nil
}

func (r *DeviceFlowRepository) RemoveByDeviceCode(ctx context.Context, deviceCode string) error {
	tag, err := r.db.ExecRaw(ctx, "DELETE FROM device_codes WHERE device_code = $1", deviceCode)
	if err != nil {
		r.logger.Error("failed to remove device authorization", zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPersistedGrantNotFound
	}
	return nil
}

func (r *DeviceFlowRepository) find(ctx context.Context, query, code string) (*domain.DeviceCode, error) {
	var payload []byte
	if err := r.db.QueryRow(ctx, query, code).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		r.logger.Error("failed to find device authorization", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	data := &domain.DeviceCode{}
	if err := json.Unmarshal(payload, data); err != nil {
		return nil, err
	}
	return data, nil
}

func subjectOf(data *domain.DeviceCode) string {
	if data.Subject == nil {
		return ""
	}
	return data.Subject.SubjectID
}
