package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/database"
	"go.uber.org/zap"
)

const persistedGrantColumns = `key, type, subject_id, session_id, client_id, description,
	creation_time, expiration, consumed_time, data`

// PersistedGrantRepository implements domain.PersistedGrantStore using PostgreSQL
type PersistedGrantRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewPersistedGrantRepository creates a new PersistedGrantRepository
func NewPersistedGrantRepository(db *database.Postgres, logger *zap.Logger) *PersistedGrantRepository {
	return &PersistedGrantRepository{db: db, logger: logger}
}

func (r *PersistedGrantRepository) Store(ctx context.Context, grant *domain.PersistedGrant) error {
	err := r.db.Exec(ctx, `
		INSERT INTO persisted_grants (`+persistedGrantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			type = EXCLUDED.type,
			subject_id = EXCLUDED.subject_id,
			session_id = EXCLUDED.session_id,
			client_id = EXCLUDED.client_id,
			description = EXCLUDED.description,
			creation_time = EXCLUDED.creation_time,
			expiration = EXCLUDED.expiration,
			consumed_time = EXCLUDED.consumed_time,
			data = EXCLUDED.data
	`, grant.Key, grant.Type, nullable(grant.SubjectID), nullable(grant.SessionID), grant.ClientID,
		nullable(grant.Description), grant.CreationTime, grant.Expiration, grant.ConsumedTime, grant.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseQuery, err)
	}
	return nil
}

func (r *PersistedGrantRepository) Get(ctx context.Context, key string) (*domain.PersistedGrant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+persistedGrantColumns+` FROM persisted_grants WHERE key = $1`, key)
	return r.scanOne(row, key)
}

func (r *PersistedGrantRepository) GetAll(ctx context.Context, filter domain.PersistedGrantFilter) ([]*domain.PersistedGrant, error) {
	where, args, err := filterClause(filter)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+persistedGrantColumns+` FROM persisted_grants WHERE `+where, args...)
	if err != nil {
		r.logger.Error("failed to query persisted grants", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	defer rows.Close()

	var grants []*domain.PersistedGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			r.logger.Error("failed to scan persisted grant", zap.Error(err))
			return nil, domain.ErrDatabaseQuery
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDatabaseQuery
	}
	return grants, nil
}

func (r *PersistedGrantRepository) Remove(ctx context.Context, key string) error {
	if err := r.db.Exec(ctx, "DELETE FROM persisted_grants WHERE key = $1", key); err != nil {
		return domain.ErrDatabaseQuery
	}
	return nil
}

func (r *PersistedGrantRepository) RemoveAll(ctx context.Context, filter domain.PersistedGrantFilter) error {
	where, args, err := filterClause(filter)
	if err != nil {
		return err
	}
	tag, err := r.db.ExecRaw(ctx, "DELETE FROM persisted_grants WHERE "+where, args...)
	if err != nil {
		r.logger.Error("failed to remove persisted grants", zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	r.logger.Debug("Removed persisted grants", zap.Int64("count", tag.RowsAffected()))
	return nil
}

// RemoveExpired deletes grants that expired at or before now. Grants without expiration are kept.
func (r *PersistedGrantRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.ExecRaw(ctx, "DELETE FROM persisted_grants WHERE expiration <= $1", now)
	if err != nil {
		r.logger.Error("failed to remove expired persisted grants", zap.Error(err))
		return 0, domain.ErrDatabaseQuery
	}
	return tag.RowsAffected(), nil
}

// Take relies on DELETE ... RETURNING so concurrent callers cannot both see the row.
func (r *PersistedGrantRepository) Take(ctx context.Context, key string) (*domain.PersistedGrant, error) {
	row := r.db.QueryRow(ctx, `DELETE FROM persisted_grants WHERE key = $1 RETURNING `+persistedGrantColumns, key)
	return r.scanOne(row, key)
}

func (r *PersistedGrantRepository) scanOne(row pgx.Row, key string) (*domain.PersistedGrant, error) {
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPersistedGrantNotFound
		}
		r.logger.Error("failed to read persisted grant", zap.String("key", key), zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	return grant, nil
}

func scanGrant(row pgx.Row) (*domain.PersistedGrant, error) {
	grant := &domain.PersistedGrant{}
	var subjectID, sessionID, description *string
	err := row.Scan(&grant.Key, &grant.Type, &subjectID, &sessionID, &grant.ClientID, &description,
		&grant.CreationTime, &grant.Expiration, &grant.ConsumedTime, &grant.Data)
	if err != nil {
		return nil, err
	}
	grant.SubjectID = deref(subjectID)
	grant.SessionID = deref(sessionID)
	grant.Description = deref(description)
	return grant, nil
}

// filterClause builds an AND-ed WHERE clause from the non-empty filter fields
func filterClause(filter domain.PersistedGrantFilter) (string, []interface{}, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}

	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("subject_id", filter.SubjectID)
	add("session_id", filter.SessionID)
	add("client_id", filter.ClientID)
	add("type", filter.Type)

	return strings.Join(conds, " AND "), args, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
