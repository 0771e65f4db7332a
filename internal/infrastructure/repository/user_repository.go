package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/database"
	"go.uber.org/zap"
)

const userColumns = `subject_id, username, password, provider_name, provider_subject_id,
	is_active, claims, created_at, updated_at`

// UserRepository implements domain.UserStore using PostgreSQL
type UserRepository struct {
	logger *zap.Logger
	db     *database.Postgres
}

func NewUserRepository(db *database.Postgres, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	claims, err := json.Marshal(user.Claims)
	if err != nil {
		return err
	}

	_, err = r.db.ExecRaw(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.SubjectID, user.Username, user.Password, nullable(user.ProviderName), nullable(user.ProviderSubjectID),
		user.IsActive, claims, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateKey
		}
		r.logger.Error("failed to create user", zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	return nil
}

func (r *UserRepository) FindBySubjectID(ctx context.Context, subjectID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE subject_id = $1`, subjectID)
	return r.scanUser(row)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return r.scanUser(row)
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var providerName, providerSubjectID *string
	var claims []byte
	err := row.Scan(&user.SubjectID, &user.Username, &user.Password, &providerName, &providerSubjectID,
		&user.IsActive, &claims, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		r.logger.Error("failed to find user", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	user.ProviderName = deref(providerName)
	user.ProviderSubjectID = deref(providerSubjectID)
	if err := json.Unmarshal(claims, &user.Claims); err != nil {
		return nil, err
	}
	return user, nil
}
