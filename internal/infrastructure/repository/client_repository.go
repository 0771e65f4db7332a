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

// ClientRepository implements domain.ClientRepository using PostgreSQL.
// The whole client document lives in a JSONB column.
type ClientRepository struct {
	db     *database.Postgres
	logger *zap.Logger
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(db *database.Postgres, logger *zap.Logger) *ClientRepository {
	return &ClientRepository{db: db, logger: logger}
}

func (r *ClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	data, err := json.Marshal(client)
	if err != nil {
		return err
	}

	_, err = r.db.ExecRaw(ctx, `
		INSERT INTO clients (client_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, client.ClientID, data, client.CreatedAt, client.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrClientAlreadyExists
		}
		r.logger.Error("failed to create client", zap.String("client_id", client.ClientID), zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	return nil
}

func (r *ClientRepository) FindClientByID(ctx context.Context, clientID string) (*domain.Client, error) {
	var data []byte
	err := r.db.QueryRow(ctx, "SELECT data FROM clients WHERE client_id = $1", clientID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		r.logger.Error("failed to find client by id", zap.String("client_id", clientID), zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}

	client := &domain.Client{}
	if err := json.Unmarshal(data, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (r *ClientRepository) UpdateClient(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}

	tag, err := r.db.ExecRaw(ctx, `
		UPDATE clients SET data = $1, updated_at = $2 WHERE client_id = $3
	`, data, client.UpdatedAt, client.ClientID)
	if err != nil {
		r.logger.Error("failed to update client", zap.String("client_id", client.ClientID), zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) DeleteClient(ctx context.Context, clientID string) error {
	tag, err := r.db.ExecRaw(ctx, "DELETE FROM clients WHERE client_id = $1", clientID)
	if err != nil {
		r.logger.Error("failed to delete client", zap.String("client_id", clientID), zap.Error(err))
		return domain.ErrDatabaseQuery
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) ListClients(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.db.Query(ctx, "SELECT data FROM clients ORDER BY client_id")
	if err != nil {
		r.logger.Error("failed to list clients", zap.Error(err))
		return nil, domain.ErrDatabaseQuery
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, domain.ErrDatabaseQuery
		}
		client := &domain.Client{}
		if err := json.Unmarshal(data, client); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}
