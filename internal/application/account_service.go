package application

import (
	"context"
	"errors"
	"strings"

	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"go.uber.org/zap"
)

// AccountService authenticates and registers local accounts.
type AccountService struct {
	users  domain.UserStore
	clock  domain.Clock
	logger *zap.Logger
}

func NewAccountService(users domain.UserStore, clock domain.Clock, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:  users,
		clock:  clock,
		logger: logger,
	}
}

// ValidateCredentials checks a username and password and returns the signed-in principal.
// Unknown users, inactive users and wrong passwords all yield ErrInvalidCredentials.
func (s *AccountService) ValidateCredentials(ctx context.Context, username, pwd string) (*domain.Principal, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug("Unknown username", zap.String("username", username))
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error("Failed to find user", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	if err := password.CheckPassword(pwd, user.Password); err != nil {
		s.logger.Debug("Invalid password", zap.String("username", username))
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Debug("Inactive user", zap.String("username", username))
		return nil, domain.ErrInvalidCredentials
	}

	return &domain.Principal{
		SubjectID:             user.SubjectID,
		AuthTime:              s.clock.Now(),
		IdentityProvider:      domain.LocalIdentityProvider,
		AuthenticationMethods: []string{domain.AuthenticationMethodPwd},
	}, nil
}

// Register creates a local account
func (s *AccountService) Register(ctx context.Context, username, pwd string, claims domain.Claims) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || pwd == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := password.HashPassword(pwd)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, domain.ErrInternal
	}

	user := domain.NewUser(username, hash, claims)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, domain.ErrInternal
	}

	s.logger.Info("User registered", zap.String("sub", user.SubjectID))
	return user, nil
}
