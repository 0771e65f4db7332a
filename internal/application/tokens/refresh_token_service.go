package tokens

import (
	"context"
	"errors"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

const refreshTokenVersion = 4

// RefreshTokenService issues, rotates and validates refresh tokens.
type RefreshTokenService struct {
	store   *grants.RefreshTokenStore
	profile domain.ProfileService
	clock   domain.Clock
	logger  *zap.Logger
}

func NewRefreshTokenService(store *grants.RefreshTokenStore, profile domain.ProfileService, clock domain.Clock, logger *zap.Logger) *RefreshTokenService {
	return &RefreshTokenService{
		store:   store,
		profile: profile,
		clock:   clock,
		logger:  logger,
	}
}

// CreateRefreshToken stores a refresh token wrapping accessToken and returns its handle
func (s *RefreshTokenService) CreateRefreshToken(ctx context.Context, accessToken *domain.Token, client *domain.Client) (string, error) {
	lifetime := client.AbsoluteRefreshTokenLifetime
	if client.RefreshTokenExpiration == domain.TokenExpirationSliding {
		lifetime = client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && lifetime > client.AbsoluteRefreshTokenLifetime {
			lifetime = client.AbsoluteRefreshTokenLifetime
		}
	}

	handle, err := s.store.StoreRefreshToken(ctx, &domain.RefreshToken{
		CreationTime: s.clock.Now(),
		Lifetime:     lifetime,
		AccessToken:  accessToken,
		Version:      refreshTokenVersion,
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("Refresh token created", zap.String("client_id", client.ClientID), zap.Duration("lifetime", lifetime))
	return handle, nil
}

// UpdateRefreshToken applies the client's usage and expiration policy after a refresh.
// OneTimeOnly tokens are re-stored under a new handle, ReUse tokens keep theirs.
// Sliding lifetimes are extended from now but never beyond the absolute lifetime.
func (s *RefreshTokenService) UpdateRefreshToken(ctx context.Context, handle string, token *domain.RefreshToken, client *domain.Client) (string, error) {
	if client.RefreshTokenExpiration == domain.TokenExpirationSliding {
		lifetime := s.clock.Now().Sub(token.CreationTime) + client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && lifetime > client.AbsoluteRefreshTokenLifetime {
			lifetime = client.AbsoluteRefreshTokenLifetime
		}
		token.Lifetime = lifetime
	}

	if client.RefreshTokenUsage == domain.TokenUsageOneTimeOnly {
		newHandle, err := s.store.StoreRefreshToken(ctx, token)
		if err != nil {
			return "", err
		}
		s.logger.Debug("Refresh token rotated", zap.String("client_id", client.ClientID))
		return newHandle, nil
	}

	if err := s.store.UpdateRefreshToken(ctx, handle, token); err != nil {
		return "", err
	}
	return handle, nil
}

// ValidateRefreshToken loads the refresh token behind handle for client. OneTimeOnly
// handles are consumed atomically so concurrent redemptions cannot both succeed, and
// are put back when the request is rejected.
func (s *RefreshTokenService) ValidateRefreshToken(ctx context.Context, handle string, client *domain.Client) (*domain.RefreshToken, *apperrors.ProtocolError, error) {
	var (
		token *domain.RefreshToken
		err   error
	)
	if client.RefreshTokenUsage == domain.TokenUsageOneTimeOnly {
		token, err = s.store.TakeRefreshToken(ctx, handle)
	} else {
		token, err = s.store.GetRefreshToken(ctx, handle)
	}
	if err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			s.logger.Debug("Refresh token not found", zap.String("client_id", client.ClientID))
			return nil, apperrors.NewInvalidGrant(""), nil
		}
		return nil, nil, err
	}

	pe, err := s.check(ctx, token, client)
	if err != nil || pe != nil {
		if restoreErr := s.RestoreRefreshToken(ctx, handle, token, client); restoreErr != nil {
			return nil, nil, restoreErr
		}
		return nil, pe, err
	}
	return token, nil, nil
}

// RestoreRefreshToken puts a consumed OneTimeOnly token back under its handle after the
// request redeeming it failed. ReUse tokens were never removed.
func (s *RefreshTokenService) RestoreRefreshToken(ctx context.Context, handle string, token *domain.RefreshToken, client *domain.Client) error {
	if client.RefreshTokenUsage != domain.TokenUsageOneTimeOnly {
		return nil
	}
	if err := s.store.UpdateRefreshToken(ctx, handle, token); err != nil {
		s.logger.Error("Failed to restore refresh token", zap.String("client_id", client.ClientID), zap.Error(err))
		return err
	}
	s.logger.Debug("Refresh token restored", zap.String("client_id", client.ClientID))
	return nil
}

func (s *RefreshTokenService) check(ctx context.Context, token *domain.RefreshToken, client *domain.Client) (*apperrors.ProtocolError, error) {
	if token.ClientID() != client.ClientID {
		s.logger.Warn("Refresh token redeemed by another client",
			zap.String("client_id", client.ClientID),
			zap.String("owner", token.ClientID()))
		return apperrors.NewInvalidGrant(""), nil
	}

	if !client.AllowOfflineAccess {
		return apperrors.NewInvalidGrant("client does not allow offline access"), nil
	}

	if sub := token.SubjectID(); sub != "" {
		subject := domain.PrincipalFromClaims(token.AccessToken.Claims)
		active, err := s.profile.IsActive(ctx, subject, client, domain.CallerRefreshTokenValidation)
		if err != nil {
			return nil, err
		}
		if !active {
			s.logger.Debug("Refresh token subject is not active", zap.String("sub", sub))
			return apperrors.NewInvalidGrant(""), nil
		}
	}
	return nil, nil
}
