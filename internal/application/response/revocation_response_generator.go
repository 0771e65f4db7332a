package response

import (
	"context"
	"errors"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// RevocationResponseGenerator revokes refresh tokens and reference access tokens.
// JWT access tokens cannot be revoked and are silently accepted.
type RevocationResponseGenerator struct {
	referenceTokens *grants.ReferenceTokenStore
	refreshTokens   *grants.RefreshTokenStore
	events          *events.Service
	logger          *zap.Logger
}

func NewRevocationResponseGenerator(referenceTokens *grants.ReferenceTokenStore, refreshTokens *grants.RefreshTokenStore,
	events *events.Service, logger *zap.Logger) *RevocationResponseGenerator {
	return &RevocationResponseGenerator{
		referenceTokens: referenceTokens,
		refreshTokens:   refreshTokens,
		events:          events,
		logger:          logger,
	}
}

// Process revokes the token. Unknown tokens and tokens of other clients are not an
// error so the response never reveals whether a token exists.
func (g *RevocationResponseGenerator) Process(ctx context.Context, result *validation.RevocationValidationResult) error {
	var (
		revoked bool
		err     error
	)
	switch result.TokenTypeHint {
	case domain.TokenTypeAccessToken:
		if revoked, err = g.revokeAccessToken(ctx, result); err == nil && !revoked {
			revoked, err = g.revokeRefreshToken(ctx, result)
		}
	default:
		if revoked, err = g.revokeRefreshToken(ctx, result); err == nil && !revoked {
			revoked, err = g.revokeAccessToken(ctx, result)
		}
	}
	if err != nil {
		return err
	}
	if !revoked {
		g.logger.Debug("Nothing revoked", zap.String("client_id", result.Client.ClientID))
	}
	return nil
}

// revokeAccessToken reports whether the token was a reference token. Tokens owned by
// another client count as found so the lookup stops.
func (g *RevocationResponseGenerator) revokeAccessToken(ctx context.Context, result *validation.RevocationValidationResult) (bool, error) {
	token, err := g.referenceTokens.GetReferenceToken(ctx, result.Token)
	if errors.Is(err, domain.ErrPersistedGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if token.ClientID != result.Client.ClientID {
		g.logger.Warn("Client tried to revoke a reference token it does not own",
			zap.String("client_id", result.Client.ClientID),
			zap.String("owner", token.ClientID))
		return true, nil
	}
	if err := g.referenceTokens.RemoveReferenceToken(ctx, result.Token); err != nil {
		return false, err
	}
	g.events.Raise(ctx, events.TokenRevokedSuccess(result.Client.ClientID, domain.TokenTypeAccessToken))
	return true, nil
}

// revokeRefreshToken removes the refresh token and every reference token issued to the
// same subject and client.
func (g *RevocationResponseGenerator) revokeRefreshToken(ctx context.Context, result *validation.RevocationValidationResult) (bool, error) {
	token, err := g.refreshTokens.GetRefreshToken(ctx, result.Token)
	if errors.Is(err, domain.ErrPersistedGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if token.ClientID() != result.Client.ClientID {
		g.logger.Warn("Client tried to revoke a refresh token it does not own",
			zap.String("client_id", result.Client.ClientID),
			zap.String("owner", token.ClientID()))
		return true, nil
	}
	if err := g.refreshTokens.RemoveRefreshToken(ctx, result.Token); err != nil {
		return false, err
	}
	if sub := token.SubjectID(); sub != "" {
		if err := g.referenceTokens.RemoveReferenceTokens(ctx, sub, token.ClientID()); err != nil {
			return false, err
		}
	}
	g.events.Raise(ctx, events.TokenRevokedSuccess(result.Client.ClientID, domain.TokenTypeRefreshToken))
	return true, nil
}
