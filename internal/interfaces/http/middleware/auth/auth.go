// Package auth protects the administration API with access tokens issued by this server.
package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

type contextKey struct{}

// AccessTokenValidator validates bearer tokens
type AccessTokenValidator interface {
	ValidateAccessToken(ctx context.Context, token, expectedScope string) (*validation.TokenValidationResult, error)
}

type AuthMiddleware struct {
	tokens AccessTokenValidator
	logger *zap.Logger
}

func NewAuthMiddleware(tokens AccessTokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Authenticator rejects requests without a valid bearer access token and stores
// the token claims in the request context
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := jwtauth.TokenFromHeader(r)
		if token == "" {
			httperrors.RespondWithProtocolError(w, apperrors.NewInvalidToken("missing bearer token"))
			return
		}

		result, err := m.tokens.ValidateAccessToken(r.Context(), token, "")
		if err != nil {
			m.logger.Error("Failed to validate access token", zap.Error(err))
			httperrors.RespondWithServerError(w)
			return
		}
		if result.Error != nil {
			m.logger.Debug("Rejected access token", zap.String("reason", result.Error.Description))
			httperrors.RespondWithProtocolError(w, result.Error)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, result.Claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope only lets through tokens that carry scope
func (m *AuthMiddleware) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range ClaimsFromContext(r.Context()).Values(domain.ClaimScope) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Debug("Access token lacks the required scope", zap.String("scope", scope))
			httperrors.RespondWithProtocolError(w, apperrors.NewInsufficientScope("scope "+scope+" required"))
		})
	}
}

// ClaimsFromContext returns the claims stored by Authenticator
func ClaimsFromContext(ctx context.Context) domain.Claims {
	claims, _ := ctx.Value(contextKey{}).(domain.Claims)
	return claims
}
