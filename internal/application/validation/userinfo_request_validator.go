package validation

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
)

// UserInfoValidationResult is the outcome of a userinfo request.
type UserInfoValidationResult struct {
	Subject     *domain.Principal
	TokenClaims domain.Claims
	Client      *domain.Client
	Error       *apperrors.ProtocolError
}

// ValidateUserInfoRequest checks the bearer token presented to the userinfo endpoint.
// It must be a valid access token carrying the openid scope and a subject.
func ValidateUserInfoRequest(ctx context.Context, tokens *TokenValidator, accessToken string) (*UserInfoValidationResult, error) {
	if accessToken == "" {
		return &UserInfoValidationResult{Error: apperrors.NewInvalidToken("missing access token")}, nil
	}
	result, err := tokens.ValidateAccessToken(ctx, accessToken, domain.ScopeOpenID)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		return &UserInfoValidationResult{Error: result.Error}, nil
	}
	subject := domain.PrincipalFromClaims(result.Claims)
	if subject == nil {
		return &UserInfoValidationResult{Error: apperrors.NewInvalidToken("token contains no subject")}, nil
	}
	return &UserInfoValidationResult{Subject: subject, TokenClaims: result.Claims, Client: result.Client}, nil
}
