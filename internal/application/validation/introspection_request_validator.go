package validation

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// IntrospectionValidationResult is the outcome of an introspection request.
// An unknown, expired or foreign token is not an error, it is simply inactive.
type IntrospectionValidationResult struct {
	Api      *domain.ApiResource
	Token    string
	IsActive bool
	Claims   domain.Claims
	Error    *apperrors.ProtocolError
}

// IntrospectionRequestValidator validates introspection requests.
type IntrospectionRequestValidator struct {
	tokens *TokenValidator
	logger *zap.Logger
}

func NewIntrospectionRequestValidator(tokens *TokenValidator, logger *zap.Logger) *IntrospectionRequestValidator {
	return &IntrospectionRequestValidator{tokens: tokens, logger: logger}
}

// Validate introspects req.Token on behalf of api. The token is only active for the
// API when it carries one of the API's scopes.
func (v *IntrospectionRequestValidator) Validate(ctx context.Context, req *TokenTypeHintRequest, api *domain.ApiResource) (*IntrospectionValidationResult, error) {
	if req.Token == "" {
		return &IntrospectionValidationResult{Api: api, Error: apperrors.NewInvalidRequest("missing token")}, nil
	}

	result, err := v.tokens.ValidateAccessToken(ctx, req.Token, "")
	if err != nil {
		return nil, err
	}
	inactive := &IntrospectionValidationResult{Api: api, Token: req.Token}
	if result.Error != nil {
		v.logger.Debug("Introspected token is not valid", zap.String("api", api.Name), zap.String("reason", result.Error.Description))
		return inactive, nil
	}

	for _, scope := range result.Claims.Values(domain.ClaimScope) {
		if containsValue(api.Scopes, scope) {
			return &IntrospectionValidationResult{Api: api, Token: req.Token, IsActive: true, Claims: result.Claims}, nil
		}
	}
	v.logger.Debug("Introspected token has no scope of the api", zap.String("api", api.Name))
	return inactive, nil
}
