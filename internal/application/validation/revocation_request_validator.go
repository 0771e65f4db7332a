package validation

import (
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
)

// RevocationValidationResult is the outcome of a revocation request.
type RevocationValidationResult struct {
	Client        *domain.Client
	Token         string
	TokenTypeHint string
	Error         *apperrors.ProtocolError
}

// ValidateRevocationRequest checks the token and its type hint
func ValidateRevocationRequest(req *TokenTypeHintRequest, client *domain.Client) *RevocationValidationResult {
	if req.Token == "" {
		return &RevocationValidationResult{Error: apperrors.NewInvalidRequest("missing token")}
	}
	switch req.TokenTypeHint {
	case "", domain.TokenTypeAccessToken, domain.TokenTypeRefreshToken:
	default:
		return &RevocationValidationResult{Error: apperrors.New(apperrors.UnsupportedTokenType, "")}
	}
	return &RevocationValidationResult{Client: client, Token: req.Token, TokenTypeHint: req.TokenTypeHint}
}
