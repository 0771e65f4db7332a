package validation

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// ValidatedEndSessionRequest is an end session request that passed validation.
type ValidatedEndSessionRequest struct {
	domain.ValidatedRequest
	PostLogoutRedirectURI string
	State                 string
	// ClientIDs are the clients the session signed into
	ClientIDs []string
}

// EndSessionValidationResult is the outcome of end session validation.
type EndSessionValidationResult struct {
	ValidatedRequest *ValidatedEndSessionRequest
	Error            *apperrors.ProtocolError
}

// EndSessionRequestValidator validates logout requests.
type EndSessionRequestValidator struct {
	tokens  *TokenValidator
	options domain.Options
	logger  *zap.Logger
}

func NewEndSessionRequestValidator(tokens *TokenValidator, options domain.Options, logger *zap.Logger) *EndSessionRequestValidator {
	return &EndSessionRequestValidator{tokens: tokens, options: options, logger: logger}
}

// Validate checks a logout request for the current subject, which may be nil.
// A post logout redirect URI is only honoured with an id_token_hint naming a client
// that registered it.
func (v *EndSessionRequestValidator) Validate(ctx context.Context, req *EndSessionRequest, subject *domain.Principal) (*EndSessionValidationResult, error) {
	fail := func(description string) (*EndSessionValidationResult, error) {
		v.logger.Debug("End session request rejected", zap.String("reason", description))
		return &EndSessionValidationResult{Error: apperrors.NewInvalidRequest(description)}, nil
	}

	validated := &ValidatedEndSessionRequest{}
	if subject.IsAuthenticated() {
		validated.Subject = subject
		validated.SessionID = subject.SessionID
	}

	if req.IDTokenHint != "" {
		hint, err := v.tokens.ValidateIdentityToken(ctx, req.IDTokenHint, "", false)
		if err != nil {
			return nil, err
		}
		if hint.Error != nil {
			return fail("invalid id_token_hint")
		}
		if subject.IsAuthenticated() && hint.Claims.Value(domain.ClaimSubject) != subject.SubjectID {
			return fail("id_token_hint does not match the current user")
		}
		validated.SetClient(hint.Client)
		if validated.SessionID == "" {
			validated.SessionID = hint.Claims.Value(domain.ClaimSessionID)
		}
	}

	if req.PostLogoutRedirectURI != "" {
		if len(req.PostLogoutRedirectURI) > v.options.InputLengthRestrictions.RedirectURI {
			return fail("post_logout_redirect_uri too long")
		}
		if validated.Client == nil {
			return fail("post_logout_redirect_uri requires id_token_hint")
		}
		if !validated.Client.HasPostLogoutRedirectURI(req.PostLogoutRedirectURI) {
			return fail("invalid post_logout_redirect_uri")
		}
		validated.PostLogoutRedirectURI = req.PostLogoutRedirectURI

		if len(req.State) > v.options.InputLengthRestrictions.State {
			return fail("state too long")
		}
		validated.State = req.State
	}

	return &EndSessionValidationResult{ValidatedRequest: validated}, nil
}
