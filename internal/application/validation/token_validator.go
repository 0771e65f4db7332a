package validation

import (
	"context"
	"errors"
	"strings"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// TokenValidationResult is the outcome of validating an access or identity token.
type TokenValidationResult struct {
	Claims domain.Claims
	Client *domain.Client
	// ReferenceToken is set when the token was a reference handle
	ReferenceToken *domain.Token
	Error          *apperrors.ProtocolError
}

// TokenValidator validates tokens issued by this server.
type TokenValidator struct {
	signer          domain.TokenSigner
	referenceTokens *grants.ReferenceTokenStore
	clients         domain.ClientStore
	profile         domain.ProfileService
	options         domain.Options
	logger          *zap.Logger
}

func NewTokenValidator(signer domain.TokenSigner, referenceTokens *grants.ReferenceTokenStore, clients domain.ClientStore,
	profile domain.ProfileService, options domain.Options, logger *zap.Logger) *TokenValidator {
	return &TokenValidator{
		signer:          signer,
		referenceTokens: referenceTokens,
		clients:         clients,
		profile:         profile,
		options:         options,
		logger:          logger,
	}
}

func invalidToken(description string) *TokenValidationResult {
	return &TokenValidationResult{Error: apperrors.NewInvalidToken(description)}
}

// ValidateAccessToken validates a JWT or reference access token. When expectedScope is
// set the token must carry it.
func (v *TokenValidator) ValidateAccessToken(ctx context.Context, token, expectedScope string) (*TokenValidationResult, error) {
	if token == "" || len(token) > v.options.InputLengthRestrictions.Jwt {
		return invalidToken("invalid token"), nil
	}

	result := &TokenValidationResult{}
	if strings.Contains(token, ".") {
		payload, err := v.signer.ValidateToken(token, domain.TokenValidationOptions{Issuer: v.options.IssuerURI})
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				return invalidToken("token expired"), nil
			}
			return invalidToken("invalid token"), nil
		}
		result.Claims = tokens.ClaimsFromPayload(payload)
		// identity tokens carry no client_id and are rejected below
	} else {
		if len(token) > v.options.InputLengthRestrictions.TokenHandle {
			return invalidToken("invalid token"), nil
		}
		stored, err := v.referenceTokens.GetReferenceToken(ctx, token)
		if err != nil {
			if errors.Is(err, domain.ErrPersistedGrantNotFound) {
				return invalidToken("invalid token"), nil
			}
			return nil, err
		}
		if stored.Type != domain.TokenTypeAccessToken {
			return invalidToken("invalid token"), nil
		}
		result.ReferenceToken = stored
		result.Claims = tokens.ClaimsFromPayload(tokens.Payload(stored))
	}

	clientID := result.Claims.Value(domain.ClaimClientID)
	if clientID == "" {
		return invalidToken("token has no client"), nil
	}
	client, err := v.clients.FindClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return invalidToken("client deleted"), nil
		}
		return nil, err
	}
	if !client.Enabled {
		return invalidToken("client disabled"), nil
	}
	result.Client = client

	if subject := domain.PrincipalFromClaims(result.Claims); subject != nil {
		active, err := v.profile.IsActive(ctx, subject, client, domain.CallerAccessTokenValidation)
		if err != nil {
			return nil, err
		}
		if !active {
			v.logger.Debug("Access token subject is not active", zap.String("sub", subject.SubjectID))
			return invalidToken("subject is not active"), nil
		}
	}

	if expectedScope != "" && !containsValue(result.Claims.Values(domain.ClaimScope), expectedScope) {
		return &TokenValidationResult{Error: apperrors.NewInsufficientScope("")}, nil
	}
	return result, nil
}

// ValidateIdentityToken validates an identity token issued to clientID, or to any known
// client when clientID is empty. Lifetime is ignored unless validateLifetime is set.
func (v *TokenValidator) ValidateIdentityToken(ctx context.Context, token, clientID string, validateLifetime bool) (*TokenValidationResult, error) {
	if token == "" || len(token) > v.options.InputLengthRestrictions.Jwt {
		return invalidToken("invalid token"), nil
	}

	payload, err := v.signer.ValidateToken(token, domain.TokenValidationOptions{
		Issuer:       v.options.IssuerURI,
		Audience:     clientID,
		AllowExpired: !validateLifetime,
	})
	if err != nil {
		v.logger.Debug("Identity token rejected", zap.String("client_id", clientID), zap.Error(err))
		return invalidToken("invalid identity token"), nil
	}
	claims := tokens.ClaimsFromPayload(payload)

	if clientID == "" {
		audiences := claims.Values(domain.ClaimAudience)
		if len(audiences) != 1 {
			return invalidToken("invalid identity token audience"), nil
		}
		clientID = audiences[0]
	}
	client, err := v.clients.FindClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return invalidToken("unknown client"), nil
		}
		return nil, err
	}
	if !client.Enabled {
		return invalidToken("client disabled"), nil
	}
	return &TokenValidationResult{Claims: claims, Client: client}, nil
}
