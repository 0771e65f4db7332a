package tokens

import (
	"context"
	"fmt"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// TokenService creates identity and access tokens and serializes them.
type TokenService struct {
	claims          *ClaimsService
	referenceTokens *grants.ReferenceTokenStore
	signer          domain.TokenSigner
	clock           domain.Clock
	options         domain.Options
	logger          *zap.Logger
}

func NewTokenService(claims *ClaimsService, referenceTokens *grants.ReferenceTokenStore, signer domain.TokenSigner,
	clock domain.Clock, options domain.Options, logger *zap.Logger) *TokenService {
	return &TokenService{
		claims:          claims,
		referenceTokens: referenceTokens,
		signer:          signer,
		clock:           clock,
		options:         options,
		logger:          logger,
	}
}

// CreateIdentityToken builds an identity token for the request's client
func (s *TokenService) CreateIdentityToken(ctx context.Context, req *domain.TokenCreationRequest) (*domain.Token, error) {
	s.logger.Debug("Creating identity token", zap.String("client_id", req.Request.ClientID))

	var claims domain.Claims
	if req.Nonce != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimNonce, req.Nonce))
	}
	if req.AccessTokenToHash != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimAccessTokenHash, HashForIDToken(req.AccessTokenToHash)))
	}
	if req.AuthorizationCodeToHash != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimAuthorizationCodeHash, HashForIDToken(req.AuthorizationCodeToHash)))
	}
	if req.StateHash != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimStateHash, req.StateHash))
	}

	identityClaims, err := s.claims.GetIdentityTokenClaims(ctx, req.Subject, req.Resources, req.IncludeAllIdentityClaims, req.Request)
	if err != nil {
		return nil, err
	}

	client := req.Request.Client
	return &domain.Token{
		Type:            domain.TokenTypeIdentity,
		Issuer:          s.options.IssuerURI,
		Audiences:       []string{client.ClientID},
		CreationTime:    s.clock.Now(),
		Lifetime:        client.IdentityTokenLifetime,
		ClientID:        client.ClientID,
		AccessTokenType: domain.AccessTokenTypeJwt,
		Claims:          append(claims, identityClaims...),
	}, nil
}

// CreateAccessToken builds an access token whose audiences are the granted API resources
func (s *TokenService) CreateAccessToken(ctx context.Context, req *domain.TokenCreationRequest) (*domain.Token, error) {
	s.logger.Debug("Creating access token", zap.String("client_id", req.Request.ClientID))

	claims, err := s.claims.GetAccessTokenClaims(ctx, req.Subject, req.Resources, req.Request)
	if err != nil {
		return nil, err
	}

	var audiences []string
	seen := map[string]bool{}
	for _, api := range req.Resources.ApiResources {
		if !seen[api.Name] {
			seen[api.Name] = true
			audiences = append(audiences, api.Name)
		}
	}
	if s.options.EmitStaticAudienceClaim {
		audiences = append(audiences, s.options.IssuerURI+"/resources")
	}

	tokenType := req.Request.AccessTokenType
	if tokenType == "" {
		tokenType = domain.AccessTokenTypeJwt
	}
	return &domain.Token{
		Type:            domain.TokenTypeAccessToken,
		Issuer:          s.options.IssuerURI,
		Audiences:       audiences,
		CreationTime:    s.clock.Now(),
		Lifetime:        req.Request.AccessTokenLifetime,
		ClientID:        req.Request.ClientID,
		AccessTokenType: tokenType,
		Claims:          claims,
	}, nil
}

// CreateSecurityToken turns token into its wire form: a signed JWT, or the handle of a
// stored reference token.
func (s *TokenService) CreateSecurityToken(ctx context.Context, token *domain.Token) (string, error) {
	if token.Type == domain.TokenTypeAccessToken && token.AccessTokenType == domain.AccessTokenTypeReference {
		handle, err := s.referenceTokens.StoreReferenceToken(ctx, token)
		if err != nil {
			return "", fmt.Errorf("storing reference token: %w", err)
		}
		return handle, nil
	}

	signed, err := s.signer.Sign(Payload(token))
	if err != nil {
		s.logger.Error("Failed to sign token", zap.String("type", token.Type), zap.String("client_id", token.ClientID), zap.Error(err))
		return "", err
	}
	return signed, nil
}
