package tokens

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// claim types owned by the protocol, never taken from the profile
var protocolClaimTypes = []string{
	domain.ClaimSubject, domain.ClaimAuthTime, domain.ClaimIdentityProvider, domain.ClaimAuthenticationMethod,
	domain.ClaimSessionID, domain.ClaimNonce, domain.ClaimAccessTokenHash, domain.ClaimAuthorizationCodeHash,
	domain.ClaimStateHash, domain.ClaimClientID, domain.ClaimScope, domain.ClaimJwtID, domain.ClaimIssuer,
	domain.ClaimAudience, domain.ClaimExpiration, domain.ClaimIssuedAt, domain.ClaimNotBefore, domain.ClaimEvents,
}

// ClaimsService decides which claims go into identity and access tokens.
type ClaimsService struct {
	profile domain.ProfileService
	logger  *zap.Logger
}

func NewClaimsService(profile domain.ProfileService, logger *zap.Logger) *ClaimsService {
	return &ClaimsService{
		profile: profile,
		logger:  logger,
	}
}

// GetIdentityTokenClaims returns the authentication claims of subject plus, when
// includeAllIdentityClaims is set or the client always wants them, the user claims
// of the requested identity resources.
func (s *ClaimsService) GetIdentityTokenClaims(ctx context.Context, subject *domain.Principal, resources *domain.Resources,
	includeAllIdentityClaims bool, request *domain.ValidatedRequest) (domain.Claims, error) {
	claims := subjectClaims(subject, request)

	if !includeAllIdentityClaims && !request.Client.AlwaysIncludeUserClaimsInIDToken {
		return claims, nil
	}

	types := withoutProtocolTypes(resources.IdentityUserClaimTypes())
	if len(types) == 0 {
		return claims, nil
	}

	userClaims, err := s.profile.GetProfileData(ctx, &domain.ProfileDataRequest{
		Subject:             subject,
		Client:              request.Client,
		Caller:              domain.CallerIdentityToken,
		RequestedClaimTypes: types,
		RequestedResources:  resources,
	})
	if err != nil {
		s.logger.Error("Failed to get identity claims", zap.String("sub", subject.SubjectID), zap.Error(err))
		return nil, err
	}
	return append(claims, userClaims.Without(protocolClaimTypes...)...), nil
}

// GetAccessTokenClaims returns the authorization claims of an access token.
// subject is nil for client-only tokens.
func (s *ClaimsService) GetAccessTokenClaims(ctx context.Context, subject *domain.Principal, resources *domain.Resources,
	request *domain.ValidatedRequest) (domain.Claims, error) {
	claims := domain.Claims{domain.NewClaim(domain.ClaimClientID, request.ClientID)}

	if !subject.IsAuthenticated() || request.Client.AlwaysSendClientClaims {
		for _, c := range request.ClientClaims {
			c.Type = request.Client.ClientClaimsPrefix + c.Type
			claims = append(claims, c)
		}
	}

	for _, scope := range resources.ScopeNames() {
		claims = append(claims, domain.NewClaim(domain.ClaimScope, scope))
	}

	if subject.IsAuthenticated() {
		claims = append(claims, subjectClaims(subject, request)...)

		types := withoutProtocolTypes(resources.ApiUserClaimTypes())
		if len(types) > 0 {
			userClaims, err := s.profile.GetProfileData(ctx, &domain.ProfileDataRequest{
				Subject:             subject,
				Client:              request.Client,
				Caller:              domain.CallerAccessToken,
				RequestedClaimTypes: types,
				RequestedResources:  resources,
			})
			if err != nil {
				s.logger.Error("Failed to get access token claims", zap.String("sub", subject.SubjectID), zap.Error(err))
				return nil, err
			}
			claims = append(claims, userClaims.Without(protocolClaimTypes...)...)
		}
	}

	return append(claims, domain.NewClaim(domain.ClaimJwtID, domain.NewID())), nil
}

func subjectClaims(subject *domain.Principal, request *domain.ValidatedRequest) domain.Claims {
	claims := subject.ToClaims()
	sid := subject.SessionID
	if request != nil && request.SessionID != "" {
		sid = request.SessionID
	}
	if sid != "" {
		claims = append(claims, domain.NewClaim(domain.ClaimSessionID, sid))
	}
	return claims
}

func withoutProtocolTypes(types []string) []string {
	excluded := map[string]bool{}
	for _, t := range protocolClaimTypes {
		excluded[t] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		if excluded[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
