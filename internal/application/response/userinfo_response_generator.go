package response

import (
	"context"
	"fmt"

	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// UserInfoResponseGenerator returns the user claims allowed by the token's identity scopes.
type UserInfoResponseGenerator struct {
	resources domain.ResourceStore
	profile   domain.ProfileService
	logger    *zap.Logger
}

func NewUserInfoResponseGenerator(resources domain.ResourceStore, profile domain.ProfileService, logger *zap.Logger) *UserInfoResponseGenerator {
	return &UserInfoResponseGenerator{resources: resources, profile: profile, logger: logger}
}

// Process asks the profile service for the claim types of the granted identity
// resources. sub is always present and always the token subject.
func (g *UserInfoResponseGenerator) Process(ctx context.Context, result *validation.UserInfoValidationResult) (map[string]interface{}, error) {
	scopes := result.TokenClaims.Values(domain.ClaimScope)
	identity, err := g.resources.FindIdentityResourcesByScopeName(ctx, scopes)
	if err != nil {
		return nil, fmt.Errorf("loading identity resources: %w", err)
	}
	resources := &domain.Resources{IdentityResources: identity}

	claims, err := g.profile.GetProfileData(ctx, &domain.ProfileDataRequest{
		Subject:             result.Subject,
		Client:              result.Client,
		Caller:              domain.CallerUserInfo,
		RequestedClaimTypes: resources.IdentityUserClaimTypes(),
		RequestedResources:  resources,
	})
	if err != nil {
		return nil, err
	}

	body := tokens.ClaimsMap(claims.Without(domain.ClaimSubject))
	body[domain.ClaimSubject] = result.Subject.SubjectID
	g.logger.Debug("Userinfo response created",
		zap.String("sub", result.Subject.SubjectID),
		zap.Int("claims", len(body)))
	return body, nil
}
