package response

import (
	"context"
	"sort"
	"strings"

	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// DiscoveryResponseGenerator builds the OpenID Connect discovery document.
type DiscoveryResponseGenerator struct {
	resources domain.ResourceStore
	options   domain.Options
	logger    *zap.Logger
}

func NewDiscoveryResponseGenerator(resources domain.ResourceStore, options domain.Options, logger *zap.Logger) *DiscoveryResponseGenerator {
	return &DiscoveryResponseGenerator{resources: resources, options: options, logger: logger}
}

// CreateDiscoveryDocument lists the endpoints, the supported protocol features and
// the scopes and claims marked for discovery.
func (g *DiscoveryResponseGenerator) CreateDiscoveryDocument(ctx context.Context) (map[string]interface{}, error) {
	issuer := strings.TrimSuffix(g.options.IssuerURI, "/")
	all, err := g.resources.GetAllResources(ctx)
	if err != nil {
		g.logger.Error("Failed to load resources for discovery", zap.Error(err))
		return nil, err
	}

	var scopes []string
	claims := map[string]bool{}
	for _, ir := range all.IdentityResources {
		if !ir.Enabled || !ir.ShowInDiscoveryDocument {
			continue
		}
		scopes = append(scopes, ir.Name)
		for _, c := range ir.UserClaims {
			claims[c] = true
		}
	}
	for _, s := range all.ApiScopes {
		if s.Enabled && s.ShowInDiscoveryDocument {
			scopes = append(scopes, s.Name)
		}
	}
	scopes = append(scopes, domain.ScopeOfflineAccess)

	claimsSupported := make([]string, 0, len(claims))
	for c := range claims {
		claimsSupported = append(claimsSupported, c)
	}
	sort.Strings(claimsSupported)

	responseTypes := make([]string, 0, len(domain.ResponseTypeToGrantType))
	for rt := range domain.ResponseTypeToGrantType {
		responseTypes = append(responseTypes, rt)
	}
	sort.Strings(responseTypes)

	return map[string]interface{}{
		"issuer":                                issuer,
		"jwks_uri":                              issuer + domain.PathDiscoveryWebKeys,
		"authorization_endpoint":                issuer + domain.PathAuthorize,
		"token_endpoint":                        issuer + domain.PathToken,
		"userinfo_endpoint":                     issuer + domain.PathUserInfo,
		"end_session_endpoint":                  issuer + domain.PathEndSession,
		"revocation_endpoint":                   issuer + domain.PathRevocation,
		"introspection_endpoint":                issuer + domain.PathIntrospection,
		"device_authorization_endpoint":         issuer + domain.PathDeviceAuthorization,
		"frontchannel_logout_supported":         true,
		"frontchannel_logout_session_supported": true,
		"backchannel_logout_supported":          true,
		"backchannel_logout_session_supported":  true,
		"scopes_supported":                      scopes,
		"claims_supported":                      claimsSupported,
		"grant_types_supported": []string{
			domain.GrantTypeAuthorizationCode,
			domain.GrantTypeClientCredentials,
			domain.GrantTypeRefreshToken,
			domain.GrantTypeImplicit,
			domain.GrantTypePassword,
			domain.GrantTypeDeviceCode,
		},
		"response_types_supported":              responseTypes,
		"response_modes_supported":              []string{domain.ResponseModeFormPost, domain.ResponseModeQuery, domain.ResponseModeFragment},
		"token_endpoint_auth_methods_supported": []string{validation.AuthMethodClientSecretBasic, validation.AuthMethodClientSecretPost, validation.AuthMethodPrivateKeyJwt},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"subject_types_supported":               []string{"public"},
		"code_challenge_methods_supported":      []string{domain.CodeChallengeMethodPlain, domain.CodeChallengeMethodSHA256},
		"request_parameter_supported":           false,
	}, nil
}
