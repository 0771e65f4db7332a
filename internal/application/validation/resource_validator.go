package validation

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// ResourceValidator resolves requested scopes into resources the client may use.
type ResourceValidator struct {
	resources domain.ResourceStore
	logger    *zap.Logger
}

func NewResourceValidator(resources domain.ResourceStore, logger *zap.Logger) *ResourceValidator {
	return &ResourceValidator{
		resources: resources,
		logger:    logger,
	}
}

// Validate checks every scope exists, is enabled and is allowed for client
func (v *ResourceValidator) Validate(ctx context.Context, client *domain.Client, scopes []string) (*domain.Resources, *apperrors.ProtocolError, error) {
	if len(scopes) == 0 {
		return nil, apperrors.NewInvalidScope("no scopes requested"), nil
	}

	result := &domain.Resources{}
	var names []string
	for _, scope := range scopes {
		if scope == domain.ScopeOfflineAccess {
			if !client.AllowOfflineAccess {
				v.logger.Debug("Offline access not allowed", zap.String("client_id", client.ClientID))
				return nil, apperrors.NewInvalidScope("offline_access is not allowed for this client"), nil
			}
			result.OfflineAccess = true
			continue
		}
		if !client.HasScope(scope) {
			v.logger.Debug("Scope not allowed", zap.String("client_id", client.ClientID), zap.String("scope", scope))
			return nil, apperrors.NewInvalidScope("invalid scope: " + scope), nil
		}
		names = append(names, scope)
	}
	if len(names) == 0 {
		return result, nil, nil
	}

	identity, err := v.resources.FindIdentityResourcesByScopeName(ctx, names)
	if err != nil {
		return nil, nil, err
	}
	apiScopes, err := v.resources.FindApiScopesByName(ctx, names)
	if err != nil {
		return nil, nil, err
	}

	found := map[string]bool{}
	for _, ir := range identity {
		if ir.Enabled {
			result.IdentityResources = append(result.IdentityResources, ir)
			found[ir.Name] = true
		}
	}
	var apiScopeNames []string
	for _, s := range apiScopes {
		if s.Enabled && !found[s.Name] {
			result.ApiScopes = append(result.ApiScopes, s)
			apiScopeNames = append(apiScopeNames, s.Name)
			found[s.Name] = true
		}
	}
	for _, name := range names {
		if !found[name] {
			v.logger.Debug("Unknown or disabled scope", zap.String("scope", name))
			return nil, apperrors.NewInvalidScope("invalid scope: " + name), nil
		}
	}

	if len(apiScopeNames) > 0 {
		apis, err := v.resources.FindApiResourcesByScopeName(ctx, apiScopeNames)
		if err != nil {
			return nil, nil, err
		}
		for _, api := range apis {
			if api.Enabled {
				result.ApiResources = append(result.ApiResources, api)
			}
		}
	}
	return result, nil, nil
}
