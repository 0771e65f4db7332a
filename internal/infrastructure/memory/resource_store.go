package memory

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
)

// ResourceStore holds the configured identity resources, API scopes and API resources.
type ResourceStore struct {
	identityResources []*domain.IdentityResource
	apiScopes         []*domain.ApiScope
	apiResources      []*domain.ApiResource
}

// NewResourceStore creates a read-only resource store
func NewResourceStore(identity []*domain.IdentityResource, scopes []*domain.ApiScope, apis []*domain.ApiResource) *ResourceStore {
	return &ResourceStore{identityResources: identity, apiScopes: scopes, apiResources: apis}
}

func (s *ResourceStore) FindIdentityResourcesByScopeName(_ context.Context, names []string) ([]*domain.IdentityResource, error) {
	var out []*domain.IdentityResource
	for _, r := range s.identityResources {
		if in(names, r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResourceStore) FindApiScopesByName(_ context.Context, names []string) ([]*domain.ApiScope, error) {
	var out []*domain.ApiScope
	for _, sc := range s.apiScopes {
		if in(names, sc.Name) {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *ResourceStore) FindApiResourcesByScopeName(_ context.Context, names []string) ([]*domain.ApiResource, error) {
	var out []*domain.ApiResource
	for _, api := range s.apiResources {
		for _, sc := range api.Scopes {
			if in(names, sc) {
				out = append(out, api)
				break
			}
		}
	}
	return out, nil
}

func (s *ResourceStore) FindApiResourcesByName(_ context.Context, names []string) ([]*domain.ApiResource, error) {
	var out []*domain.ApiResource
	for _, api := range s.apiResources {
		if in(names, api.Name) {
			out = append(out, api)
		}
	}
	return out, nil
}

func (s *ResourceStore) GetAllResources(_ context.Context) (*domain.Resources, error) {
	return &domain.Resources{
		IdentityResources: s.identityResources,
		ApiScopes:         s.apiScopes,
		ApiResources:      s.apiResources,
	}, nil
}

func in(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
