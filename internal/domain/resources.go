package domain

// IdentityResource is a named group of user claims requestable through a scope.
type IdentityResource struct {
	Name                    string   `json:"name" yaml:"name"`
	DisplayName             string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description             string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled                 bool     `json:"enabled" yaml:"enabled"`
	Required                bool     `json:"required" yaml:"required"`
	Emphasize               bool     `json:"emphasize" yaml:"emphasize"`
	ShowInDiscoveryDocument bool     `json:"show_in_discovery_document" yaml:"show_in_discovery_document"`
	UserClaims              []string `json:"user_claims" yaml:"user_claims"`
}

// ApiScope is a scope granting access to an API.
type ApiScope struct {
	Name                    string   `json:"name" yaml:"name"`
	DisplayName             string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description             string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled                 bool     `json:"enabled" yaml:"enabled"`
	Required                bool     `json:"required" yaml:"required"`
	Emphasize               bool     `json:"emphasize" yaml:"emphasize"`
	ShowInDiscoveryDocument bool     `json:"show_in_discovery_document" yaml:"show_in_discovery_document"`
	UserClaims              []string `json:"user_claims,omitempty" yaml:"user_claims,omitempty"`
}

// ApiResource is a protected API. Its name becomes the access token audience.
type ApiResource struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Scopes      []string `json:"scopes" yaml:"scopes"`
	UserClaims  []string `json:"user_claims,omitempty" yaml:"user_claims,omitempty"`
	ApiSecrets  []Secret `json:"api_secrets,omitempty" yaml:"api_secrets,omitempty"`
}

// Resources is the resolved set of resources for a request.
type Resources struct {
	IdentityResources []*IdentityResource
	ApiResources      []*ApiResource
	ApiScopes         []*ApiScope
	OfflineAccess     bool
}

// ScopeNames lists every scope represented by the resources, offline_access included
func (r *Resources) ScopeNames() []string {
	var names []string
	for _, ir := range r.IdentityResources {
		names = append(names, ir.Name)
	}
	for _, s := range r.ApiScopes {
		names = append(names, s.Name)
	}
	if r.OfflineAccess {
		names = append(names, ScopeOfflineAccess)
	}
	return names
}

// IsOpenID reports whether the openid identity resource is included
func (r *Resources) IsOpenID() bool {
	for _, ir := range r.IdentityResources {
		if ir.Name == ScopeOpenID {
			return true
		}
	}
	return false
}

// Filter returns the subset of the resources whose scope names are listed
func (r *Resources) Filter(scopes []string) *Resources {
	out := &Resources{}
	for _, ir := range r.IdentityResources {
		if contains(scopes, ir.Name) {
			out.IdentityResources = append(out.IdentityResources, ir)
		}
	}
	for _, s := range r.ApiScopes {
		if contains(scopes, s.Name) {
			out.ApiScopes = append(out.ApiScopes, s)
		}
	}
	for _, api := range r.ApiResources {
		for _, s := range api.Scopes {
			if contains(scopes, s) {
				out.ApiResources = append(out.ApiResources, api)
				break
			}
		}
	}
	out.OfflineAccess = r.OfflineAccess && contains(scopes, ScopeOfflineAccess)
	return out
}

// IdentityUserClaimTypes returns the user claim types of the identity resources
func (r *Resources) IdentityUserClaimTypes() []string {
	var types []string
	for _, ir := range r.IdentityResources {
		types = append(types, ir.UserClaims...)
	}
	return types
}

// ApiUserClaimTypes returns the user claim types requested by API scopes and API resources
func (r *Resources) ApiUserClaimTypes() []string {
	var types []string
	for _, s := range r.ApiScopes {
		types = append(types, s.UserClaims...)
	}
	for _, api := range r.ApiResources {
		types = append(types, api.UserClaims...)
	}
	return types
}

// StandardIdentityResources returns the OpenID Connect standard identity resources.
func StandardIdentityResources() []*IdentityResource {
	return []*IdentityResource{
		{
			Name: ScopeOpenID, DisplayName: "Your user identifier", Enabled: true, Required: true,
			ShowInDiscoveryDocument: true, UserClaims: []string{ClaimSubject},
		},
		{
			Name: ScopeProfile, DisplayName: "User profile", Description: "Your user profile information (first name, last name, etc.)",
			Enabled: true, Emphasize: true, ShowInDiscoveryDocument: true,
			UserClaims: []string{ClaimName, ClaimFamilyName, ClaimGivenName, ClaimPreferredUsername, "middle_name", "nickname",
				"profile", "picture", "website", "gender", "birthdate", "zoneinfo", "locale", "updated_at"},
		},
		{
			Name: ScopeEmail, DisplayName: "Your email address", Enabled: true, Emphasize: true, ShowInDiscoveryDocument: true,
			UserClaims: []string{ClaimEmail, ClaimEmailVerified},
		},
		{
			Name: ScopePhone, DisplayName: "Your phone number", Enabled: true, Emphasize: true, ShowInDiscoveryDocument: true,
			UserClaims: []string{ClaimPhoneNumber, ClaimPhoneNumberVerified},
		},
		{
			Name: ScopeAddress, DisplayName: "Your postal address", Enabled: true, Emphasize: true, ShowInDiscoveryDocument: true,
			UserClaims: []string{ClaimAddress},
		},
	}
}
