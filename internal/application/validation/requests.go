// Package validation turns raw protocol parameters into validated requests or
// protocol errors.
package validation

import (
	"net/url"
	"sort"
	"strings"
)

// AuthorizeRequest holds the parameters of the authorize endpoint.
type AuthorizeRequest struct {
	ClientID            string
	ResponseType        string
	ResponseMode        string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
	Display             string
	MaxAge              string
	UILocales           string
	LoginHint           string
	AcrValues           string
	IDTokenHint         string
	Request             string
	RequestURI          string
	// Raw keeps the original parameters to rebuild the callback URL
	Raw url.Values
}

// ParseAuthorizeRequest reads an authorize request
func ParseAuthorizeRequest(values url.Values) *AuthorizeRequest {
	return &AuthorizeRequest{
		ClientID:            values.Get("client_id"),
		ResponseType:        values.Get("response_type"),
		ResponseMode:        values.Get("response_mode"),
		RedirectURI:         values.Get("redirect_uri"),
		Scope:               values.Get("scope"),
		State:               values.Get("state"),
		Nonce:               values.Get("nonce"),
		CodeChallenge:       values.Get("code_challenge"),
		CodeChallengeMethod: values.Get("code_challenge_method"),
		Prompt:              values.Get("prompt"),
		Display:             values.Get("display"),
		MaxAge:              values.Get("max_age"),
		UILocales:           values.Get("ui_locales"),
		LoginHint:           values.Get("login_hint"),
		AcrValues:           values.Get("acr_values"),
		IDTokenHint:         values.Get("id_token_hint"),
		Request:             values.Get("request"),
		RequestURI:          values.Get("request_uri"),
		Raw:                 values,
	}
}

// TokenRequest holds the parameters of the token endpoint.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Username     string
	Password     string
	DeviceCode   string
	// Raw is handed to extension grant validators
	Raw url.Values
}

// ParseTokenRequest reads a token request
func ParseTokenRequest(values url.Values) *TokenRequest {
	return &TokenRequest{
		GrantType:    values.Get("grant_type"),
		Code:         values.Get("code"),
		RedirectURI:  values.Get("redirect_uri"),
		CodeVerifier: values.Get("code_verifier"),
		RefreshToken: values.Get("refresh_token"),
		Scope:        values.Get("scope"),
		Username:     values.Get("username"),
		Password:     values.Get("password"),
		DeviceCode:   values.Get("device_code"),
		Raw:          values,
	}
}

// TokenTypeHintRequest is the shape shared by introspection and revocation.
type TokenTypeHintRequest struct {
	Token         string
	TokenTypeHint string
}

// ParseIntrospectionRequest reads an introspection request
func ParseIntrospectionRequest(values url.Values) *TokenTypeHintRequest {
	return &TokenTypeHintRequest{Token: values.Get("token"), TokenTypeHint: values.Get("token_type_hint")}
}

// ParseRevocationRequest reads a revocation request
func ParseRevocationRequest(values url.Values) *TokenTypeHintRequest {
	return &TokenTypeHintRequest{Token: values.Get("token"), TokenTypeHint: values.Get("token_type_hint")}
}

// EndSessionRequest holds the parameters of the end session endpoint.
type EndSessionRequest struct {
	IDTokenHint           string
	PostLogoutRedirectURI string
	State                 string
}

// ParseEndSessionRequest reads an end session request
func ParseEndSessionRequest(values url.Values) *EndSessionRequest {
	return &EndSessionRequest{
		IDTokenHint:           values.Get("id_token_hint"),
		PostLogoutRedirectURI: values.Get("post_logout_redirect_uri"),
		State:                 values.Get("state"),
	}
}

// DeviceAuthorizationRequest holds the parameters of the device authorization endpoint.
type DeviceAuthorizationRequest struct {
	Scope string
}

// ParseDeviceAuthorizationRequest reads a device authorization request
func ParseDeviceAuthorizationRequest(values url.Values) *DeviceAuthorizationRequest {
	return &DeviceAuthorizationRequest{Scope: values.Get("scope")}
}

// ParseScopes splits a scope parameter, dropping duplicates
func ParseScopes(scope string) []string {
	var scopes []string
	seen := map[string]bool{}
	for _, s := range strings.Fields(scope) {
		if !seen[s] {
			seen[s] = true
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// normalizeResponseType orders the response type values so "id_token code" and
// "code id_token" compare equal
func normalizeResponseType(responseType string) string {
	parts := strings.Fields(responseType)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func containsValue(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
