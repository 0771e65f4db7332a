package validation

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/url"

	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// ValidatedTokenRequest is a token request that passed validation.
type ValidatedTokenRequest struct {
	domain.ValidatedRequest
	GrantType               string
	RequestedScopes         []string
	AuthorizationCode       *domain.AuthorizationCode
	AuthorizationCodeHandle string
	RefreshToken            *domain.RefreshToken
	RefreshTokenHandle      string
	DeviceCode              *domain.DeviceCode
	UserName                string
	// CustomResponse is merged into the token response for extension grants
	CustomResponse map[string]interface{}
}

// TokenRequestValidationResult is the outcome of token request validation.
type TokenRequestValidationResult struct {
	ValidatedRequest *ValidatedTokenRequest
	Error            *apperrors.ProtocolError
}

// ExtensionGrantRequest is what an extension grant validator sees.
type ExtensionGrantRequest struct {
	Client *domain.Client
	Raw    url.Values
}

// ExtensionGrantResult is the outcome of an extension grant. Subject may be nil for
// client-only grants.
type ExtensionGrantResult struct {
	Subject        *domain.Principal
	CustomResponse map[string]interface{}
	Error          *apperrors.ProtocolError
}

// ExtensionGrantValidator validates a custom grant type.
type ExtensionGrantValidator interface {
	GrantType() string
	Validate(ctx context.Context, req *ExtensionGrantRequest) (*ExtensionGrantResult, error)
}

// TokenRequestValidator validates requests to the token endpoint.
type TokenRequestValidator struct {
	codes      *grants.AuthorizationCodeStore
	refresh    *tokens.RefreshTokenService
	devices    domain.DeviceFlowStore
	resources  *ResourceValidator
	passwords  domain.ResourceOwnerPasswordValidator
	profile    domain.ProfileService
	cache      domain.Cache
	extensions map[string]ExtensionGrantValidator
	clock      domain.Clock
	options    domain.Options
	logger     *zap.Logger
}

func NewTokenRequestValidator(codes *grants.AuthorizationCodeStore, refresh *tokens.RefreshTokenService, devices domain.DeviceFlowStore,
	resources *ResourceValidator, passwords domain.ResourceOwnerPasswordValidator, profile domain.ProfileService, cache domain.Cache,
	clock domain.Clock, options domain.Options, logger *zap.Logger, extensions ...ExtensionGrantValidator) *TokenRequestValidator {
	byType := make(map[string]ExtensionGrantValidator, len(extensions))
	for _, e := range extensions {
		byType[e.GrantType()] = e
	}
	return &TokenRequestValidator{
		codes:      codes,
		refresh:    refresh,
		devices:    devices,
		resources:  resources,
		passwords:  passwords,
		profile:    profile,
		cache:      cache,
		extensions: byType,
		clock:      clock,
		options:    options,
		logger:     logger,
	}
}

// ExtensionGrantTypes lists the registered extension grant types
func (v *TokenRequestValidator) ExtensionGrantTypes() []string {
	types := make([]string, 0, len(v.extensions))
	for t := range v.extensions {
		types = append(types, t)
	}
	return types
}

// Validate checks a token request made by an authenticated client
func (v *TokenRequestValidator) Validate(ctx context.Context, req *TokenRequest, clientResult *ClientSecretValidationResult) (*TokenRequestValidationResult, error) {
	client := clientResult.Client
	limits := v.options.InputLengthRestrictions

	if req.GrantType == "" {
		return v.fail(client, apperrors.NewInvalidRequest("missing grant_type"))
	}
	if len(req.GrantType) > limits.GrantType {
		return v.fail(client, apperrors.NewUnsupportedGrantType(""))
	}

	validated := &ValidatedTokenRequest{GrantType: req.GrantType}
	validated.SetClient(client)
	validated.SecretType = clientResult.Secret.Type

	var pe *apperrors.ProtocolError
	var err error
	switch req.GrantType {
	case domain.GrantTypeAuthorizationCode:
		pe, err = v.validateAuthorizationCode(ctx, req, validated)
	case domain.GrantTypeClientCredentials:
		pe, err = v.validateClientCredentials(ctx, req, validated)
	case domain.GrantTypePassword:
		pe, err = v.validatePassword(ctx, req, validated)
	case domain.GrantTypeRefreshToken:
		pe, err = v.validateRefreshToken(ctx, req, validated)
	case domain.GrantTypeDeviceCode:
		pe, err = v.validateDeviceCode(ctx, req, validated)
	default:
		pe, err = v.validateExtensionGrant(ctx, req, validated)
	}
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return v.fail(client, pe)
	}

	v.logger.Debug("Token request validated",
		zap.String("client_id", client.ClientID),
		zap.String("grant_type", req.GrantType))
	return &TokenRequestValidationResult{ValidatedRequest: validated}, nil
}

func (v *TokenRequestValidator) fail(client *domain.Client, pe *apperrors.ProtocolError) (*TokenRequestValidationResult, error) {
	v.logger.Debug("Token request rejected",
		zap.String("client_id", client.ClientID),
		zap.String("error", pe.Code),
		zap.String("description", pe.Description))
	return &TokenRequestValidationResult{Error: pe}, nil
}

func (v *TokenRequestValidator) checkGrantType(client *domain.Client, grantType string) *apperrors.ProtocolError {
	if !client.HasGrantType(grantType) {
		return apperrors.NewUnauthorizedClient("client not authorized for grant type")
	}
	return nil
}

// validateAuthorizationCode redeems a code. Every mismatch is reported as a bare
// invalid_grant so callers cannot tell which check failed.
func (v *TokenRequestValidator) validateAuthorizationCode(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	if !client.HasGrantType(domain.GrantTypeAuthorizationCode) && !client.HasGrantType(domain.GrantTypeHybrid) {
		return apperrors.NewUnauthorizedClient("client not authorized for grant type"), nil
	}
	invalidGrant := apperrors.NewInvalidGrant("")
	limits := v.options.InputLengthRestrictions

	if req.Code == "" || len(req.Code) > limits.AuthorizationCode {
		return invalidGrant, nil
	}

	code, err := v.codes.TakeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			v.logger.Debug("Authorization code not found", zap.String("client_id", client.ClientID))
			return invalidGrant, nil
		}
		return nil, err
	}

	if code.ClientID != client.ClientID {
		v.logger.Warn("Authorization code redeemed by another client",
			zap.String("client_id", client.ClientID),
			zap.String("owner", code.ClientID))
		return invalidGrant, nil
	}
	if req.RedirectURI != code.RedirectURI {
		v.logger.Debug("Redirect URI does not match", zap.String("client_id", client.ClientID))
		return invalidGrant, nil
	}

	if code.CodeChallenge == "" {
		if client.RequirePkce || req.CodeVerifier != "" {
			return invalidGrant, nil
		}
	} else if !v.verifyCodeVerifier(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
		v.logger.Debug("Code verifier does not match", zap.String("client_id", client.ClientID))
		return invalidGrant, nil
	}

	if !code.Subject.IsAuthenticated() {
		return invalidGrant, nil
	}
	active, err := v.profile.IsActive(ctx, code.Subject, client, domain.CallerAuthorizationCodeValidation)
	if err != nil {
		return nil, err
	}
	if !active {
		return invalidGrant, nil
	}

	resources, pe, err := v.resources.Validate(ctx, client, code.RequestedScopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return invalidGrant, nil
	}

	validated.AuthorizationCode = code
	validated.AuthorizationCodeHandle = req.Code
	validated.Subject = code.Subject
	validated.SessionID = code.SessionID
	validated.RequestedScopes = code.RequestedScopes
	validated.Resources = resources
	return nil, nil
}

func (v *TokenRequestValidator) verifyCodeVerifier(verifier, challenge, method string) bool {
	limits := v.options.InputLengthRestrictions
	if len(verifier) < limits.CodeVerifierMinLength || len(verifier) > limits.CodeVerifierMaxLength {
		return false
	}
	transformed := verifier
	if method == domain.CodeChallengeMethodSHA256 {
		sum := sha256.Sum256([]byte(verifier))
		transformed = base64.RawURLEncoding.EncodeToString(sum[:])
	}
	return subtle.ConstantTimeCompare([]byte(transformed), []byte(challenge)) == 1
}

// scopesOrAllowed returns the requested scopes, or every scope the client may use
// when none were requested
func (v *TokenRequestValidator) scopesOrAllowed(req *TokenRequest, client *domain.Client) ([]string, *apperrors.ProtocolError) {
	if len(req.Scope) > v.options.InputLengthRestrictions.Scope {
		return nil, apperrors.NewInvalidRequest("scope too long")
	}
	if scopes := ParseScopes(req.Scope); len(scopes) > 0 {
		return scopes, nil
	}
	scopes := append([]string(nil), client.AllowedScopes...)
	if client.AllowOfflineAccess && !containsValue(scopes, domain.ScopeOfflineAccess) {
		scopes = append(scopes, domain.ScopeOfflineAccess)
	}
	return scopes, nil
}

func (v *TokenRequestValidator) validateClientCredentials(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	if pe := v.checkGrantType(client, domain.GrantTypeClientCredentials); pe != nil {
		return pe, nil
	}
	if validated.SecretType == ParsedSecretTypeNoSecret && client.RequireClientSecret {
		return apperrors.NewUnauthorizedClient("client credentials require a secret"), nil
	}

	explicit := req.Scope != ""
	scopes, pe := v.scopesOrAllowed(req, client)
	if pe != nil {
		return pe, nil
	}
	if !explicit {
		// identity scopes and offline access never apply to a client-only token
		var apiOnly []string
		for _, s := range scopes {
			if s != domain.ScopeOfflineAccess && !isStandardIdentityScope(s) {
				apiOnly = append(apiOnly, s)
			}
		}
		scopes = apiOnly
	}

	resources, pe, err := v.resources.Validate(ctx, client, scopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return pe, nil
	}
	if len(resources.IdentityResources) > 0 {
		return apperrors.NewInvalidScope("identity scopes are not allowed for client credentials"), nil
	}
	if resources.OfflineAccess {
		return apperrors.NewInvalidScope("offline_access is not allowed for client credentials"), nil
	}
	if len(resources.ApiScopes) == 0 {
		return apperrors.NewInvalidScope("no api scopes requested"), nil
	}

	validated.RequestedScopes = resources.ScopeNames()
	validated.Resources = resources
	return nil, nil
}

func isStandardIdentityScope(scope string) bool {
	for _, ir := range domain.StandardIdentityResources() {
		if ir.Name == scope {
			return true
		}
	}
	return false
}

func (v *TokenRequestValidator) validatePassword(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	if pe := v.checkGrantType(client, domain.GrantTypePassword); pe != nil {
		return pe, nil
	}
	limits := v.options.InputLengthRestrictions
	if req.Username == "" || len(req.Username) > limits.UserName || len(req.Password) > limits.Password {
		return apperrors.NewInvalidGrant("invalid username or password"), nil
	}

	scopes, pe := v.scopesOrAllowed(req, client)
	if pe != nil {
		return pe, nil
	}
	resources, pe, err := v.resources.Validate(ctx, client, scopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return pe, nil
	}

	principal, err := v.passwords.ValidateCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return apperrors.NewInvalidGrant("invalid username or password"), nil
		}
		return nil, err
	}
	active, err := v.profile.IsActive(ctx, principal, client, domain.CallerAccessToken)
	if err != nil {
		return nil, err
	}
	if !active {
		return apperrors.NewInvalidGrant("user is not active"), nil
	}

	validated.Subject = principal
	validated.UserName = req.Username
	validated.RequestedScopes = resources.ScopeNames()
	validated.Resources = resources
	return nil, nil
}

func (v *TokenRequestValidator) validateRefreshToken(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	if req.RefreshToken == "" {
		return apperrors.NewInvalidRequest("missing refresh_token"), nil
	}
	if len(req.RefreshToken) > v.options.InputLengthRestrictions.RefreshToken {
		return apperrors.NewInvalidGrant(""), nil
	}

	token, pe, err := v.refresh.ValidateRefreshToken(ctx, req.RefreshToken, client)
	if err != nil || pe != nil {
		return pe, err
	}

	scopes, resources, pe, err := v.refreshScopes(ctx, req, token, client)
	if err != nil || pe != nil {
		if restoreErr := v.refresh.RestoreRefreshToken(ctx, req.RefreshToken, token, client); restoreErr != nil {
			return nil, restoreErr
		}
		return pe, err
	}

	validated.RefreshToken = token
	validated.RefreshTokenHandle = req.RefreshToken
	validated.Subject = domain.PrincipalFromClaims(token.AccessToken.Claims)
	validated.SessionID = token.SessionID()
	validated.RequestedScopes = scopes
	validated.Resources = resources
	return nil, nil
}

// refreshScopes resolves the requested scopes, which may only narrow the original grant
func (v *TokenRequestValidator) refreshScopes(ctx context.Context, req *TokenRequest, token *domain.RefreshToken,
	client *domain.Client) ([]string, *domain.Resources, *apperrors.ProtocolError, error) {
	granted := token.Scopes()
	scopes := granted
	if req.Scope != "" {
		scopes = ParseScopes(req.Scope)
		for _, s := range scopes {
			if !containsValue(granted, s) {
				return nil, nil, apperrors.NewInvalidScope("scope exceeds the original grant"), nil
			}
		}
	}
	resources, pe, err := v.resources.Validate(ctx, client, scopes)
	if err != nil || pe != nil {
		return nil, nil, pe, err
	}
	return scopes, resources, nil, nil
}

// validateDeviceCode polls a device authorization. Pending polls faster than the
// configured interval are answered with slow_down.
func (v *TokenRequestValidator) validateDeviceCode(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	if pe := v.checkGrantType(client, domain.GrantTypeDeviceCode); pe != nil {
		return pe, nil
	}
	if req.DeviceCode == "" {
		return apperrors.NewInvalidRequest("missing device_code"), nil
	}
	if len(req.DeviceCode) > v.options.InputLengthRestrictions.DeviceCode {
		return apperrors.NewInvalidGrant(""), nil
	}

	key := grants.DeviceCodeKey(req.DeviceCode)
	device, err := v.devices.FindByDeviceCode(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			return apperrors.NewInvalidGrant(""), nil
		}
		return nil, err
	}
	if device.ClientID != client.ClientID {
		return apperrors.NewInvalidGrant(""), nil
	}
	if device.IsExpired(v.clock.Now()) {
		return apperrors.New(apperrors.ExpiredToken, ""), nil
	}
	if device.IsDenied {
		return apperrors.NewAccessDenied(""), nil
	}
	if !device.IsAuthorized {
		fresh, err := v.cache.SetIfAbsent(ctx, "device:"+key, v.options.DeviceFlow.Interval)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return apperrors.New(apperrors.SlowDown, ""), nil
		}
		return apperrors.New(apperrors.AuthorizationPending, ""), nil
	}

	if !device.Subject.IsAuthenticated() {
		return apperrors.NewInvalidGrant(""), nil
	}
	active, err := v.profile.IsActive(ctx, device.Subject, client, domain.CallerDeviceCodeValidation)
	if err != nil {
		return nil, err
	}
	if !active {
		return apperrors.NewInvalidGrant(""), nil
	}

	resources, pe, err := v.resources.Validate(ctx, client, device.AuthorizedScopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return pe, nil
	}

	// removal decides which concurrent poll wins
	if err := v.devices.RemoveByDeviceCode(ctx, key); err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			return apperrors.NewInvalidGrant(""), nil
		}
		return nil, err
	}

	validated.DeviceCode = device
	validated.Subject = device.Subject
	validated.SessionID = device.SessionID
	validated.RequestedScopes = device.AuthorizedScopes
	validated.Resources = resources
	return nil, nil
}

func (v *TokenRequestValidator) validateExtensionGrant(ctx context.Context, req *TokenRequest, validated *ValidatedTokenRequest) (*apperrors.ProtocolError, error) {
	client := validated.Client
	extension, ok := v.extensions[req.GrantType]
	if !ok {
		return apperrors.NewUnsupportedGrantType(""), nil
	}
	if pe := v.checkGrantType(client, req.GrantType); pe != nil {
		return pe, nil
	}

	scopes, pe := v.scopesOrAllowed(req, client)
	if pe != nil {
		return pe, nil
	}
	resources, pe, err := v.resources.Validate(ctx, client, scopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return pe, nil
	}

	result, err := extension.Validate(ctx, &ExtensionGrantRequest{Client: client, Raw: req.Raw})
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		return result.Error, nil
	}

	if result.Subject.IsAuthenticated() {
		active, err := v.profile.IsActive(ctx, result.Subject, client, domain.CallerAccessToken)
		if err != nil {
			return nil, err
		}
		if !active {
			return apperrors.NewInvalidGrant("user is not active"), nil
		}
		validated.Subject = result.Subject
	}
	validated.CustomResponse = result.CustomResponse
	validated.RequestedScopes = resources.ScopeNames()
	validated.Resources = resources
	return nil, nil
}
