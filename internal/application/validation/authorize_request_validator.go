package validation

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// ValidatedAuthorizeRequest is an authorize request that passed validation.
type ValidatedAuthorizeRequest struct {
	domain.ValidatedRequest
	ResponseType        string
	ResponseMode        string
	GrantType           string
	RedirectURI         string
	RequestedScopes     []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	PromptModes         []string
	// MaxAge is nil when the parameter was absent
	MaxAge          *int
	Display         string
	UILocales       string
	LoginHint       string
	AcrValues       []string
	IdP             string
	Tenant          string
	IsOpenIDRequest bool
	// IDTokenHintClaims are the claims of a valid id_token_hint
	IDTokenHintClaims domain.Claims
	// WasConsentShown is set once the user answered the consent page
	WasConsentShown bool
	Raw             url.Values
}

// RemovePrompt drops the prompt parameter so the request does not loop back to the UI
func (r *ValidatedAuthorizeRequest) RemovePrompt() {
	r.PromptModes = nil
	if r.Raw != nil {
		r.Raw.Del("prompt")
	}
}

// HasPrompt reports whether prompt lists mode
func (r *ValidatedAuthorizeRequest) HasPrompt(mode string) bool {
	return containsValue(r.PromptModes, mode)
}

// IssuesAccessToken reports whether the response type returns an access token from the authorize endpoint
func (r *ValidatedAuthorizeRequest) IssuesAccessToken() bool {
	return containsValue(strings.Fields(r.ResponseType), domain.ResponseTypeToken)
}

// IssuesIdentityToken reports whether the response type returns an identity token from the authorize endpoint
func (r *ValidatedAuthorizeRequest) IssuesIdentityToken() bool {
	return containsValue(strings.Fields(r.ResponseType), domain.ResponseTypeIDToken)
}

// IssuesCode reports whether the response type returns an authorization code
func (r *ValidatedAuthorizeRequest) IssuesCode() bool {
	return containsValue(strings.Fields(r.ResponseType), domain.ResponseTypeCode)
}

// AuthorizeValidationResult is the outcome of authorize request validation.
type AuthorizeValidationResult struct {
	ValidatedRequest *ValidatedAuthorizeRequest
	Error            *apperrors.ProtocolError
}

// AuthorizeRequestValidator validates authorize requests.
type AuthorizeRequestValidator struct {
	clients   domain.ClientStore
	resources *ResourceValidator
	tokens    *TokenValidator
	options   domain.Options
	logger    *zap.Logger
}

func NewAuthorizeRequestValidator(clients domain.ClientStore, resources *ResourceValidator, tokens *TokenValidator,
	options domain.Options, logger *zap.Logger) *AuthorizeRequestValidator {
	return &AuthorizeRequestValidator{
		clients:   clients,
		resources: resources,
		tokens:    tokens,
		options:   options,
		logger:    logger,
	}
}

var supportedPrompts = []string{domain.PromptNone, domain.PromptLogin, domain.PromptConsent, domain.PromptSelectAccount}
var supportedDisplays = []string{domain.DisplayPage, domain.DisplayPopup, domain.DisplayTouch, domain.DisplayWap}

// Validate checks an authorize request for the current subject, which may be nil
func (v *AuthorizeRequestValidator) Validate(ctx context.Context, req *AuthorizeRequest, subject *domain.Principal) (*AuthorizeValidationResult, error) {
	limits := v.options.InputLengthRestrictions
	fail := func(pe *apperrors.ProtocolError) (*AuthorizeValidationResult, error) {
		v.logger.Debug("Authorize request rejected",
			zap.String("client_id", req.ClientID),
			zap.String("error", pe.Code),
			zap.String("description", pe.Description))
		return &AuthorizeValidationResult{Error: pe}, nil
	}
	// unknown clients, disabled clients and unregistered redirect URIs look the same
	unauthorized := apperrors.NewUnauthorizedClient("unknown client or invalid redirect_uri")

	if req.Request != "" || req.RequestURI != "" {
		return fail(apperrors.New(apperrors.RequestNotSupported, "request objects are not supported"))
	}

	if req.ClientID == "" || len(req.ClientID) > limits.ClientID {
		return fail(apperrors.NewInvalidRequest("invalid client_id"))
	}
	if req.RedirectURI == "" || len(req.RedirectURI) > limits.RedirectURI {
		return fail(apperrors.NewInvalidRequest("invalid redirect_uri"))
	}
	if u, err := url.Parse(req.RedirectURI); err != nil || !u.IsAbs() {
		return fail(apperrors.NewInvalidRequest("invalid redirect_uri"))
	}

	client, err := v.clients.FindClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return fail(unauthorized)
		}
		return nil, err
	}
	if !client.Enabled || !client.HasRedirectURI(req.RedirectURI) {
		return fail(unauthorized)
	}

	validated := &ValidatedAuthorizeRequest{RedirectURI: req.RedirectURI, Raw: cloneValues(req.Raw)}
	validated.SetClient(client)
	if subject.IsAuthenticated() {
		validated.Subject = subject
		validated.SessionID = subject.SessionID
	}

	// response type and mode
	if req.ResponseType == "" {
		return fail(apperrors.New(apperrors.UnsupportedResponseType, "missing response_type"))
	}
	responseType := normalizeResponseType(req.ResponseType)
	grantType, ok := domain.ResponseTypeToGrantType[responseType]
	if !ok {
		return fail(apperrors.New(apperrors.UnsupportedResponseType, "unsupported response_type"))
	}
	validated.ResponseType = responseType
	validated.GrantType = grantType
	if !client.HasGrantType(grantType) {
		return fail(apperrors.NewUnauthorizedClient("invalid grant type for client"))
	}

	validated.ResponseMode = domain.ResponseModeQuery
	if grantType != domain.GrantTypeAuthorizationCode {
		validated.ResponseMode = domain.ResponseModeFragment
	}
	if req.ResponseMode != "" {
		switch req.ResponseMode {
		case domain.ResponseModeQuery:
			if grantType != domain.GrantTypeAuthorizationCode {
				return fail(apperrors.NewInvalidRequest("invalid response_mode for response_type"))
			}
		case domain.ResponseModeFragment, domain.ResponseModeFormPost:
		default:
			return fail(apperrors.NewInvalidRequest("unsupported response_mode"))
		}
		validated.ResponseMode = req.ResponseMode
	}

	if validated.IssuesAccessToken() && !client.AllowAccessTokensViaBrowser {
		return fail(apperrors.NewUnauthorizedClient("client not allowed to receive access tokens via browser"))
	}

	// state
	if len(req.State) > limits.State {
		return fail(apperrors.NewInvalidRequest("state too long"))
	}
	validated.State = req.State

	// scope
	if req.Scope == "" {
		return fail(apperrors.NewInvalidScope("missing scope"))
	}
	if len(req.Scope) > limits.Scope {
		return fail(apperrors.NewInvalidRequest("scope too long"))
	}
	validated.RequestedScopes = ParseScopes(req.Scope)
	validated.IsOpenIDRequest = containsValue(validated.RequestedScopes, domain.ScopeOpenID)
	if validated.IssuesIdentityToken() && !validated.IsOpenIDRequest {
		return fail(apperrors.NewInvalidScope("missing openid scope"))
	}

	// nonce
	if len(req.Nonce) > limits.Nonce {
		return fail(apperrors.NewInvalidRequest("nonce too long"))
	}
	if req.Nonce == "" && validated.IssuesIdentityToken() && grantType != domain.GrantTypeAuthorizationCode {
		return fail(apperrors.NewInvalidRequest("nonce required"))
	}
	validated.Nonce = req.Nonce

	// PKCE
	if pe := v.validatePkce(client, grantType, req, validated); pe != nil {
		return fail(pe)
	}

	// prompt, max_age, display, locales, hints
	if req.Prompt != "" {
		modes := strings.Fields(req.Prompt)
		for _, m := range modes {
			if !containsValue(supportedPrompts, m) {
				return fail(apperrors.NewInvalidRequest("unsupported prompt mode"))
			}
		}
		if len(modes) > 1 && containsValue(modes, domain.PromptNone) {
			return fail(apperrors.NewInvalidRequest("prompt none must be used alone"))
		}
		validated.PromptModes = modes
	}
	if req.MaxAge != "" {
		maxAge, err := strconv.Atoi(req.MaxAge)
		if err != nil || maxAge < 0 {
			return fail(apperrors.NewInvalidRequest("invalid max_age"))
		}
		validated.MaxAge = &maxAge
	}
	if req.Display != "" && containsValue(supportedDisplays, req.Display) {
		validated.Display = req.Display
	}
	if len(req.UILocales) > limits.UILocale {
		return fail(apperrors.NewInvalidRequest("ui_locales too long"))
	}
	validated.UILocales = req.UILocales
	if len(req.LoginHint) > limits.LoginHint {
		return fail(apperrors.NewInvalidRequest("login_hint too long"))
	}
	validated.LoginHint = req.LoginHint
	if len(req.AcrValues) > limits.AcrValues {
		return fail(apperrors.NewInvalidRequest("acr_values too long"))
	}
	for _, acr := range strings.Fields(req.AcrValues) {
		switch {
		case strings.HasPrefix(acr, domain.ExternalIdpAcrPrefix):
			validated.IdP = strings.TrimPrefix(acr, domain.ExternalIdpAcrPrefix)
		case strings.HasPrefix(acr, domain.TenantAcrPrefix):
			validated.Tenant = strings.TrimPrefix(acr, domain.TenantAcrPrefix)
		default:
			validated.AcrValues = append(validated.AcrValues, acr)
		}
	}

	if req.IDTokenHint != "" {
		hint, err := v.tokens.ValidateIdentityToken(ctx, req.IDTokenHint, client.ClientID, false)
		if err != nil {
			return nil, err
		}
		if hint.Error != nil {
			return fail(apperrors.NewInvalidRequest("invalid id_token_hint"))
		}
		validated.IDTokenHintClaims = hint.Claims
	}

	// resources
	resources, pe, err := v.resources.Validate(ctx, client, validated.RequestedScopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return fail(pe)
	}
	if validated.IsOpenIDRequest && !resources.IsOpenID() {
		return fail(apperrors.NewInvalidScope("openid scope is not available"))
	}
	if resources.OfflineAccess && !validated.IssuesCode() {
		return fail(apperrors.NewInvalidScope("offline_access requires a code flow"))
	}
	if validated.IssuesAccessToken() && len(resources.ApiScopes) == 0 && !validated.IsOpenIDRequest {
		return fail(apperrors.NewInvalidScope("no api scopes requested"))
	}
	validated.Resources = resources

	v.logger.Debug("Authorize request validated",
		zap.String("client_id", client.ClientID),
		zap.String("response_type", responseType),
		zap.Strings("scopes", validated.RequestedScopes))
	return &AuthorizeValidationResult{ValidatedRequest: validated}, nil
}

func (v *AuthorizeRequestValidator) validatePkce(client *domain.Client, grantType string, req *AuthorizeRequest,
	validated *ValidatedAuthorizeRequest) *apperrors.ProtocolError {
	if grantType != domain.GrantTypeAuthorizationCode && grantType != domain.GrantTypeHybrid {
		return nil
	}
	limits := v.options.InputLengthRestrictions

	if req.CodeChallenge == "" {
		if client.RequirePkce {
			return apperrors.NewInvalidRequest("code challenge required")
		}
		return nil
	}
	if len(req.CodeChallenge) < limits.CodeChallengeMinLength || len(req.CodeChallenge) > limits.CodeChallengeMaxLength {
		return apperrors.NewInvalidRequest("invalid code_challenge")
	}

	method := req.CodeChallengeMethod
	if method == "" {
		method = domain.CodeChallengeMethodPlain
	}
	switch method {
	case domain.CodeChallengeMethodSHA256:
	case domain.CodeChallengeMethodPlain:
		if !client.AllowPlainTextPkce {
			return apperrors.NewInvalidRequest("code_challenge_method plain is not allowed")
		}
	default:
		return apperrors.NewInvalidRequest("transform algorithm not supported")
	}

	validated.CodeChallenge = req.CodeChallenge
	validated.CodeChallengeMethod = method
	return nil
}
