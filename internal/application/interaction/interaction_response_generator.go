package interaction

import (
	"context"
	"time"

	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// Response is the outcome of the interaction decision for an authorize request.
// At most one of IsLogin, IsConsent and Error is set; none set means proceed.
type Response struct {
	IsLogin   bool
	IsConsent bool
	Error     *apperrors.ProtocolError
}

// IsError reports whether the request must be answered with a protocol error
func (r *Response) IsError() bool {
	return r.Error != nil
}

// RequiresUI reports whether the user has to be sent to the login or consent page
func (r *Response) RequiresUI() bool {
	return r.IsLogin || r.IsConsent
}

// ResponseGenerator decides between login, consent and proceeding.
type ResponseGenerator struct {
	consent *ConsentService
	profile domain.ProfileService
	clock   domain.Clock
	logger  *zap.Logger
}

func NewResponseGenerator(consent *ConsentService, profile domain.ProfileService, clock domain.Clock, logger *zap.Logger) *ResponseGenerator {
	return &ResponseGenerator{
		consent: consent,
		profile: profile,
		clock:   clock,
		logger:  logger,
	}
}

// ProcessInteraction inspects a validated authorize request and the consent answer,
// nil when the user has not been to the consent page. It may narrow the request's
// scopes to what the user consented to.
func (g *ResponseGenerator) ProcessInteraction(ctx context.Context, req *validation.ValidatedAuthorizeRequest,
	consent *domain.ConsentResponse) (*Response, error) {
	if consent == nil {
		login, err := g.processLogin(ctx, req)
		if err != nil {
			return nil, err
		}
		if login.IsLogin && req.HasPrompt(domain.PromptNone) {
			g.logger.Debug("Login required but prompt=none", zap.String("client_id", req.ClientID))
			return &Response{Error: apperrors.New(apperrors.LoginRequired, "")}, nil
		}
		if login.IsLogin || login.IsError() {
			return login, nil
		}
	} else if !req.Subject.IsAuthenticated() {
		// a consent answer is only meaningful for a signed-in user
		return &Response{IsLogin: true}, nil
	}

	result, err := g.processConsent(ctx, req, consent)
	if err != nil {
		return nil, err
	}
	if result.IsConsent && req.HasPrompt(domain.PromptNone) {
		g.logger.Debug("Consent required but prompt=none", zap.String("client_id", req.ClientID))
		return &Response{Error: apperrors.New(apperrors.ConsentRequired, "")}, nil
	}
	return result, nil
}

func (g *ResponseGenerator) processLogin(ctx context.Context, req *validation.ValidatedAuthorizeRequest) (*Response, error) {
	login := func(reason string) (*Response, error) {
		g.logger.Debug("Showing login", zap.String("client_id", req.ClientID), zap.String("reason", reason))
		return &Response{IsLogin: true}, nil
	}

	if req.HasPrompt(domain.PromptLogin) || req.HasPrompt(domain.PromptSelectAccount) {
		// the callback after login must not ask again
		req.RemovePrompt()
		return login("prompt requested")
	}

	subject := req.Subject
	if !subject.IsAuthenticated() {
		return login("user is not authenticated")
	}

	active, err := g.profile.IsActive(ctx, subject, req.Client, domain.CallerAuthorizeEndpoint)
	if err != nil {
		return nil, err
	}
	if !active {
		return login("user is not active")
	}

	idp := subject.IdentityProvider
	if req.IdP != "" && req.IdP != idp {
		return login("idp requested in acr_values is not the current idp")
	}
	if idp == domain.LocalIdentityProvider && !req.Client.EnableLocalLogin {
		return login("client does not allow local login")
	}
	if !req.Client.AllowsIdentityProvider(idp) {
		return login("current idp is not allowed for the client")
	}

	if req.MaxAge != nil {
		deadline := subject.AuthTime.Add(time.Duration(*req.MaxAge) * time.Second)
		if g.clock.Now().After(deadline) {
			return login("max_age exceeded")
		}
	}

	return &Response{}, nil
}

func (g *ResponseGenerator) processConsent(ctx context.Context, req *validation.ValidatedAuthorizeRequest,
	consent *domain.ConsentResponse) (*Response, error) {
	if consent == nil {
		required := req.HasPrompt(domain.PromptConsent)
		if !required {
			var err error
			required, err = g.consent.RequiresConsent(ctx, req.Subject, req.Client, req.RequestedScopes)
			if err != nil {
				return nil, err
			}
		}
		if required {
			if req.HasPrompt(domain.PromptConsent) {
				req.RemovePrompt()
			}
			g.logger.Debug("Showing consent", zap.String("client_id", req.ClientID))
			return &Response{IsConsent: true}, nil
		}
		return &Response{}, nil
	}

	req.WasConsentShown = true
	if !consent.Granted() {
		description := consent.ErrorDescription
		g.logger.Debug("User denied consent", zap.String("client_id", req.ClientID))
		if consent.Error != "" && consent.Error != domain.ConsentDenied {
			return &Response{Error: apperrors.New(consent.Error, description)}, nil
		}
		return &Response{Error: apperrors.NewAccessDenied(description)}, nil
	}

	granted := intersect(req.RequestedScopes, consent.ScopesValuesConsented)
	for _, scope := range requiredScopes(req.Resources) {
		if containsValue(req.RequestedScopes, scope) && !containsValue(granted, scope) {
			g.logger.Debug("Required scope not consented", zap.String("scope", scope))
			return &Response{Error: apperrors.NewAccessDenied("required scope not consented")}, nil
		}
	}
	if len(granted) == 0 {
		return &Response{Error: apperrors.NewAccessDenied("no scopes consented")}, nil
	}

	req.RequestedScopes = granted
	req.Resources = req.Resources.Filter(granted)

	remembered := granted
	if !consent.RememberConsent {
		remembered = nil
	}
	if err := g.consent.UpdateConsent(ctx, req.Subject, req.Client, remembered); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

// requiredScopes lists the scopes the user cannot opt out of
func requiredScopes(resources *domain.Resources) []string {
	if resources == nil {
		return nil
	}
	var scopes []string
	for _, ir := range resources.IdentityResources {
		if ir.Required {
			scopes = append(scopes, ir.Name)
		}
	}
	for _, s := range resources.ApiScopes {
		if s.Required {
			scopes = append(scopes, s.Name)
		}
	}
	return scopes
}
