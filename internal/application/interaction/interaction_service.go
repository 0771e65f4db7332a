package interaction

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// ErrInvalidReturnURL is returned when a return URL does not point back to the authorize callback
var ErrInvalidReturnURL = errors.New("invalid return url")

// AuthorizationContext is what the login and consent pages know about the pending request.
type AuthorizationContext struct {
	Client          *domain.Client
	RedirectURI     string
	DisplayMode     string
	UILocales       string
	IdP             string
	Tenant          string
	LoginHint       string
	PromptModes     []string
	AcrValues       []string
	ScopesRequested []string
	Resources       *domain.Resources
	// RequestID keys the consent answer for this request
	RequestID string
}

// Service backs the login and consent pages.
type Service struct {
	validator *validation.AuthorizeRequestValidator
	events    *events.Service
	logger    *zap.Logger
}

func NewService(validator *validation.AuthorizeRequestValidator, events *events.Service, logger *zap.Logger) *Service {
	return &Service{
		validator: validator,
		events:    events,
		logger:    logger,
	}
}

// IsValidReturnURL reports whether returnURL is a local URL leading back to the authorize endpoint
func (s *Service) IsValidReturnURL(returnURL string) bool {
	_, ok := parseReturnURL(returnURL)
	return ok
}

func parseReturnURL(returnURL string) (url.Values, bool) {
	// local paths only: "//host" and "/\host" are treated as absolute by browsers
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return nil, false
	}
	u, err := url.Parse(returnURL)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return nil, false
	}
	if u.Path != domain.PathAuthorize && u.Path != domain.PathAuthorizeCallback {
		return nil, false
	}
	return u.Query(), true
}

// GetAuthorizationContext re-validates the request behind returnURL for subject.
// It returns nil when the return URL is not a valid authorize request.
func (s *Service) GetAuthorizationContext(ctx context.Context, returnURL string, subject *domain.Principal) (*AuthorizationContext, error) {
	params, ok := parseReturnURL(returnURL)
	if !ok {
		s.logger.Debug("Invalid return url", zap.String("return_url", returnURL))
		return nil, nil
	}

	result, err := s.validator.Validate(ctx, validation.ParseAuthorizeRequest(params), subject)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		s.logger.Debug("Return url holds an invalid authorize request", zap.String("error", result.Error.Code))
		return nil, nil
	}

	req := result.ValidatedRequest
	return &AuthorizationContext{
		Client:          req.Client,
		RedirectURI:     req.RedirectURI,
		DisplayMode:     req.Display,
		UILocales:       req.UILocales,
		IdP:             req.IdP,
		Tenant:          req.Tenant,
		LoginHint:       req.LoginHint,
		PromptModes:     req.PromptModes,
		AcrValues:       req.AcrValues,
		ScopesRequested: req.RequestedScopes,
		Resources:       req.Resources,
		RequestID:       ConsentRequestID(params),
	}, nil
}

// GrantConsent checks the user's answer for the request behind returnURL and returns
// the id the answer must be stored under for the authorize callback.
func (s *Service) GrantConsent(ctx context.Context, returnURL string, subject *domain.Principal, consent *domain.ConsentResponse) (string, error) {
	if !subject.IsAuthenticated() {
		return "", domain.ErrSessionNotFound
	}
	authz, err := s.GetAuthorizationContext(ctx, returnURL, subject)
	if err != nil {
		return "", err
	}
	if authz == nil {
		return "", ErrInvalidReturnURL
	}

	if consent.Granted() {
		granted := intersect(authz.ScopesRequested, consent.ScopesValuesConsented)
		s.events.Raise(ctx, events.ConsentGranted(subject.SubjectID, authz.Client.ClientID, authz.ScopesRequested, granted, consent.RememberConsent))
	} else {
		s.events.Raise(ctx, events.ConsentDenied(subject.SubjectID, authz.Client.ClientID, authz.ScopesRequested))
	}
	return authz.RequestID, nil
}
