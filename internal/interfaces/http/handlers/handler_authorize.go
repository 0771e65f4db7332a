package handlers

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/interaction"
	"github.com/manorfm/identityserver/internal/application/response"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const authorizeEndpoint = "Authorize"

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>Submit this form</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{range $name, $values := .Parameters}}{{range $values}}<input type="hidden" name="{{$name}}" value="{{.}}">
{{end}}{{end}}<noscript><button>Click here to continue</button></noscript>
</form>
</body>
</html>
`))

type formPost struct {
	Action     string
	Parameters url.Values
}

// AuthorizeHandler runs the authorize endpoint and its callback from the login and consent pages
type AuthorizeHandler struct {
	validator   *validation.AuthorizeRequestValidator
	interaction *interaction.ResponseGenerator
	responses   *response.AuthorizeResponseGenerator
	sessions    *session.Manager
	events      *events.Service
	options     domain.Options
	logger      *zap.Logger
}

func NewAuthorizeHandler(validator *validation.AuthorizeRequestValidator, interaction *interaction.ResponseGenerator,
	responses *response.AuthorizeResponseGenerator, sessions *session.Manager, events *events.Service,
	options domain.Options, logger *zap.Logger) *AuthorizeHandler {
	return &AuthorizeHandler{
		validator:   validator,
		interaction: interaction,
		responses:   responses,
		sessions:    sessions,
		events:      events,
		options:     options,
		logger:      logger,
	}
}

func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	values, pe := requestValues(r)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}
	h.process(w, r, values, nil)
}

// HandleCallback resumes an authorize request once the user returns from the login or consent page
func (h *AuthorizeHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	requestID := interaction.ConsentRequestID(values)
	consent := h.sessions.ReadConsent(r, requestID)
	if consent != nil {
		h.sessions.ClearConsent(w, requestID)
	}
	h.process(w, r, values, consent)
}

func (h *AuthorizeHandler) process(w http.ResponseWriter, r *http.Request, values url.Values, consent *domain.ConsentResponse) {
	ctx := r.Context()
	user := currentUser(h.sessions, r)

	result, err := h.validator.Validate(ctx, validation.ParseAuthorizeRequest(values), user)
	if err != nil {
		h.logger.Error("Failed to validate authorize request", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		// the redirect URI is not trusted until validation passes
		h.raiseFailure(r, values.Get("client_id"), "", result.Error)
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}
	req := result.ValidatedRequest

	next, err := h.interaction.ProcessInteraction(ctx, req, consent)
	if err != nil {
		h.logger.Error("Failed to process interaction", zap.String("client_id", req.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	switch {
	case next.IsError():
		h.raiseFailure(r, req.ClientID, req.GrantType, next.Error)
		if next.Error.IsSafeForRedirect() {
			h.render(w, r, response.ErrorResponse(req, next.Error))
			return
		}
		httperrors.RespondWithProtocolError(w, next.Error)
		return
	case next.IsLogin:
		h.redirectToPage(w, r, h.options.UserInteraction.LoginURL, h.options.UserInteraction.LoginReturnURLParam, req)
		return
	case next.IsConsent:
		h.redirectToPage(w, r, h.options.UserInteraction.ConsentURL, h.options.UserInteraction.ConsentReturnURLParam, req)
		return
	}

	resp, err := h.responses.CreateResponse(ctx, req)
	if err != nil {
		h.logger.Error("Failed to create authorize response", zap.String("client_id", req.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if err := h.sessions.AddClientID(w, r, req.ClientID); err != nil {
		h.logger.Warn("Failed to record client in session", zap.String("client_id", req.ClientID), zap.Error(err))
	}
	h.render(w, r, resp)
}

// redirectToPage sends the user to a UI page with a return URL leading back to the callback
func (h *AuthorizeHandler) redirectToPage(w http.ResponseWriter, r *http.Request, page, returnParam string,
	req *validation.ValidatedAuthorizeRequest) {
	returnURL := domain.PathAuthorizeCallback + "?" + req.Raw.Encode()
	h.logger.Debug("Redirecting to interaction page",
		zap.String("page", page),
		zap.String("client_id", req.ClientID))
	http.Redirect(w, r, withQuery(page, url.Values{returnParam: {returnURL}}), http.StatusFound)
}

func (h *AuthorizeHandler) render(w http.ResponseWriter, r *http.Request, resp *response.AuthorizeResponse) {
	httperrors.SetNoCache(w)
	if resp.ResponseMode != domain.ResponseModeFormPost {
		http.Redirect(w, r, resp.RedirectURL(), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formPostTemplate.Execute(w, formPost{Action: resp.RedirectURI, Parameters: resp.Parameters()}); err != nil {
		h.logger.Error("Failed to render form_post response", zap.Error(err))
	}
}

func (h *AuthorizeHandler) raiseFailure(r *http.Request, clientID, grantType string, pe *apperrors.ProtocolError) {
	h.logger.Debug("Authorize request failed",
		zap.String("client_id", clientID),
		zap.String("error", pe.Code),
		zap.String("error_description", pe.Description))
	h.events.Raise(r.Context(), events.TokenIssuedFailure(clientID, authorizeEndpoint, grantType, pe.Code, pe.Description))
}
