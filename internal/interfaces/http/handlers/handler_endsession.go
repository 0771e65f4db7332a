package handlers

import (
	"context"
	"html/template"
	"net/http"
	"net/url"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/logout"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const (
	logoutIDParam     = "logoutId"
	endSessionIDParam = "endSessionId"

	logoutPurpose     = "logout"
	endSessionPurpose = "endsession"
)

var signedOutTemplate = template.Must(template.New("signed_out").Parse(`<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1.0"><title>Signed out</title></head>
<body>
<p>You are now signed out.</p>
{{range .FrontChannelURLs}}<iframe style="display:none" width="0" height="0" src="{{.}}"></iframe>
{{end}}{{if .RedirectURL}}<script>window.addEventListener("load", function () { window.location.href = {{.RedirectURL}}; });</script>
{{end}}</body>
</html>
`))

type signedOut struct {
	FrontChannelURLs []string
	RedirectURL      string
}

// EndSessionHandler signs users out and notifies the clients of the ended session
type EndSessionHandler struct {
	validator     *validation.EndSessionRequestValidator
	notifications *logout.NotificationService
	backChannel   *logout.BackChannelLogoutService
	sessions      *session.Manager
	events        *events.Service
	options       domain.Options
	logger        *zap.Logger
}

func NewEndSessionHandler(validator *validation.EndSessionRequestValidator, notifications *logout.NotificationService,
	backChannel *logout.BackChannelLogoutService, sessions *session.Manager, events *events.Service,
	options domain.Options, logger *zap.Logger) *EndSessionHandler {
	return &EndSessionHandler{
		validator:     validator,
		notifications: notifications,
		backChannel:   backChannel,
		sessions:      sessions,
		events:        events,
		options:       options,
		logger:        logger,
	}
}

// HandleEndSession validates an RP initiated logout. A signed-in user is sent to the
// logout page to confirm, otherwise the request goes straight to the callback.
func (h *EndSessionHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	values, pe := requestValues(r)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}

	user := currentUser(h.sessions, r)
	result, err := h.validator.Validate(r.Context(), validation.ParseEndSessionRequest(values), user)
	if err != nil {
		h.logger.Error("Failed to validate end session request", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}

	req := result.ValidatedRequest
	msg := &logout.Message{
		SessionID:             req.SessionID,
		PostLogoutRedirectURI: req.PostLogoutRedirectURI,
		State:                 req.State,
	}
	if req.Subject != nil {
		msg.SubjectID = req.Subject.SubjectID
	}
	if req.Client != nil {
		msg.ClientID = req.Client.ClientID
	}

	if user == nil || h.options.UserInteraction.LogoutURL == "" {
		h.signOut(w, r, user, msg)
		h.redirectToCallback(w, r, msg)
		return
	}

	logoutID, err := h.sessions.Protect(logoutPurpose, msg)
	if err != nil {
		h.logger.Error("Failed to protect logout message", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	http.Redirect(w, r, withQuery(h.options.UserInteraction.LogoutURL, url.Values{logoutIDParam: {logoutID}}), http.StatusFound)
}

type logoutRequest struct {
	LogoutID string `json:"logout_id"`
}

type redirectResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// HandleLogout is the logout page's confirmation. It ends the session and answers
// with the callback URL that renders the notifications.
func (h *EndSessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	msg := &logout.Message{}
	if req.LogoutID != "" {
		if err := h.sessions.Unprotect(logoutPurpose, req.LogoutID, msg); err != nil {
			h.logger.Debug("Invalid logout id", zap.Error(err))
			httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid logout id", nil, http.StatusBadRequest)
			return
		}
	}

	user := currentUser(h.sessions, r)
	if user != nil && msg.SubjectID == "" {
		msg.SubjectID = user.SubjectID
		msg.SessionID = user.SessionID
	}
	h.signOut(w, r, user, msg)

	endSessionID, err := h.sessions.Protect(endSessionPurpose, msg)
	if err != nil {
		h.logger.Error("Failed to protect end session message", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to sign out", nil, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{
		RedirectURL: domain.PathEndSessionCallback + "?" + url.Values{endSessionIDParam: {endSessionID}}.Encode(),
	}, h.logger)
}

// signOut ends the user's session and records the clients that must be told about it.
// The id_token_hint client is notified when the session knows of no client.
func (h *EndSessionHandler) signOut(w http.ResponseWriter, r *http.Request, user *domain.Principal, msg *logout.Message) {
	if user != nil {
		clientIDs, err := h.sessions.GetClientIDs(r)
		if err != nil {
			h.logger.Debug("No client list in session", zap.Error(err))
		}
		msg.ClientIDs = clientIDs
		if err := h.sessions.SignOut(w, r); err != nil {
			h.logger.Error("Failed to clear session", zap.String("sub", user.SubjectID), zap.Error(err))
		}
		h.events.Raise(r.Context(), events.UserLogoutSuccess(user.SubjectID))
		h.logger.Info("User signed out", zap.String("sub", user.SubjectID), zap.String("sid", user.SessionID))
	}
	if len(msg.ClientIDs) == 0 && msg.ClientID != "" {
		msg.ClientIDs = []string{msg.ClientID}
	}
}

func (h *EndSessionHandler) redirectToCallback(w http.ResponseWriter, r *http.Request, msg *logout.Message) {
	endSessionID, err := h.sessions.Protect(endSessionPurpose, msg)
	if err != nil {
		h.logger.Error("Failed to protect end session message", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	http.Redirect(w, r, domain.PathEndSessionCallback+"?"+url.Values{endSessionIDParam: {endSessionID}}.Encode(), http.StatusFound)
}

// HandleCallback posts the back-channel logout tokens and renders the front-channel
// iframes before redirecting to the client's post logout URI
func (h *EndSessionHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	var msg logout.Message
	if err := h.sessions.Unprotect(endSessionPurpose, r.URL.Query().Get(endSessionIDParam), &msg); err != nil {
		h.logger.Debug("Invalid end session id", zap.Error(err))
		httperrors.RespondWithProtocolError(w, apperrors.NewInvalidRequest("invalid "+endSessionIDParam))
		return
	}

	frontChannel, err := h.notifications.GetFrontChannelLogoutURLs(r.Context(), &msg)
	if err != nil {
		h.logger.Error("Failed to load front-channel logout urls", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.options.Logout.BackChannelLogoutTimeout)
	defer cancel()
	if err := h.backChannel.SendLogoutNotifications(ctx, &msg); err != nil {
		h.logger.Warn("Back-channel logout failed", zap.String("sub", msg.SubjectID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := signedOutTemplate.Execute(w, signedOut{FrontChannelURLs: frontChannel, RedirectURL: msg.RedirectURL()}); err != nil {
		h.logger.Error("Failed to render signed out page", zap.Error(err))
	}
}
