package handlers

import (
	"errors"
	"net/http"

	"github.com/manorfm/identityserver/internal/application"
	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/interaction"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// AccountHandler is the JSON back end of the login, consent and device verification pages
type AccountHandler struct {
	accounts    *application.AccountService
	interaction *interaction.Service
	devices     *interaction.DeviceFlowInteractionService
	sessions    *session.Manager
	events      *events.Service
	options     domain.Options
	logger      *zap.Logger
}

func NewAccountHandler(accounts *application.AccountService, interaction *interaction.Service,
	devices *interaction.DeviceFlowInteractionService, sessions *session.Manager, events *events.Service,
	options domain.Options, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:    accounts,
		interaction: interaction,
		devices:     devices,
		sessions:    sessions,
		events:      events,
		options:     options,
		logger:      logger,
	}
}

type loginRequest struct {
	Username  string `json:"username" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,max=100"`
	ReturnURL string `json:"return_url"`
}

// ClientInfo is what the UI pages show about the client asking for access
type ClientInfo struct {
	ClientID             string `json:"client_id"`
	ClientName           string `json:"client_name,omitempty"`
	AllowRememberConsent bool   `json:"allow_remember_consent"`
}

type loginContextResponse struct {
	Client           ClientInfo `json:"client"`
	LoginHint        string     `json:"login_hint,omitempty"`
	IdP              string     `json:"idp,omitempty"`
	Tenant           string     `json:"tenant,omitempty"`
	EnableLocalLogin bool       `json:"enable_local_login"`
}

// ScopeInfo describes one scope on the consent page
type ScopeInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Emphasize   bool   `json:"emphasize"`
}

type consentContextResponse struct {
	Client         ClientInfo  `json:"client"`
	IdentityScopes []ScopeInfo `json:"identity_scopes"`
	ApiScopes      []ScopeInfo `json:"api_scopes"`
	OfflineAccess  bool        `json:"offline_access"`
}

type consentRequest struct {
	ReturnURL string   `json:"return_url" validate:"required"`
	Scopes    []string `json:"scopes"`
	Remember  bool     `json:"remember"`
	Deny      bool     `json:"deny"`
}

type deviceRequest struct {
	UserCode string   `json:"user_code" validate:"required,max=100"`
	Scopes   []string `json:"scopes"`
	Remember bool     `json:"remember"`
	Deny     bool     `json:"deny"`
}

type deviceResponse struct {
	Status string `json:"status"`
}

func clientInfo(c *domain.Client) ClientInfo {
	return ClientInfo{ClientID: c.ClientID, ClientName: c.ClientName, AllowRememberConsent: c.AllowRememberConsent}
}

func scopeInfos(resources *domain.Resources) (identity, api []ScopeInfo) {
	identity, api = []ScopeInfo{}, []ScopeInfo{}
	if resources == nil {
		return identity, api
	}
	for _, ir := range resources.IdentityResources {
		identity = append(identity, ScopeInfo{Name: ir.Name, DisplayName: ir.DisplayName, Description: ir.Description, Required: ir.Required, Emphasize: ir.Emphasize})
	}
	for _, s := range resources.ApiScopes {
		api = append(api, ScopeInfo{Name: s.Name, DisplayName: s.DisplayName, Description: s.Description, Required: s.Required, Emphasize: s.Emphasize})
	}
	return identity, api
}

// HandleLoginContext describes the pending authorize request to the login page
func (h *AccountHandler) HandleLoginContext(w http.ResponseWriter, r *http.Request) {
	returnURL := r.URL.Query().Get(h.options.UserInteraction.LoginReturnURLParam)
	authz, err := h.interaction.GetAuthorizationContext(r.Context(), returnURL, nil)
	if err != nil {
		h.logger.Error("Failed to load authorization context", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to load login context", nil, http.StatusInternalServerError)
		return
	}
	if authz == nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid return url", nil, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, loginContextResponse{
		Client:           clientInfo(authz.Client),
		LoginHint:        authz.LoginHint,
		IdP:              authz.IdP,
		Tenant:           authz.Tenant,
		EnableLocalLogin: authz.Client.EnableLocalLogin,
	}, h.logger)
}

func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	var clientID string
	if req.ReturnURL != "" {
		authz, err := h.interaction.GetAuthorizationContext(r.Context(), req.ReturnURL, nil)
		if err != nil {
			h.logger.Error("Failed to load authorization context", zap.Error(err))
			httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to sign in", nil, http.StatusInternalServerError)
			return
		}
		if authz == nil {
			httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid return url", nil, http.StatusBadRequest)
			return
		}
		clientID = authz.Client.ClientID
	}

	principal, err := h.accounts.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.events.Raise(r.Context(), events.UserLoginFailure(req.Username, "invalid credentials", clientID))
			httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "Invalid credentials", nil, http.StatusUnauthorized)
			return
		}
		h.logger.Error("Failed to validate credentials", zap.String("username", req.Username), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to sign in", nil, http.StatusInternalServerError)
		return
	}

	if err := h.sessions.SignIn(w, r, principal); err != nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to sign in", nil, http.StatusInternalServerError)
		return
	}
	h.events.Raise(r.Context(), events.UserLoginSuccess(req.Username, principal.SubjectID, clientID))

	redirectURL := req.ReturnURL
	if redirectURL == "" {
		redirectURL = "/"
	}
	writeJSON(w, http.StatusOK, redirectResponse{RedirectURL: redirectURL}, h.logger)
}

// HandleConsentContext describes the requested scopes to the consent page
func (h *AccountHandler) HandleConsentContext(w http.ResponseWriter, r *http.Request) {
	user := currentUser(h.sessions, r)
	if user == nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "User not authenticated", nil, http.StatusUnauthorized)
		return
	}

	returnURL := r.URL.Query().Get(h.options.UserInteraction.ConsentReturnURLParam)
	authz, err := h.interaction.GetAuthorizationContext(r.Context(), returnURL, user)
	if err != nil {
		h.logger.Error("Failed to load authorization context", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to load consent context", nil, http.StatusInternalServerError)
		return
	}
	if authz == nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid return url", nil, http.StatusBadRequest)
		return
	}

	identity, api := scopeInfos(authz.Resources)
	writeJSON(w, http.StatusOK, consentContextResponse{
		Client:         clientInfo(authz.Client),
		IdentityScopes: identity,
		ApiScopes:      api,
		OfflineAccess:  authz.Resources != nil && authz.Resources.OfflineAccess,
	}, h.logger)
}

// HandleConsent stores the user's answer for the authorize callback
func (h *AccountHandler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user := currentUser(h.sessions, r)
	consent := &domain.ConsentResponse{ScopesValuesConsented: req.Scopes, RememberConsent: req.Remember}
	if req.Deny {
		consent = &domain.ConsentResponse{Error: domain.ConsentDenied}
	}

	requestID, err := h.interaction.GrantConsent(r.Context(), req.ReturnURL, user, consent)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "User not authenticated", nil, http.StatusUnauthorized)
		return
	case errors.Is(err, interaction.ErrInvalidReturnURL):
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid return url", nil, http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("Failed to grant consent", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to record consent", nil, http.StatusInternalServerError)
		return
	}

	if err := h.sessions.WriteConsent(w, requestID, consent); err != nil {
		h.logger.Error("Failed to write consent", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to record consent", nil, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, redirectResponse{RedirectURL: req.ReturnURL}, h.logger)
}

// HandleDeviceContext describes a pending device authorization to the verification page
func (h *AccountHandler) HandleDeviceContext(w http.ResponseWriter, r *http.Request) {
	userCode := r.URL.Query().Get(h.options.UserInteraction.DeviceUserCodeParam)
	if userCode == "" {
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "User code is required", nil, http.StatusBadRequest)
		return
	}

	authz, err := h.devices.GetAuthorizationContext(r.Context(), userCode)
	if err != nil {
		h.logger.Error("Failed to load device authorization", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to load device authorization", nil, http.StatusInternalServerError)
		return
	}
	if authz == nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Invalid user code", nil, http.StatusNotFound)
		return
	}

	identity, api := scopeInfos(authz.Resources)
	writeJSON(w, http.StatusOK, consentContextResponse{
		Client:         clientInfo(authz.Client),
		IdentityScopes: identity,
		ApiScopes:      api,
		OfflineAccess:  authz.Resources.OfflineAccess,
	}, h.logger)
}

// HandleDevice records the signed-in user's answer for a user code
func (h *AccountHandler) HandleDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	user := currentUser(h.sessions, r)
	if user == nil {
		httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "User not authenticated", nil, http.StatusUnauthorized)
		return
	}

	consent := &domain.ConsentResponse{ScopesValuesConsented: req.Scopes, RememberConsent: req.Remember}
	if req.Deny {
		consent = &domain.ConsentResponse{Error: domain.ConsentDenied}
	}

	result, err := h.devices.HandleRequest(r.Context(), req.UserCode, consent, user)
	if err != nil {
		h.logger.Error("Failed to handle device authorization", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to record device authorization", nil, http.StatusInternalServerError)
		return
	}
	switch {
	case result.IsError:
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, result.ErrorDescription, nil, http.StatusBadRequest)
	case result.IsAccessDenied:
		writeJSON(w, http.StatusOK, deviceResponse{Status: "denied"}, h.logger)
	default:
		writeJSON(w, http.StatusOK, deviceResponse{Status: "authorized"}, h.logger)
	}
}
