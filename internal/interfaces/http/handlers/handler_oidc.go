package handlers

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/manorfm/identityserver/internal/application/response"
	"github.com/manorfm/identityserver/internal/application/validation"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// KeySetProvider publishes the token validation keys
type KeySetProvider interface {
	JWKS() (jwk.Set, error)
}

// OIDCHandler serves discovery, the key set and userinfo
type OIDCHandler struct {
	discovery *response.DiscoveryResponseGenerator
	keys      KeySetProvider
	tokens    *validation.TokenValidator
	userInfo  *response.UserInfoResponseGenerator
	logger    *zap.Logger
}

func NewOIDCHandler(discovery *response.DiscoveryResponseGenerator, keys KeySetProvider, tokens *validation.TokenValidator,
	userInfo *response.UserInfoResponseGenerator, logger *zap.Logger) *OIDCHandler {
	return &OIDCHandler{
		discovery: discovery,
		keys:      keys,
		tokens:    tokens,
		userInfo:  userInfo,
		logger:    logger,
	}
}

func (h *OIDCHandler) HandleDiscovery(w http.ResponseWriter, r *http.Request) {
	doc, err := h.discovery.CreateDiscoveryDocument(r.Context())
	if err != nil {
		h.logger.Error("Failed to create discovery document", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, doc, h.logger)
}

func (h *OIDCHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := h.keys.JWKS()
	if err != nil {
		h.logger.Error("Failed to build JWKS", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, set, h.logger)
}

// HandleUserInfo accepts the access token as a bearer header or, on POST, as a form field
func (h *OIDCHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	token := jwtauth.TokenFromHeader(r)
	if token == "" && r.Method == http.MethodPost {
		if form, pe := protocolForm(r); pe == nil {
			token = form.Get("access_token")
		}
	}

	result, err := validation.ValidateUserInfoRequest(r.Context(), h.tokens, token)
	if err != nil {
		h.logger.Error("Failed to validate userinfo request", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		h.logger.Debug("Userinfo request rejected", zap.String("reason", result.Error.Description))
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}

	claims, err := h.userInfo.Process(r.Context(), result)
	if err != nil {
		h.logger.Error("Failed to create userinfo response", zap.String("sub", result.Subject.SubjectID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, claims, h.logger)
}
