package handlers

import (
	"net/http"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/response"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const tokenEndpoint = "Token"

// TokenHandler runs the token endpoint
type TokenHandler struct {
	clientSecrets *validation.ClientSecretValidator
	validator     *validation.TokenRequestValidator
	responses     *response.TokenResponseGenerator
	events        *events.Service
	options       domain.Options
	logger        *zap.Logger
}

func NewTokenHandler(clientSecrets *validation.ClientSecretValidator, validator *validation.TokenRequestValidator,
	responses *response.TokenResponseGenerator, events *events.Service, options domain.Options, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		clientSecrets: clientSecrets,
		validator:     validator,
		responses:     responses,
		events:        events,
		options:       options,
		logger:        logger,
	}
}

func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	form, pe := protocolForm(r)
	if pe != nil {
		h.fail(w, r, "", "", pe)
		return
	}

	client, err := authenticateClient(r.Context(), r, form, h.clientSecrets, h.options)
	if err != nil {
		h.logger.Error("Failed to authenticate client", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if client.Error != nil {
		h.fail(w, r, "", form.Get("grant_type"), client.Error)
		return
	}

	result, err := h.validator.Validate(r.Context(), validation.ParseTokenRequest(form), client)
	if err != nil {
		h.logger.Error("Failed to validate token request", zap.String("client_id", client.Client.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		h.fail(w, r, client.Client.ClientID, form.Get("grant_type"), result.Error)
		return
	}

	resp, err := h.responses.Process(r.Context(), result.ValidatedRequest)
	if err != nil {
		h.logger.Error("Failed to create token response", zap.String("client_id", client.Client.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, resp.Fields(), h.logger)
}

func (h *TokenHandler) fail(w http.ResponseWriter, r *http.Request, clientID, grantType string, pe *apperrors.ProtocolError) {
	h.logger.Debug("Token request failed",
		zap.String("client_id", clientID),
		zap.String("grant_type", grantType),
		zap.String("error", pe.Code))
	h.events.Raise(r.Context(), events.TokenIssuedFailure(clientID, tokenEndpoint, grantType, pe.Code, pe.Description))
	httperrors.RespondWithProtocolError(w, pe)
}

// IntrospectionHandler lets APIs look up the tokens presented to them
type IntrospectionHandler struct {
	apiSecrets *validation.ApiSecretValidator
	validator  *validation.IntrospectionRequestValidator
	responses  *response.IntrospectionResponseGenerator
	events     *events.Service
	options    domain.Options
	logger     *zap.Logger
}

func NewIntrospectionHandler(apiSecrets *validation.ApiSecretValidator, validator *validation.IntrospectionRequestValidator,
	responses *response.IntrospectionResponseGenerator, events *events.Service, options domain.Options, logger *zap.Logger) *IntrospectionHandler {
	return &IntrospectionHandler{
		apiSecrets: apiSecrets,
		validator:  validator,
		responses:  responses,
		events:     events,
		options:    options,
		logger:     logger,
	}
}

func (h *IntrospectionHandler) HandleIntrospect(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	form, pe := protocolForm(r)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}

	parsed, pe := validation.ParseSecret(r.Header.Get("Authorization"), form, h.options.InputLengthRestrictions)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}
	api, err := h.apiSecrets.Validate(r.Context(), parsed)
	if err != nil {
		h.logger.Error("Failed to authenticate api", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if api.Error != nil {
		httperrors.RespondWithProtocolError(w, api.Error)
		return
	}

	result, err := h.validator.Validate(r.Context(), validation.ParseIntrospectionRequest(form), api.Resource)
	if err != nil {
		h.logger.Error("Failed to introspect token", zap.String("api", api.Resource.Name), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		h.events.Raise(r.Context(), events.TokenIntrospectionFailure(api.Resource.Name, result.Error.Description))
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}
	writeJSON(w, http.StatusOK, h.responses.Process(r.Context(), result), h.logger)
}

// RevocationHandler lets clients revoke their refresh tokens and reference access tokens
type RevocationHandler struct {
	clientSecrets *validation.ClientSecretValidator
	responses     *response.RevocationResponseGenerator
	options       domain.Options
	logger        *zap.Logger
}

func NewRevocationHandler(clientSecrets *validation.ClientSecretValidator, responses *response.RevocationResponseGenerator,
	options domain.Options, logger *zap.Logger) *RevocationHandler {
	return &RevocationHandler{
		clientSecrets: clientSecrets,
		responses:     responses,
		options:       options,
		logger:        logger,
	}
}

func (h *RevocationHandler) HandleRevocation(w http.ResponseWriter, r *http.Request) {
	form, pe := protocolForm(r)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}

	client, err := authenticateClient(r.Context(), r, form, h.clientSecrets, h.options)
	if err != nil {
		h.logger.Error("Failed to authenticate client", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if client.Error != nil {
		httperrors.RespondWithProtocolError(w, client.Error)
		return
	}

	result := validation.ValidateRevocationRequest(validation.ParseRevocationRequest(form), client.Client)
	if result.Error != nil {
		h.logger.Debug("Revocation request rejected", zap.String("client_id", client.Client.ClientID), zap.String("error", result.Error.Code))
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}
	if err := h.responses.Process(r.Context(), result); err != nil {
		h.logger.Error("Failed to revoke token", zap.String("client_id", client.Client.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeviceAuthorizationHandler starts the device flow
type DeviceAuthorizationHandler struct {
	clientSecrets *validation.ClientSecretValidator
	validator     *validation.DeviceAuthorizationRequestValidator
	responses     *response.DeviceAuthorizationResponseGenerator
	events        *events.Service
	options       domain.Options
	logger        *zap.Logger
}

func NewDeviceAuthorizationHandler(clientSecrets *validation.ClientSecretValidator, validator *validation.DeviceAuthorizationRequestValidator,
	responses *response.DeviceAuthorizationResponseGenerator, events *events.Service, options domain.Options,
	logger *zap.Logger) *DeviceAuthorizationHandler {
	return &DeviceAuthorizationHandler{
		clientSecrets: clientSecrets,
		validator:     validator,
		responses:     responses,
		events:        events,
		options:       options,
		logger:        logger,
	}
}

func (h *DeviceAuthorizationHandler) HandleDeviceAuthorization(w http.ResponseWriter, r *http.Request) {
	httperrors.SetNoCache(w)

	form, pe := requestValues(r)
	if pe != nil {
		httperrors.RespondWithProtocolError(w, pe)
		return
	}

	client, err := authenticateClient(r.Context(), r, form, h.clientSecrets, h.options)
	if err != nil {
		h.logger.Error("Failed to authenticate client", zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if client.Error != nil {
		httperrors.RespondWithProtocolError(w, client.Error)
		return
	}

	result, err := h.validator.Validate(r.Context(), validation.ParseDeviceAuthorizationRequest(form), client.Client)
	if err != nil {
		h.logger.Error("Failed to validate device authorization", zap.String("client_id", client.Client.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	if result.Error != nil {
		h.events.Raise(r.Context(), events.DeviceAuthorizationFailure(client.Client.ClientID, result.Error.Code, result.Error.Description))
		httperrors.RespondWithProtocolError(w, result.Error)
		return
	}

	resp, err := h.responses.Process(r.Context(), result.ValidatedRequest)
	if err != nil {
		h.logger.Error("Failed to create device authorization", zap.String("client_id", client.Client.ClientID), zap.Error(err))
		httperrors.RespondWithServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
