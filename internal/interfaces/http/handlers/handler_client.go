package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/manorfm/identityserver/internal/interfaces/http/dto"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// ClientHandler manages the client registry
type ClientHandler struct {
	clients domain.ClientRepository
	logger  *zap.Logger
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients domain.ClientRepository, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clients: clients,
		logger:  logger,
	}
}

func hashSecrets(secrets []string) []string {
	hashed := make([]string, 0, len(secrets))
	for _, s := range secrets {
		hashed = append(hashed, password.HashSecret(s))
	}
	return hashed
}

// CreateClientHandler registers a new client
func (h *ClientHandler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.ClientRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	client := domain.NewClient()
	req.ApplyTo(client, hashSecrets(req.Secrets))
	if client.RequireClientSecret && len(client.ClientSecrets) == 0 {
		var errs httperrors.ValidationErrors
		errs.Add("secrets", "is required for confidential clients")
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", errs.ToErrorDetails(), http.StatusBadRequest)
		return
	}

	if err := h.clients.CreateClient(r.Context(), client); err != nil {
		if errors.Is(err, domain.ErrClientAlreadyExists) {
			httperrors.RespondWithError(w, httperrors.ErrCodeConflict, "Client already exists", nil, http.StatusConflict)
			return
		}
		h.logger.Error("Failed to create client", zap.String("client_id", client.ClientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to create client", nil, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client created", zap.String("client_id", client.ClientID))
	writeJSON(w, http.StatusCreated, dto.NewClientResponse(client), h.logger)
}

// UpdateClientHandler replaces a client's settings. Secrets are kept unless new ones are sent.
func (h *ClientHandler) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var req dto.ClientRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}
	if req.ClientID != clientID {
		var errs httperrors.ValidationErrors
		errs.Add("client_id", "must match the client in the URL")
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", errs.ToErrorDetails(), http.StatusBadRequest)
		return
	}

	client, ok := h.findClient(w, r, clientID)
	if !ok {
		return
	}
	req.ApplyTo(client, hashSecrets(req.Secrets))

	if err := h.clients.UpdateClient(r.Context(), client); err != nil {
		h.logger.Error("Failed to update client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to update client", nil, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client updated", zap.String("client_id", clientID))
	writeJSON(w, http.StatusOK, dto.NewClientResponse(client), h.logger)
}

// DeleteClientHandler removes a client
func (h *ClientHandler) DeleteClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	if err := h.clients.DeleteClient(r.Context(), clientID); err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to delete client", nil, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Client deleted", zap.String("client_id", clientID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandler) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListClients(r.Context())
	if err != nil {
		h.logger.Error("Failed to list clients", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to list clients", nil, http.StatusInternalServerError)
		return
	}

	out := make([]*dto.ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, dto.NewClientResponse(c))
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

func (h *ClientHandler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	client, ok := h.findClient(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.NewClientResponse(client), h.logger)
}

func (h *ClientHandler) findClient(w http.ResponseWriter, r *http.Request, clientID string) (*domain.Client, bool) {
	client, err := h.clients.FindClientByID(r.Context(), clientID)
	if errors.Is(err, domain.ErrClientNotFound) {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to find client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to find client", nil, http.StatusInternalServerError)
		return nil, false
	}
	return client, true
}
