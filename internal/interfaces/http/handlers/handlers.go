package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"github.com/manorfm/identityserver/internal/infrastructure/session"
	httperrors "github.com/manorfm/identityserver/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const formContentType = "application/x-www-form-urlencoded"

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// decodeRequest reads a JSON body into req and checks its validate tags. On failure
// the error response has already been written.
func decodeRequest(w http.ResponseWriter, r *http.Request, req interface{}, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.Debug("Failed to decode request body", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInvalidRequest, "Invalid request body", nil, http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(req); err != nil {
		details := httperrors.FromValidator(err)
		logger.Debug("Invalid request", zap.Any("validation_errors", details))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", details.ToErrorDetails(), http.StatusBadRequest)
		return false
	}
	return true
}

// protocolForm returns the form body of a protocol POST
func protocolForm(r *http.Request) (url.Values, *apperrors.ProtocolError) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != formContentType {
		return nil, apperrors.NewInvalidRequest("form content type required")
	}
	if err := r.ParseForm(); err != nil {
		return nil, apperrors.NewInvalidRequest("malformed form body")
	}
	return r.PostForm, nil
}

// requestValues returns the query for GET and the form body for POST
func requestValues(r *http.Request) (url.Values, *apperrors.ProtocolError) {
	if r.Method == http.MethodPost {
		return protocolForm(r)
	}
	return r.URL.Query(), nil
}

// currentUser returns the signed-in user, nil for anonymous requests
func currentUser(sessions *session.Manager, r *http.Request) *domain.Principal {
	principal, err := sessions.GetPrincipal(r)
	if err != nil {
		return nil
	}
	return principal
}

// authenticateClient parses the client credentials from the Authorization header or the form body
func authenticateClient(ctx context.Context, r *http.Request, form url.Values, secrets *validation.ClientSecretValidator,
	options domain.Options) (*validation.ClientSecretValidationResult, error) {
	parsed, pe := validation.ParseSecret(r.Header.Get("Authorization"), form, options.InputLengthRestrictions)
	if pe != nil {
		return &validation.ClientSecretValidationResult{Error: pe}, nil
	}
	return secrets.Validate(ctx, parsed)
}

// withQuery appends params to target, which may already carry a query
func withQuery(target string, params url.Values) string {
	u, err := url.Parse(target)
	if err != nil || u.RawQuery == "" {
		return target + "?" + params.Encode()
	}
	return target + "&" + params.Encode()
}
