package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
)

// SetNoCache marks a response as never cacheable. Every protocol response carries it.
func SetNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0")
	w.Header().Set("Pragma", "no-cache")
}

// RespondWithProtocolError sends an OAuth error body with the error's status
func RespondWithProtocolError(w http.ResponseWriter, pe *apperrors.ProtocolError) {
	status := pe.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	switch pe.Code {
	case apperrors.InvalidToken, apperrors.InsufficientScope:
		w.Header().Set("WWW-Authenticate", bearerChallenge(pe))
	case apperrors.InvalidClient:
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Basic realm="identityserver"`)
		}
	}

	SetNoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(pe)
}

// RespondWithServerError answers an operational failure. Its details never reach the caller.
func RespondWithServerError(w http.ResponseWriter) {
	RespondWithProtocolError(w, &apperrors.ProtocolError{Code: apperrors.ServerError, Status: http.StatusInternalServerError})
}

func bearerChallenge(pe *apperrors.ProtocolError) string {
	if pe.Description == "" {
		return fmt.Sprintf(`Bearer error="%s"`, pe.Code)
	}
	return fmt.Sprintf(`Bearer error="%s", error_description="%s"`, pe.Code, pe.Description)
}
