package apperrors

import (
	"errors"
	"net/http"
)

// OAuth 2.0 / OpenID Connect error codes
const (
	InvalidRequest           = "invalid_request"
	InvalidClient            = "invalid_client"
	InvalidGrant             = "invalid_grant"
	UnauthorizedClient       = "unauthorized_client"
	UnsupportedGrantType     = "unsupported_grant_type"
	UnsupportedResponseType  = "unsupported_response_type"
	InvalidScope             = "invalid_scope"
	AccessDenied             = "access_denied"
	ConsentRequired          = "consent_required"
	LoginRequired            = "login_required"
	InteractionRequired      = "interaction_required"
	AccountSelectionRequired = "account_selection_required"
	AuthorizationPending     = "authorization_pending"
	SlowDown                 = "slow_down"
	ExpiredToken             = "expired_token"
	UnsupportedTokenType     = "unsupported_token_type"
	InvalidToken             = "invalid_token"
	InsufficientScope        = "insufficient_scope"
	InvalidTarget            = "invalid_target"
	RequestNotSupported      = "request_not_supported"
	TemporarilyUnavailable   = "temporarily_unavailable"
	ServerError              = "server_error"
)

// ProtocolError is an expected, client-facing protocol outcome.
// @Description An OAuth 2.0 error response
type ProtocolError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

// Error returns the error code and description
func (e *ProtocolError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// New creates a protocol error answered with 400
func New(code, description string) *ProtocolError {
	return &ProtocolError{Code: code, Description: description, Status: http.StatusBadRequest}
}

// NewInvalidRequest creates an invalid_request error
func NewInvalidRequest(description string) *ProtocolError {
	return New(InvalidRequest, description)
}

// NewInvalidClient creates an invalid_client error answered with 401
func NewInvalidClient(description string) *ProtocolError {
	return &ProtocolError{Code: InvalidClient, Description: description, Status: http.StatusUnauthorized}
}

// NewInvalidGrant creates an invalid_grant error
func NewInvalidGrant(description string) *ProtocolError {
	return New(InvalidGrant, description)
}

// NewUnauthorizedClient creates an unauthorized_client error
func NewUnauthorizedClient(description string) *ProtocolError {
	return New(UnauthorizedClient, description)
}

// NewUnsupportedGrantType creates an unsupported_grant_type error
func NewUnsupportedGrantType(description string) *ProtocolError {
	return New(UnsupportedGrantType, description)
}

// NewInvalidScope creates an invalid_scope error
func NewInvalidScope(description string) *ProtocolError {
	return New(InvalidScope, description)
}

// NewAccessDenied creates an access_denied error
func NewAccessDenied(description string) *ProtocolError {
	return New(AccessDenied, description)
}

// NewInvalidToken creates an invalid_token error answered with 401
func NewInvalidToken(description string) *ProtocolError {
	return &ProtocolError{Code: InvalidToken, Description: description, Status: http.StatusUnauthorized}
}

// NewInsufficientScope creates an insufficient_scope error answered with 403
func NewInsufficientScope(description string) *ProtocolError {
	return &ProtocolError{Code: InsufficientScope, Description: description, Status: http.StatusForbidden}
}

// IsSafeForRedirect reports whether the error may be sent back to the client's redirect URI.
// Everything else is shown to the user instead.
func (e *ProtocolError) IsSafeForRedirect() bool {
	switch e.Code {
	case AccessDenied, AccountSelectionRequired, LoginRequired, ConsentRequired, InteractionRequired:
		return true
	}
	return false
}

// AsProtocolError extracts a *ProtocolError from err
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsProtocolError checks if the error carries the given protocol code
func IsProtocolError(err error, code string) bool {
	pe, ok := AsProtocolError(err)
	return ok && pe.Code == code
}
