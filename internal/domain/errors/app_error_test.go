package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolError(t *testing.T) {
	tests := []struct {
		name       string
		err        *ProtocolError
		wantErr    string
		wantCode   string
		wantStatus int
	}{
		{
			name:       "invalid_request",
			err:        NewInvalidRequest("scope is missing"),
			wantErr:    "invalid_request: scope is missing",
			wantCode:   InvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid_client",
			err:        NewInvalidClient(""),
			wantErr:    "invalid_client",
			wantCode:   InvalidClient,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid_grant",
			err:        NewInvalidGrant("invalid authorization code"),
			wantErr:    "invalid_grant: invalid authorization code",
			wantCode:   InvalidGrant,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "insufficient_scope",
			err:        NewInsufficientScope(""),
			wantErr:    "insufficient_scope",
			wantCode:   InsufficientScope,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, tt.err.Error())
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
		})
	}
}

func TestIsSafeForRedirect(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{AccessDenied, true},
		{LoginRequired, true},
		{ConsentRequired, true},
		{InteractionRequired, true},
		{AccountSelectionRequired, true},
		{InvalidRequest, false},
		{UnauthorizedClient, false},
		{InvalidScope, false},
		{ServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "").IsSafeForRedirect())
		})
	}
}

func TestAsProtocolError(t *testing.T) {
	wrapped := fmt.Errorf("validating: %w", NewInvalidGrant("expired"))

	pe, ok := AsProtocolError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, InvalidGrant, pe.Code)
	assert.True(t, IsProtocolError(wrapped, InvalidGrant))
	assert.False(t, IsProtocolError(wrapped, InvalidClient))

	_, ok = AsProtocolError(errors.New("boom"))
	assert.False(t, ok)
}
