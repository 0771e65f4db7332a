package validation

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// ValidatedDeviceAuthorizationRequest is a device authorization request that passed validation.
type ValidatedDeviceAuthorizationRequest struct {
	domain.ValidatedRequest
	RequestedScopes []string
	IsOpenIDRequest bool
}

// DeviceAuthorizationValidationResult is the outcome of device authorization validation.
type DeviceAuthorizationValidationResult struct {
	ValidatedRequest *ValidatedDeviceAuthorizationRequest
	Error            *apperrors.ProtocolError
}

// DeviceAuthorizationRequestValidator validates device authorization requests.
type DeviceAuthorizationRequestValidator struct {
	resources *ResourceValidator
	options   domain.Options
	logger    *zap.Logger
}

func NewDeviceAuthorizationRequestValidator(resources *ResourceValidator, options domain.Options, logger *zap.Logger) *DeviceAuthorizationRequestValidator {
	return &DeviceAuthorizationRequestValidator{resources: resources, options: options, logger: logger}
}

// Validate checks a device authorization request from an authenticated client
func (v *DeviceAuthorizationRequestValidator) Validate(ctx context.Context, req *DeviceAuthorizationRequest, client *domain.Client) (*DeviceAuthorizationValidationResult, error) {
	fail := func(pe *apperrors.ProtocolError) (*DeviceAuthorizationValidationResult, error) {
		v.logger.Debug("Device authorization rejected", zap.String("client_id", client.ClientID), zap.String("error", pe.Code))
		return &DeviceAuthorizationValidationResult{Error: pe}, nil
	}

	if !client.HasGrantType(domain.GrantTypeDeviceCode) {
		return fail(apperrors.NewUnauthorizedClient("client not authorized for device flow"))
	}
	if len(req.Scope) > v.options.InputLengthRestrictions.Scope {
		return fail(apperrors.NewInvalidRequest("scope too long"))
	}

	scopes := ParseScopes(req.Scope)
	if len(scopes) == 0 {
		scopes = append(scopes, client.AllowedScopes...)
	}
	resources, pe, err := v.resources.Validate(ctx, client, scopes)
	if err != nil {
		return nil, err
	}
	if pe != nil {
		return fail(pe)
	}

	validated := &ValidatedDeviceAuthorizationRequest{
		RequestedScopes: resources.ScopeNames(),
		IsOpenIDRequest: resources.IsOpenID(),
	}
	validated.SetClient(client)
	validated.Resources = resources
	return &DeviceAuthorizationValidationResult{ValidatedRequest: validated}, nil
}
