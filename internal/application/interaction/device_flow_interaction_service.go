package interaction

import (
	"context"
	"errors"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// DeviceFlowAuthorizationContext describes a pending device authorization to the verification page.
type DeviceFlowAuthorizationContext struct {
	Client          *domain.Client
	ScopesRequested []string
	Resources       *domain.Resources
}

// DeviceFlowInteractionResult is the outcome of the user's answer on the verification page.
type DeviceFlowInteractionResult struct {
	IsError          bool
	ErrorDescription string
	IsAccessDenied   bool
}

func deviceFailure(description string) *DeviceFlowInteractionResult {
	return &DeviceFlowInteractionResult{IsError: true, ErrorDescription: description}
}

// DeviceFlowInteractionService backs the device verification page.
type DeviceFlowInteractionService struct {
	clients   domain.ClientStore
	devices   domain.DeviceFlowStore
	resources domain.ResourceStore
	consent   *ConsentService
	events    *events.Service
	clock     domain.Clock
	logger    *zap.Logger
}

func NewDeviceFlowInteractionService(clients domain.ClientStore, devices domain.DeviceFlowStore, resources domain.ResourceStore,
	consent *ConsentService, events *events.Service, clock domain.Clock, logger *zap.Logger) *DeviceFlowInteractionService {
	return &DeviceFlowInteractionService{
		clients:   clients,
		devices:   devices,
		resources: resources,
		consent:   consent,
		events:    events,
		clock:     clock,
		logger:    logger,
	}
}

// pending loads the device authorization behind userCode, nil when it is unknown,
// expired or already answered
func (s *DeviceFlowInteractionService) pending(ctx context.Context, userCode string) (*domain.DeviceCode, *domain.Client, error) {
	if userCode == "" {
		return nil, nil, nil
	}
	device, err := s.devices.FindByUserCode(ctx, userCode)
	if err != nil {
		if errors.Is(err, domain.ErrPersistedGrantNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if device.IsExpired(s.clock.Now()) || device.IsAuthorized || device.IsDenied {
		return nil, nil, nil
	}

	client, err := s.clients.FindClientByID(ctx, device.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !client.Enabled {
		return nil, nil, nil
	}
	return device, client, nil
}

// GetAuthorizationContext returns what the verification page shows for userCode,
// nil when the code cannot be answered
func (s *DeviceFlowInteractionService) GetAuthorizationContext(ctx context.Context, userCode string) (*DeviceFlowAuthorizationContext, error) {
	device, client, err := s.pending(ctx, userCode)
	if err != nil || device == nil {
		return nil, err
	}

	identity, err := s.resources.FindIdentityResourcesByScopeName(ctx, device.RequestedScopes)
	if err != nil {
		return nil, err
	}
	apiScopes, err := s.resources.FindApiScopesByName(ctx, device.RequestedScopes)
	if err != nil {
		return nil, err
	}
	return &DeviceFlowAuthorizationContext{
		Client:          client,
		ScopesRequested: device.RequestedScopes,
		Resources: &domain.Resources{
			IdentityResources: identity,
			ApiScopes:         apiScopes,
			OfflineAccess:     containsValue(device.RequestedScopes, domain.ScopeOfflineAccess),
		},
	}, nil
}

// HandleRequest records the signed-in user's answer for userCode. A granted answer
// authorizes the device for the consented subset of the requested scopes.
func (s *DeviceFlowInteractionService) HandleRequest(ctx context.Context, userCode string, consent *domain.ConsentResponse,
	subject *domain.Principal) (*DeviceFlowInteractionResult, error) {
	if !subject.IsAuthenticated() {
		return deviceFailure("no user present"), nil
	}
	device, client, err := s.pending(ctx, userCode)
	if err != nil {
		return nil, err
	}
	if device == nil {
		s.logger.Debug("Unknown or answered user code")
		return deviceFailure("invalid user code"), nil
	}

	if !consent.Granted() {
		device.IsDenied = true
		if err := s.devices.UpdateByUserCode(ctx, userCode, device); err != nil {
			return nil, err
		}
		s.events.Raise(ctx, events.ConsentDenied(subject.SubjectID, client.ClientID, device.RequestedScopes))
		s.logger.Info("Device authorization denied",
			zap.String("client_id", client.ClientID),
			zap.String("sub", subject.SubjectID))
		return &DeviceFlowInteractionResult{IsAccessDenied: true}, nil
	}

	granted := intersect(device.RequestedScopes, consent.ScopesValuesConsented)
	if device.IsOpenID && !containsValue(granted, domain.ScopeOpenID) {
		return deviceFailure("openid scope must be consented"), nil
	}
	if len(granted) == 0 {
		return deviceFailure("no scopes consented"), nil
	}

	remembered := granted
	if !consent.RememberConsent {
		remembered = nil
	}
	if err := s.consent.UpdateConsent(ctx, subject, client, remembered); err != nil {
		return nil, err
	}

	device.IsAuthorized = true
	device.Subject = subject
	device.SessionID = subject.SessionID
	device.AuthorizedScopes = granted
	if err := s.devices.UpdateByUserCode(ctx, userCode, device); err != nil {
		return nil, err
	}

	s.events.Raise(ctx, events.ConsentGranted(subject.SubjectID, client.ClientID, device.RequestedScopes, granted, consent.RememberConsent))
	s.logger.Info("Device authorized",
		zap.String("client_id", client.ClientID),
		zap.String("sub", subject.SubjectID),
		zap.Strings("scopes", granted))
	return &DeviceFlowInteractionResult{}, nil
}
