package response

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/interaction"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// DeviceAuthorizationResponse is the body of a device authorization response.
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	DeviceCodeLifetime      int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceAuthorizationResponseGenerator starts device flows.
type DeviceAuthorizationResponseGenerator struct {
	devices   domain.DeviceFlowStore
	userCodes *interaction.UserCodeService
	events    *events.Service
	clock     domain.Clock
	options   domain.Options
	logger    *zap.Logger
}

func NewDeviceAuthorizationResponseGenerator(devices domain.DeviceFlowStore, userCodes *interaction.UserCodeService, events *events.Service,
	clock domain.Clock, options domain.Options, logger *zap.Logger) *DeviceAuthorizationResponseGenerator {
	return &DeviceAuthorizationResponseGenerator{
		devices:   devices,
		userCodes: userCodes,
		events:    events,
		clock:     clock,
		options:   options,
		logger:    logger,
	}
}

// Process stores a pending device authorization under a fresh device code and a user
// code that is not in use. Colliding user codes are regenerated up to the generator's
// retry limit.
func (g *DeviceAuthorizationResponseGenerator) Process(ctx context.Context, req *validation.ValidatedDeviceAuthorizationRequest) (*DeviceAuthorizationResponse, error) {
	client := req.Client
	generator, err := g.userCodes.Generator(client.UserCodeType)
	if err != nil {
		return nil, err
	}

	deviceCode, err := grants.NewHandle()
	if err != nil {
		return nil, err
	}
	device := &domain.DeviceCode{
		CreationTime:    g.clock.Now(),
		Lifetime:        client.DeviceCodeLifetime,
		ClientID:        client.ClientID,
		IsOpenID:        req.IsOpenIDRequest,
		RequestedScopes: req.RequestedScopes,
	}

	var userCode string
	for attempt := 0; attempt < generator.RetryLimit(); attempt++ {
		code, err := generator.Generate()
		if err != nil {
			return nil, err
		}
		err = g.devices.StoreDeviceAuthorization(ctx, grants.DeviceCodeKey(deviceCode), code, device)
		if err == nil {
			userCode = code
			break
		}
		if !errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		g.logger.Debug("User code collision", zap.String("client_id", client.ClientID), zap.Int("attempt", attempt+1))
	}
	if userCode == "" {
		g.logger.Error("No unique user code", zap.String("client_id", client.ClientID), zap.String("type", generator.UserCodeType()))
		return nil, domain.ErrUserCodeGeneration
	}

	verificationURI := g.verificationURI()
	separator := "?"
	if strings.Contains(verificationURI, "?") {
		separator = "&"
	}
	complete := verificationURI + separator + url.Values{g.options.UserInteraction.DeviceUserCodeParam: {userCode}}.Encode()

	g.events.Raise(ctx, events.DeviceAuthorizationSuccess(client.ClientID, req.RequestedScopes))
	return &DeviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: complete,
		DeviceCodeLifetime:      int(client.DeviceCodeLifetime.Seconds()),
		Interval:                int(g.options.DeviceFlow.Interval.Seconds()),
	}, nil
}

// verificationURI makes a relative verification page absolute against the issuer
func (g *DeviceAuthorizationResponseGenerator) verificationURI() string {
	page := g.options.UserInteraction.DeviceVerificationURL
	if strings.HasPrefix(page, "/") {
		return strings.TrimSuffix(g.options.IssuerURI, "/") + page
	}
	return page
}
