package logout

import (
	"context"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BackChannelLogoutEvent is the event type a logout token carries
const BackChannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"

// FormPoster delivers a form to a client endpoint.
type FormPoster interface {
	PostForm(ctx context.Context, target string, form url.Values) error
}

// BackChannelLogoutService signs logout tokens and posts them to clients.
type BackChannelLogoutService struct {
	notifications *NotificationService
	signer        domain.TokenSigner
	poster        FormPoster
	events        *events.Service
	clock         domain.Clock
	options       domain.Options
	logger        *zap.Logger
}

func NewBackChannelLogoutService(notifications *NotificationService, signer domain.TokenSigner, poster FormPoster,
	events *events.Service, clock domain.Clock, options domain.Options, logger *zap.Logger) *BackChannelLogoutService {
	return &BackChannelLogoutService{
		notifications: notifications,
		signer:        signer,
		poster:        poster,
		events:        events,
		clock:         clock,
		options:       options,
		logger:        logger,
	}
}

// SendLogoutNotifications posts a logout token to every client of the session and
// waits for all of them. Delivery failures are logged and never returned.
func (s *BackChannelLogoutService) SendLogoutNotifications(ctx context.Context, msg *Message) error {
	requests, err := s.notifications.GetBackChannelLogoutRequests(ctx, msg)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}

	limit := s.options.Logout.BackChannelLogoutConcurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			s.send(gctx, req)
			return nil
		})
	}
	return g.Wait()
}

func (s *BackChannelLogoutService) send(ctx context.Context, req *BackChannelRequest) {
	token, err := s.CreateLogoutToken(req)
	if err != nil {
		s.logger.Error("Failed to create logout token", zap.String("client_id", req.ClientID), zap.Error(err))
		s.events.Raise(ctx, events.BackChannelLogoutFailure(req.ClientID, req.LogoutURI, err.Error()))
		return
	}
	if token == "" {
		return
	}

	if err := s.poster.PostForm(ctx, req.LogoutURI, url.Values{"logout_token": {token}}); err != nil {
		s.logger.Warn("Back-channel logout failed",
			zap.String("client_id", req.ClientID),
			zap.String("url", req.LogoutURI),
			zap.Error(err))
		s.events.Raise(ctx, events.BackChannelLogoutFailure(req.ClientID, req.LogoutURI, err.Error()))
		return
	}
	s.logger.Debug("Back-channel logout delivered", zap.String("client_id", req.ClientID))
}

// CreateLogoutToken signs the logout token for req. It returns an empty token when
// the client requires a session id the session does not have, or when the token
// would name neither a subject nor a session.
func (s *BackChannelLogoutService) CreateLogoutToken(req *BackChannelRequest) (string, error) {
	if req.SessionRequired && req.SessionID == "" {
		s.logger.Debug("No session id for a client that requires one", zap.String("client_id", req.ClientID))
		return "", nil
	}
	if req.SubjectID == "" && !req.SessionRequired {
		return "", nil
	}

	now := s.clock.Now()
	claims := jwt.MapClaims{
		domain.ClaimIssuer:     s.options.IssuerURI,
		domain.ClaimAudience:   req.ClientID,
		domain.ClaimIssuedAt:   now.Unix(),
		domain.ClaimExpiration: now.Add(s.options.Logout.LogoutTokenLifetime).Unix(),
		domain.ClaimJwtID:      domain.NewID(),
		"events":               map[string]interface{}{BackChannelLogoutEvent: map[string]interface{}{}},
	}
	if req.SubjectID != "" {
		claims[domain.ClaimSubject] = req.SubjectID
	}
	if req.SessionRequired {
		claims[domain.ClaimSessionID] = req.SessionID
	}
	return s.signer.Sign(claims)
}
