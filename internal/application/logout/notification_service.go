// Package logout tells clients that a user session has ended.
package logout

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// Message describes an ended session and where the user goes afterwards. It travels
// from the end session endpoint to its callback.
type Message struct {
	SubjectID             string   `json:"sub,omitempty"`
	SessionID             string   `json:"sid,omitempty"`
	ClientID              string   `json:"client_id,omitempty"`
	ClientIDs             []string `json:"client_ids,omitempty"`
	PostLogoutRedirectURI string   `json:"post_logout_redirect_uri,omitempty"`
	State                 string   `json:"state,omitempty"`
}

// RedirectURL is the post logout redirect URI with state appended, empty when the
// client did not ask for a redirect
func (m *Message) RedirectURL() string {
	if m.PostLogoutRedirectURI == "" {
		return ""
	}
	if m.State == "" {
		return m.PostLogoutRedirectURI
	}
	separator := "?"
	if strings.Contains(m.PostLogoutRedirectURI, "?") {
		separator = "&"
	}
	return m.PostLogoutRedirectURI + separator + url.Values{"state": {m.State}}.Encode()
}

// BackChannelRequest is one logout token to post to a client.
type BackChannelRequest struct {
	ClientID        string
	LogoutURI       string
	SubjectID       string
	SessionID       string
	SessionRequired bool
}

// NotificationService works out which clients to notify for a session.
type NotificationService struct {
	clients domain.ClientStore
	options domain.Options
	logger  *zap.Logger
}

func NewNotificationService(clients domain.ClientStore, options domain.Options, logger *zap.Logger) *NotificationService {
	return &NotificationService{clients: clients, options: options, logger: logger}
}

// GetFrontChannelLogoutURLs returns the iframe URLs of the session's clients.
// iss and sid are appended for clients that require the session.
func (s *NotificationService) GetFrontChannelLogoutURLs(ctx context.Context, msg *Message) ([]string, error) {
	var urls []string
	err := s.eachClient(ctx, msg, func(client *domain.Client) {
		if client.FrontChannelLogoutURI == "" {
			return
		}
		target := client.FrontChannelLogoutURI
		if client.FrontChannelLogoutSessionRequired && msg.SessionID != "" {
			separator := "?"
			if strings.Contains(target, "?") {
				separator = "&"
			}
			target += separator + url.Values{
				domain.ClaimIssuer:    {s.options.IssuerURI},
				domain.ClaimSessionID: {msg.SessionID},
			}.Encode()
		}
		urls = append(urls, target)
	})
	return urls, err
}

// GetBackChannelLogoutRequests returns a request for every client of the session
// that registered a back-channel logout URI
func (s *NotificationService) GetBackChannelLogoutRequests(ctx context.Context, msg *Message) ([]*BackChannelRequest, error) {
	var requests []*BackChannelRequest
	err := s.eachClient(ctx, msg, func(client *domain.Client) {
		if client.BackChannelLogoutURI == "" {
			return
		}
		requests = append(requests, &BackChannelRequest{
			ClientID:        client.ClientID,
			LogoutURI:       client.BackChannelLogoutURI,
			SubjectID:       msg.SubjectID,
			SessionID:       msg.SessionID,
			SessionRequired: client.BackChannelLogoutSessionRequired,
		})
	})
	return requests, err
}

func (s *NotificationService) eachClient(ctx context.Context, msg *Message, fn func(*domain.Client)) error {
	seen := map[string]bool{}
	for _, id := range msg.ClientIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		client, err := s.clients.FindClientByID(ctx, id)
		if errors.Is(err, domain.ErrClientNotFound) {
			s.logger.Debug("Skipping logout for unknown client", zap.String("client_id", id))
			continue
		}
		if err != nil {
			return err
		}
		if !client.Enabled {
			continue
		}
		fn(client)
	}
	return nil
}
