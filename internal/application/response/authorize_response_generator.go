// Package response assembles protocol responses from validated requests.
package response

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/grants"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
	"go.uber.org/zap"
)

// AuthorizeResponse is what the authorize endpoint sends back to the client's redirect URI.
type AuthorizeResponse struct {
	RedirectURI  string
	ResponseMode string
	State        string
	Code         string
	AccessToken  string
	// AccessTokenLifetime is in seconds
	AccessTokenLifetime int
	IdentityToken       string
	Scope               string
	Error               *apperrors.ProtocolError
}

// ErrorResponse builds an authorize error response for a request whose client and
// redirect URI were validated
func ErrorResponse(req *validation.ValidatedAuthorizeRequest, pe *apperrors.ProtocolError) *AuthorizeResponse {
	return &AuthorizeResponse{
		RedirectURI:  req.RedirectURI,
		ResponseMode: req.ResponseMode,
		State:        req.State,
		Error:        pe,
	}
}

// IsError reports whether the response carries an error
func (r *AuthorizeResponse) IsError() bool {
	return r.Error != nil
}

// Parameters returns the response parameters in wire form
func (r *AuthorizeResponse) Parameters() url.Values {
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	if r.Error != nil {
		set("error", r.Error.Code)
		set("error_description", r.Error.Description)
		set("state", r.State)
		return params
	}
	set("code", r.Code)
	set("id_token", r.IdentityToken)
	if r.AccessToken != "" {
		set("access_token", r.AccessToken)
		set("token_type", domain.TokenTypeBearer)
		set("expires_in", strconv.Itoa(r.AccessTokenLifetime))
		set("scope", r.Scope)
	}
	set("state", r.State)
	return params
}

// RedirectURL renders the response into the redirect URI for the query and fragment
// response modes. form_post responses are rendered by the endpoint.
func (r *AuthorizeResponse) RedirectURL() string {
	encoded := r.Parameters().Encode()
	if r.ResponseMode == domain.ResponseModeFragment {
		return r.RedirectURI + "#" + encoded
	}
	separator := "?"
	if strings.Contains(r.RedirectURI, "?") {
		separator = "&"
	}
	return r.RedirectURI + separator + encoded
}

// AuthorizeResponseGenerator issues codes and tokens for validated authorize requests.
type AuthorizeResponseGenerator struct {
	tokens *tokens.TokenService
	codes  *grants.AuthorizationCodeStore
	events *events.Service
	clock  domain.Clock
	logger *zap.Logger
}

func NewAuthorizeResponseGenerator(tokenService *tokens.TokenService, codes *grants.AuthorizationCodeStore, events *events.Service,
	clock domain.Clock, logger *zap.Logger) *AuthorizeResponseGenerator {
	return &AuthorizeResponseGenerator{
		tokens: tokenService,
		codes:  codes,
		events: events,
		clock:  clock,
		logger: logger,
	}
}

// CreateResponse issues whatever the response type asks for
func (g *AuthorizeResponseGenerator) CreateResponse(ctx context.Context, req *validation.ValidatedAuthorizeRequest) (*AuthorizeResponse, error) {
	resp := &AuthorizeResponse{
		RedirectURI:  req.RedirectURI,
		ResponseMode: req.ResponseMode,
		State:        req.State,
	}

	var stateHash string
	if req.State != "" {
		stateHash = tokens.HashForIDToken(req.State)
	}

	if req.IssuesCode() {
		code, err := g.createCode(ctx, req, stateHash)
		if err != nil {
			return nil, err
		}
		resp.Code = code
	}

	if req.IssuesAccessToken() {
		token, err := g.tokens.CreateAccessToken(ctx, &domain.TokenCreationRequest{
			Subject:   req.Subject,
			Resources: req.Resources,
			Request:   &req.ValidatedRequest,
		})
		if err != nil {
			return nil, err
		}
		resp.AccessToken, err = g.tokens.CreateSecurityToken(ctx, token)
		if err != nil {
			return nil, err
		}
		resp.AccessTokenLifetime = int(token.Lifetime.Seconds())
		resp.Scope = strings.Join(req.Resources.ScopeNames(), " ")
	}

	if req.IssuesIdentityToken() {
		token, err := g.tokens.CreateIdentityToken(ctx, &domain.TokenCreationRequest{
			Subject:   req.Subject,
			Resources: req.Resources,
			Request:   &req.ValidatedRequest,
			// without an access token the id_token is the only way to get the claims
			IncludeAllIdentityClaims: !req.IssuesAccessToken(),
			Nonce:                    req.Nonce,
			AccessTokenToHash:        resp.AccessToken,
			AuthorizationCodeToHash:  resp.Code,
			StateHash:                stateHash,
		})
		if err != nil {
			return nil, err
		}
		resp.IdentityToken, err = g.tokens.CreateSecurityToken(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	var subjectID string
	if req.Subject != nil {
		subjectID = req.Subject.SubjectID
	}
	g.events.Raise(ctx, events.TokenIssuedSuccess(req.ClientID, subjectID, req.GrantType, "Authorize", req.RequestedScopes))
	g.logger.Debug("Authorize response created",
		zap.String("client_id", req.ClientID),
		zap.String("response_type", req.ResponseType))
	return resp, nil
}

func (g *AuthorizeResponseGenerator) createCode(ctx context.Context, req *validation.ValidatedAuthorizeRequest, stateHash string) (string, error) {
	code := &domain.AuthorizationCode{
		CreationTime:        g.clock.Now(),
		Lifetime:            req.Client.AuthorizationCodeLifetime,
		ClientID:            req.ClientID,
		Subject:             req.Subject,
		IsOpenID:            req.IsOpenIDRequest,
		RequestedScopes:     req.RequestedScopes,
		RedirectURI:         req.RedirectURI,
		Nonce:               req.Nonce,
		StateHash:           stateHash,
		WasConsentShown:     req.WasConsentShown,
		SessionID:           req.SessionID,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}
	return g.codes.StoreAuthorizationCode(ctx, code)
}
