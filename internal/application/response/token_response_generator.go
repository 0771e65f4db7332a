package response

import (
	"context"
	"strings"

	"github.com/manorfm/identityserver/internal/application/events"
	"github.com/manorfm/identityserver/internal/application/tokens"
	"github.com/manorfm/identityserver/internal/application/validation"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// TokenResponse is the body of a successful token endpoint response.
type TokenResponse struct {
	AccessToken         string                 `json:"access_token"`
	IdentityToken       string                 `json:"id_token,omitempty"`
	RefreshToken        string                 `json:"refresh_token,omitempty"`
	AccessTokenLifetime int                    `json:"expires_in"`
	TokenType           string                 `json:"token_type"`
	Scope               string                 `json:"scope,omitempty"`
	Custom              map[string]interface{} `json:"-"`
}

// Fields flattens the response and its custom entries into one JSON object.
// Custom entries never override the standard ones.
func (r *TokenResponse) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	for k, v := range r.Custom {
		fields[k] = v
	}
	fields["access_token"] = r.AccessToken
	fields["expires_in"] = r.AccessTokenLifetime
	fields["token_type"] = r.TokenType
	if r.IdentityToken != "" {
		fields["id_token"] = r.IdentityToken
	}
	if r.RefreshToken != "" {
		fields["refresh_token"] = r.RefreshToken
	}
	if r.Scope != "" {
		fields["scope"] = r.Scope
	}
	return fields
}

// TokenResponseGenerator issues tokens for validated token requests.
type TokenResponseGenerator struct {
	tokens  *tokens.TokenService
	refresh *tokens.RefreshTokenService
	events  *events.Service
	clock   domain.Clock
	logger  *zap.Logger
}

func NewTokenResponseGenerator(tokenService *tokens.TokenService, refresh *tokens.RefreshTokenService, events *events.Service,
	clock domain.Clock, logger *zap.Logger) *TokenResponseGenerator {
	return &TokenResponseGenerator{
		tokens:  tokenService,
		refresh: refresh,
		events:  events,
		clock:   clock,
		logger:  logger,
	}
}

// Process issues the tokens the grant type calls for
func (g *TokenResponseGenerator) Process(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch req.GrantType {
	case domain.GrantTypeAuthorizationCode:
		resp, err = g.processAuthorizationCode(ctx, req)
	case domain.GrantTypeRefreshToken:
		resp, err = g.processRefreshToken(ctx, req)
	case domain.GrantTypeDeviceCode:
		resp, err = g.processDeviceCode(ctx, req)
	default:
		// client credentials, password and extension grants
		resp, err = g.processDefault(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	resp.Custom = req.CustomResponse

	var subjectID string
	if req.Subject != nil {
		subjectID = req.Subject.SubjectID
	}
	g.events.Raise(ctx, events.TokenIssuedSuccess(req.ClientID, subjectID, req.GrantType, "Token", req.RequestedScopes))
	return resp, nil
}

func (g *TokenResponseGenerator) processDefault(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	return g.issue(ctx, req, false, "")
}

func (g *TokenResponseGenerator) processAuthorizationCode(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	code := req.AuthorizationCode
	resp, err := g.issue(ctx, req, code.IsOpenID, code.Nonce)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("Authorization code redeemed", zap.String("client_id", req.ClientID))
	return resp, nil
}

func (g *TokenResponseGenerator) processDeviceCode(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	return g.issue(ctx, req, req.DeviceCode.IsOpenID && req.Resources.IsOpenID(), "")
}

// issue creates an access token, a refresh token when offline access was granted to
// a user, and an identity token when asked for
func (g *TokenResponseGenerator) issue(ctx context.Context, req *validation.ValidatedTokenRequest, identity bool, nonce string) (*TokenResponse, error) {
	creation := &domain.TokenCreationRequest{
		Subject:   req.Subject,
		Resources: req.Resources,
		Request:   &req.ValidatedRequest,
	}
	accessToken, err := g.tokens.CreateAccessToken(ctx, creation)
	if err != nil {
		return nil, err
	}
	resp, err := g.serialize(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if req.Resources.OfflineAccess && req.Subject.IsAuthenticated() {
		resp.RefreshToken, err = g.refresh.CreateRefreshToken(ctx, accessToken, req.Client)
		if err != nil {
			return nil, err
		}
	}

	if identity && req.Subject.IsAuthenticated() {
		creation.Nonce = nonce
		creation.AccessTokenToHash = resp.AccessToken
		if req.AuthorizationCode != nil {
			creation.StateHash = req.AuthorizationCode.StateHash
		}
		resp.IdentityToken, err = g.identityToken(ctx, creation)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// processRefreshToken reissues the access token behind a refresh token. The stored
// grant keeps its original scopes even when this request narrowed them. The refresh
// token is rotated last so a failure before that leaves the presented handle usable.
func (g *TokenResponseGenerator) processRefreshToken(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	resp, err := g.reissue(ctx, req)
	if err != nil {
		if restoreErr := g.refresh.RestoreRefreshToken(ctx, req.RefreshTokenHandle, req.RefreshToken, req.Client); restoreErr != nil {
			g.logger.Error("Refresh token lost after failed redemption", zap.String("client_id", req.ClientID), zap.Error(restoreErr))
		}
		return nil, err
	}

	resp.RefreshToken, err = g.refresh.UpdateRefreshToken(ctx, req.RefreshTokenHandle, req.RefreshToken, req.Client)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("Refresh token redeemed", zap.String("client_id", req.ClientID))
	return resp, nil
}

func (g *TokenResponseGenerator) reissue(ctx context.Context, req *validation.ValidatedTokenRequest) (*TokenResponse, error) {
	original := req.RefreshToken.AccessToken
	client := req.Client

	var (
		accessToken *domain.Token
		err         error
	)
	narrowed := len(req.RequestedScopes) != len(original.Scopes())
	if client.UpdateAccessTokenClaimsOnRefresh || narrowed {
		accessToken, err = g.tokens.CreateAccessToken(ctx, &domain.TokenCreationRequest{
			Subject:   req.Subject,
			Resources: req.Resources,
			Request:   &req.ValidatedRequest,
		})
		if err != nil {
			return nil, err
		}
	} else {
		reissued := *original
		reissued.CreationTime = g.clock.Now()
		reissued.Lifetime = client.AccessTokenLifetime
		reissued.AccessTokenType = client.AccessTokenType
		claims := original.Claims.Without(domain.ClaimJwtID, domain.ClaimScope)
		for _, scope := range req.RequestedScopes {
			claims = append(claims, domain.NewClaim(domain.ClaimScope, scope))
		}
		reissued.Claims = append(claims, domain.NewClaim(domain.ClaimJwtID, domain.NewID()))
		accessToken = &reissued
	}

	resp, err := g.serialize(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if req.Subject.IsAuthenticated() && req.Resources.IsOpenID() {
		resp.IdentityToken, err = g.identityToken(ctx, &domain.TokenCreationRequest{
			Subject:           req.Subject,
			Resources:         req.Resources,
			Request:           &req.ValidatedRequest,
			AccessTokenToHash: resp.AccessToken,
		})
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (g *TokenResponseGenerator) serialize(ctx context.Context, accessToken *domain.Token) (*TokenResponse, error) {
	handle, err := g.tokens.CreateSecurityToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:         handle,
		AccessTokenLifetime: int(accessToken.Lifetime.Seconds()),
		TokenType:           domain.TokenTypeBearer,
		Scope:               strings.Join(accessToken.Scopes(), " "),
	}, nil
}

func (g *TokenResponseGenerator) identityToken(ctx context.Context, creation *domain.TokenCreationRequest) (string, error) {
	token, err := g.tokens.CreateIdentityToken(ctx, creation)
	if err != nil {
		return "", err
	}
	return g.tokens.CreateSecurityToken(ctx, token)
}
