package validation

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/domain"
	apperrors "github.com/manorfm/identityserver/internal/domain/errors"
)

// Parsed secret types
const (
	ParsedSecretTypeNoSecret     = "NoSecret"
	ParsedSecretTypeSharedSecret = "SharedSecret"
	ParsedSecretTypeJwtBearer    = "JwtBearer"
)

// Authentication method names reported in events and discovery
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodPrivateKeyJwt     = "private_key_jwt"
)

// ParsedSecret is the credential a caller presented.
type ParsedSecret struct {
	ID         string
	Credential string
	Type       string
	Method     string
}

// ParseSecret reads client credentials from the Authorization header or the form body.
// It returns nil when the request carries no client id at all.
func ParseSecret(authorization string, form url.Values, limits domain.InputLengthRestrictions) (*ParsedSecret, *apperrors.ProtocolError) {
	if strings.HasPrefix(authorization, "Basic ") {
		return parseBasic(strings.TrimPrefix(authorization, "Basic "), limits)
	}

	if assertion := form.Get("client_assertion"); assertion != "" {
		if form.Get("client_assertion_type") != domain.ClientAssertionTypeJWTBearer {
			return nil, apperrors.NewInvalidClient("unsupported client_assertion_type")
		}
		if len(assertion) > limits.Jwt {
			return nil, apperrors.NewInvalidClient("client assertion too long")
		}
		// the issuer is read before verification only to find the client
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(assertion, claims); err != nil {
			return nil, apperrors.NewInvalidClient("malformed client assertion")
		}
		iss, _ := claims[domain.ClaimIssuer].(string)
		clientID := form.Get("client_id")
		if clientID == "" {
			clientID = iss
		}
		if clientID == "" || clientID != iss || len(clientID) > limits.ClientID {
			return nil, apperrors.NewInvalidClient("invalid client assertion issuer")
		}
		return &ParsedSecret{ID: clientID, Credential: assertion, Type: ParsedSecretTypeJwtBearer, Method: AuthMethodPrivateKeyJwt}, nil
	}

	clientID := form.Get("client_id")
	if clientID == "" {
		return nil, nil
	}
	if len(clientID) > limits.ClientID {
		return nil, apperrors.NewInvalidClient("client id too long")
	}
	if secret := form.Get("client_secret"); secret != "" {
		if len(secret) > limits.ClientSecret {
			return nil, apperrors.NewInvalidClient("client secret too long")
		}
		return &ParsedSecret{ID: clientID, Credential: secret, Type: ParsedSecretTypeSharedSecret, Method: AuthMethodClientSecretPost}, nil
	}
	return &ParsedSecret{ID: clientID, Type: ParsedSecretTypeNoSecret, Method: AuthMethodNone}, nil
}

func parseBasic(encoded string, limits domain.InputLengthRestrictions) (*ParsedSecret, *apperrors.ProtocolError) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, apperrors.NewInvalidClient("malformed basic authentication header")
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, apperrors.NewInvalidClient("malformed basic authentication header")
	}
	// RFC 6749 section 2.3.1 form-encodes both parts
	if id, err = url.QueryUnescape(id); err != nil {
		return nil, apperrors.NewInvalidClient("malformed basic authentication header")
	}
	if secret, err = url.QueryUnescape(secret); err != nil {
		return nil, apperrors.NewInvalidClient("malformed basic authentication header")
	}
	if id == "" || len(id) > limits.ClientID || len(secret) > limits.ClientSecret {
		return nil, apperrors.NewInvalidClient("invalid basic authentication header")
	}
	if secret == "" {
		return &ParsedSecret{ID: id, Type: ParsedSecretTypeNoSecret, Method: AuthMethodNone}, nil
	}
	return &ParsedSecret{ID: id, Credential: secret, Type: ParsedSecretTypeSharedSecret, Method: AuthMethodClientSecretBasic}, nil
}
