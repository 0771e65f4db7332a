package domain

import (
	"strconv"
	"time"
)

// Principal is the authenticated end user behind a request.
// A nil *Principal means the request is anonymous.
type Principal struct {
	SubjectID             string    `json:"sub"`
	AuthTime              time.Time `json:"auth_time"`
	IdentityProvider      string    `json:"idp"`
	AuthenticationMethods []string  `json:"amr,omitempty"`
	SessionID             string    `json:"sid,omitempty"`
	Claims                Claims    `json:"claims,omitempty"`
}

// IsAuthenticated reports whether p represents a signed-in user
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.SubjectID != ""
}

// ToClaims renders the principal as protocol claims (sub, auth_time, idp, amr)
func (p *Principal) ToClaims() Claims {
	if p == nil {
		return nil
	}
	claims := Claims{
		NewClaim(ClaimSubject, p.SubjectID),
		NewTypedClaim(ClaimAuthTime, strconv.FormatInt(p.AuthTime.Unix(), 10), ClaimValueTypeInteger),
	}
	if p.IdentityProvider != "" {
		claims = append(claims, NewClaim(ClaimIdentityProvider, p.IdentityProvider))
	}
	for _, amr := range p.AuthenticationMethods {
		claims = append(claims, NewClaim(ClaimAuthenticationMethod, amr))
	}
	return claims
}

// PrincipalFromClaims rebuilds a principal from claims carried by a token
func PrincipalFromClaims(claims Claims) *Principal {
	sub := claims.Value(ClaimSubject)
	if sub == "" {
		return nil
	}
	p := &Principal{
		SubjectID:             sub,
		IdentityProvider:      claims.Value(ClaimIdentityProvider),
		AuthenticationMethods: claims.Values(ClaimAuthenticationMethod),
		SessionID:             claims.Value(ClaimSessionID),
	}
	if at, err := strconv.ParseInt(claims.Value(ClaimAuthTime), 10, 64); err == nil {
		p.AuthTime = time.Unix(at, 0).UTC()
	}
	p.Claims = claims.Without(ClaimSubject, ClaimAuthTime, ClaimIdentityProvider, ClaimAuthenticationMethod,
		ClaimSessionID, ClaimClientID, ClaimScope, ClaimJwtID, ClaimIssuer, ClaimAudience, ClaimExpiration,
		ClaimIssuedAt, ClaimNotBefore)
	return p
}
