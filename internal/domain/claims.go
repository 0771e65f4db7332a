package domain

// Claim types used by the protocol layer
const (
	ClaimSubject               = "sub"
	ClaimName                  = "name"
	ClaimAuthTime              = "auth_time"
	ClaimIdentityProvider      = "idp"
	ClaimAuthenticationMethod  = "amr"
	ClaimSessionID             = "sid"
	ClaimNonce                 = "nonce"
	ClaimAccessTokenHash       = "at_hash"
	ClaimAuthorizationCodeHash = "c_hash"
	ClaimStateHash             = "s_hash"
	ClaimClientID              = "client_id"
	ClaimScope                 = "scope"
	ClaimJwtID                 = "jti"
	ClaimIssuer                = "iss"
	ClaimAudience              = "aud"
	ClaimExpiration            = "exp"
	ClaimIssuedAt              = "iat"
	ClaimNotBefore             = "nbf"
	ClaimEvents                = "events"
	ClaimEmail                 = "email"
	ClaimEmailVerified         = "email_verified"
	ClaimGivenName             = "given_name"
	ClaimFamilyName            = "family_name"
	ClaimPreferredUsername     = "preferred_username"
	ClaimPhoneNumber           = "phone_number"
	ClaimPhoneNumberVerified   = "phone_number_verified"
	ClaimAddress               = "address"
	ClaimRole                  = "role"
)

// Claim value types drive how a claim is encoded in a JWT payload.
const (
	ClaimValueTypeString  = "string"
	ClaimValueTypeInteger = "integer"
	ClaimValueTypeBoolean = "boolean"
	ClaimValueTypeJSON    = "json"
)

// Claim is a single type/value statement about a subject or a client.
// Multi-valued claims are repeated entries with the same type.
type Claim struct {
	Type      string `json:"type" yaml:"type"`
	Value     string `json:"value" yaml:"value"`
	ValueType string `json:"value_type,omitempty" yaml:"value_type,omitempty"`
}

// NewClaim creates a string claim
func NewClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value}
}

// NewTypedClaim creates a claim with an explicit value type
func NewTypedClaim(claimType, value, valueType string) Claim {
	return Claim{Type: claimType, Value: value, ValueType: valueType}
}

// Claims is a list of claims with lookup helpers.
type Claims []Claim

// Find returns the first value of the given type
func (c Claims) Find(claimType string) (string, bool) {
	for _, claim := range c {
		if claim.Type == claimType {
			return claim.Value, true
		}
	}
	return "", false
}

// Value returns the first value of the given type or an empty string
func (c Claims) Value(claimType string) string {
	v, _ := c.Find(claimType)
	return v
}

// Values returns every value of the given type
func (c Claims) Values(claimType string) []string {
	var values []string
	for _, claim := range c {
		if claim.Type == claimType {
			values = append(values, claim.Value)
		}
	}
	return values
}

// Without returns a copy without the listed claim types
func (c Claims) Without(claimTypes ...string) Claims {
	excluded := make(map[string]struct{}, len(claimTypes))
	for _, t := range claimTypes {
		excluded[t] = struct{}{}
	}
	out := make(Claims, 0, len(c))
	for _, claim := range c {
		if _, skip := excluded[claim.Type]; !skip {
			out = append(out, claim)
		}
	}
	return out
}

// FilterTypes keeps only the claims whose type is listed
func (c Claims) FilterTypes(claimTypes []string) Claims {
	allowed := make(map[string]struct{}, len(claimTypes))
	for _, t := range claimTypes {
		allowed[t] = struct{}{}
	}
	out := make(Claims, 0, len(c))
	for _, claim := range c {
		if _, ok := allowed[claim.Type]; ok {
			out = append(out, claim)
		}
	}
	return out
}
