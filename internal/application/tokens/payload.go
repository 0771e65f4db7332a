// Package tokens creates identity, access and refresh tokens.
package tokens

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/manorfm/identityserver/internal/domain"
)

// claim types always rendered as JSON arrays
var arrayClaimTypes = map[string]bool{
	domain.ClaimScope:                true,
	domain.ClaimAuthenticationMethod: true,
}

// Payload renders token as JWT claims. Repeated claim types become arrays and
// typed claims keep their JSON type.
func Payload(token *domain.Token) jwt.MapClaims {
	payload := jwt.MapClaims{
		domain.ClaimIssuer:     token.Issuer,
		domain.ClaimIssuedAt:   token.CreationTime.Unix(),
		domain.ClaimNotBefore:  token.CreationTime.Unix(),
		domain.ClaimExpiration: token.Expiration().Unix(),
	}
	switch len(token.Audiences) {
	case 0:
	case 1:
		payload[domain.ClaimAudience] = token.Audiences[0]
	default:
		payload[domain.ClaimAudience] = token.Audiences
	}

	addClaims(payload, token.Claims)
	return payload
}

// ClaimsMap renders claims the way they appear in a JWT payload
func ClaimsMap(claims domain.Claims) map[string]interface{} {
	out := jwt.MapClaims{}
	addClaims(out, claims)
	return out
}

// addClaims groups claims by type into payload, skipping types already present
func addClaims(payload jwt.MapClaims, claims domain.Claims) {
	var order []string
	grouped := map[string][]interface{}{}
	for _, c := range claims {
		if _, reserved := payload[c.Type]; reserved {
			continue
		}
		if _, seen := grouped[c.Type]; !seen {
			order = append(order, c.Type)
		}
		grouped[c.Type] = append(grouped[c.Type], claimValue(c))
	}
	for _, t := range order {
		values := grouped[t]
		if len(values) == 1 && !arrayClaimTypes[t] {
			payload[t] = values[0]
			continue
		}
		payload[t] = values
	}
}

func claimValue(c domain.Claim) interface{} {
	switch c.ValueType {
	case domain.ClaimValueTypeInteger:
		if v, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
			return v
		}
	case domain.ClaimValueTypeBoolean:
		if v, err := strconv.ParseBool(c.Value); err == nil {
			return v
		}
	case domain.ClaimValueTypeJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(c.Value), &v); err == nil {
			return v
		}
	}
	return c.Value
}

// ClaimsFromPayload turns decoded JWT claims back into a claim list
func ClaimsFromPayload(payload jwt.MapClaims) domain.Claims {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var claims domain.Claims
	for _, k := range keys {
		claims = appendValue(claims, k, payload[k])
	}
	return claims
}

func appendValue(claims domain.Claims, claimType string, v interface{}) domain.Claims {
	switch val := v.(type) {
	case string:
		return append(claims, domain.NewClaim(claimType, val))
	case float64:
		return append(claims, domain.NewTypedClaim(claimType, strconv.FormatFloat(val, 'f', -1, 64), domain.ClaimValueTypeInteger))
	case int64:
		return append(claims, domain.NewTypedClaim(claimType, strconv.FormatInt(val, 10), domain.ClaimValueTypeInteger))
	case bool:
		return append(claims, domain.NewTypedClaim(claimType, strconv.FormatBool(val), domain.ClaimValueTypeBoolean))
	case []interface{}:
		for _, item := range val {
			claims = appendValue(claims, claimType, item)
		}
		return claims
	case []string:
		for _, item := range val {
			claims = append(claims, domain.NewClaim(claimType, item))
		}
		return claims
	case nil:
		return claims
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return claims
		}
		return append(claims, domain.NewTypedClaim(claimType, string(raw), domain.ClaimValueTypeJSON))
	}
}

// HashForIDToken computes at_hash, c_hash and s_hash values: the left half of the
// SHA-256 digest, base64url encoded.
func HashForIDToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
