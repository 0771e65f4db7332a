package domain

import "context"

// ContextKey is a type for context keys to avoid magic strings
type ContextKey string

const (
	// ContextKeyPrincipal is the key for the signed-in user
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeyRequestID is the key for the request ID in the context
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyAccessToken is the key for the validated bearer token claims
	ContextKeyAccessToken ContextKey = "access_token"
	// ContextKeyRemoteIP is the key for the caller address
	ContextKeyRemoteIP ContextKey = "remote_ip"
)

// WithPrincipal adds the signed-in user to the context
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// GetPrincipal retrieves the signed-in user from the context
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p, ok && p != nil
}

// WithRequestID adds the request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithAccessTokenClaims adds validated bearer token claims to the context
func WithAccessTokenClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, ContextKeyAccessToken, claims)
}

// GetAccessTokenClaims retrieves validated bearer token claims from the context
func GetAccessTokenClaims(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(ContextKeyAccessToken).(Claims)
	return claims, ok
}

// WithRemoteIP adds the caller address to the context
func WithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyRemoteIP, ip)
}

// GetRemoteIP retrieves the caller address from the context
func GetRemoteIP(ctx context.Context) string {
	ip, _ := ctx.Value(ContextKeyRemoteIP).(string)
	return ip
}
