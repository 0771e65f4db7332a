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

// IntrospectionResponseGenerator renders introspection results.
type IntrospectionResponseGenerator struct {
	events *events.Service
	logger *zap.Logger
}

func NewIntrospectionResponseGenerator(events *events.Service, logger *zap.Logger) *IntrospectionResponseGenerator {
	return &IntrospectionResponseGenerator{events: events, logger: logger}
}

// Process returns {"active": false} for an inactive token, otherwise the token claims
// with active set and scope rendered as a space separated string.
func (g *IntrospectionResponseGenerator) Process(ctx context.Context, result *validation.IntrospectionValidationResult) map[string]interface{} {
	g.events.Raise(ctx, events.TokenIntrospectionSuccess(result.Api.Name, result.IsActive))
	if !result.IsActive {
		return map[string]interface{}{"active": false}
	}

	// only the scopes that belong to the calling api are disclosed
	var scopes []string
	for _, scope := range result.Claims.Values(domain.ClaimScope) {
		for _, own := range result.Api.Scopes {
			if scope == own {
				scopes = append(scopes, scope)
				break
			}
		}
	}

	body := tokens.ClaimsMap(result.Claims.Without(domain.ClaimScope))
	body["active"] = true
	body[domain.ClaimScope] = strings.Join(scopes, " ")
	return body
}
