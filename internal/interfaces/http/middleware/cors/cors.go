// Package cors answers cross-origin requests for the endpoints browsers call directly.
package cors

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// ClientLister enumerates the registered clients
type ClientLister interface {
	ListClients(ctx context.Context) ([]*domain.Client, error)
}

// Policy allows an origin when any registered client lists it.
type Policy struct {
	clients ClientLister
	paths   map[string]struct{}
	logger  *zap.Logger
}

func NewPolicy(clients ClientLister, paths []string, logger *zap.Logger) *Policy {
	p := &Policy{
		clients: clients,
		paths:   make(map[string]struct{}, len(paths)),
		logger:  logger,
	}
	for _, path := range paths {
		p.paths[path] = struct{}{}
	}
	return p
}

// IsOriginAllowed reports whether a client registered origin
func (p *Policy) IsOriginAllowed(r *http.Request, origin string) bool {
	clients, err := p.clients.ListClients(r.Context())
	if err != nil {
		p.logger.Error("Failed to list clients for CORS check", zap.Error(err))
		return false
	}
	for _, c := range clients {
		if c.Enabled && c.HasCorsOrigin(origin) {
			return true
		}
	}
	p.logger.Debug("CORS origin rejected", zap.String("origin", origin), zap.String("path", r.URL.Path))
	return false
}

// Middleware applies the policy to the configured paths and passes every other request through untouched
func (p *Policy) Middleware(next http.Handler) http.Handler {
	withCors := cors.Handler(cors.Options{
		AllowOriginFunc:  p.IsOriginAllowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           3600,
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := p.paths[r.URL.Path]; ok {
			withCors.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
