package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/manorfm/identityserver/internal/domain"
	"github.com/manorfm/identityserver/internal/interfaces/http/middleware/auth"
	"github.com/manorfm/identityserver/internal/interfaces/http/middleware/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// AdminScope grants access to the client administration API
const AdminScope = "identityserver.admin"

type Router struct {
	router *chi.Mux
}

func NewRouter(deps Dependencies, logger *zap.Logger) *Router {
	h := newEndpoints(deps, logger)
	authMiddleware := auth.NewAuthMiddleware(h.tokens, logger)
	corsPolicy := cors.NewPolicy(deps.Stores.Clients, domain.CorsPaths, logger)

	// Create router with middleware
	router := createRouter()
	router.Use(corsPolicy.Middleware)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			if deps.Stores.Ping != nil {
				if err := deps.Stores.Ping(r.Context()); err != nil {
					logger.Error("Store health check failed", zap.Error(err))
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte("Store connection failed"))
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
		httpSwagger.PersistAuthorization(true),
	))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	// Discovery
	router.Get(domain.PathDiscovery, h.oidc.HandleDiscovery)
	router.Get(domain.PathDiscoveryWebKeys, h.oidc.HandleJWKS)

	// Front-channel protocol endpoints
	router.Get(domain.PathAuthorize, h.authorize.HandleAuthorize)
	router.Post(domain.PathAuthorize, h.authorize.HandleAuthorize)
	router.Get(domain.PathAuthorizeCallback, h.authorize.HandleCallback)
	router.Get(domain.PathEndSession, h.endSession.HandleEndSession)
	router.Post(domain.PathEndSession, h.endSession.HandleEndSession)
	router.Get(domain.PathEndSessionCallback, h.endSession.HandleCallback)

	// Back-channel protocol endpoints
	router.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware)
		r.Post(domain.PathToken, h.token.HandleToken)
		r.Get(domain.PathDeviceAuthorization, h.device.HandleDeviceAuthorization)
		r.Post(domain.PathDeviceAuthorization, h.device.HandleDeviceAuthorization)
	})
	router.Post(domain.PathIntrospection, h.introspection.HandleIntrospect)
	router.Post(domain.PathRevocation, h.revocation.HandleRevocation)
	router.Get(domain.PathUserInfo, h.oidc.HandleUserInfo)
	router.Post(domain.PathUserInfo, h.oidc.HandleUserInfo)

	// Interaction API used by the login, logout, consent and device pages
	router.Route("/account", func(r chi.Router) {
		r.Get("/login", h.account.HandleLoginContext)
		r.Post("/login", h.account.HandleLogin)
		r.Post("/logout", h.endSession.HandleLogout)
	})
	router.Get("/consent", h.account.HandleConsentContext)
	router.Post("/consent", h.account.HandleConsent)
	router.Get("/device", h.account.HandleDeviceContext)
	router.Post("/device", h.account.HandleDevice)

	// Admin routes
	router.Route("/admin/clients", func(r chi.Router) {
		r.Use(authMiddleware.Authenticator, authMiddleware.RequireScope(AdminScope))
		r.Get("/", h.clients.ListClientsHandler)
		r.Post("/", h.clients.CreateClientHandler)
		r.Get("/{id}", h.clients.GetClientHandler)
		r.Put("/{id}", h.clients.UpdateClientHandler)
		r.Delete("/{id}", h.clients.DeleteClientHandler)
	})

	return &Router{router: router}
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
