package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log
)

// APIConfig type represents the configuration for the API HTTP server.
// Storage, Engine and Registry are shared with the rest of the node.
type APIConfig struct {
	Host     string
	Port     int
	Storage  *storage.Storage
	Engine   *engine.Engine
	Registry *registry.Registry
	// AdminToken guards the registry admin endpoints. When empty the
	// endpoints are not registered at all.
	AdminToken string
}

// API type represents the HTTP server facing institutions and the gateway.
type API struct {
	router     *chi.Mux
	storage    *storage.Storage
	engine     *engine.Engine
	registry   *registry.Registry
	adminToken string
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Engine == nil {
		return nil, fmt.Errorf("missing engine instance")
	}
	if conf.Registry == nil {
		return nil, fmt.Errorf("missing registry instance")
	}
	a := &API{
		storage:    conf.Storage,
		engine:     conf.Engine,
		registry:   conf.Registry,
		adminToken: conf.AdminToken,
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Get(MetricsEndpoint, promhttp.Handler().ServeHTTP)
	// submission endpoints
	log.Infow("register handler", "endpoint", EnquiryEndpoint, "method", "POST")
	a.router.Post(EnquiryEndpoint, a.withInstitution(a.submitEnquiry))
	log.Infow("register handler", "endpoint", TransferEndpoint, "method", "POST")
	a.router.Post(TransferEndpoint, a.withInstitution(a.submitTransfer))
	// transaction endpoints
	log.Infow("register handler", "endpoint", TransactionEndpoint, "method", "GET")
	a.router.Get(TransactionEndpoint, a.withInstitution(a.transaction))
	log.Infow("register handler", "endpoint", TransactionEventsEndpoint, "method", "GET")
	a.router.Get(TransactionEventsEndpoint, a.withInstitution(a.transactionEvents))
	log.Infow("register handler", "endpoint", TransactionTSQEndpoint, "method", "POST")
	a.router.Post(TransactionTSQEndpoint, a.withInstitution(a.transactionTSQ))
	// gateway callback intake
	log.Infow("register handler", "endpoint", GatewayCallbackEndpoint, "method", "POST")
	a.router.Post(GatewayCallbackEndpoint, a.gatewayCallback)

	// registry admin endpoints (if enabled)
	if a.adminToken != "" {
		log.Infow("register handler", "endpoint", InstitutionsEndpoint, "method", "POST")
		a.router.Post(InstitutionsEndpoint, a.withAdmin(a.createInstitution))
		log.Infow("register handler", "endpoint", InstitutionsEndpoint, "method", "GET")
		a.router.Get(InstitutionsEndpoint, a.withAdmin(a.listInstitutions))
		log.Infow("register handler", "endpoint", ParticipantsEndpoint, "method", "POST")
		a.router.Post(ParticipantsEndpoint, a.withAdmin(a.createParticipant))
		log.Infow("register handler", "endpoint", ParticipantsEndpoint, "method", "GET")
		a.router.Get(ParticipantsEndpoint, a.withAdmin(a.listParticipants))
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
