package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vireopay/fundflow/api"
	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage    *storage.Storage
	engine     *engine.Engine
	registry   *registry.Registry
	API        *api.API
	mu         sync.Mutex
	cancel     context.CancelFunc
	host       string
	port       int
	adminToken string
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, eng *engine.Engine, reg *registry.Registry,
	host string, port int, adminToken string, disableLogging bool,
) *APIService {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	return &APIService{
		storage:    stg,
		engine:     eng,
		registry:   reg,
		host:       host,
		port:       port,
		adminToken: adminToken,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	// Create API instance with the shared storage, engine and registry
	var err error
	as.API, err = api.New(&api.APIConfig{
		Host:       as.host,
		Port:       as.port,
		Storage:    as.storage,
		Engine:     as.engine,
		Registry:   as.registry,
		AdminToken: as.adminToken,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
