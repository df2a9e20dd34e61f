package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/metadb"
	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/service"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/webhook"
)

// Services holds all the running services
type Services struct {
	Storage  *storage.Storage
	Registry *registry.Registry
	Engine   *service.EngineService
	API      *service.APIService
}

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting fundflow-node", "version", Version)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup services
	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	// Initialize storage database
	log.Infow("initializing storage", "datadir", cfg.Datadir, "type", cfg.DBType)
	dbDir := cfg.Datadir
	if cfg.DBType == db.TypeMongo {
		// server backed: the backend defaults the database name and takes
		// the server URL from MONGODB_URL
		dbDir = ""
	}
	storagedb, err := metadb.New(cfg.DBType, dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	// Initialize the participant and institution registry
	services.Registry = registry.New(services.Storage)
	participants, err := services.Registry.ListParticipants()
	if err != nil {
		return nil, fmt.Errorf("failed to load participant registry: %w", err)
	}
	log.Infow("registry initialized", "participants", len(participants))

	// Initialize the gateway client
	log.Infow("initializing gateway client",
		"url", cfg.Gateway.URL,
		"callbackUrl", cfg.Gateway.CallbackURL,
		"bankCode", cfg.Gateway.BankCode)
	client := gateway.New(gateway.Config{
		BaseURL:     cfg.Gateway.URL,
		CallbackURL: cfg.Gateway.CallbackURL,
		FunctionTSQ: cfg.Gateway.TSQCode,
		Timeout:     cfg.Gateway.Timeout,
	})

	// Start engine service
	engCfg := engine.DefaultConfig()
	engCfg.BankCode = cfg.Gateway.BankCode
	engCfg.NECTimeout = cfg.Engine.NECTimeout
	engCfg.FTTimeout = cfg.Engine.FTTimeout
	engCfg.TSQDelay = cfg.Engine.TSQDelay
	engCfg.TSQMaxAttempts = cfg.Engine.TSQAttempts
	engCfg.MaxReversalAttempts = cfg.Engine.ReversalAttempts

	log.Infow("starting engine service",
		"necTimeout", engCfg.NECTimeout.String(),
		"ftTimeout", engCfg.FTTimeout.String(),
		"tsqDelay", engCfg.TSQDelay.String())
	services.Engine = service.NewEngine(engCfg, services.Storage, client,
		webhook.NewNotifier(cfg.Webhook.Timeout), services.Registry)
	if err := services.Engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine service: %w", err)
	}

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Storage, services.Engine.Engine, services.Registry,
		cfg.API.Host, cfg.API.Port, cfg.API.AdminToken, cfg.Log.DisableAPI)
	if err := services.API.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("fundflow-node is running, ready to process transfers!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.API != nil {
		services.API.Stop()
	}
	if services.Engine != nil {
		services.Engine.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
