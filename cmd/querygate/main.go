package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"querygate/internal/api"
	"querygate/internal/config"
	"querygate/internal/data"
	"querygate/internal/logger"
	"querygate/internal/service"

	// Drivers
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "create-key":
			handleCreateKey(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printHelp()
			os.Exit(1)
		}
	}

	startServer()
}

func printHelp() {
	fmt.Println("QueryGate - SQL Mapping & Dispatch Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  querygate                          Start the server")
	fmt.Println("  querygate create-key -role <role>  Mint an API key (admin or consumer)")
	fmt.Println("  querygate help                     Show this help")
}

// handleCreateKey mints an API key from the command line. This is the
// bootstrap path: the first admin key has to come from somewhere other than
// an authenticated admin endpoint.
func handleCreateKey(args []string) {
	fs := flag.NewFlagSet("create-key", flag.ExitOnError)
	role := fs.String("role", "admin", "Role for the new key (admin or consumer)")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := data.Open(cfg.CatalogPath)
	if err != nil {
		fmt.Printf("Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	authSvc := service.NewAuthService(data.NewApiKeyRepo(db))
	token, key, err := authSvc.CreateKey(*role)
	if err != nil {
		fmt.Printf("Failed to create key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s key %s (prefix %s)\n", key.Role, key.ID, key.KeyPrefix)
	fmt.Printf("Token (shown once, store it now): %s\n", token)
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\nCheck .env or the QUERYGATE_KEY environment variable.\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogDir); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info.Println("Starting QueryGate...")

	db, err := data.Open(cfg.CatalogPath)
	if err != nil {
		logger.Error.Fatalf("Failed to open catalog: %v", err)
	}
	defer db.Close()

	connectorRepo := data.NewConnectorRepo(db)
	queryRepo := data.NewQueryRepo(db)
	mappingRepo := data.NewMappingRepo(db)
	logRepo := data.NewLogRepo(db)
	apiKeyRepo := data.NewApiKeyRepo(db)

	cipher, err := service.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Error.Fatalf("Failed to init cipher: %v", err)
	}

	pools := service.NewPoolManager(service.PoolConfig{
		MaxOpen:         cfg.PoolMaxOpen,
		MaxIdle:         cfg.PoolMaxIdle,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		AcquireTimeout:  cfg.PoolAcquireTimeout,
	})
	defer pools.Close()

	registry := service.NewRegistry(connectorRepo, cipher, pools, cfg.TestTimeout)
	executor := service.NewExecutor(pools, cfg.QueryTimeout)
	catalog := service.NewCatalog(queryRepo, registry, executor, logRepo, cfg.MaxPreviewRows)
	introspector := service.NewIntrospector(registry, pools, cfg.MaxSampleRows, cfg.QueryTimeout)
	authSvc := service.NewAuthService(apiKeyRepo)
	dispatcher := service.NewDispatcher(mappingRepo, queryRepo, registry, authSvc, executor, logRepo, cfg.DefaultRows)

	// Mappings deployed before the last shutdown come back live.
	if err := dispatcher.LoadDeployed(); err != nil {
		logger.Error.Fatalf("Failed to restore deployed mappings: %v", err)
	}
	logger.Info.Printf("Restored %d deployed mapping(s)", dispatcher.Snapshot().Len())

	if cfg.DevMode {
		logger.Info.Println("DEV_MODE is on: admin endpoints are unauthenticated")
	}

	sessions := api.NewSessionManager(cfg.EncryptionKey)
	limiter := api.NewRateLimiter(cfg.RatePerMinute, cfg.RateBurst)
	handler := api.NewHandler(registry, catalog, introspector, dispatcher, authSvc, logRepo, apiKeyRepo, sessions, limiter, cfg.DevMode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Routes(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info.Printf("Server listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Fatalf("Server startup failed: %v", err)
		}
	}()

	<-stop
	logger.Info.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error.Printf("Server shutdown error: %v", err)
	}
	logger.Info.Println("Server stopped")
}
