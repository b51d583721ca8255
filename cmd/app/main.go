package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/opsforge/maas-mcp/pkg/api"
	"github.com/opsforge/maas-mcp/pkg/audit"
	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/config"
	"github.com/opsforge/maas-mcp/pkg/maas"
	"github.com/opsforge/maas-mcp/pkg/mcp"
)

var (
	httpServer *http.Server
	mcpServer  *http.Server
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
)

// Run starts all components of the application
func Run(log *slog.Logger) error {
	// Create a cancelable context for graceful shutdown
	ctx, cancel = context.WithCancel(context.Background())

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Info("Configuration loaded", slog.String("path", configPath))

	backend, err := maas.NewClient(
		cfg.MAAS.APIURL,
		cfg.MAAS.APIKey,
		time.Duration(cfg.MAAS.TimeoutSeconds)*time.Second,
		log,
	)
	if err != nil {
		return err
	}
	log.Info("MAAS client initialized", slog.String("api_url", cfg.MAAS.APIURL))

	store := cache.New(cache.Settings{
		Enabled:           cfg.Cache.Enabled,
		DefaultTTLSeconds: cfg.Cache.DefaultTTLSeconds,
		Resources:         cacheResourceSettings(cfg.Cache.Resources),
	}, log)
	sink := audit.NewSink(log)

	// Initialize and start MCP gateway
	gateway, srv := mcp.InitMCP(ctx, &cfg, backend, store, sink, log)
	mcpServer = srv

	// Start operations HTTP server
	httpServer = api.NewServer(cfg.Server.HTTPAddr, store, gateway.Handlers(), log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting HTTP server", slog.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", slog.Any("error", err))
		}
	}()

	// Wait a bit to ensure servers are started
	time.Sleep(100 * time.Millisecond)
	log.Info("All services started successfully")

	// Don't return - the calling function will handle signals
	<-ctx.Done()
	return nil
}

func cacheResourceSettings(overrides map[string]config.ResourceCacheConfig) map[string]cache.ResourceSettings {
	if len(overrides) == 0 {
		return nil
	}
	settings := make(map[string]cache.ResourceSettings, len(overrides))
	for name, rc := range overrides {
		settings[name] = cache.ResourceSettings{
			Enabled:    rc.Enabled,
			TTLSeconds: rc.TTLSeconds,
		}
	}
	return settings
}

// Shutdown gracefully shuts down all components
func Shutdown(log *slog.Logger) {

	// First cancel the context to signal all components to shut down
	if cancel != nil {
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", slog.Any("error", err))
		}
	}

	// Shutdown MCP server
	if mcpServer != nil {
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("MCP server shutdown error", slog.Any("error", err))
		}
	}

	// Wait for all goroutines to finish
	wg.Wait()
}
