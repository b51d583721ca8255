package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsforge/maas-mcp/pkg/audit"
	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/config"
	"github.com/opsforge/maas-mcp/pkg/maas"
	"github.com/opsforge/maas-mcp/pkg/resources"
)

// Gateway is the MCP-facing side of the service. It owns one handler per
// catalog descriptor and exposes them as MCP resource templates.
type Gateway struct {
	handlers []*resources.Handler
	log      *slog.Logger
}

// NewGateway builds a gateway wiring every catalog descriptor to the shared
// backend, cache and audit sink.
func NewGateway(cfg *config.Config, backend maas.Backend, store *cache.Cache, sink *audit.Sink, log *slog.Logger) *Gateway {
	v := validator.New()

	catalog := resources.Catalog(v)
	handlers := make([]*resources.Handler, 0, len(catalog))
	for _, desc := range catalog {
		h := resources.NewHandler(desc, backend, store, sink, v, log)

		// Configured per-resource TTLs override the catalog defaults.
		if rc, ok := cfg.Cache.Resources[desc.Name]; ok {
			opts := h.CacheOptions()
			if rc.TTLSeconds > 0 {
				opts.TTLSeconds = rc.TTLSeconds
				opts.Control.MaxAge = rc.TTLSeconds
			}
			if rc.Enabled != nil {
				opts.Enabled = *rc.Enabled
			}
			h.SetCacheOptions(opts)
		}

		handlers = append(handlers, h)
	}

	return &Gateway{handlers: handlers, log: log}
}

// Handlers returns the gateway's resource handlers.
func (g *Gateway) Handlers() []*resources.Handler {
	return g.handlers
}

// InitMCP builds the MCP server, registers every catalog resource as a
// template, and starts serving the SSE and Streamable HTTP transports on the
// configured address. Returns the HTTP server for graceful shutdown.
func InitMCP(ctx context.Context, cfg *config.Config, backend maas.Backend, store *cache.Cache, sink *audit.Sink, log *slog.Logger) (*Gateway, *http.Server) {
	log.Info("Initializing MAAS MCP gateway",
		slog.String("name", cfg.Server.Name),
		slog.String("version", cfg.Server.Version),
	)
	gateway := NewGateway(cfg, backend, store, sink, log)

	log.Info("Creating MCP server", slog.Bool("resource_capabilities", true))
	s := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
		server.WithRecovery(),
	)

	for _, h := range gateway.handlers {
		desc := h.Descriptor()
		log.Info("Registering resource template",
			slog.String("name", desc.Name),
			slog.String("uri", desc.URIPattern),
		)
		s.AddResourceTemplate(mcp.NewResourceTemplate(
			desc.URIPattern,
			desc.Title,
			mcp.WithTemplateDescription(desc.Description),
			mcp.WithTemplateMIMEType("application/json"),
		), resourceLoggingMiddleware(log, desc.Name)(h.MCPHandler()))
	}

	// Proxy deployments set X-Forwarded-Prefix; direct connections get an
	// empty base path.
	log.Info("Creating SSE server", slog.String("config_type", "HTTP"))
	sseServer := server.NewSSEServer(
		s,
		server.WithSSEContextFunc(setLoggerIntoContext(log)),
		server.WithDynamicBasePath(func(r *http.Request, sessionId string) string {
			forwardedPrefix := r.Header.Get("X-Forwarded-Prefix")
			if forwardedPrefix != "" {
				log.Info("Using proxy-aware base path from X-Forwarded-Prefix",
					slog.String("base_path", forwardedPrefix),
					slog.String("session_id", sessionId),
				)
				return forwardedPrefix
			}
			return ""
		}),
	)

	log.Info("Creating Streamable HTTP server", slog.String("config_type", "Streamable HTTP"))
	streamableServer := server.NewStreamableHTTPServer(
		s,
		server.WithHTTPContextFunc(setLoggerIntoContext(log)),
		server.WithEndpointPath("/stream"),
	)

	mcpServer := &http.Server{
		Addr:    cfg.Server.MCPAddr,
		Handler: gateway.routes(sseServer, streamableServer, log),
	}

	go func() {
		log.Info("Starting MCP HTTP server", slog.String("addr", cfg.Server.MCPAddr))
		if err := mcpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("MCP server error", slog.Any("error", err))
		}
	}()

	return gateway, mcpServer
}
