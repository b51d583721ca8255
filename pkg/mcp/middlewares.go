package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsforge/maas-mcp/pkg/helpers"
	applog "github.com/opsforge/maas-mcp/pkg/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	requestPathKey contextKey = "request_path"
)

// apiKeyMiddleware validates API key from the request header.
func apiKeyMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := helpers.GetLoggerFromContext(r.Context())
			if !helpers.IsValidAPIKeyFromHeader(&r.Header) {
				log.Info("Unauthorized access attempt",
					slog.String("reason", "invalid or missing API key"),
					slog.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "Unauthorized: invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setLoggerIntoContext attaches the logger and request path into the
// transport context.
func setLoggerIntoContext(log *slog.Logger) func(context.Context, *http.Request) context.Context {
	return func(ctx context.Context, r *http.Request) context.Context {
		// Store the request path in context for transport detection
		ctx = context.WithValue(ctx, requestPathKey, r.URL.Path)
		return helpers.SetLoggerInContext(ctx, log)
	}
}

// resourceLoggingMiddleware wraps a resource template handler to log each
// MCP read event with its transport and duration.
func resourceLoggingMiddleware(log *slog.Logger, resource string) func(server.ResourceTemplateHandlerFunc) server.ResourceTemplateHandlerFunc {
	return func(next server.ResourceTemplateHandlerFunc) server.ResourceTemplateHandlerFunc {
		return func(ctx context.Context, request mcptypes.ReadResourceRequest) ([]mcptypes.ResourceContents, error) {
			start := time.Now()
			contents, err := next(ctx, request)

			// Determine transport type from request path stored in context
			transport := "unknown"
			if requestPath, ok := ctx.Value(requestPathKey).(string); ok {
				if strings.Contains(requestPath, "/stream") {
					transport = "stream"
				} else if strings.Contains(requestPath, "/message") {
					transport = "sse"
				}
			}

			applog.EndMCPEventLogging(log, resource, request.Params.URI, transport, start)
			return contents, err
		}
	}
}
