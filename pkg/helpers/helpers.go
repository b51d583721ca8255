package helpers

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CloseResources safely closes an io.Closer and logs any error
// It's a utility function for handling resource cleanup
func CloseResources(resource io.Closer, resourceName string) {
	if resource != nil {
		if err := resource.Close(); err != nil {
			log.Printf("Failed to close %s: %v", resourceName, err)
		}
	}
}

const apiKeyEnvVar = "API_KEY"

const apiKeyHeader = "X-API-Key"

func IsValidAPIKeyFromHeader(header *http.Header) bool {
	expectedKey := os.Getenv(apiKeyEnvVar)

	providedKey := header.Get(apiKeyHeader)

	// No configured API key, so it passes for all requests
	if expectedKey == "" {
		return true
	}
	// Return true only if both keys are non-empty and match.
	return providedKey == expectedKey
}

type ContextKey string

var myLoggerKey ContextKey = ContextKey("my logger")

func GetLoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(myLoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// SetLoggerInContext returns a new context containing the provided logger.
// Consumers can retrieve it via GetLoggerFromContext.
func SetLoggerInContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, myLoggerKey, logger)
}

func GetHostname() string {
	name, err := os.Hostname()

	if err != nil {
		log.Print("Could not get the hostname")
		return "unknown"
	}

	return name
}

func GenerateID() string {
	nid, err := gonanoid.New()

	if err != nil {
		// Handle error, though is unlikely to fail
		// unless there's a problem with the system's random number generator.
		log.Fatalf("Failed to generate ID: %v", err)
	}

	return nid
}

func GetServerMode() string {
	return os.Getenv("ENV_SERVER_MODE")
}
