// Package audit records terminal request outcomes: resource accesses, cache
// operations and failures, keyed by resource label and id.
package audit

import (
	"log/slog"

	"github.com/opsforge/maas-mcp/pkg/helpers"
)

// Sink writes audit events through a structured logger.
type Sink struct {
	log *slog.Logger
}

// NewSink creates an audit sink over the given logger.
func NewSink(log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{log: log}
}

// ResourceAccess records a successful resource access.
func (s *Sink) ResourceAccess(resource, id string) {
	s.log.Info("Resource accessed",
		slog.String("event_id", helpers.GenerateID()),
		slog.String("resource", resource),
		slog.String("resource_id", id),
	)
}

// CacheOperation records a cache hit, miss or set for a resource.
func (s *Sink) CacheOperation(resource, op, key, id string, meta map[string]any) {
	attrs := []any{
		slog.String("event_id", helpers.GenerateID()),
		slog.String("resource", resource),
		slog.String("operation", op),
		slog.String("cache_key", key),
	}
	if id != "" {
		attrs = append(attrs, slog.String("resource_id", id))
	}
	for k, v := range meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.log.Info("Cache operation", attrs...)
}

// ResourceAccessFailure records a failed resource access before the error
// propagates to the caller.
func (s *Sink) ResourceAccessFailure(resource, id string, err error) {
	s.log.Error("Resource access failed",
		slog.String("event_id", helpers.GenerateID()),
		slog.String("resource", resource),
		slog.String("resource_id", id),
		slog.Any("error", err),
	)
}
