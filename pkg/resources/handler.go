package resources

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsforge/maas-mcp/pkg/apierror"
	"github.com/opsforge/maas-mcp/pkg/audit"
	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/helpers"
	"github.com/opsforge/maas-mcp/pkg/maas"
)

// Handler runs the per-request pipeline for one resource descriptor:
// extract params -> validate -> cache lookup -> fetch -> validate payload ->
// cache store -> envelope. Detail and list resources share the same shape;
// the descriptor decides which branch applies. Handlers hold no per-request
// state and are safe for concurrent use.
type Handler struct {
	desc      *Descriptor
	backend   maas.Backend
	cache     *cache.Cache
	audit     *audit.Sink
	validate  *validator.Validate
	cacheOpts atomic.Pointer[cache.Options]
	log       *slog.Logger
	now       func() time.Time
}

// NewHandler builds a handler for desc wired to the shared collaborators.
func NewHandler(desc *Descriptor, backend maas.Backend, store *cache.Cache, sink *audit.Sink, v *validator.Validate, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		desc:     desc,
		backend:  backend,
		cache:    store,
		audit:    sink,
		validate: v,
		log:      log,
		now:      time.Now,
	}
	opts := desc.CacheOptions
	h.cacheOpts.Store(&opts)
	return h
}

// Descriptor returns the handler's resource descriptor.
func (h *Handler) Descriptor() *Descriptor {
	return h.desc
}

// CacheOptions returns the current cache options.
func (h *Handler) CacheOptions() cache.Options {
	return *h.cacheOpts.Load()
}

// SetCacheOptions replaces the cache options atomically. Requests in flight
// keep the options they started with.
func (h *Handler) SetCacheOptions(opts cache.Options) {
	h.cacheOpts.Store(&opts)
}

// Handle is the resource request entrypoint. Every surfaced error is a typed
// error and triggers exactly one audit-failure event, scoped to the resource
// and its id when known.
func (h *Handler) Handle(ctx context.Context, uri string, raw map[string]string) (*Envelope, error) {
	params, err := h.validateParams(uri, raw)
	if err != nil {
		h.audit.ResourceAccessFailure(h.desc.Name, "", err)
		return nil, apierror.Ensure(err)
	}

	id := h.desc.ResourceID(params)
	envelope, err := h.process(ctx, uri, params, id)
	if err != nil {
		h.audit.ResourceAccessFailure(h.desc.Name, id, err)
		return nil, apierror.Ensure(err)
	}
	return envelope, nil
}

func (h *Handler) validateParams(uri string, raw map[string]string) (Params, error) {
	params, err := ExtractAndValidate(h.validate, uri, h.desc.URIPattern, h.desc.ParamRules, raw, h.desc.Name)
	if err != nil {
		return nil, err
	}
	if h.desc.ExtraValidate != nil {
		if err := h.desc.ExtraValidate(params); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func (h *Handler) process(ctx context.Context, uri string, params Params, id string) (*Envelope, error) {
	opts := h.CacheOptions()
	format := params.Get("format")
	cacheable := h.cache.ResourceEnabled(h.desc.Name, opts)

	var key string
	if cacheable {
		// Coarse consistency policy for filtered lists: any recognized
		// filter drops the whole namespace rather than tracking an
		// entry per filter combination.
		if h.desc.List && h.desc.HasFilter(params) {
			removed := h.cache.InvalidateResource(h.desc.Name)
			h.log.Debug("Invalidated cache namespace for filtered list request",
				slog.String("resource", h.desc.Name),
				slog.Int("removed", removed),
			)
		}

		key = h.cache.Key(h.desc.Name, uri, QueryValues(uri), opts)
		if entry, ok := h.cache.Get(key); ok {
			h.audit.CacheOperation(h.desc.Name, "hit", key, id,
				map[string]any{"age": entry.Age(h.now())})
			h.audit.ResourceAccess(h.desc.Name, id)
			return buildEnvelope(uri, entry.Value, format, entry.Control, entry, h.now()), nil
		}
		h.audit.CacheOperation(h.desc.Name, "miss", key, id, nil)
	}

	if h.desc.PreCheck != nil {
		if err := h.desc.PreCheck(ctx, h.backend, params); err != nil {
			if apierror.HasCode(err, apierror.CodeResourceNotFound) {
				return nil, err
			}
			// The pre-check is advisory outside the not-found case.
			h.log.Warn("Resource pre-check failed, proceeding with fetch",
				slog.String("resource", h.desc.Name),
				slog.Any("error", err),
			)
		}
	}

	var backendQuery url.Values
	if h.desc.QueryMap != nil {
		backendQuery = h.desc.QueryMap(params)
	}

	payload, err := h.backend.Get(ctx, h.desc.InterpolatePath(params), backendQuery)
	if err != nil {
		return nil, err
	}

	if err := h.validatePayload(payload); err != nil {
		return nil, err
	}

	// Best-effort store: a cache fault never fails the request.
	if cacheable {
		if err := h.cache.Set(key, payload, h.desc.Name, opts); err != nil {
			h.log.Warn("Cache store failed, response not cached",
				slog.String("resource", h.desc.Name),
				slog.Any("error", err),
			)
		} else {
			h.audit.CacheOperation(h.desc.Name, "set", key, id, nil)
		}
	}

	h.audit.ResourceAccess(h.desc.Name, id)
	return buildEnvelope(uri, payload, format, opts.Control, nil, h.now()), nil
}

func (h *Handler) validatePayload(payload json.RawMessage) error {
	if !h.desc.List {
		return h.desc.ValidateEntity(payload)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return apierror.Newf(http.StatusInternalServerError, apierror.CodeInvalidResponseFormat,
			"%s response is not an array", h.desc.Name)
	}
	// One invalid element fails the whole response: callers never see a
	// partially validated list.
	for _, element := range elements {
		if err := h.desc.ValidateEntity(element); err != nil {
			return err
		}
	}
	return nil
}

// MCPHandler adapts the pipeline to an mcp-go resource handler.
func (h *Handler) MCPHandler() func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		log := helpers.GetLoggerFromContext(ctx)

		raw := map[string]string{}
		for name, value := range request.Params.Arguments {
			switch v := value.(type) {
			case string:
				raw[name] = v
			case []string:
				if len(v) > 0 {
					raw[name] = v[0]
				}
			}
		}

		envelope, err := h.Handle(ctx, request.Params.URI, raw)
		if err != nil {
			log.Error("Resource request failed",
				slog.String("resource", h.desc.Name),
				slog.String("uri", request.Params.URI),
				slog.Any("error", err),
			)
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      envelope.URI,
				MIMEType: envelope.MIMEType,
				Text:     envelope.Body,
			},
		}, nil
	}
}
