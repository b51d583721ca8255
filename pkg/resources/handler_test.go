package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/opsforge/maas-mcp/pkg/apierror"
	"github.com/opsforge/maas-mcp/pkg/audit"
	"github.com/opsforge/maas-mcp/pkg/cache"
)

// mockBackend implements maas.Backend with function fields, recording calls.
type mockBackend struct {
	GetFunc  func(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	GetCalls []backendCall
}

type backendCall struct {
	Path  string
	Query url.Values
}

func (m *mockBackend) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	// Mirror the real client: a canceled caller never reaches the backend.
	if err := ctx.Err(); err != nil {
		return nil, apierror.New(apierror.StatusClientClosedRequest, apierror.CodeRequestAborted,
			"request canceled by caller")
	}
	m.GetCalls = append(m.GetCalls, backendCall{Path: path, Query: query})
	if m.GetFunc != nil {
		return m.GetFunc(ctx, path, query)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockBackend) Post(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBackend) Put(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBackend) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	backend *mockBackend
	cache   *cache.Cache
	audit   *bytes.Buffer
	catalog map[string]*Descriptor
	v       *validator.Validate
	log     *slog.Logger
}

func newFixture(t *testing.T, cacheEnabled bool) *fixture {
	t.Helper()
	v := validator.New()
	catalog := map[string]*Descriptor{}
	for _, desc := range Catalog(v) {
		catalog[desc.Name] = desc
	}
	buf := &bytes.Buffer{}
	return &fixture{
		backend: &mockBackend{},
		cache:   cache.New(cache.Settings{Enabled: cacheEnabled, DefaultTTLSeconds: 60}, nil),
		audit:   buf,
		catalog: catalog,
		v:       v,
		log:     slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func (f *fixture) handler(t *testing.T, name string) *Handler {
	t.Helper()
	desc, ok := f.catalog[name]
	if !ok {
		t.Fatalf("no descriptor named %q", name)
	}
	sink := audit.NewSink(f.log)
	return NewHandler(desc, f.backend, f.cache, sink, f.v, f.log)
}

const machinePayload = `{"system_id":"abc123","hostname":"web1","cpu_count":4,"memory":8192}`

func TestDetailRequestSuccess(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(machinePayload), nil
	}
	h := f.handler(t, "Machine")

	env, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.Body != machinePayload {
		t.Errorf("body = %q, want backend payload", env.Body)
	}
	if len(f.backend.GetCalls) != 1 {
		t.Fatalf("backend called %d times, want 1", len(f.backend.GetCalls))
	}
	if f.backend.GetCalls[0].Path != "/machines/abc123/" {
		t.Errorf("backend path = %q", f.backend.GetCalls[0].Path)
	}

	// The payload must now be cached under the Machine namespace, scoped to the id.
	stats := f.cache.Stats()
	if stats.Namespaces["Machine"] != 1 {
		t.Errorf("expected one Machine cache entry, stats: %+v", stats)
	}
	key := f.cache.Key("Machine", "maas://machine/abc123/details", nil, h.CacheOptions())
	if !strings.Contains(key, "Machine") || !strings.Contains(key, "abc123") {
		t.Errorf("cache key %q must contain resource and id", key)
	}
	if _, ok := f.cache.Get(key); !ok {
		t.Error("expected cache entry after successful fetch")
	}

	out := f.audit.String()
	if !strings.Contains(out, `"operation":"set"`) {
		t.Errorf("missing cache set audit event: %s", out)
	}
	if !strings.Contains(out, "Resource accessed") {
		t.Errorf("missing access audit event: %s", out)
	}
}

func TestDetailRequestCacheHitSkipsBackend(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(machinePayload), nil
	}
	h := f.handler(t, "Machine")

	// First request populates the cache.
	if _, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil); err != nil {
		t.Fatalf("seed request failed: %v", err)
	}

	env, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.backend.GetCalls) != 1 {
		t.Errorf("backend called %d times, want 1 (hit must skip fetch)", len(f.backend.GetCalls))
	}
	if _, ok := env.Headers["Age"]; !ok {
		t.Error("cache hit response must carry an Age header")
	}
	if env.Headers["Cache-Control"] == "" {
		t.Error("cache hit response must carry Cache-Control")
	}
	if !strings.Contains(f.audit.String(), `"operation":"hit"`) {
		t.Error("missing cache hit audit event")
	}
}

func TestDetailRequestInvalidPayload(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(`{"hostname":"web1"}`), nil
	}
	h := f.handler(t, "Machine")

	_, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil)
	if !apierror.HasCode(err, apierror.CodeValidationError) {
		t.Fatalf("expected validation_error, got %v", err)
	}
	apiErr, _ := apierror.As(err)
	if apiErr.StatusCode != 422 {
		t.Errorf("status = %d, want 422", apiErr.StatusCode)
	}

	if f.cache.Stats().Entries != 0 {
		t.Error("invalid payload must not be cached")
	}
	if !strings.Contains(f.audit.String(), "Resource access failed") {
		t.Error("missing audit failure event")
	}
}

func TestDetailRequestInvalidParams(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler(t, "Machine")

	_, err := h.Handle(context.Background(), "maas://machine/abc123", nil)
	if !apierror.HasCode(err, apierror.CodeInvalidParameters) {
		t.Fatalf("expected invalid_parameters, got %v", err)
	}
	if len(f.backend.GetCalls) != 0 {
		t.Error("backend must not be called for invalid params")
	}
	if !strings.Contains(f.audit.String(), "Resource access failed") {
		t.Error("missing audit failure event")
	}
}

func TestPreCanceledContext(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler(t, "Machine")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Handle(ctx, "maas://machine/abc123/details", nil)
	if !apierror.HasCode(err, apierror.CodeRequestAborted) {
		t.Fatalf("expected request_aborted, got %v", err)
	}
	apiErr, _ := apierror.As(err)
	if apiErr.StatusCode != apierror.StatusClientClosedRequest {
		t.Errorf("status = %d, want 499", apiErr.StatusCode)
	}
	if len(f.backend.GetCalls) != 0 {
		t.Error("backend fetch must not take effect after cancellation")
	}
}

func TestListRequestWithFilterInvalidatesNamespace(t *testing.T) {
	f := newFixture(t, true)
	listPayload := `[` + machinePayload + `]`
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(listPayload), nil
	}
	h := f.handler(t, "Machines")

	// Pre-seed an unfiltered entry in the Machines namespace.
	seedKey := f.cache.Key("Machines", "maas://machines/list", nil, h.CacheOptions())
	if err := f.cache.Set(seedKey, json.RawMessage(`[]`), "Machines", h.CacheOptions()); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	env, err := h.Handle(context.Background(), "maas://machines/list?hostname=web1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Body != listPayload {
		t.Errorf("body = %q", env.Body)
	}

	if len(f.backend.GetCalls) != 1 {
		t.Fatalf("backend called %d times, want 1", len(f.backend.GetCalls))
	}
	call := f.backend.GetCalls[0]
	if call.Path != "/machines/" {
		t.Errorf("backend path = %q, want /machines/", call.Path)
	}
	if call.Query.Get("hostname") != "web1" {
		t.Errorf("backend query hostname = %q, want web1", call.Query.Get("hostname"))
	}

	// The pre-seeded unfiltered entry must be gone: the filter triggered a
	// namespace-wide invalidation.
	if _, ok := f.cache.Get(seedKey); ok {
		t.Error("expected Machines namespace to be invalidated by filtered request")
	}
}

func TestListRequestNonArrayResponse(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(`{"count":2}`), nil
	}
	h := f.handler(t, "Machines")

	_, err := h.Handle(context.Background(), "maas://machines/list", nil)
	if !apierror.HasCode(err, apierror.CodeInvalidResponseFormat) {
		t.Fatalf("expected invalid_response_format, got %v", err)
	}
	apiErr, _ := apierror.As(err)
	if apiErr.StatusCode != 500 {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
}

func TestListRequestOneInvalidElementFailsWhole(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(`[` + machinePayload + `,{"hostname":"orphan"}]`), nil
	}
	h := f.handler(t, "Machines")

	_, err := h.Handle(context.Background(), "maas://machines/list", nil)
	if !apierror.HasCode(err, apierror.CodeValidationError) {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestCacheDisabledBypassesCache(t *testing.T) {
	f := newFixture(t, false)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(machinePayload), nil
	}
	h := f.handler(t, "Machine")

	for i := 0; i < 2; i++ {
		if _, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	if len(f.backend.GetCalls) != 2 {
		t.Errorf("backend called %d times, want 2 (no caching)", len(f.backend.GetCalls))
	}
	if f.cache.Stats().Entries != 0 {
		t.Error("cache must stay empty when globally disabled")
	}
	if strings.Contains(f.audit.String(), "Cache operation") {
		t.Error("no cache operations may be audited when caching is disabled")
	}
}

func TestTagMachinesPreCheckNotFound(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		if path == "/tags/web/" {
			return nil, apierror.New(404, apierror.CodeResourceNotFound, "Not found")
		}
		t.Fatalf("main fetch must not run after pre-check 404, got path %q", path)
		return nil, nil
	}
	h := f.handler(t, "TagMachines")

	_, err := h.Handle(context.Background(), "maas://tag/web/machines", nil)
	if !apierror.HasCode(err, apierror.CodeResourceNotFound) {
		t.Fatalf("expected resource_not_found, got %v", err)
	}
	apiErr, _ := apierror.As(err)
	if !strings.Contains(apiErr.Message, `"web"`) {
		t.Errorf("error must name the tag, got %q", apiErr.Message)
	}
}

func TestTagMachinesPreCheckNon404Proceeds(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		if path == "/tags/web/" {
			return nil, apierror.New(503, apierror.CodeNetworkError, "flaky")
		}
		return json.RawMessage(`[` + machinePayload + `]`), nil
	}
	h := f.handler(t, "TagMachines")

	env, err := h.Handle(context.Background(), "maas://tag/web/machines", nil)
	if err != nil {
		t.Fatalf("advisory pre-check failure must not fail the request: %v", err)
	}
	if env.Body == "" {
		t.Error("expected machine list body")
	}
	if !strings.Contains(f.audit.String(), "pre-check failed") &&
		!strings.Contains(f.audit.String(), "Resource pre-check failed") {
		t.Error("expected a pre-check warning log")
	}
}

func TestTagNameFormatCheck(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler(t, "Tag")

	_, err := h.Handle(context.Background(), "maas://tag/bad%20tag!", nil)
	if !apierror.HasCode(err, apierror.CodeInvalidParameterFmt) {
		t.Fatalf("expected invalid_parameter_format, got %v", err)
	}
	if len(f.backend.GetCalls) != 0 {
		t.Error("backend must not be called for a malformed tag name")
	}
}

func TestBackendErrorPassthrough(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return nil, apierror.New(503, apierror.CodeNetworkError, "MAAS unreachable")
	}
	h := f.handler(t, "Machine")

	_, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil)
	if !apierror.HasCode(err, apierror.CodeNetworkError) {
		t.Fatalf("expected network_error, got %v", err)
	}
	if !strings.Contains(f.audit.String(), "Resource access failed") {
		t.Error("missing audit failure event")
	}
}

func TestXMLFormatRequest(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return json.RawMessage(machinePayload), nil
	}
	h := f.handler(t, "Machine")

	env, err := h.Handle(context.Background(), "maas://machine/abc123/details?format=xml", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.MIMEType != "application/xml" {
		t.Errorf("mime = %q, want application/xml", env.MIMEType)
	}
	if !strings.Contains(env.Body, "<system_id>abc123</system_id>") {
		t.Errorf("missing xml rendering: %s", env.Body)
	}
}

func TestSetCacheOptionsAtomically(t *testing.T) {
	f := newFixture(t, true)
	h := f.handler(t, "Machine")

	opts := h.CacheOptions()
	opts.TTLSeconds = 5
	h.SetCacheOptions(opts)

	if got := h.CacheOptions().TTLSeconds; got != 5 {
		t.Errorf("TTLSeconds = %d, want 5", got)
	}
}

func TestUntypedBackendErrorIsWrapped(t *testing.T) {
	f := newFixture(t, true)
	f.backend.GetFunc = func(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
		return nil, errors.New("something raw")
	}
	h := f.handler(t, "Machine")

	_, err := h.Handle(context.Background(), "maas://machine/abc123/details", nil)
	apiErr, ok := apierror.As(err)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if apiErr.Code != apierror.CodeUnknownError {
		t.Errorf("code = %s, want unknown_error", apiErr.Code)
	}
}
