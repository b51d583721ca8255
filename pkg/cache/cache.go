// Package cache provides the process-wide response cache used by resource
// handlers. Entries are keyed by resource namespace and normalized URI, expire
// lazily on read, and can be invalidated per namespace or per resource id.
// Caching is an optimization: callers must treat any cache failure as a miss.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Directives are the cache-control flags attached to cached responses.
type Directives struct {
	MaxAge         int
	Private        bool
	MustRevalidate bool
	Immutable      bool
}

// Header renders the directives as a Cache-Control header value, omitting
// anything unset. Returns "" when no directive applies.
func (d Directives) Header() string {
	var parts []string
	if d.MaxAge > 0 {
		parts = append(parts, fmt.Sprintf("max-age=%d", d.MaxAge))
	}
	if d.Private {
		parts = append(parts, "private")
	}
	if d.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if d.Immutable {
		parts = append(parts, "immutable")
	}
	return strings.Join(parts, ", ")
}

// Options is the per-resource caching configuration carried by a descriptor.
type Options struct {
	Enabled             bool
	TTLSeconds          int
	Control             Directives
	IncludeQueryParams  bool
	QueryParamAllowList []string
}

// Entry is a cached payload plus the metadata needed to compute freshness
// headers at read time.
type Entry struct {
	Key        string
	Value      json.RawMessage
	InsertedAt time.Time
	TTL        time.Duration
	Control    Directives
}

// Age returns the whole seconds elapsed since insertion, never negative.
func (e *Entry) Age(now time.Time) int {
	age := int(now.Sub(e.InsertedAt).Seconds())
	if age < 0 {
		return 0
	}
	return age
}

// Expired reports whether the entry has outlived its TTL.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.TTL
}

// ResourceSettings overrides caching behavior for one resource namespace.
type ResourceSettings struct {
	Enabled    *bool
	TTLSeconds int
}

// Settings configures a Cache at construction time.
type Settings struct {
	Enabled           bool
	DefaultTTLSeconds int
	Resources         map[string]ResourceSettings
}

// Cache is a mutex-guarded key/entry store shared by all in-flight requests.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	settings Settings
	log      *slog.Logger
	now      func() time.Time
}

// ErrEmptyKey is returned by Set when the key is blank.
var ErrEmptyKey = errors.New("cache: empty key")

// New creates a cache with the given settings.
func New(settings Settings, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]*Entry),
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Enabled reports the global enable flag.
func (c *Cache) Enabled() bool {
	return c.settings.Enabled
}

// ResourceEnabled reports whether caching applies for one resource, combining
// the global flag, the handler options and any configured override.
func (c *Cache) ResourceEnabled(resource string, opts Options) bool {
	if !c.settings.Enabled || !opts.Enabled {
		return false
	}
	if rs, ok := c.settings.Resources[resource]; ok && rs.Enabled != nil {
		return *rs.Enabled
	}
	return true
}

// ResourceTTL returns the TTL in seconds for a resource: handler options win,
// then config overrides, then the global default.
func (c *Cache) ResourceTTL(resource string, opts Options) int {
	if opts.TTLSeconds > 0 {
		return opts.TTLSeconds
	}
	if rs, ok := c.settings.Resources[resource]; ok && rs.TTLSeconds > 0 {
		return rs.TTLSeconds
	}
	return c.settings.DefaultTTLSeconds
}

// Key builds the deterministic cache key for a request. The key always embeds
// the resource namespace and the query-stripped URI; allow-listed query
// parameters are appended sorted so client-supplied ordering never matters.
func (c *Cache) Key(resource, uri string, query url.Values, opts Options) string {
	base := uri
	if idx := strings.IndexByte(base, '?'); idx != -1 {
		base = base[:idx]
	}

	key := resource + ":" + base

	if !opts.IncludeQueryParams || len(opts.QueryParamAllowList) == 0 {
		return key
	}

	allowed := make([]string, 0, len(opts.QueryParamAllowList))
	for _, name := range opts.QueryParamAllowList {
		if v := query.Get(name); v != "" {
			allowed = append(allowed, name+"="+v)
		}
	}
	if len(allowed) == 0 {
		return key
	}
	sort.Strings(allowed)
	return key + "?" + strings.Join(allowed, "&")
}

// Get returns the live entry for key, or a miss when the key is absent or the
// entry has expired. Expired entries are removed on the way out.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if entry.Expired(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return entry, true
}

// Set stores a payload under key using the effective TTL for the resource.
func (c *Cache) Set(key string, value json.RawMessage, resource string, opts Options) error {
	if key == "" {
		return ErrEmptyKey
	}

	ttl := time.Duration(c.ResourceTTL(resource, opts)) * time.Second

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{
		Key:        key,
		Value:      value,
		InsertedAt: c.now(),
		TTL:        ttl,
		Control:    opts.Control,
	}
	return nil
}

// InvalidateResource removes every entry in the resource's namespace. When an
// id is given only entries whose URI path contains that id segment are
// removed. Returns the number of entries removed; 0 is a valid result.
func (c *Cache) InvalidateResource(resource string, id ...string) int {
	prefix := resource + ":"
	scope := ""
	if len(id) > 0 {
		scope = id[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if scope != "" && !keyHasIDSegment(key[len(prefix):], scope) {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed
}

// keyHasIDSegment reports whether the URI portion of a key contains id as a
// whole path segment, so invalidating "abc" never touches "abcdef".
func keyHasIDSegment(uri, id string) bool {
	if idx := strings.IndexByte(uri, '?'); idx != -1 {
		uri = uri[:idx]
	}
	uri = strings.TrimPrefix(uri, "maas://")
	for _, segment := range strings.Split(uri, "/") {
		if segment == id {
			return true
		}
	}
	return false
}

// Stats describes current cache occupancy, per namespace.
type Stats struct {
	Entries    int            `json:"entries"`
	Namespaces map[string]int `json:"namespaces"`
}

// Stats returns a snapshot of cache occupancy. Expired entries still counted
// here disappear on their next read.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Entries: len(c.entries), Namespaces: make(map[string]int)}
	for key := range c.entries {
		namespace := key
		if idx := strings.IndexByte(key, ':'); idx != -1 {
			namespace = key[:idx]
		}
		stats.Namespaces[namespace]++
	}
	return stats
}
