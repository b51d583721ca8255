package resources

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/maas"
)

// Descriptor is the immutable per-resource configuration a Handler runs on.
// One descriptor fully describes a resource: where it lives in URI space,
// which backend path serves it, how its parameters and payloads validate,
// and how it caches. Built once at registration time.
type Descriptor struct {
	// Name is the resource label, used as cache namespace and audit label.
	Name string

	// URIPattern is the templated URI this resource answers, e.g.
	// maas://machine/{system_id}/details.
	URIPattern string

	// Title and Description feed MCP resource registration.
	Title       string
	Description string

	// BackendPath is the MAAS path template with {param} placeholders.
	BackendPath string

	// ParamRules are validator rules applied to extracted parameters,
	// keyed by parameter name.
	ParamRules map[string]any

	// IDParam names the path parameter carrying the entity id. Empty for
	// list resources.
	IDParam string

	// List marks collection resources: the backend payload must be an
	// array and every element must satisfy ValidateEntity.
	List bool

	// ValidateEntity checks one entity payload against the schema.
	ValidateEntity func(json.RawMessage) error

	// ExtraValidate runs after rule validation for checks rules cannot
	// express (e.g. a name character-class check).
	ExtraValidate func(Params) error

	// PreCheck optionally verifies a parent entity before the main fetch.
	// A not-found from the pre-check is authoritative; any other failure
	// is advisory and the main fetch proceeds.
	PreCheck func(ctx context.Context, backend maas.Backend, params Params) error

	// QueryMap maps validated parameters to backend query parameters.
	QueryMap func(Params) url.Values

	// FilterFields are the list-filter parameter names. Presence of any
	// of them invalidates the resource's whole cache namespace.
	FilterFields []string

	// CacheOptions is the initial cache configuration; handlers may
	// replace it atomically at runtime.
	CacheOptions cache.Options
}

// ResourceID returns the entity id for this request, or "" for lists.
func (d *Descriptor) ResourceID(params Params) string {
	if d.IDParam == "" {
		return ""
	}
	return params.Get(d.IDParam)
}

// HasFilter reports whether any recognized filter field is present.
func (d *Descriptor) HasFilter(params Params) bool {
	for _, field := range d.FilterFields {
		if params.Get(field) != "" {
			return true
		}
	}
	return false
}

// InterpolatePath substitutes {param} placeholders in the backend path.
func (d *Descriptor) InterpolatePath(params Params) string {
	path := d.BackendPath
	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", value)
	}
	return path
}
