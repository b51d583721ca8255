package resources

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/opsforge/maas-mcp/pkg/apierror"
	"github.com/opsforge/maas-mcp/pkg/cache"
	"github.com/opsforge/maas-mcp/pkg/maas"
)

// Pagination and sort parameters accepted by every list resource.
var listControlParams = []string{"limit", "offset", "page", "per_page", "sort", "order"}

var listControlRules = map[string]any{
	"limit":    "omitempty,number",
	"offset":   "omitempty,number",
	"page":     "omitempty,number",
	"per_page": "omitempty,number",
	"order":    "omitempty,oneof=asc desc",
}

var nameFormatRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// nameFormatCheck rejects name-like ids containing characters outside the
// MAAS tag/zone grammar before they reach a backend path.
func nameFormatCheck(param, label string) func(Params) error {
	return func(p Params) error {
		value := p.Get(param)
		if value != "" && !nameFormatRe.MatchString(value) {
			return apierror.Newf(http.StatusBadRequest, apierror.CodeInvalidParameterFmt,
				"Invalid %s: %q contains unsupported characters", label, value)
		}
		return nil
	}
}

// forwardParams maps the named request parameters straight onto backend
// query parameters, skipping absent ones.
func forwardParams(names ...string) func(Params) url.Values {
	all := append(append([]string{}, names...), listControlParams...)
	return func(p Params) url.Values {
		q := url.Values{}
		for _, name := range all {
			if value := p.Get(name); value != "" {
				q.Set(name, value)
			}
		}
		return q
	}
}

func listRules(filters map[string]any) map[string]any {
	rules := make(map[string]any, len(filters)+len(listControlRules))
	for name, rule := range listControlRules {
		rules[name] = rule
	}
	for name, rule := range filters {
		rules[name] = rule
	}
	return rules
}

// Catalog builds the descriptor table for every resource the gateway exposes.
func Catalog(v *validator.Validate) []*Descriptor {
	machineFilters := []string{"hostname", "zone", "pool", "status", "tags"}
	deviceFilters := []string{"hostname", "zone"}
	subnetFilters := []string{"cidr", "space"}

	return []*Descriptor{
		{
			Name:           "Machine",
			URIPattern:     "maas://machine/{system_id}/details",
			Title:          "Machine details",
			Description:    "Details for a single MAAS machine by system id",
			BackendPath:    "/machines/{system_id}/",
			ParamRules:     map[string]any{"system_id": "required,alphanum"},
			IDParam:        "system_id",
			ValidateEntity: EntityValidator[Machine](v, "Machine"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 60,
				Control:    cache.Directives{MaxAge: 60, Private: true, MustRevalidate: true},
			},
		},
		{
			Name:        "Machines",
			URIPattern:  "maas://machines/list",
			Title:       "Machines list",
			Description: "All MAAS machines, filterable by hostname, zone, pool, status and tags",
			BackendPath: "/machines/",
			ParamRules: listRules(map[string]any{
				"hostname": "omitempty,hostname_rfc1123",
				"status":   "omitempty,alphanum",
			}),
			List:           true,
			ValidateEntity: EntityValidator[Machine](v, "Machines"),
			QueryMap:       forwardParams(machineFilters...),
			FilterFields:   machineFilters,
			CacheOptions: cache.Options{
				Enabled:             true,
				TTLSeconds:          30,
				Control:             cache.Directives{MaxAge: 30, Private: true},
				IncludeQueryParams:  true,
				QueryParamAllowList: append(append([]string{}, machineFilters...), listControlParams...),
			},
		},
		{
			Name:           "Device",
			URIPattern:     "maas://device/{system_id}/details",
			Title:          "Device details",
			Description:    "Details for a single MAAS device by system id",
			BackendPath:    "/devices/{system_id}/",
			ParamRules:     map[string]any{"system_id": "required,alphanum"},
			IDParam:        "system_id",
			ValidateEntity: EntityValidator[Device](v, "Device"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 120,
				Control:    cache.Directives{MaxAge: 120, Private: true},
			},
		},
		{
			Name:        "Devices",
			URIPattern:  "maas://devices/list",
			Title:       "Devices list",
			Description: "All MAAS devices, filterable by hostname and zone",
			BackendPath: "/devices/",
			ParamRules: listRules(map[string]any{
				"hostname": "omitempty,hostname_rfc1123",
			}),
			List:           true,
			ValidateEntity: EntityValidator[Device](v, "Devices"),
			QueryMap:       forwardParams(deviceFilters...),
			FilterFields:   deviceFilters,
			CacheOptions: cache.Options{
				Enabled:             true,
				TTLSeconds:          120,
				Control:             cache.Directives{MaxAge: 120, Private: true},
				IncludeQueryParams:  true,
				QueryParamAllowList: append(append([]string{}, deviceFilters...), listControlParams...),
			},
		},
		{
			Name:           "Subnet",
			URIPattern:     "maas://subnet/{subnet_id}",
			Title:          "Subnet details",
			Description:    "Details for a single MAAS subnet by id",
			BackendPath:    "/subnets/{subnet_id}/",
			ParamRules:     map[string]any{"subnet_id": "required,number"},
			IDParam:        "subnet_id",
			ValidateEntity: EntityValidator[Subnet](v, "Subnet"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 300,
				Control:    cache.Directives{MaxAge: 300},
			},
		},
		{
			Name:        "Subnets",
			URIPattern:  "maas://subnets/list",
			Title:       "Subnets list",
			Description: "All MAAS subnets, filterable by CIDR and space",
			BackendPath: "/subnets/",
			ParamRules: listRules(map[string]any{
				"cidr": "omitempty,cidr",
			}),
			List:           true,
			ValidateEntity: EntityValidator[Subnet](v, "Subnets"),
			QueryMap:       forwardParams(subnetFilters...),
			FilterFields:   subnetFilters,
			CacheOptions: cache.Options{
				Enabled:             true,
				TTLSeconds:          300,
				Control:             cache.Directives{MaxAge: 300},
				IncludeQueryParams:  true,
				QueryParamAllowList: append(append([]string{}, subnetFilters...), listControlParams...),
			},
		},
		{
			Name:           "Zone",
			URIPattern:     "maas://zone/{zone_name}",
			Title:          "Zone details",
			Description:    "Details for a single MAAS availability zone by name",
			BackendPath:    "/zones/{zone_name}/",
			ParamRules:     map[string]any{"zone_name": "required"},
			IDParam:        "zone_name",
			ValidateEntity: EntityValidator[Zone](v, "Zone"),
			ExtraValidate:  nameFormatCheck("zone_name", "zone name"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 900,
				Control:    cache.Directives{MaxAge: 900},
			},
		},
		{
			Name:           "Zones",
			URIPattern:     "maas://zones/list",
			Title:          "Zones list",
			Description:    "All MAAS availability zones",
			BackendPath:    "/zones/",
			ParamRules:     listRules(nil),
			List:           true,
			ValidateEntity: EntityValidator[Zone](v, "Zones"),
			QueryMap:       forwardParams(),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 900,
				Control:    cache.Directives{MaxAge: 900},
			},
		},
		{
			Name:           "Domain",
			URIPattern:     "maas://domain/{domain_id}",
			Title:          "Domain details",
			Description:    "Details for a single MAAS DNS domain by id",
			BackendPath:    "/domains/{domain_id}/",
			ParamRules:     map[string]any{"domain_id": "required,number"},
			IDParam:        "domain_id",
			ValidateEntity: EntityValidator[Domain](v, "Domain"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 900,
				Control:    cache.Directives{MaxAge: 900},
			},
		},
		{
			Name:           "Domains",
			URIPattern:     "maas://domains/list",
			Title:          "Domains list",
			Description:    "All MAAS DNS domains",
			BackendPath:    "/domains/",
			ParamRules:     listRules(nil),
			List:           true,
			ValidateEntity: EntityValidator[Domain](v, "Domains"),
			QueryMap:       forwardParams(),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 900,
				Control:    cache.Directives{MaxAge: 900},
			},
		},
		{
			Name:           "Tag",
			URIPattern:     "maas://tag/{tag_name}",
			Title:          "Tag details",
			Description:    "Details for a single MAAS tag by name",
			BackendPath:    "/tags/{tag_name}/",
			ParamRules:     map[string]any{"tag_name": "required"},
			IDParam:        "tag_name",
			ValidateEntity: EntityValidator[Tag](v, "Tag"),
			ExtraValidate:  nameFormatCheck("tag_name", "tag name"),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 120,
				Control:    cache.Directives{MaxAge: 120},
			},
		},
		{
			Name:           "Tags",
			URIPattern:     "maas://tags/list",
			Title:          "Tags list",
			Description:    "All MAAS tags",
			BackendPath:    "/tags/",
			ParamRules:     listRules(nil),
			List:           true,
			ValidateEntity: EntityValidator[Tag](v, "Tags"),
			QueryMap:       forwardParams(),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 120,
				Control:    cache.Directives{MaxAge: 120},
			},
		},
		{
			Name:           "TagMachines",
			URIPattern:     "maas://tag/{tag_name}/machines",
			Title:          "Machines carrying a tag",
			Description:    "All machines tagged with the given tag",
			BackendPath:    "/tags/{tag_name}/machines/",
			ParamRules:     map[string]any{"tag_name": "required"},
			IDParam:        "tag_name",
			List:           true,
			ValidateEntity: EntityValidator[Machine](v, "TagMachines"),
			ExtraValidate:  nameFormatCheck("tag_name", "tag name"),
			PreCheck:       tagExistsCheck,
			QueryMap:       forwardParams(),
			CacheOptions: cache.Options{
				Enabled:    true,
				TTLSeconds: 30,
				Control:    cache.Directives{MaxAge: 30, Private: true},
			},
		},
	}
}

// tagExistsCheck verifies the parent tag before listing its machines. A 404
// here becomes the primary error, naming the tag rather than the collection.
func tagExistsCheck(ctx context.Context, backend maas.Backend, params Params) error {
	name := params.Get("tag_name")
	_, err := backend.Get(ctx, "/tags/"+name+"/", nil)
	if apierror.HasCode(err, apierror.CodeResourceNotFound) {
		return apierror.Newf(http.StatusNotFound, apierror.CodeResourceNotFound,
			"Tag %q not found", name)
	}
	return err
}
