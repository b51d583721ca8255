package resources

import "strings"

// Match extracts named path parameters from uri according to pattern.
// Patterns look like maas://machine/{system_id}/details: segments are either
// literals or {name} placeholders. A segment-count mismatch, scheme mismatch,
// literal mismatch or empty placeholder value all yield an empty mapping
// rather than an error, so routing failures stay distinguishable from
// application-level validation errors.
//
// Placeholder values are taken verbatim and case-preserved. Query parameters
// are never extracted here; callers read them off the URI directly.
func Match(uri, pattern string) map[string]string {
	none := map[string]string{}

	uriScheme, uriRest, ok := splitScheme(uri)
	if !ok {
		return none
	}
	patScheme, patRest, ok := splitScheme(pattern)
	if !ok || uriScheme != patScheme {
		return none
	}

	// The pattern never carries a query; strip any off the URI.
	if idx := strings.IndexByte(uriRest, '?'); idx != -1 {
		uriRest = uriRest[:idx]
	}

	uriSegments := strings.Split(uriRest, "/")
	patSegments := strings.Split(patRest, "/")
	if len(uriSegments) != len(patSegments) {
		return none
	}

	params := map[string]string{}
	for i, patSegment := range patSegments {
		value := uriSegments[i]
		if name, isPlaceholder := placeholderName(patSegment); isPlaceholder {
			// An empty path segment would otherwise become an empty id.
			if value == "" {
				return none
			}
			params[name] = value
			continue
		}
		if patSegment != value {
			return none
		}
	}
	return params
}

func splitScheme(uri string) (scheme, rest string, ok bool) {
	idx := strings.Index(uri, "://")
	if idx <= 0 {
		return "", "", false
	}
	return uri[:idx], uri[idx+3:], true
}

func placeholderName(segment string) (string, bool) {
	if len(segment) > 2 && strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return segment[1 : len(segment)-1], true
	}
	return "", false
}
