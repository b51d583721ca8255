package api

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// InvalidateRequest asks for cache invalidation of one resource namespace,
// optionally scoped to a single resource id.
type InvalidateRequest struct {
	Resource string `json:"resource" binding:"required"`
	ID       string `json:"id,omitempty"`
}

// InvalidateResponse reports how many cache entries were removed.
type InvalidateResponse struct {
	Status   string `json:"status"`
	Resource string `json:"resource"`
	ID       string `json:"id,omitempty"`
	Removed  int    `json:"removed"`
}

// ResourceInfo describes one registered resource for the listing endpoint.
type ResourceInfo struct {
	Name        string `json:"name"`
	URIPattern  string `json:"uri_pattern"`
	Description string `json:"description"`
	List        bool   `json:"list"`
	CacheTTL    int    `json:"cache_ttl_seconds"`
}

// ResourcesResponse represents the response for listing registered resources.
type ResourcesResponse struct {
	Resources []ResourceInfo `json:"resources"`
}
