// Package config loads the gateway configuration from a YAML file.
// Environment variables referenced in the file ($VAR or ${VAR}) are expanded
// before parsing so credentials can stay out of the file itself.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ResourceCacheConfig overrides caching for a single resource namespace.
type ResourceCacheConfig struct {
	Enabled    *bool `yaml:"enabled"`
	TTLSeconds int   `yaml:"ttl_seconds" validate:"gte=0"`
}

// MAASConfig locates and authenticates against the MAAS API.
type MAASConfig struct {
	// APIURL is the MAAS API root, e.g. http://maas.example.com:5240/MAAS/api/2.0
	APIURL string `yaml:"api_url" validate:"required,url"`
	// APIKey is the MAAS key in consumer:token:secret form
	APIKey         string `yaml:"api_key" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// CacheConfig controls the response cache globally and per resource.
type CacheConfig struct {
	Enabled           bool                           `yaml:"enabled"`
	DefaultTTLSeconds int                            `yaml:"default_ttl_seconds" validate:"gte=0"`
	Resources         map[string]ResourceCacheConfig `yaml:"resources" validate:"dive"`
}

// ServerConfig names the service and binds its listeners.
type ServerConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	MCPAddr  string `yaml:"mcp_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// Config is the full gateway configuration.
type Config struct {
	MAAS   MAASConfig   `yaml:"maas"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
}

const (
	defaultTimeoutSeconds = 30
	defaultCacheTTL       = 300
	defaultMCPAddr        = ":8081"
	defaultHTTPAddr       = ":8080"
	defaultServerName     = "MAAS MCP Gateway"
	defaultServerVersion  = "1.0.0"
)

// Load reads, expands, parses and validates the configuration file.
func Load(filepath string) (Config, error) {
	var cfg Config

	fileBytes, err := os.ReadFile(filepath)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables present in the config
	// This will cause expansion in the following way: field: "$FIELD" -> field: "value_of_field"
	fileExpandedEnv := os.ExpandEnv(string(fileBytes))

	if err := yaml.Unmarshal([]byte(fileExpandedEnv), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MAAS.TimeoutSeconds == 0 {
		c.MAAS.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Cache.DefaultTTLSeconds == 0 {
		c.Cache.DefaultTTLSeconds = defaultCacheTTL
	}
	if c.Server.Name == "" {
		c.Server.Name = defaultServerName
	}
	if c.Server.Version == "" {
		c.Server.Version = defaultServerVersion
	}
	if c.Server.MCPAddr == "" {
		c.Server.MCPAddr = defaultMCPAddr
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = defaultHTTPAddr
	}
}
