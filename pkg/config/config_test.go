package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
maas:
  api_url: http://maas.example.com:5240/MAAS/api/2.0
  api_key: consumer:token:secret
cache:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.MAAS.TimeoutSeconds)
	assert.Equal(t, 300, cfg.Cache.DefaultTTLSeconds)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8081", cfg.Server.MCPAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "MAAS MCP Gateway", cfg.Server.Name)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_MAAS_KEY", "ck:tk:ts")
	path := writeConfig(t, `
maas:
  api_url: http://maas.example.com:5240/MAAS/api/2.0
  api_key: $TEST_MAAS_KEY
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ck:tk:ts", cfg.MAAS.APIKey)
}

func TestLoadPerResourceOverrides(t *testing.T) {
	path := writeConfig(t, `
maas:
  api_url: http://maas.example.com:5240/MAAS/api/2.0
  api_key: ck:tk:ts
cache:
  enabled: true
  default_ttl_seconds: 120
  resources:
    Machine:
      ttl_seconds: 30
    Zone:
      enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	machine, ok := cfg.Cache.Resources["Machine"]
	require.True(t, ok)
	assert.Equal(t, 30, machine.TTLSeconds)

	zone, ok := cfg.Cache.Resources["Zone"]
	require.True(t, ok)
	require.NotNil(t, zone.Enabled)
	assert.False(t, *zone.Enabled)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing api key", "maas:\n  api_url: http://maas.example.com\n"},
		{"bad url", "maas:\n  api_url: not a url\n  api_key: ck:tk:ts\n"},
		{"broken yaml", "maas: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
