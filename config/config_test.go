package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ConfigFileInConfigDir(t *testing.T) {
	dir := t.TempDir()
	want := writeConfig(t, dir, `
cache_dir = "/var/cache/obs"

[registry]
url = "https://registry.example.com"

[http]
timeout = "45s"
enable_http3 = true

[install]
concurrency = 2
`)

	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, want, path)

	assert.Equal(t, "/var/cache/obs", cfg.CacheDir)
	assert.Equal(t, "https://registry.example.com", cfg.Registry.URL)
	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.HTTP.EnableHTTP3)
	assert.Equal(t, 2, cfg.Install.Concurrency)

	// untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().HTTP.MaxRetries, cfg.HTTP.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[registry]
url = "https://registry.example.com"
`)
	t.Setenv("OBS_REGISTRY_URL", "https://env.example.com")
	t.Setenv("OBS_CACHE_DIR", "/tmp/env-cache")
	t.Setenv("OBS_HTTP_MAX_RETRIES", "7")

	cfg, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Registry.URL)
	assert.Equal(t, "/tmp/env-cache", cfg.CacheDir)
	assert.Equal(t, 7, cfg.HTTP.MaxRetries)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("OBS_LOG_LEVEL", "warn")

	cfg, _, err := Load(context.Background(), LoadOptions{
		ConfigDirPath: t.TempDir(),
		Overrides: map[string]any{
			"log.level":        "debug",
			"tracing.exporter": "stdout",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestLoad_CustomPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[metrics]
address = ":9090"
`)
	cfg, got, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}

func TestLoad_CustomPathMissing(t *testing.T) {
	_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "cache_dir = \n")
	_, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty cache dir", func(c *Config) { c.CacheDir = "" }, "cache_dir"},
		{"registry url scheme", func(c *Config) { c.Registry.URL = "ftp://example.com" }, "registry.url"},
		{"registry url host", func(c *Config) { c.Registry.URL = "https://" }, "registry.url"},
		{"timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"rate", func(c *Config) { c.HTTP.RequestsPerSecond = -1 }, "http.requests_per_second"},
		{"concurrency", func(c *Config) { c.Install.Concurrency = 0 }, "install.concurrency"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, "tracing.sampling_rate"},
		{"empty file registry", func(c *Config) { c.Registry.URL = "file://" }, "registry.url"},
		{"catalog url", func(c *Config) { c.Sync.CatalogURL = "repo-data" }, "sync.catalog_url"},
		{"code url", func(c *Config) { c.Sync.CodeURL = "" }, "sync.code_url"},
		{"sync concurrency", func(c *Config) { c.Sync.Concurrency = 0 }, "sync.concurrency"},
		{"sync auth", func(c *Config) { c.Sync.Auth.Type = "apikey" }, "sync.auth"},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ObjectsLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Registry.URL = "https://registry.example.com/"
	assert.Equal(t, "https://registry.example.com/objects", cfg.ObjectsLocation())

	cfg.Registry.ObjectsURL = "file:///srv/objects"
	assert.Equal(t, "file:///srv/objects", cfg.ObjectsLocation())
}

func TestConfig_ClientAndTracerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.MaxRetries = 5
	cfg.HTTP.RequestsPerSecond = 20
	cfg.HTTP.EnableHTTP3 = true

	client := cfg.ClientConfig(nil)
	assert.Equal(t, 5, client.Retry.MaxRetries)
	assert.Equal(t, 20.0, client.RequestsPerSecond)
	assert.True(t, client.Transport.EnableHTTP3)
	assert.False(t, client.EnableTracing)

	cfg.Tracing.Exporter = "otlp"
	assert.True(t, cfg.ClientConfig(nil).EnableTracing)

	tc := cfg.TracerConfig("1.2.3")
	assert.Equal(t, "otlp", tc.ExporterType)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "localhost:4317", tc.OTLPEndpoint)
}

func TestConfig_TOMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.Timeout = 90 * time.Second
	cfg.Metrics.Address = ":9090"

	data, err := cfg.TOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "1m30s")

	path := writeConfig(t, t.TempDir(), string(data))
	loaded, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: path})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_RegistryAuthFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[registry.auth]\ntype = \"apikey\"\nkey = \"origami-key\"\n")
	t.Setenv("OBS_REGISTRY_AUTH_SECRET", "origami-secret")

	cfg, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, AuthConfig{Type: "apikey", Key: "origami-key", Secret: "origami-secret"}, cfg.Registry.Auth)

	data, err := cfg.TOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "origami-key")
	assert.NotContains(t, string(data), "origami-secret")
}

func TestLoad_RegistryAuthIncomplete(t *testing.T) {
	t.Setenv("OBS_REGISTRY_AUTH_TYPE", "bearer")

	_, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.auth")
}

func TestConfig_RegistryDir(t *testing.T) {
	cfg := DefaultConfig()
	_, ok := cfg.RegistryDir()
	assert.False(t, ok)

	cfg.Registry.URL = "file:///srv/origami-registry"
	require.NoError(t, cfg.Validate())
	dir, ok := cfg.RegistryDir()
	assert.True(t, ok)
	assert.Equal(t, "/srv/origami-registry", dir)
	assert.Equal(t, "file:///srv/origami-registry/objects", cfg.ObjectsLocation())
}

func TestLoad_SyncSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[sync]\ntarget = \"/srv/origami-registry\"\nconcurrency = 2\n\n[sync.auth]\ntype = \"apikey\"\nkey = \"repo-key\"\n")
	t.Setenv("OBS_SYNC_AUTH_SECRET", "repo-secret")

	cfg, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, "/srv/origami-registry", cfg.Sync.Target)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, "https://origami-repo-data.ft.com/v1", cfg.Sync.CatalogURL)
	assert.Equal(t, AuthConfig{Type: "apikey", Key: "repo-key", Secret: "repo-secret"}, cfg.Sync.Auth)

	data, err := cfg.TOML()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "repo-secret")
}
