// Package config loads the resolver's configuration from defaults, an
// optional TOML file, OBS_* environment variables and command-line
// overrides, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/adambraimbridge/origami-build-service-v3/auth"
	obshttp "github.com/adambraimbridge/origami-build-service-v3/http"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
)

const (
	// AppName names the configuration directory.
	AppName = "origami-build-service"
	// ConfigFileName is the configuration file looked up in the config directory.
	ConfigFileName = "config.toml"
	// EnvPrefix prefixes every environment variable, e.g. OBS_CACHE_DIR.
	EnvPrefix = "OBS"
)

// Config is the complete configuration.
type Config struct {
	// CacheDir is the system cache root
	CacheDir string `mapstructure:"cache_dir" toml:"cache_dir"`

	Registry RegistryConfig `mapstructure:"registry" toml:"registry"`
	HTTP     HTTPConfig     `mapstructure:"http" toml:"http"`
	Install  InstallConfig  `mapstructure:"install" toml:"install"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing" toml:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics" toml:"metrics"`
	Sync     SyncConfig     `mapstructure:"sync" toml:"sync"`
}

// RegistryConfig locates the package registry.
type RegistryConfig struct {
	// URL is the registry base URL, or file://<dir> for a local registry
	URL string `mapstructure:"url" toml:"url"`

	// ObjectsURL serves code archives: an http(s) URL, a file:// URL or a
	// directory. Empty means <URL>/objects.
	ObjectsURL string `mapstructure:"objects_url" toml:"objects_url"`

	// CacheResponses keeps registry responses in the response cache
	CacheResponses bool `mapstructure:"cache_responses" toml:"cache_responses"`

	Auth AuthConfig `mapstructure:"auth" toml:"auth"`
}

// AuthConfig holds registry credentials. Secrets are usually supplied as
// OBS_REGISTRY_AUTH_SECRET, OBS_REGISTRY_AUTH_TOKEN or
// OBS_REGISTRY_AUTH_PASSWORD rather than written to the file.
type AuthConfig struct {
	// Type is none, apikey, bearer or basic
	Type     string `mapstructure:"type" toml:"type"`
	Key      string `mapstructure:"key" toml:"key"`
	Secret   string `mapstructure:"secret" toml:"secret"`
	Token    string `mapstructure:"token" toml:"token"`
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"password"`
}

// Credentials converts the configuration for auth.New.
func (a AuthConfig) Credentials() auth.Credentials {
	return auth.Credentials{
		Type:     auth.Type(a.Type),
		Key:      a.Key,
		Secret:   a.Secret,
		Token:    a.Token,
		Username: a.Username,
		Password: a.Password,
	}
}

// HTTPConfig tunes the registry HTTP client.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" toml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" toml:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" toml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" toml:"burst"`
	EnableHTTP3       bool          `mapstructure:"enable_http3" toml:"enable_http3"`
	UserAgent         string        `mapstructure:"user_agent" toml:"user_agent"`
}

// InstallConfig tunes InstallDependencies.
type InstallConfig struct {
	// Concurrency bounds parallel package downloads
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// TracingConfig selects the trace exporter.
type TracingConfig struct {
	Exporter     string  `mapstructure:"exporter" toml:"exporter"`
	Endpoint     string  `mapstructure:"endpoint" toml:"endpoint"`
	SamplingRate float64 `mapstructure:"sampling_rate" toml:"sampling_rate"`
}

// SyncConfig controls `obs registry sync`.
type SyncConfig struct {
	// CatalogURL is the repo-data API listing component versions
	CatalogURL string `mapstructure:"catalog_url" toml:"catalog_url"`

	// CodeURL is the npm registry component archives are fetched from
	CodeURL string `mapstructure:"code_url" toml:"code_url"`

	// Target is the local registry directory synced into
	Target string `mapstructure:"target" toml:"target"`

	// Concurrency bounds parallel archive transfers
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`

	// Auth holds the catalog's credentials, usually an API key and secret
	Auth AuthConfig `mapstructure:"auth" toml:"auth"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address" toml:"address"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFilePath names a TOML file that must exist
	ConfigFilePath string

	// ConfigDirPath replaces the platform configuration directory
	ConfigDirPath string

	// Overrides are applied last, keyed like the file: "http.timeout"
	Overrides map[string]any
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheDir: filepath.Join(os.TempDir(), "pubgrub-cache"),
		Registry: RegistryConfig{
			URL:            "http://localhost:8080",
			CacheResponses: true,
			Auth:           AuthConfig{Type: string(auth.TypeNone)},
		},
		HTTP: HTTPConfig{
			Timeout:    obshttp.DefaultTimeout,
			MaxRetries: obshttp.DefaultMaxRetries,
			Burst:      10,
			UserAgent:  obshttp.DefaultUserAgent,
		},
		Install: InstallConfig{Concurrency: 8},
		Log:     LogConfig{Level: "info"},
		Tracing: TracingConfig{
			Exporter:     "none",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Sync: SyncConfig{
			CatalogURL:  registry.DefaultCatalogURL,
			CodeURL:     registry.DefaultCodeURL,
			Concurrency: registry.DefaultSyncConcurrency,
			Auth:        AuthConfig{Type: string(auth.TypeNone)},
		},
	}
}

// Dir returns the platform configuration directory for the service.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load builds the configuration. It returns the path of the file that was
// read, or "" when only defaults and the environment apply.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := configFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadTOMLIntoViper(v, path); err != nil {
			return nil, "", err
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("registry.url", d.Registry.URL)
	v.SetDefault("registry.objects_url", d.Registry.ObjectsURL)
	v.SetDefault("registry.cache_responses", d.Registry.CacheResponses)
	v.SetDefault("registry.auth.type", d.Registry.Auth.Type)
	v.SetDefault("registry.auth.key", d.Registry.Auth.Key)
	v.SetDefault("registry.auth.secret", d.Registry.Auth.Secret)
	v.SetDefault("registry.auth.token", d.Registry.Auth.Token)
	v.SetDefault("registry.auth.username", d.Registry.Auth.Username)
	v.SetDefault("registry.auth.password", d.Registry.Auth.Password)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.requests_per_second", d.HTTP.RequestsPerSecond)
	v.SetDefault("http.burst", d.HTTP.Burst)
	v.SetDefault("http.enable_http3", d.HTTP.EnableHTTP3)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("install.concurrency", d.Install.Concurrency)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("sync.catalog_url", d.Sync.CatalogURL)
	v.SetDefault("sync.code_url", d.Sync.CodeURL)
	v.SetDefault("sync.target", d.Sync.Target)
	v.SetDefault("sync.concurrency", d.Sync.Concurrency)
	v.SetDefault("sync.auth.type", d.Sync.Auth.Type)
	v.SetDefault("sync.auth.key", d.Sync.Auth.Key)
	v.SetDefault("sync.auth.secret", d.Sync.Auth.Secret)
	v.SetDefault("sync.auth.token", d.Sync.Auth.Token)
	v.SetDefault("sync.auth.username", d.Sync.Auth.Username)
	v.SetDefault("sync.auth.password", d.Sync.Auth.Password)
}

func configFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			// No home directory: run on defaults and the environment.
			return "", nil
		}
	}
	if path := filepath.Join(dir, ConfigFileName); fileExists(path) {
		return path, nil
	}
	return "", nil
}

// loadTOMLIntoViper merges a TOML document into v, keeping defaults for
// keys the file leaves out.
func loadTOMLIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("%s:%d:%d: %s", path, row, col, decodeErr.Error())
		}
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if err := v.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

// Validate checks values that decoding alone cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir must not be empty"))
	}
	if _, local := c.RegistryDir(); !local && !isHTTPURL(c.Registry.URL) {
		errs = append(errs, fmt.Errorf("registry.url must be an http(s) URL or file://<dir>, got %q", c.Registry.URL))
	}
	if _, err := auth.New(c.Registry.Auth.Credentials()); err != nil {
		errs = append(errs, fmt.Errorf("registry.auth: %w", err))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("http.max_retries must not be negative, got %d", c.HTTP.MaxRetries))
	}
	if c.HTTP.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("http.requests_per_second must not be negative, got %g", c.HTTP.RequestsPerSecond))
	}
	if c.Install.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("install.concurrency must be at least 1, got %d", c.Install.Concurrency))
	}
	if _, err := observability.ParseLogLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %q", c.Tracing.Exporter))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampling_rate must be between 0 and 1, got %g", c.Tracing.SamplingRate))
	}
	if !isHTTPURL(c.Sync.CatalogURL) {
		errs = append(errs, fmt.Errorf("sync.catalog_url must be an http(s) URL, got %q", c.Sync.CatalogURL))
	}
	if !isHTTPURL(c.Sync.CodeURL) {
		errs = append(errs, fmt.Errorf("sync.code_url must be an http(s) URL, got %q", c.Sync.CodeURL))
	}
	if c.Sync.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency))
	}
	if _, err := auth.New(c.Sync.Auth.Credentials()); err != nil {
		errs = append(errs, fmt.Errorf("sync.auth: %w", err))
	}
	return errors.Join(errs...)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RegistryDir returns the directory of a file:// registry URL.
func (c *Config) RegistryDir() (string, bool) {
	dir, ok := strings.CutPrefix(c.Registry.URL, "file://")
	if !ok || dir == "" {
		return "", false
	}
	return dir, true
}

// ObjectsLocation returns where code archives are served from.
func (c *Config) ObjectsLocation() string {
	if c.Registry.ObjectsURL != "" {
		return c.Registry.ObjectsURL
	}
	return strings.TrimSuffix(c.Registry.URL, "/") + "/objects"
}

// ClientConfig returns the registry HTTP client configuration.
func (c *Config) ClientConfig(logger observability.Logger) obshttp.Config {
	cfg := obshttp.DefaultConfig()
	cfg.Timeout = c.HTTP.Timeout
	cfg.UserAgent = c.HTTP.UserAgent
	cfg.Retry.MaxRetries = c.HTTP.MaxRetries
	cfg.RequestsPerSecond = c.HTTP.RequestsPerSecond
	cfg.Burst = c.HTTP.Burst
	cfg.Transport.EnableHTTP3 = c.HTTP.EnableHTTP3
	cfg.EnableTracing = c.Tracing.Exporter != "none"
	cfg.Logger = logger
	return cfg
}

// TracerConfig returns the OpenTelemetry setup for the configured exporter.
func (c *Config) TracerConfig(serviceVersion string) observability.TracerConfig {
	tc := observability.DefaultTracerConfig()
	tc.ServiceVersion = serviceVersion
	tc.ExporterType = c.Tracing.Exporter
	tc.OTLPEndpoint = c.Tracing.Endpoint
	tc.SamplingRate = c.Tracing.SamplingRate
	return tc
}

// TOML renders the configuration as a config file. Durations are written
// in time.Duration notation ("30s") so the output loads back unchanged.
// Secrets, tokens and passwords are left out.
func (c *Config) TOML() ([]byte, error) {
	doc := map[string]any{
		"cache_dir": c.CacheDir,
		"registry": map[string]any{
			"url":             c.Registry.URL,
			"objects_url":     c.Registry.ObjectsURL,
			"cache_responses": c.Registry.CacheResponses,
			"auth": map[string]any{
				"type":     c.Registry.Auth.Type,
				"key":      c.Registry.Auth.Key,
				"username": c.Registry.Auth.Username,
			},
		},
		"http": map[string]any{
			"timeout":             c.HTTP.Timeout.String(),
			"max_retries":         c.HTTP.MaxRetries,
			"requests_per_second": c.HTTP.RequestsPerSecond,
			"burst":               c.HTTP.Burst,
			"enable_http3":        c.HTTP.EnableHTTP3,
			"user_agent":          c.HTTP.UserAgent,
		},
		"install": map[string]any{"concurrency": c.Install.Concurrency},
		"log":     map[string]any{"level": c.Log.Level},
		"tracing": map[string]any{
			"exporter":      c.Tracing.Exporter,
			"endpoint":      c.Tracing.Endpoint,
			"sampling_rate": c.Tracing.SamplingRate,
		},
		"metrics": map[string]any{"address": c.Metrics.Address},
		"sync": map[string]any{
			"catalog_url": c.Sync.CatalogURL,
			"code_url":    c.Sync.CodeURL,
			"target":      c.Sync.Target,
			"concurrency": c.Sync.Concurrency,
			"auth": map[string]any{
				"type":     c.Sync.Auth.Type,
				"key":      c.Sync.Auth.Key,
				"username": c.Sync.Auth.Username,
			},
		},
	}
	return toml.Marshal(doc)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
