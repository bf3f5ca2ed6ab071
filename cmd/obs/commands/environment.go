package commands

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/adambraimbridge/origami-build-service-v3/auth"
	"github.com/adambraimbridge/origami-build-service-v3/cache"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/version"
	"github.com/adambraimbridge/origami-build-service-v3/config"
	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/hosted"
	obshttp "github.com/adambraimbridge/origami-build-service-v3/http"
	"github.com/adambraimbridge/origami-build-service-v3/install"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
)

const (
	// responseCacheDirName holds cached registry responses inside the system cache.
	responseCacheDirName = "_responses"

	memoryCacheEntries = 1000
	memoryCacheBytes   = 64 << 20
)

// environment is everything a command needs to talk to the registry.
type environment struct {
	cfg     *config.Config
	logger  observability.Logger
	client  *obshttp.Client
	source  *hosted.Source
	tracing *sdktrace.TracerProvider
}

func newEnvironment(cmd *cobra.Command, console *output.Console) (*environment, error) {
	if f := cmd.Flags().Lookup(flagVerbosity); f != nil {
		v, err := output.ParseVerbosity(f.Value.String())
		if err != nil {
			return nil, err
		}
		console.SetVerbosity(v)
	}

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	level, err := observability.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(console.Err(), level).ForContext("Command", cmd.Name())
	if path != "" {
		logger.Debug("Loaded configuration from {Path}", path)
	}

	env := &environment{cfg: cfg, logger: logger}

	if cfg.Tracing.Exporter != "none" {
		env.tracing, err = observability.SetupTracing(cmd.Context(), cfg.TracerConfig(version.Version))
		if err != nil {
			return nil, err
		}
	}
	if addr := cfg.Metrics.Address; addr != "" {
		go func() {
			if err := observability.StartMetricsServer(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server on {Address} stopped: {Error}", addr, err)
			}
		}()
	}

	client := obshttp.NewClient(cfg.ClientConfig(logger))
	env.client = client

	var responses *cache.MultiTierCache
	if cfg.Registry.CacheResponses {
		disk, err := cache.NewDiskCache(filepath.Join(cfg.CacheDir, responseCacheDirName))
		if err != nil {
			return nil, err
		}
		responses = cache.NewMultiTierCache(cache.NewMemoryCache(memoryCacheEntries, memoryCacheBytes), disk)
	}

	var reg registry.Registry
	if dir, ok := cfg.RegistryDir(); ok {
		logger.Debug("Using the local registry in {Directory}", dir)
		reg = registry.NewDirRegistry(dir)
	} else {
		authenticator, err := auth.New(cfg.Registry.Auth.Credentials())
		if err != nil {
			return nil, err
		}
		reg, err = registry.NewHTTPRegistry(registry.HTTPOptions{
			BaseURL: cfg.Registry.URL,
			Client:  client,
			Cache:   responses,
			Auth:    authenticator,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
	}

	env.source, err = hosted.NewSource(hosted.Options{
		URL:      cfg.Registry.URL,
		Registry: reg,
		Objects:  registry.NewObjectStore(cfg.ObjectsLocation(), client),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// systemCache opens the configured system cache with the hosted source registered.
func (e *environment) systemCache() (*core.SystemCache, error) {
	sc, err := core.NewSystemCache(e.cfg.CacheDir, core.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	sc.Register(e.source)
	return sc, nil
}

// rootManifest builds the root from a module list, or loads location/package.json.
func (e *environment) rootManifest(location, modules string) (*core.Manifest, error) {
	if modules != "" {
		parsed, err := install.ParseModulesParameter(modules)
		if err != nil {
			return nil, err
		}
		return install.CreateRootManifest(parsed, e.source)
	}
	pkg, err := core.LoadPackage(location, e.source, "")
	if err != nil {
		return nil, err
	}
	return pkg.Manifest, nil
}

// withPolicy attaches the response cache policy for one command run.
func (e *environment) withPolicy(ctx context.Context, refresh bool) context.Context {
	policy := cache.NewPolicy()
	policy.NoCache = refresh
	e.logger.Debug("Starting session {SessionID}", policy.SessionID)
	return cache.WithPolicy(ctx, policy)
}

func (e *environment) close(ctx context.Context) {
	if e.tracing == nil {
		return
	}
	if err := observability.ShutdownTracing(ctx, e.tracing); err != nil {
		e.logger.Warn("Flushing traces failed: {Error}", err)
	}
}

func locationArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
