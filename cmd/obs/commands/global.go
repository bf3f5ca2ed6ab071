// Package commands implements the obs subcommands.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/adambraimbridge/origami-build-service-v3/config"
)

const (
	flagConfig      = "config"
	flagCacheDir    = "cache-dir"
	flagRegistry    = "registry"
	flagObjects     = "objects"
	flagLogLevel    = "log-level"
	flagTrace       = "trace"
	flagMetricsAddr = "metrics-addr"
	flagHTTP3       = "http3"
	flagVerbosity   = "verbosity"

	flagCatalogURL = "catalog-url"
	flagCodeURL    = "code-url"
)

// overrideKeys maps flags onto configuration keys. The sync flags are only
// defined on registry sync.
var overrideKeys = map[string]string{
	flagCacheDir:    "cache_dir",
	flagRegistry:    "registry.url",
	flagObjects:     "registry.objects_url",
	flagLogLevel:    "log.level",
	flagTrace:       "tracing.exporter",
	flagMetricsAddr: "metrics.address",
	flagHTTP3:       "http.enable_http3",
	flagCatalogURL:  "sync.catalog_url",
	flagCodeURL:     "sync.code_url",
}

// AddGlobalFlags registers the flags every command understands.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "Configuration file to use instead of the platform default")
	fs.String(flagCacheDir, "", "System cache directory")
	fs.String(flagRegistry, "", "Package registry URL")
	fs.String(flagObjects, "", "Code archive location: an http(s) URL, a file:// URL or a directory")
	fs.String(flagLogLevel, "", "Log level (debug, info, warn, error)")
	fs.String(flagTrace, "", "Trace exporter (none, stdout, otlp)")
	fs.String(flagMetricsAddr, "", "Serve Prometheus metrics on this address")
	fs.Bool(flagHTTP3, false, "Use HTTP/3 for registry requests")
	fs.StringP(flagVerbosity, "v", "normal", "Display verbosity: q[uiet], n[ormal] or d[etailed]")
}

// loadConfig reads the configuration, letting explicitly set global flags
// override the file and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flags := cmd.Flags()
	opts := config.LoadOptions{Overrides: map[string]any{}}

	if f := flags.Lookup(flagConfig); f != nil {
		opts.ConfigFilePath = f.Value.String()
	}
	for name, key := range overrideKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if f.Value.Type() == "bool" {
			opts.Overrides[key] = f.Value.String() == "true"
			continue
		}
		opts.Overrides[key] = f.Value.String()
	}

	return config.Load(cmd.Context(), opts)
}
