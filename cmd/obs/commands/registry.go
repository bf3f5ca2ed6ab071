package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/auth"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/install"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
)

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage a local package registry",
	}
	cmd.AddCommand(newRegistrySyncCommand(console))
	return cmd
}

type syncOptions struct {
	force       bool
	concurrency int
}

func newRegistrySyncCommand(console *output.Console) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [<DIR>]",
		Short: "Copy every published component version into a local registry",
		Long: `Lists every component version from the repo-data API, fetches each
version's code from npm and publishes both into the registry directory DIR
(sync.target by default). Versions already in DIR are skipped unless --force
is given. Versions without published code are left out.

The catalog usually needs an API key and secret:
  OBS_SYNC_AUTH_TYPE=apikey OBS_SYNC_AUTH_KEY=... OBS_SYNC_AUTH_SECRET=...

Resolve against the result with --registry file://DIR.

Examples:
  obs registry sync /srv/origami-registry
  obs registry sync --force --concurrency 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistrySync(cmd, args, opts, console)
		},
	}

	cmd.Flags().String(flagCatalogURL, "", "Repo-data API listing component versions")
	cmd.Flags().String(flagCodeURL, "", "npm registry to fetch component archives from")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Republish versions the registry already holds")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Parallel transfers (configuration default if zero)")

	return cmd
}

func runRegistrySync(cmd *cobra.Command, args []string, opts *syncOptions, console *output.Console) error {
	env, err := newEnvironment(cmd, console)
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	target := env.cfg.Sync.Target
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" {
		return install.NewUserError("No registry directory given: pass DIR or set sync.target.")
	}
	if target, err = filepath.Abs(target); err != nil {
		return err
	}

	authenticator, err := auth.New(env.cfg.Sync.Auth.Credentials())
	if err != nil {
		return err
	}
	catalog, err := registry.NewRepoDataCatalog(registry.RepoDataOptions{
		BaseURL: env.cfg.Sync.CatalogURL,
		Client:  env.client,
		Auth:    authenticator,
		Logger:  env.logger,
	})
	if err != nil {
		return err
	}

	syncOpts := registry.SyncOptions{
		Catalog:     catalog,
		Code:        registry.NewNPMCodeFetcher(env.cfg.Sync.CodeURL, env.client),
		Target:      registry.NewDirRegistry(target),
		Force:       opts.force,
		Concurrency: env.cfg.Sync.Concurrency,
		Logger:      env.logger,
	}
	if opts.concurrency > 0 {
		syncOpts.Concurrency = opts.concurrency
	}

	report, err := registry.Sync(cmd.Context(), syncOpts)
	if err != nil {
		return err
	}

	console.Success("Synced %s: %d added, %d already present", target, report.Added, report.Existing)
	if report.Missing > 0 {
		console.Warning("%d versions have no published code and were skipped", report.Missing)
	}
	if report.Duplicates > 0 {
		console.Detail("%d duplicate catalog entries ignored", report.Duplicates)
	}
	console.Info("Resolve against it with --registry file://%s", filepath.ToSlash(target))
	return nil
}
