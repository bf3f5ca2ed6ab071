package commands

import (
	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/install"
)

type installOptions struct {
	modules     string
	refresh     bool
	lockFile    bool
	concurrency int
}

// NewInstallCommand creates the install command.
func NewInstallCommand(console *output.Console) *cobra.Command {
	opts := &installOptions{}

	cmd := &cobra.Command{
		Use:   "install [<LOCATION>]",
		Short: "Resolve and install dependencies into node_modules",
		Long: `Resolves the dependencies of the package.json in LOCATION (the current
directory by default), downloads every selected package into the system cache
and copies it into LOCATION/node_modules.

With --modules the root package is built from the module list instead of
package.json, and LOCATION only receives node_modules.

Examples:
  obs install
  obs install ./my-component --lock
  obs install /tmp/bundle --modules "o-grid@^5.0.0,o-buttons@^6.0.0"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args, opts, console)
		},
	}

	cmd.Flags().StringVar(&opts.modules, "modules", "", "Comma separated name@range list to install instead of package.json")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Ignore cached registry responses")
	cmd.Flags().BoolVar(&opts.lockFile, "lock", false, "Write "+install.LockFileName+" next to node_modules")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Parallel downloads (configuration default if zero)")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string, opts *installOptions, console *output.Console) error {
	env, err := newEnvironment(cmd, console)
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	location := locationArg(args)
	installOpts := install.Options{
		Location:    location,
		CacheDir:    env.cfg.CacheDir,
		Sources:     []core.Source{env.source},
		Concurrency: env.cfg.Install.Concurrency,
		LockFile:    opts.lockFile,
		Logger:      env.logger,
	}
	if opts.concurrency > 0 {
		installOpts.Concurrency = opts.concurrency
	}
	if opts.modules != "" {
		if installOpts.Root, err = env.rootManifest(location, opts.modules); err != nil {
			return err
		}
	}

	ctx := env.withPolicy(cmd.Context(), opts.refresh)
	result, err := install.InstallDependencies(ctx, installOpts)
	if err != nil {
		return err
	}

	for _, p := range result.Packages {
		console.Detail("%s %s -> %s", p.ID.Name, p.ID.Version, p.Dir)
	}
	console.Success("Installed %d packages", len(result.Packages))
	if result.LockFile != "" {
		console.Info("Wrote %s", result.LockFile)
	}
	return nil
}
