// Package cli assembles the obs root command.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/commands"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/version"
)

// Console is the global console for CLI commands
var Console = output.DefaultConsole()

// NewRootCommand creates the root command with every subcommand registered.
func NewRootCommand(console *output.Console) *cobra.Command {
	root := &cobra.Command{
		Use:   "obs",
		Short: "Origami package resolver and installer",
		Long: `obs resolves Origami component dependencies against a package registry
and installs the selected versions into node_modules.

Configuration is read from config.toml in the platform config directory
(see "obs config path"), OBS_* environment variables and the global flags.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	root.SetVersionTemplate(version.FullInfo() + "\n")
	root.SetOut(console.Out())
	root.SetErr(console.Err())

	commands.AddGlobalFlags(root.PersistentFlags())

	root.AddCommand(commands.NewResolveCommand(console))
	root.AddCommand(commands.NewInstallCommand(console))
	root.AddCommand(commands.NewCacheCommand(console))
	root.AddCommand(commands.NewRegistryCommand(console))
	root.AddCommand(commands.NewConfigCommand(console))
	root.AddCommand(commands.NewVersionCommand(console))

	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand(Console).ExecuteContext(ctx)
}
