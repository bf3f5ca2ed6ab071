package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/core"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the system cache",
	}
	cmd.AddCommand(newCacheDirCommand(console))
	cmd.AddCommand(newCacheCleanCommand(console))
	return cmd
}

func newCacheDirCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Print the system cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			console.Println(cfg.CacheDir)
			return nil
		},
	}
}

func newCacheCleanCommand(console *output.Console) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove staging directories left by interrupted downloads",
		Long: `Removes staging directories left behind by interrupted downloads.
With --all the whole system cache is deleted, including downloaded packages
and cached registry responses.

Do not run while an install is in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if all {
				if err := os.RemoveAll(cfg.CacheDir); err != nil {
					return err
				}
				console.Success("Removed %s", cfg.CacheDir)
				return nil
			}

			sc, err := core.NewSystemCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			if err := sc.SweepTemp(); err != nil {
				return err
			}
			console.Success("Removed staging directories from %s", cfg.CacheDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Delete the entire system cache")
	return cmd
}
