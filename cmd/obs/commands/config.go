package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(console *output.Console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newConfigShowCommand(console))
	cmd.AddCommand(newConfigPathCommand(console))
	return cmd
}

func newConfigShowCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long: `Prints the configuration after applying defaults, the config file,
OBS_* environment variables and flags. The output is a valid config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.TOML()
			if err != nil {
				return err
			}
			if path != "" {
				console.Printf("# loaded from %s\n", path)
			}
			console.Printf("%s", data)
			return nil
		},
	}
}

func newConfigPathCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the default config file is looked up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			console.Println(filepath.Join(dir, config.ConfigFileName))
			return nil
		},
	}
}
