package commands

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/adambraimbridge/origami-build-service-v3/cmd/obs/output"
	"github.com/adambraimbridge/origami-build-service-v3/core/solver"
	"github.com/adambraimbridge/origami-build-service-v3/install"
)

type resolveOptions struct {
	modules string
	refresh bool
	json    bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(console *output.Console) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve [<LOCATION>]",
		Short: "Select a version of every dependency",
		Long: `Runs version solving for the package.json in LOCATION (the current
directory by default) or for the packages named by --modules, and prints the
selected versions without downloading anything.

Examples:
  obs resolve
  obs resolve ./my-component
  obs resolve --modules "o-grid@^5.0.0,o-buttons@^6.0.0"
  obs resolve --modules o-grid@^5.0.0 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, opts, console)
		},
	}

	cmd.Flags().StringVar(&opts.modules, "modules", "", "Comma separated name@range list to resolve instead of package.json")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Ignore cached registry responses")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string, opts *resolveOptions, console *output.Console) error {
	env, err := newEnvironment(cmd, console)
	if err != nil {
		return err
	}
	defer env.close(cmd.Context())

	root, err := env.rootManifest(locationArg(args), opts.modules)
	if err != nil {
		return err
	}
	sc, err := env.systemCache()
	if err != nil {
		return err
	}

	ctx := env.withPolicy(cmd.Context(), opts.refresh)
	result, err := install.ResolveVersions(ctx, sc, root, solver.WithLogger(env.logger))
	if err != nil {
		return err
	}

	if opts.json {
		return writeResolveJSON(console, result)
	}
	for _, id := range result.Packages {
		console.Printf("%s %s\n", id.Name, id.Version)
	}
	console.Success("Resolved %d packages in %s (%d attempted solutions)",
		len(result.Packages), result.Duration.Round(time.Millisecond), result.AttemptedSolutions)
	return nil
}

type resolvedPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Source  string `json:"source"`
}

type resolveReport struct {
	Root               resolvedPackage   `json:"root"`
	Packages           []resolvedPackage `json:"packages"`
	AttemptedSolutions int               `json:"attemptedSolutions"`
	DurationMillis     int64             `json:"durationMs"`
}

func writeResolveJSON(console *output.Console, result *solver.SolveResult) error {
	report := resolveReport{
		Root:               resolvedPackage{Name: result.Root.Name, Version: result.Root.Version.String()},
		Packages:           make([]resolvedPackage, 0, len(result.Packages)),
		AttemptedSolutions: result.AttemptedSolutions,
		DurationMillis:     result.Duration.Milliseconds(),
	}
	for _, id := range result.Packages {
		report.Packages = append(report.Packages, resolvedPackage{
			Name:    id.Name,
			Version: id.Version.String(),
			Source:  id.SourceName(),
		})
	}

	enc := json.NewEncoder(console.Out())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
