package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

const (
	// RootName is the name of the root package built from a module list.
	RootName = "your bundle"
	// RootVersion is the version of that root package.
	RootVersion = "1.0.0"

	maxNameLength = 214
)

// packageNamePattern accepts names that may be published today: lower
// case, URL safe, optionally scoped, not starting with '.' or '_'.
var packageNamePattern = regexp.MustCompile(`^(?:@[a-z0-9-][a-z0-9-._]*/)?[a-z0-9-][a-z0-9-._]*$`)

// Module is one requested component and its version constraint.
type Module struct {
	Name       string
	Constraint string
}

func (m Module) String() string {
	return m.Name + "@" + m.Constraint
}

// ParseModulesParameter parses a comma separated module list such as
// "o-grid@^5.0.0,@financial-times/o-utils@^1". Every entry needs a name
// and a constraint, names must be valid and unique, and constraints must
// parse. All failures are *UserError.
func ParseModulesParameter(modules string) ([]Module, error) {
	if modules == "" {
		return nil, NewUserError("The modules query parameter can not be empty.")
	}

	entries := strings.Split(modules, ",")
	for _, entry := range entries {
		if entry == "" {
			return nil, NewUserError("The modules query parameter can not contain empty module names.")
		}
	}

	names := make([]string, len(entries))
	var invalid []string
	for i, entry := range entries {
		names[i] = moduleName(entry)
		if !IsValidPackageName(names[i]) {
			invalid = append(invalid, names[i])
		}
	}
	if len(invalid) > 0 {
		return nil, NewUserError(fmt.Sprintf(
			"The modules query parameter contains module names which are not valid: %s.",
			strings.Join(invalid, ", ")))
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, NewUserError("The modules query parameter contains duplicate module names.")
		}
		seen[name] = true
	}

	parsed := make([]Module, len(entries))
	for i, entry := range entries {
		at := strings.LastIndexByte(entry, '@')
		if at <= 0 {
			return nil, NewUserError(fmt.Sprintf(
				"The bundle request contains %s with no version range, a version range is required.", entry))
		}
		parsed[i] = Module{Name: entry[:at], Constraint: entry[at+1:]}
	}

	if err := validateConstraints(parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// moduleName returns the name part of "name@range" or "@scope/name@range".
func moduleName(entry string) string {
	if strings.HasPrefix(entry, "@") {
		name, _, _ := strings.Cut(entry[1:], "@")
		return "@" + name
	}
	name, _, _ := strings.Cut(entry, "@")
	return name
}

// IsValidPackageName reports whether name may be used for a new package.
func IsValidPackageName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	switch name {
	case "node_modules", "favicon.ico":
		return false
	}
	return packageNamePattern.MatchString(name)
}

// validateConstraints reports every module whose constraint does not parse.
func validateConstraints(modules []Module) error {
	var problems []string
	var cause error
	for _, m := range modules {
		if _, err := version.ParseConstraint(m.Constraint); err != nil {
			problems = append(problems, fmt.Sprintf("The version %s in %s is not a valid version.", m.Constraint, m))
			if cause == nil {
				cause = err
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &UserError{Message: strings.Join(problems, "\n"), Err: cause}
}

// CreateRootManifest builds the root manifest for a module list. src
// parses the dependencies, normally the system cache's default source.
func CreateRootManifest(modules []Module, src core.Source) (*core.Manifest, error) {
	if err := validateConstraints(modules); err != nil {
		return nil, err
	}
	deps := make(map[string]string, len(modules))
	for _, m := range modules {
		deps[m.Name] = m.Constraint
	}
	return core.NewRootManifest(RootName, RootVersion, deps, src), nil
}

// WriteRootManifest writes the root package.json for modules into dir, so
// that InstallDependencies can later install from dir.
func WriteRootManifest(dir string, modules []Module) error {
	if err := validateConstraints(modules); err != nil {
		return err
	}
	deps := make(map[string]string, len(modules))
	for _, m := range modules {
		deps[m.Name] = m.Constraint
	}
	doc := struct {
		Dependencies map[string]string `json:"dependencies"`
		Name         string            `json:"name"`
		Version      string            `json:"version"`
	}{deps, RootName, RootVersion}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode root manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, core.ManifestFileName), data, 0o644)
}
