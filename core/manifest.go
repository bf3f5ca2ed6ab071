package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// ManifestFileName is the manifest file inside every package directory.
const ManifestFileName = "package.json"

// Manifest is a lazily validated view over a package's declared name,
// version and dependencies. Each accessor validates its field on first use
// and memoizes the result once it succeeds, so a manifest with an invalid
// field can still serve the fields that are valid.
type Manifest struct {
	fields map[string]any
	source Source

	mu           sync.Mutex
	name         string
	nameOK       bool
	version      *version.Version
	dependencies map[string]PackageRange
}

// ParseManifest parses a JSON manifest. Dependencies are parsed through src.
// If expectedName is not empty the manifest's name must match it.
func ParseManifest(contents []byte, src Source, expectedName string) (*Manifest, error) {
	var fields map[string]any
	if err := json.Unmarshal(contents, &fields); err != nil || fields == nil {
		msg := "manifest must be a JSON object"
		if err != nil {
			msg = fmt.Sprintf("manifest must be a JSON object: %v", err)
		}
		return nil, &ManifestError{Package: expectedName, Message: msg}
	}

	m := NewManifest(fields, src)
	if expectedName != "" {
		name, err := m.Name()
		if err != nil {
			return nil, err
		}
		if name != expectedName {
			return nil, &ManifestError{
				Package: name,
				Field:   "name",
				Message: fmt.Sprintf("\"name\" field doesn't match expected name %q", expectedName),
			}
		}
	}
	return m, nil
}

// NewManifest wraps already-decoded fields. The map must not be modified afterwards.
func NewManifest(fields map[string]any, src Source) *Manifest {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Manifest{fields: fields, source: src}
}

// NewRootManifest builds the manifest of a root package from dependency
// constraint texts.
func NewRootManifest(name, ver string, dependencies map[string]string, src Source) *Manifest {
	deps := make(map[string]any, len(dependencies))
	for dep, constraint := range dependencies {
		deps[dep] = constraint
	}
	fields := map[string]any{
		"name":         name,
		"dependencies": deps,
	}
	if ver != "" {
		fields["version"] = ver
	}
	return NewManifest(fields, src)
}

// Source returns the source dependency refs are parsed through.
func (m *Manifest) Source() Source {
	return m.source
}

// Name returns the required "name" field.
func (m *Manifest) Name() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameLocked()
}

func (m *Manifest) nameLocked() (string, error) {
	if m.nameOK {
		return m.name, nil
	}

	raw, ok := m.fields["name"]
	if !ok || raw == nil {
		return "", &ManifestError{Field: "name", Message: "missing the required \"name\" field"}
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return "", &ManifestError{Field: "name", Message: fmt.Sprintf("\"name\" field must be a non-empty string, got %v", raw)}
	}

	m.name, m.nameOK = name, true
	return name, nil
}

// Version returns the "version" field, or version.None when it is absent.
func (m *Manifest) Version() (*version.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versionLocked()
}

func (m *Manifest) versionLocked() (*version.Version, error) {
	if m.version != nil {
		return m.version, nil
	}

	raw, ok := m.fields["version"]
	if !ok || raw == nil {
		m.version = version.None
		return m.version, nil
	}

	text, ok := raw.(string)
	if !ok {
		msg := fmt.Sprintf("\"version\" field must be a string, got %v", raw)
		if n, isNum := raw.(float64); isNum {
			msg = fmt.Sprintf("%s. Use \"version\": \"%v\" instead of \"version\": %v", msg, n, n)
		}
		return nil, m.errorLocked("version", msg)
	}

	v, err := version.Parse(text)
	if err != nil {
		return nil, m.errorLocked("version", fmt.Sprintf("invalid \"version\" field %q: %v", text, err))
	}

	m.version = v
	return v, nil
}

// Dependencies returns the declared dependencies keyed by package name.
// The returned map must not be modified.
func (m *Manifest) Dependencies() (map[string]PackageRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dependencies != nil {
		return m.dependencies, nil
	}

	deps := map[string]PackageRange{}
	raw, ok := m.fields["dependencies"]
	if !ok || raw == nil {
		m.dependencies = deps
		return deps, nil
	}

	declared, ok := raw.(map[string]any)
	if !ok {
		return nil, m.errorLocked("dependencies", fmt.Sprintf("\"dependencies\" field must be an object, got %v", raw))
	}

	name, err := m.nameLocked()
	if err != nil {
		return nil, err
	}

	for _, dep := range slices.Sorted(maps.Keys(declared)) {
		spec := declared[dep]
		if dep == name {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("package may not list itself as a dependency (%q: %v)", dep, spec))
		}

		text, ok := spec.(string)
		if !ok {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("invalid version constraint for dependency %q: expected a string, got %v", dep, spec))
		}
		if text == "" {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("dependency %q has an empty version constraint", dep))
		}

		// "https://github.com/Financial-Times/o-colors.git#^4.0.0" names the
		// registry package o-colors ^4.0.0. A URL with no fragment pins no
		// version and stays a repository reference.
		var description any = dep
		constraintText := version.StripVCSPrefix(text)
		if constraintText == text && version.IsVCSURL(text) {
			description = text
			constraintText = "any"
		}

		constraint, err := version.ParseConstraint(constraintText)
		if err != nil {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("invalid version constraint %q for dependency %q: %v", text, dep, err))
		}

		if m.source == nil {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("no source to resolve dependency %q", dep))
		}
		ref, err := m.source.ParseRef(dep, description)
		if err != nil {
			return nil, m.errorLocked("dependencies", fmt.Sprintf("invalid dependency %q: %v", dep, err))
		}

		deps[dep] = ref.WithConstraint(constraint)
	}

	m.dependencies = deps
	return deps, nil
}

// DependencyList returns the dependencies sorted by name.
func (m *Manifest) DependencyList() ([]PackageRange, error) {
	deps, err := m.Dependencies()
	if err != nil {
		return nil, err
	}
	list := make([]PackageRange, 0, len(deps))
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		list = append(list, deps[name])
	}
	return list, nil
}

// Validate forces every field and returns the first failure.
func (m *Manifest) Validate() error {
	if _, err := m.Name(); err != nil {
		return err
	}
	if _, err := m.Version(); err != nil {
		return err
	}
	_, err := m.Dependencies()
	return err
}

// MarshalJSON renders the manifest's raw fields.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.fields)
}

// errorLocked builds a ManifestError attributed to this manifest's name and
// version, as far as they are readable.
func (m *Manifest) errorLocked(field, message string) *ManifestError {
	e := &ManifestError{Field: field, Message: message}
	if name, ok := m.fields["name"].(string); ok {
		e.Package = name
	}
	if m.version != nil && m.version != version.None {
		e.Version = m.version.String()
	} else if v, ok := m.fields["version"].(string); ok {
		e.Version = v
	}
	return e
}
