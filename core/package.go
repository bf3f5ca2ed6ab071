package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Package is a package materialized on disk.
type Package struct {
	// Dir is the package's root directory
	Dir string

	// Manifest is the parsed package.json in Dir
	Manifest *Manifest
}

// LoadPackage reads the manifest of the package in dir. Dependencies are
// parsed through src. An empty expectedName skips the name check.
func LoadPackage(dir string, src Source, expectedName string) (*Package, error) {
	contents, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("read manifest in %s: %w", dir, err)
	}

	m, err := ParseManifest(contents, src, expectedName)
	if err != nil {
		return nil, err
	}
	return &Package{Dir: dir, Manifest: m}, nil
}

// Name returns the manifest name, or the directory name if the manifest has none.
func (p *Package) Name() string {
	if name, err := p.Manifest.Name(); err == nil {
		return name
	}
	return filepath.Base(p.Dir)
}
