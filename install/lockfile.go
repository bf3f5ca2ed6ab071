package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/adambraimbridge/origami-build-service-v3/core/solver"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

const (
	// LockFileName is written into the install location.
	LockFileName = "obs.lock"

	lockFileSchema = "1"
)

// LockFile records the versions an install selected.
type LockFile struct {
	SchemaVersion string          `toml:"schema_version"`
	Root          string          `toml:"root"`
	Packages      []LockedPackage `toml:"package"`
}

// LockedPackage is one selected package.
type LockedPackage struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Source  string `toml:"source"`
}

// NewLockFile builds the lock file for a solve result.
func NewLockFile(result *solver.SolveResult) *LockFile {
	lf := &LockFile{
		SchemaVersion: lockFileSchema,
		Root:          result.Root.Name,
		Packages:      make([]LockedPackage, 0, len(result.Packages)),
	}
	for _, id := range result.Packages {
		lf.Packages = append(lf.Packages, LockedPackage{
			Name:    id.Name,
			Version: id.Version.String(),
			Source:  id.SourceName(),
		})
	}
	return lf
}

// Versions returns the locked version of every package by name.
func (lf *LockFile) Versions() (map[string]*version.Version, error) {
	versions := make(map[string]*version.Version, len(lf.Packages))
	for _, p := range lf.Packages {
		v, err := version.Parse(p.Version)
		if err != nil {
			return nil, fmt.Errorf("lock file entry %s: %w", p.Name, err)
		}
		versions[p.Name] = v
	}
	return versions, nil
}

// WriteLockFile writes the lock file for result to path.
func WriteLockFile(path string, result *solver.SolveResult) error {
	data, err := toml.Marshal(NewLockFile(result))
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".obs-lock-*")
	if err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ReadLockFile reads a lock file written by WriteLockFile.
func ReadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse lock file %s: %w", path, err)
	}
	if lf.SchemaVersion != lockFileSchema {
		return nil, fmt.Errorf("lock file %s has unsupported schema version %q", path, lf.SchemaVersion)
	}
	return &lf, nil
}
