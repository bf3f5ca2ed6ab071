package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/core/solver"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

func TestLockFile_WriteAndRead(t *testing.T) {
	src := core.NewUnknownSource("hosted")
	grid, err := src.ParseID("o-grid", version.MustParse("5.1.0"), nil)
	require.NoError(t, err)
	result := &solver.SolveResult{
		Root:     core.NewRootRef(RootName).WithVersion(version.MustParse(RootVersion)),
		Packages: []core.PackageID{grid},
	}

	path := filepath.Join(t.TempDir(), LockFileName)
	require.NoError(t, WriteLockFile(path, result))

	lf, err := ReadLockFile(path)
	require.NoError(t, err)
	assert.Equal(t, &LockFile{
		SchemaVersion: "1",
		Root:          RootName,
		Packages:      []LockedPackage{{Name: "o-grid", Version: "5.1.0", Source: "hosted"}},
	}, lf)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestReadLockFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadLockFile(filepath.Join(dir, "missing.lock"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.lock")
	require.NoError(t, os.WriteFile(bad, []byte("schema_version = "), 0o644))
	_, err = ReadLockFile(bad)
	assert.Error(t, err)

	future := filepath.Join(dir, "future.lock")
	require.NoError(t, os.WriteFile(future, []byte("schema_version = \"2\"\nroot = \"your bundle\"\n"), 0o644))
	_, err = ReadLockFile(future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestLockFile_VersionsRejectsBadEntry(t *testing.T) {
	lf := &LockFile{Packages: []LockedPackage{{Name: "o-grid", Version: "five"}}}
	_, err := lf.Versions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "o-grid")
}
