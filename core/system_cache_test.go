package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

func TestSystemCache_CreateTempDir(t *testing.T) {
	cache, err := NewSystemCache(filepath.Join(t.TempDir(), "nested", "cache"))
	require.NoError(t, err)

	seen := map[string]bool{}
	for range 20 {
		dir, err := cache.CreateTempDir()
		require.NoError(t, err)
		assert.False(t, seen[dir], "temp dir reused: %s", dir)
		seen[dir] = true
		assert.Equal(t, filepath.Join(cache.RootDir(), tempDirName), filepath.Dir(dir))
	}

	require.NoError(t, cache.SweepTemp())
	_, err = os.Stat(filepath.Join(cache.RootDir(), tempDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestSystemCache_Register(t *testing.T) {
	cache, err := NewSystemCache(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cache.Default())

	src := newFakeSource(nil)
	bound := cache.Register(src)
	assert.Same(t, bound, cache.Register(src))
	assert.Same(t, bound, cache.Default())
	assert.Same(t, bound, cache.Named("fake"))
	assert.Equal(t, []string{"fake"}, cache.Sources())

	assert.Error(t, cache.SetDefault("git"))
	require.NoError(t, cache.SetDefault("fake"))
}

func TestSystemCache_UnknownSource(t *testing.T) {
	cache, err := NewSystemCache(t.TempDir())
	require.NoError(t, err)

	bound := cache.Named("git")
	assert.Equal(t, "git", bound.Source().Name())

	ref, err := bound.Source().ParseRef("o-grid", "https://github.com/Financial-Times/o-grid")
	require.NoError(t, err)

	_, err = bound.GetVersions(context.Background(), ref)
	assert.True(t, IsPackageNotFound(err))
	assert.Contains(t, err.Error(), `unknown source "git"`)

	id := ref.WithVersion(version.MustParse("1.0.0"))
	_, err = bound.Describe(context.Background(), id)
	assert.True(t, IsPackageNotFound(err))
	_, err = bound.DownloadToSystemCache(context.Background(), id)
	assert.True(t, IsPackageNotFound(err))
	assert.False(t, bound.IsInSystemCache(id))

	assert.Same(t, cache.Bound(ref.Source).Source(), ref.Source)
}
