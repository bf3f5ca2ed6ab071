package solver

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// registry maps package name to version to dependency constraints.
type registry map[string]map[string]map[string]string

// memorySource serves packages from a registry map. Listing a package
// memoizes every version's manifest, as a registry listing would.
type memorySource struct {
	packages  registry
	listCalls atomic.Int32
}

func (s *memorySource) Name() string { return "memory" }

func (s *memorySource) ParseRef(name string, description any) (core.PackageRef, error) {
	if url, ok := description.(string); ok && strings.Contains(url, "://") {
		return core.NewUnknownSource("git").ParseRef(name, url)
	}
	return core.PackageRef{Name: name, Source: s, Description: name}, nil
}

func (s *memorySource) ParseID(name string, v *version.Version, description any) (core.PackageID, error) {
	ref, err := s.ParseRef(name, description)
	return ref.WithVersion(v), err
}

func (s *memorySource) DescriptionsEqual(a, b any) bool { return a == b }

func (s *memorySource) HashDescription(d any) uint64 {
	text, _ := d.(string)
	return core.HashString(text)
}

func (s *memorySource) Bind(cache *core.SystemCache) core.BoundSource {
	b := &boundMemorySource{source: s, cache: cache}
	b.CachedSource = core.NewCachedSource(b, cache)
	return b
}

type boundMemorySource struct {
	*core.CachedSource
	source *memorySource
	cache  *core.SystemCache
}

func (b *boundMemorySource) Source() core.Source { return b.source }

func (b *boundMemorySource) DoGetVersions(ctx context.Context, ref core.PackageRef) ([]core.PackageID, error) {
	b.source.listCalls.Add(1)
	versions, ok := b.source.packages[ref.Name]
	if !ok {
		return nil, core.NewPackageNotFoundError(ref.Name, "", nil)
	}

	var ids []core.PackageID
	for text := range versions {
		id := ref.WithVersion(version.MustParse(text))
		b.MemoizeManifest(id, b.manifest(ref.Name, text))
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *boundMemorySource) DescribeUncached(ctx context.Context, id core.PackageID) (*core.Manifest, error) {
	if _, ok := b.source.packages[id.Name][id.Version.String()]; !ok {
		return nil, core.NewPackageNotFoundError(id.Name, id.Version.String(), nil)
	}
	return b.manifest(id.Name, id.Version.String()), nil
}

func (b *boundMemorySource) manifest(name, ver string) *core.Manifest {
	deps := map[string]any{}
	for dep, constraint := range b.source.packages[name][ver] {
		deps[dep] = constraint
	}
	return core.NewManifest(map[string]any{
		"name":         name,
		"version":      ver,
		"dependencies": deps,
	}, b.source)
}

func (b *boundMemorySource) Download(ctx context.Context, id core.PackageID, dir string) error {
	return nil
}

func (b *boundMemorySource) GetDirectory(id core.PackageID) string {
	return b.CacheDirectory() + "/" + id.Name + "-" + id.Version.String()
}

func (b *boundMemorySource) CacheDirectory() string {
	return b.cache.RootDir() + "/memory"
}

func newTestSolver(t *testing.T, packages registry, rootDeps map[string]string) (*VersionSolver, *memorySource) {
	t.Helper()
	cache, err := core.NewSystemCache(t.TempDir())
	require.NoError(t, err)

	src := &memorySource{packages: packages}
	cache.Register(src)

	root := core.NewRootManifest("your bundle", "1.0.0", rootDeps, src)
	return NewVersionSolver(cache, root), src
}

func solve(t *testing.T, packages registry, rootDeps map[string]string) (*SolveResult, error) {
	t.Helper()
	s, _ := newTestSolver(t, packages, rootDeps)
	return s.Solve(context.Background())
}

func versionsOf(result *SolveResult) map[string]string {
	out := map[string]string{}
	for name, v := range result.Versions() {
		out[name] = v.String()
	}
	return out
}
