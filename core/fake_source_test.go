package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// fakeSource is an in-memory source for exercising CachedSource.
type fakeSource struct {
	// manifests maps "name@version" to manifest JSON
	manifests map[string]string

	listCalls     atomic.Int32
	describeCalls atomic.Int32
	downloadCalls atomic.Int32

	// downloadDelay slows Download so concurrent callers overlap
	downloadDelay time.Duration

	// failDownload makes Download write a partial tree and then fail
	failDownload bool
}

func newFakeSource(manifests map[string]string) *fakeSource {
	return &fakeSource{manifests: manifests}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) ParseRef(name string, description any) (PackageRef, error) {
	return PackageRef{Name: name, Source: s, Description: name}, nil
}

func (s *fakeSource) ParseID(name string, v *version.Version, description any) (PackageID, error) {
	return PackageID{PackageRef: PackageRef{Name: name, Source: s, Description: name}, Version: v}, nil
}

func (s *fakeSource) DescriptionsEqual(a, b any) bool { return a == b }

func (s *fakeSource) HashDescription(d any) uint64 {
	text, _ := d.(string)
	return HashString(text)
}

func (s *fakeSource) Bind(cache *SystemCache) BoundSource {
	f := &fakeFetcher{source: s, cache: cache}
	f.CachedSource = NewCachedSource(f, cache)
	return f
}

type fakeFetcher struct {
	*CachedSource
	source *fakeSource
	cache  *SystemCache
}

func (f *fakeFetcher) Source() Source { return f.source }

func (f *fakeFetcher) DoGetVersions(ctx context.Context, ref PackageRef) ([]PackageID, error) {
	f.source.listCalls.Add(1)
	var ids []PackageID
	for key := range f.source.manifests {
		name, ver, _ := cutLast(key)
		if name == ref.Name {
			ids = append(ids, ref.WithVersion(version.MustParse(ver)))
		}
	}
	if len(ids) == 0 {
		return nil, NewPackageNotFoundError(ref.Name, "", nil)
	}
	return ids, nil
}

func (f *fakeFetcher) DescribeUncached(ctx context.Context, id PackageID) (*Manifest, error) {
	f.source.describeCalls.Add(1)
	text, ok := f.source.manifests[id.Name+"@"+id.Version.String()]
	if !ok {
		return nil, NewPackageNotFoundError(id.Name, id.Version.String(), nil)
	}
	return ParseManifest([]byte(text), f.source, id.Name)
}

func (f *fakeFetcher) Download(ctx context.Context, id PackageID, dir string) error {
	f.source.downloadCalls.Add(1)
	time.Sleep(f.source.downloadDelay)

	text, ok := f.source.manifests[id.Name+"@"+id.Version.String()]
	if !ok {
		return NewPackageNotFoundError(id.Name, id.Version.String(), nil)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("module.exports = 1;\n"), 0644); err != nil {
		return err
	}
	if f.source.failDownload {
		return NewApplicationError("object store rejected the request", nil)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(text), 0644)
}

func (f *fakeFetcher) GetDirectory(id PackageID) string {
	return filepath.Join(f.CacheDirectory(), id.Name+"-"+id.Version.String())
}

func (f *fakeFetcher) CacheDirectory() string {
	return filepath.Join(f.cache.RootDir(), "fake")
}

func cutLast(key string) (string, string, bool) {
	for i := len(key) - 1; i > 0; i-- {
		if key[i] == '@' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

func manifestJSON(name, ver string, deps map[string]string) string {
	fields := map[string]any{"name": name, "version": ver}
	if deps != nil {
		fields["dependencies"] = deps
	}
	data, _ := json.Marshal(fields)
	return string(data)
}
