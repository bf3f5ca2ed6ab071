package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// CachedSource turns a Fetcher into a BoundSource. It memoizes manifests by
// package id, serves manifests and packages from the system cache directory
// when they are already materialized, and makes downloads idempotent.
//
// Concrete bound sources embed a *CachedSource built over themselves.
type CachedSource struct {
	fetcher Fetcher
	cache   *SystemCache
	logger  observability.Logger

	manifests *Memo[IDKey, *Manifest]

	downloads  singleflight.Group
	mu         sync.Mutex
	downloaded map[IDKey]*Package
}

// NewCachedSource wraps fetcher, which stores its packages in cache.
func NewCachedSource(fetcher Fetcher, cache *SystemCache) *CachedSource {
	return &CachedSource{
		fetcher:    fetcher,
		cache:      cache,
		logger:     cache.Logger(),
		manifests:  NewMemo[IDKey, *Manifest](),
		downloaded: make(map[IDKey]*Package),
	}
}

// Source implements BoundSource.
func (c *CachedSource) Source() Source {
	return c.fetcher.Source()
}

// SystemCache returns the cache this source is bound to.
func (c *CachedSource) SystemCache() *SystemCache {
	return c.cache
}

// GetVersions implements BoundSource. Memoization is the fetcher's.
func (c *CachedSource) GetVersions(ctx context.Context, ref PackageRef) ([]PackageID, error) {
	return c.fetcher.DoGetVersions(ctx, ref)
}

// GetDirectory implements BoundSource.
func (c *CachedSource) GetDirectory(id PackageID) string {
	return c.fetcher.GetDirectory(id)
}

// Describe implements BoundSource. The first call for an id loads the
// manifest from the package directory if the package is in the system
// cache, and asks the fetcher otherwise; the result, including a failure,
// is shared by every later call.
func (c *CachedSource) Describe(ctx context.Context, id PackageID) (*Manifest, error) {
	return c.manifests.Do(ctx, id.Key(), func(ctx context.Context) (*Manifest, error) {
		if dir := c.fetcher.GetDirectory(id); isDir(dir) {
			pkg, err := LoadPackage(dir, c.Source(), id.Name)
			if err == nil {
				observability.CacheHitsTotal.WithLabelValues("package").Inc()
				return pkg.Manifest, nil
			}
			c.logger.DebugContext(ctx, "Ignoring unreadable manifest of cached {Package}: {Error}", id.String(), err)
		}
		observability.CacheMissesTotal.WithLabelValues("manifest").Inc()

		ctx, span := observability.StartDescribeSpan(ctx, id.Name, id.Version.String(), c.Source().Name())
		observability.SourceRequestsTotal.WithLabelValues(c.Source().Name(), "describe").Inc()
		c.logger.DebugContext(ctx, "Describing {Package} {Version}", id.Name, id.Version.String())

		m, err := c.fetcher.DescribeUncached(ctx, id)
		observability.EndSpanWithError(span, err)
		return m, err
	})
}

// MemoizeManifest seeds the describe memo, typically from a listing response
// that already carried every version's manifest. It returns false if id was
// already described.
func (c *CachedSource) MemoizeManifest(id PackageID, m *Manifest) bool {
	return c.manifests.Store(id.Key(), m)
}

// HasDescribed reports whether Describe(id) would be answered from memory.
func (c *CachedSource) HasDescribed(id PackageID) bool {
	_, ok := c.manifests.Peek(id.Key())
	return ok
}

// IsInSystemCache implements BoundSource.
func (c *CachedSource) IsInSystemCache(id PackageID) bool {
	return isDir(c.fetcher.GetDirectory(id))
}

// DownloadToSystemCache implements BoundSource.
//
// A package already in the system cache is returned as is. Otherwise the
// fetcher downloads into a fresh staging directory, which is renamed into
// place only after the download succeeded. Concurrent calls for one id
// share a single download; a rename that loses a race to another process
// leaves the winner's copy in place and counts as success.
func (c *CachedSource) DownloadToSystemCache(ctx context.Context, id PackageID) (*Package, error) {
	key := id.Key()

	c.mu.Lock()
	pkg, ok := c.downloaded[key]
	c.mu.Unlock()
	if ok {
		observability.PackageDownloadsTotal.WithLabelValues("cached").Inc()
		return pkg, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.downloads.DoChan(key.String(), func() (any, error) {
		return c.download(detached, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Package), nil
	}
}

func (c *CachedSource) download(ctx context.Context, id PackageID) (*Package, error) {
	key := id.Key()
	dir := c.fetcher.GetDirectory(id)

	if isDir(dir) {
		observability.PackageDownloadsTotal.WithLabelValues("cached").Inc()
		c.logger.DebugContext(ctx, "{Package} {Version} is already in the system cache", id.Name, id.Version.String())
	} else if err := c.stage(ctx, id, dir); err != nil {
		observability.PackageDownloadsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	m, err := c.Describe(ctx, id)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Dir: dir, Manifest: m}
	c.mu.Lock()
	c.downloaded[key] = pkg
	c.mu.Unlock()
	return pkg, nil
}

// stage downloads id into a staging directory and moves it to dir.
func (c *CachedSource) stage(ctx context.Context, id PackageID, dir string) (err error) {
	ctx, span := observability.StartPackageDownloadSpan(ctx, id.Name, id.Version.String(), c.Source().Name())
	defer func() { observability.EndSpanWithError(span, err) }()

	staging, err := c.cache.CreateTempDir()
	if err != nil {
		return err
	}
	// After a successful rename the staging path no longer exists.
	defer os.RemoveAll(staging)

	start := time.Now()
	observability.SourceRequestsTotal.WithLabelValues(c.Source().Name(), "download").Inc()
	c.logger.InfoContext(ctx, "Downloading {Package} {Version}", id.Name, id.Version.String())

	if err := c.fetcher.Download(ctx, id, staging); err != nil {
		c.logger.WarnContext(ctx, "Download of {Package} {Version} failed: {Error}", id.Name, id.Version.String(), err)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create cache directory for %s: %w", id, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		if !isDir(dir) {
			return fmt.Errorf("move %s into the system cache: %w", id, err)
		}
		c.logger.DebugContext(ctx, "Another download of {Package} {Version} finished first", id.Name, id.Version.String())
	}

	observability.PackageDownloadDuration.Observe(time.Since(start).Seconds())
	observability.PackageDownloadsTotal.WithLabelValues("success").Inc()
	return nil
}

// GetCachedPackages implements BoundSource. Directories whose manifest
// cannot be read are skipped.
func (c *CachedSource) GetCachedPackages() ([]*Package, error) {
	root := c.fetcher.CacheDirectory()
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if !strings.HasPrefix(entry.Name(), "@") {
			dirs = append(dirs, path)
			continue
		}
		scoped, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
		for _, s := range scoped {
			if s.IsDir() {
				dirs = append(dirs, filepath.Join(path, s.Name()))
			}
		}
	}

	var packages []*Package
	for _, dir := range dirs {
		pkg, err := LoadPackage(dir, c.Source(), "")
		if err != nil {
			c.logger.Debug("Skipping {Directory}: {Error}", dir, err)
			continue
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
