package core

import (
	"context"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// Source is a stateless strategy for one kind of package origin. It parses
// dependency descriptions into refs and decides what description equality
// means; binding it to a SystemCache yields a BoundSource that does I/O.
type Source interface {
	// Name identifies the source, e.g. "hosted".
	Name() string

	// ParseRef builds a ref from a dependency description.
	ParseRef(name string, description any) (PackageRef, error)

	// ParseID builds an id from a description and a concrete version.
	ParseID(name string, v *version.Version, description any) (PackageID, error)

	// DescriptionsEqual reports whether two descriptions denote the same package.
	DescriptionsEqual(a, b any) bool

	// HashDescription must agree with DescriptionsEqual.
	HashDescription(description any) uint64

	// Bind attaches the source to a cache.
	Bind(cache *SystemCache) BoundSource
}

// BoundSource is a Source attached to a SystemCache. It performs listing,
// describing and downloading, and owns the memoization for that cache.
type BoundSource interface {
	Source() Source

	// GetVersions lists every known version of ref.
	GetVersions(ctx context.Context, ref PackageRef) ([]PackageID, error)

	// Describe returns the manifest of one exact version.
	Describe(ctx context.Context, id PackageID) (*Manifest, error)

	// DownloadToSystemCache materializes id in the cache, at most once.
	DownloadToSystemCache(ctx context.Context, id PackageID) (*Package, error)

	// GetDirectory returns where id lives in the system cache.
	GetDirectory(id PackageID) string

	// IsInSystemCache reports whether id is already materialized.
	IsInSystemCache(id PackageID) bool

	// GetCachedPackages lists the packages of this source already in the cache.
	GetCachedPackages() ([]*Package, error)
}

// Fetcher is the uncached I/O a concrete bound source provides. CachedSource
// turns a Fetcher into a BoundSource.
type Fetcher interface {
	Source() Source

	// DoGetVersions lists versions. Implementations memoize per ref.
	DoGetVersions(ctx context.Context, ref PackageRef) ([]PackageID, error)

	// DescribeUncached fetches and parses one manifest without consulting any cache.
	DescribeUncached(ctx context.Context, id PackageID) (*Manifest, error)

	// Download writes id's package contents into dir, which is a fresh
	// staging directory owned by the caller.
	Download(ctx context.Context, id PackageID, dir string) error

	// GetDirectory returns where id lives in the system cache.
	GetDirectory(id PackageID) string

	// CacheDirectory is the directory holding all of this source's packages.
	CacheDirectory() string
}
