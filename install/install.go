// Package install resolves a root package's dependencies and installs the
// chosen versions into the root's node_modules directory.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/core/solver"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

const (
	// DefaultCacheDirName is the system cache directory created under os.TempDir.
	DefaultCacheDirName = "pubgrub-cache"
	// ModulesDirName holds installed packages inside the install location.
	ModulesDirName = "node_modules"
	// DefaultConcurrency bounds parallel downloads.
	DefaultConcurrency = 8
)

// ResolveVersions selects a concrete version of every package root
// transitively depends on, consulting the sources registered in cache.
// An unsatisfiable root yields a *solver.SolveFailure.
func ResolveVersions(ctx context.Context, cache *core.SystemCache, root *core.Manifest, opts ...solver.Option) (*solver.SolveResult, error) {
	return solver.NewVersionSolver(cache, root, opts...).Solve(ctx)
}

// Options configures InstallDependencies.
type Options struct {
	// Location is the directory holding the root package.json; packages
	// are installed into Location/node_modules
	Location string

	// Root replaces Location/package.json as the root manifest when set
	Root *core.Manifest

	// CacheDir is the system cache root, os.TempDir()/pubgrub-cache by default
	CacheDir string

	// Sources are registered in the system cache; the first is the default
	// source root dependencies are parsed through
	Sources []core.Source

	// Concurrency bounds parallel downloads (DefaultConcurrency if zero)
	Concurrency int

	// LockFile writes Location/obs.lock after a successful install
	LockFile bool

	Logger observability.Logger
}

// Result describes a completed install.
type Result struct {
	// Solve is the version solver's result
	Solve *solver.SolveResult

	// Packages lists where each selected package was installed, in Solve order
	Packages []InstalledPackage

	// LockFile is the written lock file, empty unless requested
	LockFile string
}

// InstalledPackage is one package copied into node_modules.
type InstalledPackage struct {
	ID  core.PackageID
	Dir string
}

// InstallDependencies resolves the dependencies of the root package at
// opts.Location, downloads every selected package into the system cache
// and copies each into Location/node_modules/<name>.
func InstallDependencies(ctx context.Context, opts Options) (result *Result, err error) {
	if opts.Location == "" {
		return nil, errors.New("install location is required")
	}
	if len(opts.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}
	logger := observability.OrNull(opts.Logger)

	location, err := filepath.Abs(opts.Location)
	if err != nil {
		return nil, fmt.Errorf("resolve install location: %w", err)
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), DefaultCacheDirName)
	}
	cache, err := core.NewSystemCache(cacheDir, core.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for _, src := range opts.Sources {
		cache.Register(src)
	}

	root := opts.Root
	if root == nil {
		pkg, err := core.LoadPackage(location, cache.Default().Source(), "")
		if err != nil {
			return nil, err
		}
		root = pkg.Manifest
	}

	ctx, span := observability.StartInstallSpan(ctx, location)
	defer func() { observability.EndSpanWithError(span, err) }()

	start := time.Now()
	solved, err := ResolveVersions(ctx, cache, root, solver.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	installed, err := installPackages(ctx, cache, solved.Packages, location, opts.Concurrency, logger)
	if err != nil {
		return nil, err
	}

	result = &Result{Solve: solved, Packages: installed}
	if opts.LockFile {
		result.LockFile = filepath.Join(location, LockFileName)
		if err := WriteLockFile(result.LockFile, solved); err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "Installed {Count} packages into {Location} in {Elapsed}",
		len(installed), location, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func installPackages(ctx context.Context, cache *core.SystemCache, ids []core.PackageID, location string, concurrency int, logger observability.Logger) ([]InstalledPackage, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	modules := filepath.Join(location, ModulesDirName)
	if err := os.MkdirAll(modules, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", modules, err)
	}

	installed := make([]InstalledPackage, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			pkg, err := cache.Bound(id.Source).DownloadToSystemCache(gctx, id)
			if err != nil {
				return err
			}
			target := filepath.Join(modules, filepath.FromSlash(id.Name))
			if err := materialize(pkg.Dir, target); err != nil {
				return fmt.Errorf("install %s: %w", id, err)
			}
			logger.DebugContext(gctx, "Installed {Package} {Version} into {Directory}", id.Name, id.Version.String(), target)
			installed[i] = InstalledPackage{ID: id, Dir: target}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return installed, nil
}

// materialize replaces target with a copy of the cached package in src.
// The copy is staged beside target so a failed copy leaves no partial
// package behind.
func materialize(src, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	staging := filepath.Join(filepath.Dir(target), ".staging-"+uuid.NewString())
	defer os.RemoveAll(staging)

	if err := copyTree(src, staging); err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return os.Rename(staging, target)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		}
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
