package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// DefaultSyncConcurrency bounds parallel archive transfers during Sync.
const DefaultSyncConcurrency = 4

// Component is one version of a component as a catalog lists it.
type Component struct {
	Name         string
	Version      string
	Dependencies json.RawMessage
}

// Catalog lists every published component version.
type Catalog interface {
	Components(ctx context.Context) ([]Component, error)
}

// CodeFetcher returns a version's code as a tar.gz archive, or ErrNotFound
// when no code was published for it.
type CodeFetcher interface {
	Fetch(ctx context.Context, name, version string) (io.ReadCloser, error)
}

// SyncOptions configures Sync.
type SyncOptions struct {
	Catalog Catalog
	Code    CodeFetcher
	Target  Publisher

	// Force republishes versions the target already holds
	Force bool

	// Concurrency bounds parallel transfers (DefaultSyncConcurrency if zero)
	Concurrency int

	Logger observability.Logger
}

// SyncReport counts what a Sync did with each listed version.
type SyncReport struct {
	// Added versions were uploaded and recorded
	Added int
	// Existing versions were already in the target and left alone
	Existing int
	// Missing versions have no code and were not recorded
	Missing int
	// Duplicates were listed more than once by the catalog
	Duplicates int
}

// Sync copies every component version the catalog lists into the target
// registry: the archive is uploaded to CodeLocation(name, version) first and
// the record is stored after, so a recorded version always has its code.
// Versions without code are skipped, as are repeated catalog entries.
func Sync(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	if opts.Catalog == nil || opts.Code == nil || opts.Target == nil {
		return nil, errors.New("sync needs a catalog, a code fetcher and a target")
	}
	logger := observability.OrNull(opts.Logger)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}

	start := time.Now()
	components, err := opts.Catalog.Components(ctx)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	report := &SyncReport{}
	seen := make(map[string]bool, len(components))
	var pending []Component
	for _, c := range components {
		key := c.Name + "@" + c.Version
		if seen[key] {
			logger.WarnContext(ctx, "Catalog lists {Package} {Version} more than once", c.Name, c.Version)
			observability.RegistrySyncTotal.WithLabelValues("duplicate").Inc()
			report.Duplicates++
			continue
		}
		seen[key] = true
		pending = append(pending, c)
	}

	var added, existing, missing atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, c := range pending {
		g.Go(func() error {
			outcome, err := syncComponent(gctx, opts, c)
			if err != nil {
				return fmt.Errorf("sync %s %s: %w", c.Name, c.Version, err)
			}
			observability.RegistrySyncTotal.WithLabelValues(outcome).Inc()
			switch outcome {
			case "added":
				added.Add(1)
				logger.DebugContext(gctx, "Added {Package} {Version}", c.Name, c.Version)
			case "existing":
				existing.Add(1)
			case "missing":
				missing.Add(1)
				logger.InfoContext(gctx, "There is no code for {Package} {Version}", c.Name, c.Version)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Added = int(added.Load())
	report.Existing = int(existing.Load())
	report.Missing = int(missing.Load())
	logger.InfoContext(ctx, "Synced {Added} of {Listed} component versions in {Elapsed}",
		report.Added, len(components), time.Since(start).Round(time.Millisecond))
	return report, nil
}

func syncComponent(ctx context.Context, opts SyncOptions, c Component) (string, error) {
	if !opts.Force {
		_, err := opts.Target.GetVersion(ctx, c.Name, c.Version)
		if err == nil {
			return "existing", nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	code, err := opts.Code.Fetch(ctx, c.Name, c.Version)
	if errors.Is(err, ErrNotFound) {
		return "missing", nil
	}
	if err != nil {
		return "", err
	}
	defer func() { _ = code.Close() }()

	location := CodeLocation(c.Name, c.Version)
	if err := opts.Target.Upload(ctx, location, code); err != nil {
		return "", err
	}
	record := Record{Name: c.Name, Version: c.Version, Dependencies: c.Dependencies, CodeLocation: location}
	if err := opts.Target.Store(ctx, record); err != nil {
		return "", err
	}
	return "added", nil
}
