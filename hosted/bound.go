package hosted

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adambraimbridge/origami-build-service-v3/archive"
	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// probeVersion is requested when a listing comes back empty, so that a
// package that does not exist at all is reported as such.
const probeVersion = "0"

// BoundSource is a Source bound to a system cache. The embedded
// CachedSource supplies manifest memoization and idempotent downloads.
type BoundSource struct {
	*core.CachedSource

	source *Source
	cache  *core.SystemCache
	logger observability.Logger

	versions *core.Memo[core.PackageKey, []core.PackageID]
}

func newBoundSource(s *Source, cache *core.SystemCache) *BoundSource {
	logger := s.logger
	if logger == nil {
		logger = cache.Logger()
	}
	b := &BoundSource{
		source:   s,
		cache:    cache,
		logger:   observability.OrNull(logger).ForContext("Source", SourceName),
		versions: core.NewMemo[core.PackageKey, []core.PackageID](),
	}
	b.CachedSource = core.NewCachedSource(b, cache)
	return b
}

// Source implements core.Fetcher.
func (b *BoundSource) Source() core.Source {
	return b.source
}

// DoGetVersions implements core.Fetcher. The listing for each package is
// requested once; every manifest it carries is memoized so that describing
// a listed version needs no further request.
func (b *BoundSource) DoGetVersions(ctx context.Context, ref core.PackageRef) ([]core.PackageID, error) {
	return b.versions.Do(ctx, ref.Key(), func(ctx context.Context) (ids []core.PackageID, err error) {
		desc := b.source.description(ref)

		ctx, span := observability.StartListVersionsSpan(ctx, desc.Name, SourceName)
		defer func() { observability.EndSpanWithError(span, err) }()

		if !b.servesOrigin(desc) {
			nf := core.NewPackageNotFoundError(ref.Name, "", nil)
			nf.Message = fmt.Sprintf("could not find package %s: registry %s is not configured", ref.Name, desc.URL)
			return nil, nf
		}

		observability.SourceRequestsTotal.WithLabelValues(SourceName, "list").Inc()
		b.logger.DebugContext(ctx, "Listing versions of {Package} from {Registry}", desc.Name, desc.URL)

		records, err := b.source.registry.ListVersions(ctx, desc.Name)
		if err != nil && !errors.Is(err, registry.ErrNotFound) {
			return nil, translateError(err, desc.Name, "")
		}

		if len(records) == 0 {
			if _, err := b.source.registry.GetVersion(ctx, desc.Name, probeVersion); err != nil {
				return nil, translateError(err, desc.Name, "")
			}
			return nil, nil
		}

		ids = make([]core.PackageID, 0, len(records))
		for _, record := range records {
			v, err := version.Parse(record.Version)
			if err != nil {
				b.logger.WarnContext(ctx, "Ignoring {Package} {Version}: {Error}", desc.Name, record.Version, err)
				continue
			}
			id := ref.WithVersion(v)
			ids = append(ids, id)

			// A record that does not parse is left unmemoized; describing it
			// later reports the manifest error for that version only.
			if m, err := b.parseRecord(record, ref.Name); err == nil {
				b.MemoizeManifest(id, m)
			}
		}
		return ids, nil
	})
}

// DescribeUncached implements core.Fetcher.
func (b *BoundSource) DescribeUncached(ctx context.Context, id core.PackageID) (*core.Manifest, error) {
	desc := b.source.description(id.PackageRef)
	record, err := b.source.registry.GetVersion(ctx, desc.Name, id.Version.String())
	if err != nil {
		return nil, translateError(err, desc.Name, id.Version.String())
	}
	return b.parseRecord(record, id.Name)
}

// Download implements core.Fetcher. The archive's single top-level
// directory is stripped so the package files land directly in dir.
func (b *BoundSource) Download(ctx context.Context, id core.PackageID, dir string) error {
	desc := b.source.description(id.PackageRef)
	ver := id.Version.String()

	record, err := b.source.registry.GetVersion(ctx, desc.Name, ver)
	if err != nil {
		return translateError(err, desc.Name, ver)
	}
	if record.CodeLocation == "" {
		return core.NewApplicationError(fmt.Sprintf("package %s %s has no code location", desc.Name, ver), nil)
	}

	b.logger.DebugContext(ctx, "Fetching {Location} for {Package} {Version}", record.CodeLocation, desc.Name, ver)
	body, err := b.source.objects.Open(ctx, record.CodeLocation)
	if err != nil {
		return translateError(err, desc.Name, ver)
	}
	defer body.Close()

	if err := archive.ExtractTarGz(ctx, body, dir, archive.Options{StripComponents: 1}); err != nil {
		return fmt.Errorf("unpack %s %s: %w", desc.Name, ver, err)
	}
	return nil
}

// GetDirectory implements core.Fetcher.
func (b *BoundSource) GetDirectory(id core.PackageID) string {
	desc := b.source.description(id.PackageRef)
	return filepath.Join(b.originDirectory(desc.URL), filepath.FromSlash(desc.Name)+"-"+id.Version.String())
}

// CacheDirectory implements core.Fetcher.
func (b *BoundSource) CacheDirectory() string {
	return b.originDirectory(b.source.url)
}

func (b *BoundSource) originDirectory(url string) string {
	return filepath.Join(b.cache.RootDir(), EscapeOrigin(normalizeURL(url)))
}

func (b *BoundSource) servesOrigin(desc Description) bool {
	return normalizeURL(desc.URL) == normalizeURL(b.source.url)
}

func (b *BoundSource) parseRecord(record registry.Record, expectedName string) (*core.Manifest, error) {
	contents, err := record.Manifest()
	if err != nil {
		return nil, fmt.Errorf("encode manifest of %s %s: %w", record.Name, record.Version, err)
	}
	return core.ParseManifest(contents, b.source, expectedName)
}

// translateError turns registry failures into the errors the solver and
// the service report. Anything else is returned unchanged.
func translateError(err error, name, ver string) error {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return core.NewPackageNotFoundError(name, ver, err)
	case errors.Is(err, registry.ErrAccessDenied):
		return core.NewApplicationError(fmt.Sprintf("could not download package %s", name), err)
	}
	return err
}
