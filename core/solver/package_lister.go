package solver

import (
	"context"
	"errors"
	"slices"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// describeCache is implemented by bound sources that can tell whether a
// manifest is already in memory, such as those built on core.CachedSource.
type describeCache interface {
	HasDescribed(id core.PackageID) bool
}

// packageLister answers the solver's questions about one package: which
// versions exist and what each of them depends on.
type packageLister struct {
	ref    core.PackageRef
	source core.BoundSource
	logger observability.Logger

	// root is set for the root package, which has exactly one version
	root *core.Manifest

	loaded      bool
	versions    []core.PackageID
	versionsErr error

	// alreadyListed holds, per dependency name, the depender versions whose
	// dependency incompatibility has already been emitted
	alreadyListed map[string]version.Constraint

	// knownInvalid holds versions whose manifest could not be used
	knownInvalid version.Constraint
}

func newPackageLister(ref core.PackageRef, source core.BoundSource, logger observability.Logger) *packageLister {
	return &packageLister{
		ref:           ref,
		source:        source,
		logger:        logger,
		alreadyListed: map[string]version.Constraint{},
		knownInvalid:  version.Empty(),
	}
}

func newRootLister(id core.PackageID, root *core.Manifest, logger observability.Logger) *packageLister {
	l := newPackageLister(id.PackageRef, nil, logger)
	l.root = root
	l.loaded = true
	l.versions = []core.PackageID{id}
	return l
}

// listVersions returns the package's versions in ascending order. The
// listing, or its failure, is fetched once.
func (l *packageLister) listVersions(ctx context.Context) ([]core.PackageID, error) {
	if l.loaded {
		return l.versions, l.versionsErr
	}

	ids, err := l.source.GetVersions(ctx, l.ref)
	if err != nil && isAbort(err) {
		return nil, err
	}

	l.loaded = true
	if err != nil {
		l.versionsErr = err
		return nil, err
	}

	sorted := slices.Clone(ids)
	slices.SortStableFunc(sorted, func(a, b core.PackageID) int {
		return a.Version.Compare(b.Version)
	})
	l.versions = sorted
	return sorted, nil
}

// countVersions returns how many versions c allows. A package that cannot
// be listed counts as having none, so it is chosen early.
func (l *packageLister) countVersions(ctx context.Context, c version.Constraint) (int, error) {
	ids, err := l.listVersions(ctx)
	if err != nil {
		if isAbort(err) {
			return 0, err
		}
		return 0, nil
	}

	n := 0
	for _, id := range ids {
		if c.Allows(id.Version) {
			n++
		}
	}
	return n, nil
}

// bestVersion returns the highest version c allows that is not a
// pre-release, or the highest pre-release if c allows no release.
func (l *packageLister) bestVersion(ctx context.Context, c version.Constraint) (core.PackageID, bool, error) {
	ids, err := l.listVersions(ctx)
	if err != nil {
		return core.PackageID{}, false, err
	}

	var prerelease core.PackageID
	found := false
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if !c.Allows(id.Version) {
			continue
		}
		if !id.Version.IsPreRelease() {
			return id, true, nil
		}
		if !found {
			prerelease, found = id, true
		}
	}
	return prerelease, found, nil
}

// incompatibilitiesFor returns the dependency incompatibilities of id.
//
// When neighbouring versions have the same dependency and their manifests
// are already in memory, the depender range is widened to cover them, so
// "every version of a depends on b ^2.0.0" is learned in one step.
func (l *packageLister) incompatibilitiesFor(ctx context.Context, id core.PackageID) ([]*Incompatibility, error) {
	if l.root != nil {
		return l.rootIncompatibilities(id)
	}

	if l.knownInvalid.Allows(id.Version) {
		return nil, nil
	}

	deps, err := l.dependencies(ctx, id)
	if err != nil {
		if isAbort(err) {
			return nil, err
		}
		l.logger.WarnContext(ctx, "Ignoring {Package} {Version}: {Error}", id.Name, id.Version.String(), err)
		l.knownInvalid = l.knownInvalid.Union(version.Exactly(id.Version))
		return []*Incompatibility{
			NewIncompatibility([]Term{NewTerm(id.ToRange(), true)}, Cause{Kind: CauseNoVersions}),
		}, nil
	}

	// Skip dependencies whose incompatibility already covers this version.
	deps = slices.DeleteFunc(deps, func(dep core.PackageRange) bool {
		listed, ok := l.alreadyListed[dep.Name]
		return ok && listed.Allows(id.Version)
	})
	if len(deps) == 0 {
		return nil, nil
	}

	index := slices.IndexFunc(l.versions, func(other core.PackageID) bool {
		return other.Version.Equal(id.Version)
	})
	if _, merges := l.source.(describeCache); index < 0 || !merges {
		incompatibilities := make([]*Incompatibility, 0, len(deps))
		for _, dep := range deps {
			incompatibilities = append(incompatibilities, dependencyIncompatibility(id.ToRange(), dep))
		}
		return incompatibilities, nil
	}

	lower, err := l.dependencyBounds(ctx, deps, index, false)
	if err != nil {
		return nil, err
	}
	upper, err := l.dependencyBounds(ctx, deps, index, true)
	if err != nil {
		return nil, err
	}

	incompatibilities := make([]*Incompatibility, 0, len(deps))
	for _, dep := range deps {
		r := version.Range{Min: lower[dep.Name], Max: upper[dep.Name]}
		r.IncludeMin = r.Min != nil
		constraint := version.UnionOf(r)

		listed, ok := l.alreadyListed[dep.Name]
		if !ok {
			listed = version.Empty()
		}
		l.alreadyListed[dep.Name] = listed.Union(constraint)

		incompatibilities = append(incompatibilities, dependencyIncompatibility(l.ref.WithConstraint(constraint), dep))
	}
	return incompatibilities, nil
}

func (l *packageLister) rootIncompatibilities(id core.PackageID) ([]*Incompatibility, error) {
	deps, err := l.root.DependencyList()
	if err != nil {
		return nil, err
	}
	incompatibilities := make([]*Incompatibility, 0, len(deps))
	for _, dep := range deps {
		incompatibilities = append(incompatibilities, dependencyIncompatibility(id.ToRange(), dep))
	}
	return incompatibilities, nil
}

// dependencies describes id and returns its dependencies sorted by name.
func (l *packageLister) dependencies(ctx context.Context, id core.PackageID) ([]core.PackageRange, error) {
	m, err := l.source.Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.DependencyList()
}

// dependencyBounds walks from versions[index] towards newer (upper) or
// older versions for as long as manifests are already in memory, and
// returns per dependency the first version where it changes. Dependencies
// that never change are absent from the result, meaning unbounded.
func (l *packageLister) dependencyBounds(ctx context.Context, deps []core.PackageRange, index int, upper bool) (map[string]*version.Version, error) {
	bounds := map[string]*version.Version{}
	cache := l.source.(describeCache)

	var neighbours []core.PackageID
	if upper {
		neighbours = l.versions[index+1:]
	} else {
		neighbours = slices.Clone(l.versions[:index])
		slices.Reverse(neighbours)
	}

	previous := l.versions[index]
	bound := func(id core.PackageID) *version.Version {
		if upper {
			return id.Version
		}
		return previous.Version
	}

	for _, id := range neighbours {
		if !cache.HasDescribed(id) {
			break
		}

		other, err := l.dependencies(ctx, id)
		if err != nil {
			if isAbort(err) {
				return nil, err
			}
			// An unusable version ends every range.
			for _, dep := range deps {
				if _, ok := bounds[dep.Name]; !ok {
					bounds[dep.Name] = bound(id)
				}
			}
			break
		}

		for _, dep := range deps {
			if _, ok := bounds[dep.Name]; ok {
				continue
			}
			i := slices.IndexFunc(other, func(o core.PackageRange) bool { return o.Name == dep.Name })
			if i < 0 || !other[i].Equal(dep) {
				bounds[dep.Name] = bound(id)
			}
		}

		if len(bounds) == len(deps) {
			break
		}
		previous = id
	}

	return bounds, nil
}

func dependencyIncompatibility(depender, target core.PackageRange) *Incompatibility {
	return NewIncompatibility([]Term{
		NewTerm(depender, true),
		NewTerm(target, false),
	}, Cause{Kind: CauseDependency})
}

// isAbort reports errors that end the solve instead of becoming
// incompatibilities: cancellation and operational failures.
func isAbort(err error) bool {
	var appErr *core.ApplicationError
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &appErr)
}
