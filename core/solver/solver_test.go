package solver

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/core"
)

func TestSolve_HighestMatchingVersion(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"1.0.0": nil, "1.2.0": nil, "2.0.0": nil},
	}, map[string]string{"a": "^1.0.0"})
	require.NoError(t, err)

	if diff := cmp.Diff(map[string]string{"a": "1.2.0"}, versionsOf(result)); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "your bundle", result.Root.Name)
	assert.Equal(t, 1, result.AttemptedSolutions)
	require.Len(t, result.Dependencies, 1)
	assert.Equal(t, "a ^1.0.0", result.Dependencies[0].String())
}

func TestSolve_SingleMatchingVersion(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"1.0.0": nil, "1.1.0": nil},
	}, map[string]string{"a": "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1.0.0"}, versionsOf(result))
}

func TestSolve_PrefersReleasesOverPreReleases(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"1.0.0": nil, "1.1.0-beta.1": nil},
		"b": {"2.0.0-rc.1": nil, "2.0.0-rc.2": nil},
	}, map[string]string{"a": ">=1.0.0-0", "b": ">=2.0.0-0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1.0.0", "b": "2.0.0-rc.2"}, versionsOf(result))
}

func TestSolve_PrereleaseBelowCaretUpperBound(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"0.9.0": nil, "1.0.0": nil, "2.0.0-beta.1": nil},
		"b": {"0.9.0": nil, "2.0.0-beta.1": nil},
	}, map[string]string{"a": "^1.0.0", "b": "^1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1.0.0", "b": "2.0.0-beta.1"}, versionsOf(result))
}

func TestSolve_TransitiveDependencies(t *testing.T) {
	result, err := solve(t, registry{
		"o-grid":    {"5.0.0": {"o-spacing": "^3.0.0"}, "5.1.0": {"o-spacing": "^3.1.0"}},
		"o-spacing": {"3.0.0": nil, "3.1.0": {"o-colors": "^4.0.0"}, "3.2.0": {"o-colors": "^4.0.0"}},
		"o-colors":  {"4.0.0": nil, "4.5.0": nil, "5.0.0": nil},
	}, map[string]string{"o-grid": "^5.0.0"})
	require.NoError(t, err)

	want := map[string]string{"o-grid": "5.1.0", "o-spacing": "3.2.0", "o-colors": "4.5.0"}
	if diff := cmp.Diff(want, versionsOf(result)); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, id := range result.Packages {
		names = append(names, id.Name)
	}
	assert.Equal(t, []string{"o-colors", "o-grid", "o-spacing"}, names)
}

func TestSolve_AvoidsVersionWithConflictingDependency(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"1.0.0": {"b": "any"}, "2.0.0": {"b": "any", "c": "2.0.0"}},
		"b": {"1.0.0": nil, "2.0.0": {"c": "1.0.0"}},
		"c": {"1.0.0": nil, "2.0.0": nil},
	}, map[string]string{"a": "any"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2.0.0", "b": "1.0.0", "c": "2.0.0"}, versionsOf(result))
}

func TestSolve_BackjumpsOverDerivedConflict(t *testing.T) {
	result, err := solve(t, registry{
		"a": {"1.0.0": nil, "2.0.0": {"c": "^2.0.0"}},
		"b": {"1.0.0": nil, "2.0.0": {"d": "^1.0.0"}},
		"c": {"1.0.0": nil, "2.0.0": nil},
		"d": {"1.0.0": {"c": "^1.0.0"}},
	}, map[string]string{"a": "any", "b": "any"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"a": "2.0.0", "b": "1.0.0", "c": "2.0.0"}, versionsOf(result))
	assert.Greater(t, result.AttemptedSolutions, 1)
}

func TestSolve_DisjointConstraintsFail(t *testing.T) {
	_, err := solve(t, registry{
		"a": {"1.0.0": nil, "2.0.0": nil},
		"b": {"1.0.0": {"a": "^2.0.0"}},
	}, map[string]string{"a": "^1.0.0", "b": "^1.0.0"})
	require.Error(t, err)

	var failure *SolveFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.Incompatibility.IsFailure())
	assert.Equal(t,
		"Because every version of b depends on a ^2.0.0 and your bundle depends on a ^1.0.0, b is forbidden.\n"+
			"So, because your bundle depends on b ^1.0.0, version solving failed.",
		failure.Explanation())
}

func TestSolve_ExactVersionsOnSamePackageFail(t *testing.T) {
	_, err := solve(t, registry{
		"p": {"1.0.0": nil, "1.0.19": nil},
		"a": {"1.0.0": {"p": "1.0.19"}},
	}, map[string]string{"p": "1.0.0", "a": "^1.0.0"})
	require.Error(t, err)
	require.True(t, IsSolveFailure(err))

	assert.Equal(t,
		"Because your bundle depends on a ^1.0.0 which depends on p 1.0.19, p 1.0.19 is required.\n"+
			"So, because your bundle depends on p 1.0.0, version solving failed.",
		err.Error())
}

func TestSolve_NoMatchingVersions(t *testing.T) {
	_, err := solve(t, registry{
		"a": {"1.0.0": nil, "2.0.0": nil},
	}, map[string]string{"a": "^3.0.0"})
	require.Error(t, err)
	require.True(t, IsSolveFailure(err))

	assert.Equal(t,
		"Because your bundle depends on a ^3.0.0 which doesn't match any versions, version solving failed.",
		err.Error())
}

func TestSolve_PackageNotFound(t *testing.T) {
	_, err := solve(t, registry{}, map[string]string{"o-missing": "^1.0.0"})
	require.Error(t, err)
	require.True(t, IsSolveFailure(err))

	assert.Equal(t,
		"Because your bundle depends on o-missing which doesn't exist (could not find package o-missing), version solving failed.",
		err.Error())
}

func TestSolve_UnknownSource(t *testing.T) {
	_, err := solve(t, registry{}, map[string]string{
		"o-legacy": "https://github.com/Financial-Times/o-legacy.git",
	})
	require.Error(t, err)
	require.True(t, IsSolveFailure(err))

	assert.Equal(t,
		`Because your bundle depends on o-legacy from unknown source "git", version solving failed.`,
		err.Error())
}

func TestSolve_VCSURLDependencyUsesFragment(t *testing.T) {
	packages := registry{
		"o-colors": {"1.0.0": nil, "2.0.0": nil},
		"o-grid": {"5.0.0": {
			"o-colors": "https://github.com/Financial-Times/o-colors.git#^1.0.0",
		}},
	}
	result, err := solve(t, packages, map[string]string{
		"o-grid": "git@github.com:Financial-Times/o-grid.git#^5.0.0",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"o-grid": "5.0.0", "o-colors": "1.0.0"}, versionsOf(result))
}

func TestSolve_InvalidManifestMakesVersionUnselectable(t *testing.T) {
	packages := registry{
		"a": {"1.0.0": nil, "1.1.0": {"a": "^1.0.0"}},
	}
	result, err := solve(t, packages, map[string]string{"a": "^1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1.0.0"}, versionsOf(result))
}

func TestSolve_InvalidRootManifest(t *testing.T) {
	cache, err := core.NewSystemCache(t.TempDir())
	require.NoError(t, err)
	src := &memorySource{packages: registry{}}
	cache.Register(src)

	root := core.NewRootManifest("your bundle", "1.0.0", map[string]string{"your bundle": "^1.0.0"}, src)
	_, err = NewVersionSolver(cache, root).Solve(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsManifestError(err))
	assert.False(t, IsSolveFailure(err))
}

func TestSolve_Canceled(t *testing.T) {
	s, _ := newTestSolver(t, registry{"a": {"1.0.0": nil}}, map[string]string{"a": "any"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Solve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolve_StateAfterSolve(t *testing.T) {
	s, _ := newTestSolver(t, registry{"a": {"1.0.0": nil}}, map[string]string{"a": "any"})
	_, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, s.State())

	s, _ = newTestSolver(t, registry{"a": {"1.0.0": nil}}, map[string]string{"a": "^2.0.0"})
	_, err = s.Solve(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, s.State())
}

func TestSolve_ConcurrentSolvesShareCache(t *testing.T) {
	cache, err := core.NewSystemCache(t.TempDir())
	require.NoError(t, err)
	src := &memorySource{packages: registry{
		"o-grid":   {"5.0.0": {"o-colors": "^4.0.0"}},
		"o-colors": {"4.0.0": nil, "4.1.0": nil},
	}}
	cache.Register(src)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root := core.NewRootManifest("your bundle", "1.0.0", map[string]string{"o-grid": "^5.0.0"}, src)
			result, err := NewVersionSolver(cache, root).Solve(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, map[string]string{"o-grid": "5.0.0", "o-colors": "4.1.0"}, versionsOf(result))
			}
		}()
	}
	wg.Wait()
}
