package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

var testSource = &memorySource{packages: registry{}}

func term(name, constraint string, positive bool) Term {
	ref, _ := testSource.ParseRef(name, name)
	return NewTerm(ref.WithConstraint(version.MustParseConstraint(constraint)), positive)
}

func gitTerm(name, constraint string, positive bool) Term {
	ref, _ := core.NewUnknownSource("git").ParseRef(name, "https://github.com/Financial-Times/"+name)
	return NewTerm(ref.WithConstraint(version.MustParseConstraint(constraint)), positive)
}

func TestTerm_Relation(t *testing.T) {
	tests := []struct {
		name string
		a, b Term
		want SetRelation
	}{
		{"positive subset", term("a", "^1.2.0", true), term("a", "^1.0.0", true), Subset},
		{"positive overlapping", term("a", "^1.0.0", true), term("a", ">=1.5.0 <3.0.0", true), Overlapping},
		{"positive disjoint", term("a", "^1.0.0", true), term("a", "^2.0.0", true), Disjoint},
		{"positive inside negative", term("a", "^1.0.0", true), term("a", "^2.0.0", false), Subset},
		{"positive excluded by negative", term("a", "^1.2.0", true), term("a", "^1.0.0", false), Disjoint},
		{"negative covering positive", term("a", "^1.0.0", false), term("a", "^1.2.0", true), Disjoint},
		{"negative overlapping positive", term("a", "^1.0.0", false), term("a", ">=1.5.0 <3.0.0", true), Overlapping},
		{"negative subset", term("a", "^1.0.0", false), term("a", "^1.2.0", false), Subset},
		{"other source positive", term("a", "any", true), gitTerm("a", "any", true), Disjoint},
		{"other source satisfies negative", term("a", "any", true), gitTerm("a", "any", false), Subset},
		{"negative against other source", term("a", "any", false), gitTerm("a", "any", true), Overlapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Relation(tt.b))
		})
	}
}

func TestTerm_Intersect(t *testing.T) {
	got, ok := term("a", "^1.0.0", true).Intersect(term("a", ">=1.5.0 <3.0.0", true))
	require.True(t, ok)
	assert.Equal(t, "a ^1.5.0", got.String())

	got, ok = term("a", "^1.0.0", true).Intersect(term("a", ">=1.5.0", false))
	require.True(t, ok)
	assert.Equal(t, "a >=1.0.0 <1.5.0", got.String())

	got, ok = term("a", "^1.0.0", false).Intersect(term("a", ">=1.5.0 <3.0.0", false))
	require.True(t, ok)
	assert.Equal(t, "not a >=1.0.0 <3.0.0", got.String())

	_, ok = term("a", "^1.0.0", true).Intersect(term("a", "^2.0.0", true))
	assert.False(t, ok)

	got, ok = gitTerm("a", "any", true).Intersect(term("a", "any", false))
	require.True(t, ok)
	assert.Equal(t, "git", got.Package.SourceName())

	_, ok = gitTerm("a", "any", false).Intersect(term("a", "any", false))
	assert.False(t, ok)
}

func TestTerm_Difference(t *testing.T) {
	got, ok := term("a", "^1.0.0", true).Difference(term("a", "^1.5.0", true))
	require.True(t, ok)
	assert.Equal(t, "a >=1.0.0 <1.5.0", got.String())

	_, ok = term("a", "^1.5.0", true).Difference(term("a", "^1.0.0", true))
	assert.False(t, ok)
}

func TestNewIncompatibility_MergesTerms(t *testing.T) {
	inc := NewIncompatibility([]Term{
		term("a", "^1.0.0", true),
		term("b", "^2.0.0", false),
		term("a", ">=1.5.0", true),
	}, Cause{Kind: CauseConflict})

	require.Len(t, inc.Terms, 2)
	assert.Equal(t, "a ^1.5.0", inc.Terms[0].String())
	assert.Equal(t, "not b ^2.0.0", inc.Terms[1].String())
}

func TestNewIncompatibility_UnmergeableTerms(t *testing.T) {
	_, err := newIncompatibility([]Term{
		term("a", "^1.0.0", true),
		term("b", "^2.0.0", false),
		term("a", "^2.0.0", true),
	}, Cause{Kind: CauseConflict})
	require.Error(t, err)
	assert.Equal(t, "internal solver error: cannot merge a ^1.0.0 and a ^2.0.0", err.Error())

	_, err = newIncompatibility([]Term{
		term("a", "^1.0.0", true),
		term("b", "any", true),
		term("a", "any", false),
	}, Cause{Kind: CauseConflict})
	assert.ErrorContains(t, err, "internal solver error")

	assert.Panics(t, func() {
		NewIncompatibility([]Term{term("a", "1.0.0", true), term("a", "2.0.0", true), term("b", "any", true)}, Cause{Kind: CauseConflict})
	})
}

func TestNewIncompatibility_PositiveTermsWin(t *testing.T) {
	inc := NewIncompatibility([]Term{
		gitTerm("a", "any", false),
		term("a", "^1.0.0", true),
		term("b", "any", true),
	}, Cause{Kind: CauseConflict})

	require.Len(t, inc.Terms, 2)
	assert.Equal(t, "memory", inc.Terms[0].Package.SourceName())
	assert.True(t, inc.Terms[0].Positive)
}

func TestNewIncompatibility_DropsPositiveRoot(t *testing.T) {
	root := NewTerm(core.NewRootRef("your bundle").WithVersion(version.MustParse("1.0.0")).ToRange(), true)

	derived := NewIncompatibility([]Term{root, term("a", "^1.0.0", false)}, Cause{Kind: CauseConflict})
	require.Len(t, derived.Terms, 1)
	assert.Equal(t, "a ^1.0.0 is required", derived.String())

	dependency := NewIncompatibility([]Term{root, term("a", "^1.0.0", false)}, Cause{Kind: CauseDependency})
	require.Len(t, dependency.Terms, 2)
	assert.Equal(t, "your bundle depends on a ^1.0.0", dependency.String())

	failure := NewIncompatibility([]Term{root}, Cause{Kind: CauseConflict})
	assert.True(t, failure.IsFailure())
	assert.Equal(t, "version solving failed", failure.String())
}

func TestIncompatibility_String(t *testing.T) {
	tests := []struct {
		name string
		inc  *Incompatibility
		want string
	}{
		{
			"dependency on every version",
			NewIncompatibility([]Term{term("a", "any", true), term("b", "^2.0.0", false)}, Cause{Kind: CauseDependency}),
			"every version of a depends on b ^2.0.0",
		},
		{
			"no versions",
			NewIncompatibility([]Term{term("a", "^3.0.0", true)}, Cause{Kind: CauseNoVersions}),
			"no versions of a match ^3.0.0",
		},
		{
			"unknown source",
			NewIncompatibility([]Term{gitTerm("a", "any", true)}, Cause{Kind: CauseUnknownSource}),
			`a comes from unknown source "git"`,
		},
		{
			"forbidden",
			NewIncompatibility([]Term{term("a", "^1.0.0", true)}, Cause{Kind: CauseConflict}),
			"a ^1.0.0 is forbidden",
		},
		{
			"incompatible",
			NewIncompatibility([]Term{term("a", "^1.0.0", true), term("b", "any", true)}, Cause{Kind: CauseConflict}),
			"a ^1.0.0 is incompatible with b",
		},
		{
			"either",
			NewIncompatibility([]Term{term("a", "^1.0.0", false), term("b", "^2.0.0", false)}, Cause{Kind: CauseConflict}),
			"either a ^1.0.0 or b ^2.0.0",
		},
		{
			"requires",
			NewIncompatibility([]Term{term("a", "any", true), term("b", "^2.0.0", false), term("c", "^3.0.0", false)}, Cause{Kind: CauseConflict}),
			"every version of a requires b ^2.0.0 or c ^3.0.0",
		},
		{
			"if then",
			NewIncompatibility([]Term{term("a", "^1.0.0", true), term("b", "^2.0.0", true), term("c", "^3.0.0", false)}, Cause{Kind: CauseConflict}),
			"if a ^1.0.0 and b ^2.0.0 then c ^3.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.inc.String())
		})
	}
}

func TestIncompatibility_AndString(t *testing.T) {
	aOnB := NewIncompatibility([]Term{term("a", "^1.0.0", true), term("b", "^2.0.0", false)}, Cause{Kind: CauseDependency})
	aOnC := NewIncompatibility([]Term{term("a", "^1.0.0", true), term("c", "^3.0.0", false)}, Cause{Kind: CauseDependency})
	bOnC := NewIncompatibility([]Term{term("b", "any", true), term("c", "^4.0.0", false)}, Cause{Kind: CauseDependency})
	noB := NewIncompatibility([]Term{term("b", "^2.0.0", true)}, Cause{Kind: CauseNoVersions})

	assert.Equal(t, "a ^1.0.0 depends on both b ^2.0.0 (1) and c ^3.0.0 (2)", aOnB.AndString(aOnC, 1, 2))
	assert.Equal(t, "a ^1.0.0 depends on b ^2.0.0 which depends on c ^4.0.0", aOnB.AndString(bOnC, 0, 0))
	assert.Equal(t, "a ^1.0.0 depends on b ^2.0.0 which doesn't match any versions", noB.AndString(aOnB, 0, 0))
}
