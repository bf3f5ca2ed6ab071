package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

func TestPackageRef_SamePackage(t *testing.T) {
	src := newFakeSource(nil)
	other := NewUnknownSource("git")

	a, _ := src.ParseRef("o-grid", nil)
	b, _ := src.ParseRef("o-grid", nil)
	c, _ := src.ParseRef("o-colors", nil)
	d, _ := other.ParseRef("o-grid", "o-grid")

	assert.True(t, a.SamePackage(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.SamePackage(c))
	assert.False(t, a.SamePackage(d))
	assert.NotEqual(t, a.Key(), d.Key())

	root := NewRootRef("o-grid")
	assert.True(t, root.IsRoot())
	assert.False(t, root.SamePackage(a))
	assert.True(t, root.SamePackage(NewRootRef("o-grid")))
	assert.Equal(t, "root", root.SourceName())
}

func TestPackageRange_Allows(t *testing.T) {
	src := newFakeSource(nil)
	ref, _ := src.ParseRef("o-grid", nil)
	r := ref.WithConstraint(version.MustParseConstraint("^5.0.0"))

	assert.True(t, r.Allows(ref.WithVersion(version.MustParse("5.3.1"))))
	assert.False(t, r.Allows(ref.WithVersion(version.MustParse("6.0.0"))))

	otherRef, _ := src.ParseRef("o-colors", nil)
	assert.False(t, r.Allows(otherRef.WithVersion(version.MustParse("5.3.1"))))
}

func TestPackageName_String(t *testing.T) {
	src := newFakeSource(nil)
	ref, _ := src.ParseRef("o-grid", nil)

	assert.Equal(t, "o-grid ^5.0.0", ref.WithConstraint(version.MustParseConstraint(">=5.0.0 <6.0.0")).String())
	assert.Equal(t, "o-grid", ref.WithConstraint(version.Any()).String())
	assert.Equal(t, "o-grid 5.1.0", ref.WithVersion(version.MustParse("5.1.0")).String())
	assert.Equal(t, "your bundle", NewRootRef("your bundle").WithVersion(version.MustParse("1.0.0")).String())
}

func TestPackageID_ToRange(t *testing.T) {
	src := newFakeSource(nil)
	ref, _ := src.ParseRef("o-grid", nil)
	id := ref.WithVersion(version.MustParse("5.1.0"))

	r := id.ToRange()
	assert.True(t, r.Allows(id))
	assert.False(t, r.Allows(ref.WithVersion(version.MustParse("5.1.1"))))
	assert.True(t, id.Equal(ref.WithVersion(version.MustParse("5.1.0"))))
	assert.Equal(t, id.Key(), ref.WithVersion(version.MustParse("5.1.0")).Key())
}
