package core

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// UnknownSource stands in for a source name that is not configured.
// Refs parsed through it can be compared and printed, but every I/O call on
// its binding fails with PackageNotFound, which the solver reports as an
// unknown-source incompatibility.
type UnknownSource struct {
	name string
}

// NewUnknownSource creates the stand-in for the source called name.
func NewUnknownSource(name string) *UnknownSource {
	return &UnknownSource{name: name}
}

// Name implements Source.
func (s *UnknownSource) Name() string {
	return s.name
}

// ParseRef implements Source. The description is kept as given.
func (s *UnknownSource) ParseRef(name string, description any) (PackageRef, error) {
	return PackageRef{Name: name, Source: s, Description: description}, nil
}

// ParseID implements Source.
func (s *UnknownSource) ParseID(name string, v *version.Version, description any) (PackageID, error) {
	return PackageID{PackageRef: PackageRef{Name: name, Source: s, Description: description}, Version: v}, nil
}

// DescriptionsEqual implements Source by comparing the printed descriptions.
func (s *UnknownSource) DescriptionsEqual(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// HashDescription implements Source.
func (s *UnknownSource) HashDescription(description any) uint64 {
	return HashString(fmt.Sprint(description))
}

// Bind implements Source.
func (s *UnknownSource) Bind(cache *SystemCache) BoundSource {
	return &boundUnknownSource{source: s}
}

type boundUnknownSource struct {
	source *UnknownSource
}

func (b *boundUnknownSource) Source() Source {
	return b.source
}

func (b *boundUnknownSource) notFound(name, ver string) error {
	err := NewPackageNotFoundError(name, ver, nil)
	err.Message = fmt.Sprintf("package %s comes from unknown source %q", name, b.source.name)
	return err
}

func (b *boundUnknownSource) GetVersions(_ context.Context, ref PackageRef) ([]PackageID, error) {
	return nil, b.notFound(ref.Name, "")
}

func (b *boundUnknownSource) Describe(_ context.Context, id PackageID) (*Manifest, error) {
	return nil, b.notFound(id.Name, id.Version.String())
}

func (b *boundUnknownSource) DownloadToSystemCache(_ context.Context, id PackageID) (*Package, error) {
	return nil, b.notFound(id.Name, id.Version.String())
}

func (b *boundUnknownSource) GetDirectory(PackageID) string {
	return ""
}

func (b *boundUnknownSource) IsInSystemCache(PackageID) bool {
	return false
}

func (b *boundUnknownSource) GetCachedPackages() ([]*Package, error) {
	return nil, nil
}

// HashString is the FNV-1a hash sources use for description hashing.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
