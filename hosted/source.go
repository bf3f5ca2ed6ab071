// Package hosted implements the registry-backed package source.
//
// Packages are listed and described through a registry.Registry and their
// code archives are fetched from a registry.ObjectStore. Downloaded
// packages live in the system cache under one directory per registry URL:
//
//	<cache root>/<escaped registry URL>/<name>-<version>
package hosted

import (
	"fmt"
	"strings"

	"github.com/adambraimbridge/origami-build-service-v3/core"
	"github.com/adambraimbridge/origami-build-service-v3/observability"
	"github.com/adambraimbridge/origami-build-service-v3/registry"
	"github.com/adambraimbridge/origami-build-service-v3/version"
)

// SourceName is the name hosted packages are registered under.
const SourceName = "hosted"

// vcsSourceName is the source that URL-valued dependency descriptions are
// handed to. No such source is configured, so those dependencies resolve to
// an unknown-source incompatibility.
const vcsSourceName = "git"

// Description identifies a hosted package: its name on a registry.
type Description struct {
	Name string
	URL  string
}

func (d Description) String() string {
	return fmt.Sprintf("%s on %s", d.Name, d.URL)
}

func (d Description) normalized() string {
	return strings.ToLower(d.Name) + "\x00" + normalizeURL(d.URL)
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(strings.ToLower(u), "/")
}

// Options configures a Source.
type Options struct {
	// URL identifies the registry in descriptions and cache directories
	URL string

	// Registry lists and describes package versions
	Registry registry.Registry

	// Objects serves the code archive named by each version record
	Objects registry.ObjectStore

	// Logger defaults to the logger of the cache the source is bound to
	Logger observability.Logger
}

// Source is the hosted core.Source. It is stateless apart from its
// configuration; all I/O happens on the BoundSource returned by Bind.
type Source struct {
	url      string
	registry registry.Registry
	objects  registry.ObjectStore
	logger   observability.Logger
}

// NewSource creates a hosted source.
func NewSource(opts Options) (*Source, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("hosted source: registry URL is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("hosted source: registry is required")
	}
	if opts.Objects == nil {
		return nil, fmt.Errorf("hosted source: object store is required")
	}
	return &Source{
		url:      strings.TrimSuffix(opts.URL, "/"),
		registry: opts.Registry,
		objects:  opts.Objects,
		logger:   opts.Logger,
	}, nil
}

// Name implements core.Source.
func (s *Source) Name() string {
	return SourceName
}

// URL returns the registry URL descriptions default to.
func (s *Source) URL() string {
	return s.url
}

// ParseRef implements core.Source.
//
// The description may be nil or a package name (string), a Description, or
// a decoded JSON object with an optional "url" key. A string that
// looks like a VCS URL is not a hosted package; the ref is given to the
// unconfigured "git" source instead.
func (s *Source) ParseRef(name string, description any) (core.PackageRef, error) {
	if text, ok := description.(string); ok && version.IsVCSURL(text) {
		return core.NewUnknownSource(vcsSourceName).ParseRef(name, text)
	}
	desc, err := s.parseDescription(name, description)
	if err != nil {
		return core.PackageRef{}, err
	}
	return core.PackageRef{Name: name, Source: s, Description: desc}, nil
}

// ParseID implements core.Source.
func (s *Source) ParseID(name string, v *version.Version, description any) (core.PackageID, error) {
	ref, err := s.ParseRef(name, description)
	if err != nil {
		return core.PackageID{}, err
	}
	return ref.WithVersion(v), nil
}

// DescriptionsEqual implements core.Source. Names and URLs compare case
// insensitively and a trailing slash on the URL is ignored.
func (s *Source) DescriptionsEqual(a, b any) bool {
	da, okA := a.(Description)
	db, okB := b.(Description)
	if !okA || !okB {
		return false
	}
	return da.normalized() == db.normalized()
}

// HashDescription implements core.Source.
func (s *Source) HashDescription(description any) uint64 {
	d, ok := description.(Description)
	if !ok {
		return core.HashString(fmt.Sprint(description))
	}
	return core.HashString(d.normalized())
}

// Bind implements core.Source.
func (s *Source) Bind(cache *core.SystemCache) core.BoundSource {
	return newBoundSource(s, cache)
}

func (s *Source) parseDescription(name string, description any) (Description, error) {
	switch d := description.(type) {
	case nil:
		return Description{Name: name, URL: s.url}, nil
	case string:
		if d == "" {
			d = name
		}
		return Description{Name: d, URL: s.url}, nil
	case Description:
		if d.Name == "" {
			d.Name = name
		}
		if d.URL == "" {
			d.URL = s.url
		}
		return d, nil
	case map[string]any:
		desc := Description{Name: name, URL: s.url}
		if v, ok := d["url"]; ok {
			text, ok := v.(string)
			if !ok {
				return Description{}, fmt.Errorf("the \"url\" of a hosted dependency must be a string, got %v", v)
			}
			desc.URL = text
		}
		return desc, nil
	}
	return Description{}, fmt.Errorf("invalid hosted description %v (%T)", description, description)
}

// description recovers the Description of a ref parsed by this source.
func (s *Source) description(ref core.PackageRef) Description {
	if d, ok := ref.Description.(Description); ok {
		return d
	}
	d, err := s.parseDescription(ref.Name, ref.Description)
	if err != nil {
		return Description{Name: ref.Name, URL: s.url}
	}
	return d
}

