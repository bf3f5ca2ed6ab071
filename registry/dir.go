package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	obshttp "github.com/adambraimbridge/origami-build-service-v3/http"
)

// DirObjectStore serves archives from a local directory.
type DirObjectStore struct {
	root string
}

// NewDirObjectStore creates an object store over root.
func NewDirObjectStore(root string) *DirObjectStore {
	return &DirObjectStore{root: root}
}

// Open implements ObjectStore. Locations may not escape the root.
func (s *DirObjectStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(location, "/"))
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("object %s: invalid location", location)
	}

	f, err := os.Open(filepath.Join(s.root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", location, ErrNotFound)
	}
	if errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("object %s: %w", location, ErrAccessDenied)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewObjectStore picks an object store for location: a file:// URL or a
// plain path is a directory, anything else is fetched over HTTP.
func NewObjectStore(location string, client *obshttp.Client) ObjectStore {
	if path, ok := strings.CutPrefix(location, "file://"); ok {
		return NewDirObjectStore(path)
	}
	if !strings.Contains(location, "://") {
		return NewDirObjectStore(location)
	}
	return NewHTTPObjectStore(location, client)
}
