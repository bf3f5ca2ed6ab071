// Package registry is the boundary to the package registry: version
// records listing each published version with its declared dependencies,
// and an object store holding each version's code archive.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotFound is returned when a package, version or object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the registry rejects our credentials.
	ErrAccessDenied = errors.New("access denied")
)

// Record describes one published version of a package.
type Record struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Dependencies is the raw dependencies object so that malformed
	// declarations surface as manifest errors rather than decode errors.
	Dependencies json.RawMessage `json:"dependencies,omitempty"`

	// CodeLocation is the object store key of the version's tar.gz archive.
	CodeLocation string `json:"codeLocation,omitempty"`
}

// Manifest renders the record as a package.json document.
func (r Record) Manifest() ([]byte, error) {
	doc := struct {
		Name         string          `json:"name"`
		Version      string          `json:"version"`
		Dependencies json.RawMessage `json:"dependencies,omitempty"`
	}{r.Name, r.Version, r.Dependencies}
	return json.Marshal(doc)
}

// Registry lists package versions.
type Registry interface {
	// ListVersions returns every published version of name. An unknown
	// package may yield ErrNotFound or an empty list.
	ListVersions(ctx context.Context, name string) ([]Record, error)

	// GetVersion returns one version, or ErrNotFound.
	GetVersion(ctx context.Context, name, version string) (Record, error)
}

// ObjectStore serves code archives.
type ObjectStore interface {
	// Open returns the object at location, or ErrNotFound.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// maxResponseBytes bounds registry JSON documents.
const maxResponseBytes = 16 << 20

// readDocument reads a JSON response body, refusing bodies over
// maxResponseBytes rather than truncating them.
func readDocument(body io.Reader, what string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("read %s: response too large (over %d bytes)", what, maxResponseBytes)
	}
	return data, nil
}

// statusError maps an unsuccessful HTTP status onto the package's errors.
func statusError(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", what, ErrAccessDenied)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s: unexpected status %s", what, resp.Status)
	}
	return nil
}
