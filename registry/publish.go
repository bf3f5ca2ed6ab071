package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Publisher is a Registry that versions and their archives can be added to.
type Publisher interface {
	Registry

	// Store adds a version record, replacing one with the same version.
	Store(ctx context.Context, record Record) error

	// Upload writes a code archive to location.
	Upload(ctx context.Context, location string, body io.Reader) error
}

// CodeLocation is the object key a version's archive is published under.
func CodeLocation(name, version string) string {
	return name + "/" + version + ".tgz"
}

// Store implements Publisher.
func (m *MemoryRegistry) Store(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Publish(record)
	return nil
}

// Upload implements Publisher.
func (m *MemoryRegistry) Upload(ctx context.Context, location string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("upload %s: %w", location, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.PutObject(location, data)
	return nil
}

// DirRegistry is a registry kept in a local directory:
//
//	<root>/packages/<name>/<version>.json  Record
//	<root>/objects/<location>              code archive
//
// A registry URL of file://<root> selects it, and its objects directory is
// the default object store for that URL.
type DirRegistry struct {
	root    string
	objects *DirObjectStore
}

// NewDirRegistry opens the registry rooted at root. The directory is
// created on the first Store or Upload.
func NewDirRegistry(root string) *DirRegistry {
	return &DirRegistry{root: root, objects: NewDirObjectStore(filepath.Join(root, "objects"))}
}

// Root returns the registry directory.
func (r *DirRegistry) Root() string {
	return r.root
}

// ListVersions implements Registry. An unknown package lists no versions.
func (r *DirRegistry) ListVersions(ctx context.Context, name string) ([]Record, error) {
	dir, err := r.packageDir(name)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("list package %s: %w", name, err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// GetVersion implements Registry.
func (r *DirRegistry) GetVersion(ctx context.Context, name, version string) (Record, error) {
	path, err := r.recordPath(name, version)
	if err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	record, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("package %s %s: %w", name, version, ErrNotFound)
	}
	return record, err
}

// Open implements ObjectStore.
func (r *DirRegistry) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return r.objects.Open(ctx, location)
}

// Store implements Publisher.
func (r *DirRegistry) Store(ctx context.Context, record Record) error {
	path, err := r.recordPath(record.Name, record.Version)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", record.Name, record.Version, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(path, bytes.NewReader(data))
}

// Upload implements Publisher.
func (r *DirRegistry) Upload(ctx context.Context, location string, body io.Reader) error {
	rel := filepath.FromSlash(strings.TrimPrefix(location, "/"))
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("object %s: invalid location", location)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(r.objects.root, rel), body)
}

func (r *DirRegistry) packageDir(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("package %q: invalid name", name)
	}
	return filepath.Join(r.root, "packages", rel), nil
}

func (r *DirRegistry) recordPath(name, version string) (string, error) {
	dir, err := r.packageDir(name)
	if err != nil {
		return "", err
	}
	if version == "" || strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return "", fmt.Errorf("package %s: invalid version %q", name, version)
	}
	return filepath.Join(dir, version+".json"), nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return record, nil
}

// writeFileAtomic writes body beside path and renames it into place so
// readers never see a partial file.
func writeFileAtomic(path string, body io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
