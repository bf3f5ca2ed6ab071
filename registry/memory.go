package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryRegistry is an in-process Registry and ObjectStore. Like the
// hosted table it stands in for, listing an unknown package returns an
// empty list rather than an error.
type MemoryRegistry struct {
	mu       sync.RWMutex
	records  map[string][]Record
	objects  map[string][]byte
	failWith error
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string][]Record),
		objects: make(map[string][]byte),
	}
}

// Publish adds a version record, replacing an existing one with the same version.
func (m *MemoryRegistry) Publish(record Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := m.records[record.Name]
	for i, existing := range versions {
		if existing.Version == record.Version {
			versions[i] = record
			return
		}
	}
	m.records[record.Name] = append(versions, record)
}

// PutObject stores an archive at location.
func (m *MemoryRegistry) PutObject(location string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[location] = data
}

// FailWith makes every later call return err; nil restores normal behavior.
func (m *MemoryRegistry) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// ListVersions implements Registry.
func (m *MemoryRegistry) ListVersions(ctx context.Context, name string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	return append([]Record(nil), m.records[name]...), ctx.Err()
}

// GetVersion implements Registry.
func (m *MemoryRegistry) GetVersion(ctx context.Context, name, version string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return Record{}, m.failWith
	}
	for _, record := range m.records[name] {
		if record.Version == version {
			return record, ctx.Err()
		}
	}
	return Record{}, fmt.Errorf("package %s %s: %w", name, version, ErrNotFound)
}

// Open implements ObjectStore.
func (m *MemoryRegistry) Open(_ context.Context, location string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	data, ok := m.objects[location]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", location, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
