package registry

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	m := NewMemoryRegistry()
	ctx := context.Background()

	m.Publish(Record{Name: "o-colors", Version: "4.0.0"})
	m.Publish(Record{Name: "o-colors", Version: "4.1.0", CodeLocation: "a"})
	m.Publish(Record{Name: "o-colors", Version: "4.1.0", CodeLocation: "b"})

	records, err := m.ListVersions(ctx, "o-colors")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[1].CodeLocation)

	records, err = m.ListVersions(ctx, "o-missing")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = m.GetVersion(ctx, "o-missing", "1.0.0")
	assert.ErrorIs(t, err, ErrNotFound)

	record, err := m.GetVersion(ctx, "o-colors", "4.0.0")
	require.NoError(t, err)
	assert.Equal(t, "4.0.0", record.Version)
}

func TestMemoryRegistry_Objects(t *testing.T) {
	m := NewMemoryRegistry()
	m.PutObject("o-colors/4.1.0.tgz", []byte("data"))

	body, err := m.Open(context.Background(), "o-colors/4.1.0.tgz")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "data", string(data))

	_, err = m.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_FailWith(t *testing.T) {
	m := NewMemoryRegistry()
	boom := errors.New("boom")
	m.FailWith(boom)

	_, err := m.ListVersions(context.Background(), "o-colors")
	assert.ErrorIs(t, err, boom)
	_, err = m.Open(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.ListVersions(context.Background(), "o-colors")
	assert.NoError(t, err)
}

func TestDirObjectStore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "o-colors"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "o-colors", "4.1.0.tgz"), []byte("tgz"), 0o644))

	store := NewDirObjectStore(root)
	body, err := store.Open(context.Background(), "/o-colors/4.1.0.tgz")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "tgz", string(data))

	_, err = store.Open(context.Background(), "o-colors/missing.tgz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Open(context.Background(), "../outside.tgz")
	assert.Error(t, err)
}

func TestNewObjectStore(t *testing.T) {
	assert.IsType(t, &DirObjectStore{}, NewObjectStore("file:///var/objects", nil))
	assert.IsType(t, &DirObjectStore{}, NewObjectStore("/var/objects", nil))
	assert.IsType(t, &HTTPObjectStore{}, NewObjectStore("https://objects.example.com", nil))
}
