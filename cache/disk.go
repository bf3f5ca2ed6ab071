package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// responseExtension is the suffix of cached response files.
const responseExtension = ".json"

// DiskCache stores responses as files, one directory per origin.
type DiskCache struct {
	rootDir string
}

// NewDiskCache creates a disk cache rooted at rootDir.
func NewDiskCache(rootDir string) (*DiskCache, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &DiskCache{rootDir: rootDir}, nil
}

// RootDir returns the cache root.
func (dc *DiskCache) RootDir() string {
	return dc.rootDir
}

// OriginFolder names the directory for an origin URL: a hash prefix
// followed by the tail of the host and path.
func OriginFolder(origin string) string {
	normalized := strings.ToLower(strings.TrimSuffix(origin, "/"))
	sum := sha256.Sum256([]byte(normalized))
	tail := normalized
	if i := strings.Index(tail, "://"); i >= 0 {
		tail = tail[i+3:]
	}
	tail = SafeFileName(strings.Trim(tail, "/"))
	if len(tail) > 32 {
		tail = tail[len(tail)-32:]
	}
	return hex.EncodeToString(sum[:10]) + "-" + tail
}

// SafeFileName replaces characters that are not portable in file names.
func SafeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', 0:
			return '_'
		}
		return r
	}, name)
}

// Path returns the file that holds the response for key from origin.
func (dc *DiskCache) Path(origin, key string) string {
	return filepath.Join(dc.rootDir, OriginFolder(origin), SafeFileName(key)+responseExtension)
}

// Get returns the cached bytes if the file exists and is younger than maxAge.
func (dc *DiskCache) Get(origin, key string, maxAge time.Duration) ([]byte, bool, error) {
	path := dc.Path(origin, key)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Since(info.ModTime()) >= maxAge {
		return nil, false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes data for key from origin. Readers never observe a partial
// file: data goes to a temporary file first and is renamed into place.
func (dc *DiskCache) Set(origin, key string, data []byte) error {
	path := dc.Path(origin, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".new-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move cache file: %w", err)
	}
	return nil
}

// Delete removes the entry for key from origin.
func (dc *DiskCache) Delete(origin, key string) error {
	err := os.Remove(dc.Path(origin, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	if err := os.RemoveAll(dc.rootDir); err != nil {
		return err
	}
	return os.MkdirAll(dc.rootDir, 0o755)
}
