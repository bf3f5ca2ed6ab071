package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// tempDirName holds download staging directories under the cache root.
const tempDirName = "_temp"

// SystemCache owns the cache root directory, the bound sources keyed by
// source name, and the allocator for staging directories. It keeps no
// resolution state, so it can serve any number of solves.
type SystemCache struct {
	rootDir string
	logger  observability.Logger

	mu            sync.RWMutex
	sources       map[string]BoundSource
	defaultSource string
}

// SystemCacheOption configures a SystemCache
type SystemCacheOption func(*SystemCache)

// WithLogger sets the logger handed to bound sources.
func WithLogger(logger observability.Logger) SystemCacheOption {
	return func(c *SystemCache) {
		c.logger = logger
	}
}

// NewSystemCache creates the cache root if needed.
func NewSystemCache(rootDir string, opts ...SystemCacheOption) (*SystemCache, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("system cache root directory is required")
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	c := &SystemCache{
		rootDir: abs,
		sources: make(map[string]BoundSource),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrNull(c.logger)

	return c, nil
}

// RootDir returns the absolute cache root.
func (c *SystemCache) RootDir() string {
	return c.rootDir
}

// Logger returns the cache's logger.
func (c *SystemCache) Logger() observability.Logger {
	return c.logger
}

// Register binds src to this cache. The first registered source becomes the
// default. Registering a name twice returns the existing binding.
func (c *SystemCache) Register(src Source) BoundSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bound, ok := c.sources[src.Name()]; ok {
		return bound
	}

	bound := src.Bind(c)
	c.sources[src.Name()] = bound
	if c.defaultSource == "" {
		c.defaultSource = src.Name()
	}
	return bound
}

// SetDefault selects the source root-manifest dependencies are parsed through.
func (c *SystemCache) SetDefault(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sources[name]; !ok {
		return fmt.Errorf("source %q is not registered", name)
	}
	c.defaultSource = name
	return nil
}

// Default returns the default bound source, or nil if none is registered.
func (c *SystemCache) Default() BoundSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[c.defaultSource]
}

// Named returns the bound source called name. Unregistered names get a
// bound UnknownSource so callers always have something to ask.
func (c *SystemCache) Named(name string) BoundSource {
	c.mu.RLock()
	bound, ok := c.sources[name]
	c.mu.RUnlock()
	if ok {
		return bound
	}
	return NewUnknownSource(name).Bind(c)
}

// Bound returns the binding of src in this cache.
func (c *SystemCache) Bound(src Source) BoundSource {
	if src == nil {
		return NewUnknownSource("root").Bind(c)
	}
	if _, unknown := src.(*UnknownSource); unknown {
		return src.Bind(c)
	}
	return c.Named(src.Name())
}

// Sources returns the registered source names in sorted order.
func (c *SystemCache) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateTempDir allocates a fresh, unique staging directory.
func (c *SystemCache) CreateTempDir() (string, error) {
	base := filepath.Join(c.rootDir, tempDirName)
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("create temp root: %w", err)
	}

	dir := filepath.Join(base, "dir-"+uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	return dir, nil
}

// SweepTemp removes staging directories left behind by aborted downloads.
// It must not run while downloads are in progress.
func (c *SystemCache) SweepTemp() error {
	return os.RemoveAll(filepath.Join(c.rootDir, tempDirName))
}
