// Package hashcache persists, per indexed root, the sha256 of every file
// seen on the last indexing pass. The Coordinator consults it to decide
// between full and incremental indexing (spec §4.7.1) and to classify
// files as new/modified/unchanged/deleted (§4.7.3).
//
// The whole cache lives in one YAML file per user so it can be inspected
// by hand; writes are atomic at file granularity via rename-into-place,
// matching the pattern used by internal/store/hnsw.go.
package hashcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache is a persistent root -> relative_path -> sha256 mapping.
type Cache struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]string
}

// fileFormat is the on-disk YAML shape.
type fileFormat struct {
	Roots map[string]map[string]string `yaml:"roots"`
}

// DefaultPath returns the per-user hash-cache file path, honoring
// $XDG_CACHE_HOME and falling back to ~/.cache.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "project-rag", "hashcache.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "project-rag", "hashcache.yaml")
	}
	return filepath.Join(home, ".cache", "project-rag", "hashcache.yaml")
}

// Open loads the cache from path, creating an empty in-memory cache if the
// file does not yet exist.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, data: make(map[string]map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read hash cache: %w", err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("parse hash cache: %w", err)
	}
	if ff.Roots != nil {
		c.data = ff.Roots
	}
	return c, nil
}

// GetAll returns a snapshot of the relative_path -> sha256 map for root.
// The returned map is a copy; mutating it has no effect on the cache.
func (c *Cache) GetAll(_ context.Context, root string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.data[root]
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

// Update replaces the full relative_path -> sha256 map for root and
// persists the change atomically.
func (c *Cache) Update(_ context.Context, root string, hashes map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := make(map[string]string, len(hashes))
	for k, v := range hashes {
		cp[k] = v
	}
	c.data[root] = cp
	return c.persistLocked()
}

// Remove deletes root's entry entirely.
func (c *Cache) Remove(_ context.Context, root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, root)
	return c.persistLocked()
}

// persistLocked writes the full cache to disk. Callers must hold c.mu.
func (c *Cache) persistLocked() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create hash cache dir: %w", err)
	}

	out, err := yaml.Marshal(fileFormat{Roots: c.data})
	if err != nil {
		return fmt.Errorf("marshal hash cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("write hash cache temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename hash cache into place: %w", err)
	}
	return nil
}
