package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Cache handles persistence of discovered repositories so repeated
// commands against an unchanged workspace skip the walk.
type Cache struct {
	Path        string    `json:"-"`
	Root        string    `json:"root"`
	Repos       []Repo    `json:"repos"`
	LastScanned time.Time `json:"last_scanned"`
}

// NewCache creates a new cache instance
func NewCache(path string) *Cache {
	return &Cache{
		Path: path,
	}
}

// Load reads the cache from disk
func (c *Cache) Load() error {
	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil // Not an error, just empty
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// Save writes the cache to disk
func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}

	c.LastScanned = time.Now()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path, data, 0644)
}

// Update replaces the cached repositories for root.
func (c *Cache) Update(root string, repos []Repo) {
	c.Root = root
	c.Repos = repos
}

// Fresh reports whether the cached result can stand in for a walk of
// root: same root, non-empty, and younger than ttl.
func (c *Cache) Fresh(root string, ttl time.Duration) bool {
	if c.Root != root || len(c.Repos) == 0 {
		return false
	}
	return time.Since(c.LastScanned) < ttl
}
