// Package completion provides tab completion for presentation IDs.
// It keeps a small file cache of the user's presentations so completions
// are fast and never call the API.
package completion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slidecraft/slides-cli/internal/config"
	"github.com/slidecraft/slides-cli/internal/models"
)

// CachedPresentation holds presentation data for tab completion.
type CachedPresentation struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Published bool    `json:"published,omitempty"`
	CreatedAt float64 `json:"created_at,omitempty"`
}

// Cache stores completion data with metadata for staleness detection.
type Cache struct {
	Presentations []CachedPresentation `json:"presentations,omitempty"`
	BaseURL       string               `json:"base_url,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Version       int                  `json:"version"`
}

const (
	// CacheVersion is the current cache schema version.
	CacheVersion = 1

	// DefaultMaxAge is the default cache staleness threshold.
	DefaultMaxAge = time.Hour

	// CacheFileName is the cache file name inside the cache directory.
	CacheFileName = "completion.json"
)

// Store handles reading and writing the completion cache.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a cache store in dir, or in the default cache directory
// when dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = config.Default().CacheDir
	}
	return &Store{dir: dir, now: time.Now}
}

// Path returns the full path to the cache file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, CacheFileName)
}

// Load reads the cache from disk. A missing or corrupt file is an empty cache.
func (s *Store) Load() (*Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{Version: CacheVersion}, nil
		}
		return nil, err
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil || cache.Version != CacheVersion {
		return &Cache{Version: CacheVersion}, nil //nolint:nilerr // corrupt cache is rebuilt
	}
	return &cache, nil
}

// SavePresentations replaces the cached presentations for baseURL.
func (s *Store) SavePresentations(baseURL string, list []models.Presentation) error {
	cached := make([]CachedPresentation, 0, len(list))
	for _, p := range list {
		cached = append(cached, CachedPresentation{
			ID:        p.ID,
			Title:     p.Title,
			Published: p.IsPublished != 0,
			CreatedAt: p.CreatedAt,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(&Cache{
		Presentations: cached,
		BaseURL:       baseURL,
		UpdatedAt:     s.now(),
		Version:       CacheVersion,
	})
}

// write replaces the cache file atomically. Caller holds the lock.
func (s *Store) write(cache *Cache) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, CacheFileName+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}

// IsStale reports whether the cache is empty or older than maxAge.
func (s *Store) IsStale(maxAge time.Duration) bool {
	cache, err := s.Load()
	if err != nil || cache.UpdatedAt.IsZero() {
		return true
	}
	return s.now().Sub(cache.UpdatedAt) > maxAge
}

// Clear removes the cache file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Presentations returns cached presentations, or nil if the cache is empty.
func (s *Store) Presentations() []CachedPresentation {
	cache, err := s.Load()
	if err != nil {
		return nil
	}
	return cache.Presentations
}
