// Package storage keeps a file-backed snapshot of fetched resale transactions
// so that scoring runs can be repeated without hitting the data API again.
//
// Writes are atomic (temp file plus rename) and a leftover temp file from an
// interrupted write is removed on the next load.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rewired-gh/flatvalue/internal/models"
)

const snapshotVersion = "1.0"

// Cache persists one transaction snapshot to a JSON file
type Cache struct {
	filePath        string
	maxAge          time.Duration
	filePermissions os.FileMode
	dirPermissions  os.FileMode
	now             func() time.Time
	mu              sync.RWMutex
}

// Snapshot represents the file structure for JSON persistence
type Snapshot struct {
	Version      string               `json:"version"`
	SavedAt      time.Time            `json:"saved_at"`
	FromMonth    string               `json:"from_month,omitempty"`
	ToMonth      string               `json:"to_month,omitempty"`
	Transactions []models.Transaction `json:"transactions"`
}

// Age returns how old the snapshot is at t.
func (s *Snapshot) Age(t time.Time) time.Duration {
	return t.Sub(s.SavedAt)
}

// New creates a cache at filePath. A zero maxAge disables expiry.
// If filePath is empty, uses OS-appropriate tmp directory
func New(filePath string, maxAge time.Duration) *Cache {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "flatvalue", "transactions_cache.json")
	}
	return &Cache{
		filePath:        filePath,
		maxAge:          maxAge,
		filePermissions: 0o644,
		dirPermissions:  0o755,
		now:             time.Now,
	}
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.filePath
}

// Save writes the transactions for the given month window.
func (c *Cache) Save(txns []models.Transaction, fromMonth, toMonth string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, c.dirPermissions); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if txns == nil {
		txns = []models.Transaction{}
	}
	data := Snapshot{
		Version:      snapshotVersion,
		SavedAt:      c.now().UTC(),
		FromMonth:    fromMonth,
		ToMonth:      toMonth,
		Transactions: txns,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := c.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, c.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, c.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Load reads the snapshot. It returns (nil, false, nil) when nothing has
// been cached yet. The boolean reports whether the snapshot is still fresh.
func (c *Cache) Load() (*Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := c.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	jsonData, err := os.ReadFile(c.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(jsonData, &snap); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, false, fmt.Errorf("unsupported cache version %q", snap.Version)
	}

	fresh := c.maxAge == 0 || snap.Age(c.now()) <= c.maxAge
	return &snap, fresh, nil
}
